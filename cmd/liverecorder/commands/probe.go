package commands

import (
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/liverecorder/pkg/resolution/ffprobe"
)

func probe(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	binary, err := cmd.Flags().GetString("ffprobe")
	assertNoError(ctx, err)
	timeout, err := cmd.Flags().GetDuration("timeout")
	assertNoError(ctx, err)

	if _, err := ffprobe.CheckAvailable(ctx, binary); err != nil {
		logger.Fatal(ctx, err)
	}
	res, err := (&ffprobe.Probe{Binary: binary}).Probe(ctx, args[0], timeout)
	if err != nil {
		logger.Fatalf(ctx, "unable to probe '%s': %v", args[0], err)
	}
	fmt.Println(res)
}

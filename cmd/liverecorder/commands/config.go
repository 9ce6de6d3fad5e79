package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/davecgh/go-spew/spew"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"
)

func configShow(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	_, cfg := loadStore(cmd)

	debug, err := cmd.Flags().GetBool("debug")
	assertNoError(ctx, err)
	if debug {
		spew.Fdump(os.Stdout, cfg)
		return
	}

	_, err = cfg.WriteTo(os.Stdout)
	assertNoError(ctx, err)
}

func getOverrideTarget(cmd *cobra.Command) (string, string) {
	ctx := cmd.Context()
	user, err := cmd.Flags().GetString("user")
	assertNoError(ctx, err)
	room, err := cmd.Flags().GetString("room")
	assertNoError(ctx, err)
	return user, room
}

func configResolutionSetEnabled(enable bool) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		store, _ := loadStore(cmd)
		user, room := getOverrideTarget(cmd)

		switch {
		case user != "":
			assertNoError(ctx, store.SetUserRestartOnResolutionChange(ctx, user, enable))
		case room != "":
			assertNoError(ctx, store.SetRoomRestartOnResolutionChange(ctx, room, enable))
		default:
			logger.Fatalf(ctx, "either --user or --room is required")
		}
		fmt.Printf("restart on resolution change: %v\n", enable)
	}
}

func configResolutionInterval(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	seconds, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil || seconds == 0 {
		logger.Fatalf(ctx, "'%s' is not a positive amount of seconds", args[0])
	}

	store, _ := loadStore(cmd)
	user, room := getOverrideTarget(cmd)
	assertNoError(ctx, store.SetCheckInterval(ctx, user, room, uint(seconds)))
	fmt.Printf("resolution check interval: %ds\n", seconds)
}

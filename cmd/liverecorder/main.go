package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	child_process_manager "github.com/AgustinSRG/go-child-process-manager"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/joho/godotenv"
	"github.com/xaionaro-go/liverecorder/cmd/liverecorder/commands"
)

func main() {
	err := child_process_manager.InitializeChildProcessManager()
	if err != nil {
		panic(err)
	}
	defer child_process_manager.DisposeChildProcessManager()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		os.Stderr.WriteString("unable to load .env: " + err.Error() + "\n")
	}

	ctx := commands.InitContext(context.Background())
	defer belt.Flush(ctx)

	err = commands.Root.ExecuteContext(ctx)
	if err != nil {
		logger.Fatal(ctx, err)
	}
}

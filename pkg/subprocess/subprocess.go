// Package subprocess runs the external tools (ffmpeg, ffprobe).
package subprocess

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	child_process_manager "github.com/AgustinSRG/go-child-process-manager"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/liverecorder/pkg/logwriter"
)

// Run executes the binary and returns its stdout. The stderr goes to the
// logger at the trace level. The process is killed if ctx is cancelled or
// if this process dies.
func Run(ctx context.Context, binary string, args ...string) ([]byte, error) {
	logger.Tracef(ctx, "running %s %v", binary, args)

	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	stderr := logwriter.New(ctx, logger.FromCtx(ctx).WithField("subprocess", binary), logger.LevelTrace)
	defer stderr.Close()
	cmd.Stderr = stderr

	if err := child_process_manager.ConfigureCommand(cmd); err != nil {
		logger.Errorf(ctx, "unable to configure the command to be auto-killed: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("unable to start '%s': %w", binary, err)
	}
	if err := child_process_manager.AddChildProcess(cmd.Process); err != nil {
		logger.Debugf(ctx, "unable to register the command to be auto-killed: %v", err)
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("'%s' failed: %w", binary, err)
	}
	return stdout.Bytes(), nil
}

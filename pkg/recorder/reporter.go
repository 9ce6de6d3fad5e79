package recorder

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
)

// LoggerReporter writes the status lines to the logger from the context.
type LoggerReporter struct{}

var _ types.Reporter = LoggerReporter{}

func (LoggerReporter) Report(ctx context.Context, line types.StatusLine) {
	level := logger.LevelInfo
	switch {
	case line.Event == types.StatusEventTaskFailure:
		level = logger.LevelError
	case line.Event.IsFailure():
		level = logger.LevelWarning
	}
	logger.FromCtx(ctx).Logf(level, "%s", line)
}

func report(
	ctx context.Context,
	env *environment,
	line types.StatusLine,
) {
	if env.Reporter == nil {
		LoggerReporter{}.Report(ctx, line)
		return
	}
	env.Reporter.Report(ctx, line)
}

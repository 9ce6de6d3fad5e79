package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/liverecorder/pkg/clock"
	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
)

// RestartController decides whether a session that ended with
// OutcomeRestartPending is followed by a new one.
//
// There is no limit on the number of restarts and the delay between them
// is constant.
type RestartController struct {
	Source types.StreamSource
	Delay  time.Duration
	Clock  clock.Clock
}

// ShouldRestart returns true if the target is still live and the caller is
// not cancelled. It waits Delay before returning true.
func (c *RestartController) ShouldRestart(
	ctx context.Context,
	target *types.Target,
) (_ret bool, _err error) {
	logger.Debugf(ctx, "ShouldRestart")
	defer func() { logger.Debugf(ctx, "/ShouldRestart: %v %v", _ret, _err) }()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	live, err := checkLive(ctx, c.Source, target)
	if err != nil {
		return false, fmt.Errorf("unable to re-check the liveness before the restart: %w", err)
	}
	if !live {
		return false, nil
	}

	if err := clock.Sleep(ctx, c.Clock, c.Delay); err != nil {
		return false, err
	}
	return true, nil
}

package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/liverecorder/pkg/recorder"
	xobservability "github.com/xaionaro-go/observability"
)

// shutdownOnSignal asks the orchestrator to stop on the first interruption
// and exits immediately on the second one.
func shutdownOnSignal(
	ctx context.Context,
	o *recorder.Orchestrator,
) chan os.Signal {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	xobservability.Go(ctx, func(ctx context.Context) {
		interrupted := false
		for range c {
			if interrupted {
				logger.Warnf(ctx, "received a second interruption signal, exiting")
				belt.Flush(ctx)
				os.Exit(1)
			}
			interrupted = true
			logger.Infof(ctx, "received an interruption signal, stopping the recordings (interrupt again to exit now)")
			o.RequestShutdown()
		}
	})
	return c
}

func stopSignalHandler(c chan os.Signal) {
	signal.Stop(c)
	close(c)
}

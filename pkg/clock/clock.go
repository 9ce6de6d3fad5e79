// Package clock provides the time source used by the recorder.
//
// Everything that measures elapsed time or waits goes through a clock.Clock
// so tests can substitute a mock.
package clock

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

type Clock = clock.Clock
type Timer = clock.Timer
type Ticker = clock.Ticker
type Mock = clock.Mock

var globalClock Clock = clock.New()

func Get() Clock {
	return globalClock
}

func Set(clk Clock) {
	globalClock = clk
}

func New() Clock {
	return clock.New()
}

func NewMock() *Mock {
	return clock.NewMock()
}

// OrDefault returns clk, or the global clock if clk is nil.
func OrDefault(clk Clock) Clock {
	if clk == nil {
		return Get()
	}
	return clk
}

// Sleep waits for the duration d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, clk Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := OrDefault(clk).Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SleepInSteps waits for the duration d, but wakes up at least every step to
// call the check function. It returns early with an error if ctx is done or
// if check returns an error. It is used for long waits that must honor
// cancellation quickly even when the caller only observes a polled flag.
func SleepInSteps(
	ctx context.Context,
	clk Clock,
	d time.Duration,
	step time.Duration,
	check func() error,
) error {
	clk = OrDefault(clk)
	deadline := clk.Now().Add(d)
	for {
		if check != nil {
			if err := check(); err != nil {
				return err
			}
		}
		left := deadline.Sub(clk.Now())
		if left <= 0 {
			return nil
		}
		if left > step {
			left = step
		}
		if err := Sleep(ctx, clk, left); err != nil {
			return err
		}
	}
}

package resolution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/liverecorder/pkg/clock"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xsync"
)

const (
	DefaultProbeTimeout = 10 * time.Second
	DefaultMaxFailures  = 3
	DefaultStopTimeout  = 5 * time.Second
)

// Monitor polls a Probe and reports resolution changes.
//
// A Monitor runs at most one polling loop at a time. The first successful
// sample becomes the baseline; every later sample that differs from the
// baseline fires the callback once and becomes the new baseline.
type Monitor struct {
	Probe        Probe
	ProbeTimeout time.Duration
	MaxFailures  int
	StopTimeout  time.Duration
	Clock        clock.Clock

	locker  xsync.Mutex
	run     *monitorRun
	current *Resolution
}

type monitorRun struct {
	cancelFn context.CancelFunc
	doneCh   chan struct{}

	// gateLocker makes sure no callback is invoked after Stop returns,
	// even if the loop itself is still stuck in a probe.
	gateLocker sync.Mutex
	stopped    bool
}

func (r *monitorRun) isDone() bool {
	select {
	case <-r.doneCh:
		return true
	default:
		return false
	}
}

func (r *monitorRun) fire(
	ctx context.Context,
	callback ChangeCallback,
	oldRes, newRes Resolution,
) {
	r.gateLocker.Lock()
	defer r.gateLocker.Unlock()
	if r.stopped {
		return
	}
	callback(ctx, oldRes, newRes)
}

func (r *monitorRun) closeGate() {
	r.gateLocker.Lock()
	defer r.gateLocker.Unlock()
	r.stopped = true
}

func NewMonitor(probe Probe) *Monitor {
	return &Monitor{
		Probe:        probe,
		ProbeTimeout: DefaultProbeTimeout,
		MaxFailures:  DefaultMaxFailures,
		StopTimeout:  DefaultStopTimeout,
	}
}

func (m *Monitor) maxFailures() int {
	if m.MaxFailures <= 0 {
		return DefaultMaxFailures
	}
	return m.MaxFailures
}

func (m *Monitor) probeTimeout() time.Duration {
	if m.ProbeTimeout <= 0 {
		return DefaultProbeTimeout
	}
	return m.ProbeTimeout
}

func (m *Monitor) stopTimeout() time.Duration {
	if m.StopTimeout <= 0 {
		return DefaultStopTimeout
	}
	return m.StopTimeout
}

// Start probes the stream once (to get the baseline) and starts the
// polling loop. Calling Start while the loop is running is a no-op.
func (m *Monitor) Start(
	ctx context.Context,
	url string,
	interval time.Duration,
	callback ChangeCallback,
) (_err error) {
	logger.Debugf(ctx, "Start(ctx, '%s', %v)", url, interval)
	defer func() { logger.Debugf(ctx, "/Start(ctx, '%s', %v): %v", url, interval, _err) }()

	if interval <= 0 {
		return fmt.Errorf("the check interval must be positive, but it is %v", interval)
	}
	if callback == nil {
		return fmt.Errorf("the callback is not set")
	}
	if m.Probe == nil {
		return fmt.Errorf("the probe is not set")
	}

	var loopCtx context.Context
	run := xsync.DoR1(ctx, &m.locker, func() *monitorRun {
		if m.run != nil && !m.run.isDone() {
			return nil
		}
		var cancelFn context.CancelFunc
		loopCtx, cancelFn = context.WithCancel(ctx)
		m.run = &monitorRun{
			cancelFn: cancelFn,
			doneCh:   make(chan struct{}),
		}
		m.current = nil
		return m.run
	})
	if run == nil {
		logger.Warnf(ctx, "the resolution monitor is already running")
		return nil
	}

	if res, err := m.Probe.Probe(loopCtx, url, m.probeTimeout()); err != nil {
		logger.Debugf(ctx, "unable to get the initial resolution: %v", err)
	} else {
		logger.Debugf(ctx, "initial resolution: %s", res)
		m.updateCurrent(ctx, res)
	}

	observability.Go(loopCtx, func(ctx context.Context) {
		defer close(run.doneCh)
		m.loop(ctx, run, url, interval, callback)
	})
	return nil
}

func (m *Monitor) loop(
	ctx context.Context,
	run *monitorRun,
	url string,
	interval time.Duration,
	callback ChangeCallback,
) {
	logger.Debugf(ctx, "loop")
	defer func() { logger.Debugf(ctx, "/loop") }()

	// only the polling counts toward the limit, not the initial probe
	failures := 0
	for {
		if failures >= m.maxFailures() {
			logger.Infof(ctx, "unable to probe the resolution %d times in a row, stopping the resolution monitor", failures)
			return
		}

		if err := clock.Sleep(ctx, m.Clock, interval); err != nil {
			return
		}

		res, err := m.Probe.Probe(ctx, url, m.probeTimeout())
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			logger.Debugf(ctx, "unable to probe the resolution (%d/%d): %v", failures, m.maxFailures(), err)
			continue
		}
		failures = 0

		oldRes, changed := m.updateCurrent(ctx, res)
		if !changed {
			continue
		}
		logger.Debugf(ctx, "resolution changed: %s -> %s", oldRes, res)
		run.fire(ctx, callback, oldRes, res)
	}
}

// updateCurrent stores the sample and returns the previous baseline if the
// sample differs from it.
func (m *Monitor) updateCurrent(ctx context.Context, res Resolution) (Resolution, bool) {
	return xsync.DoR2(ctx, &m.locker, func() (Resolution, bool) {
		if m.current == nil {
			m.current = &res
			return Resolution{}, false
		}
		oldRes := *m.current
		if oldRes == res {
			return Resolution{}, false
		}
		m.current = &res
		return oldRes, true
	})
}

// Stop terminates the polling loop and waits (up to StopTimeout) for it to
// exit. No callback is invoked after Stop returns. Stop is idempotent.
func (m *Monitor) Stop(ctx context.Context) {
	logger.Debugf(ctx, "Stop")
	defer func() { logger.Debugf(ctx, "/Stop") }()

	run := xsync.DoR1(ctx, &m.locker, func() *monitorRun {
		run := m.run
		m.run = nil
		return run
	})
	if run == nil {
		return
	}

	run.cancelFn()
	run.closeGate()

	t := time.NewTimer(m.stopTimeout())
	defer t.Stop()
	select {
	case <-run.doneCh:
	case <-t.C:
		logger.Warnf(ctx, "the resolution monitor loop did not exit within %v", m.stopTimeout())
	}
}

func (m *Monitor) IsRunning(ctx context.Context) bool {
	return xsync.DoR1(ctx, &m.locker, func() bool {
		return m.run != nil && !m.run.isDone()
	})
}

// Current returns the latest known resolution.
func (m *Monitor) Current(ctx context.Context) (Resolution, bool) {
	return xsync.DoR2(ctx, &m.locker, func() (Resolution, bool) {
		if m.current == nil {
			return Resolution{}, false
		}
		return *m.current, true
	})
}

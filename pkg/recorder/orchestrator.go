// Package recorder is the engine that records live streams: one task per
// target, each running recording sessions one after another.
package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/liverecorder/pkg/clock"
	"github.com/xaionaro-go/liverecorder/pkg/progress"
	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
	"github.com/xaionaro-go/liverecorder/pkg/resolution"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
)

// Orchestrator runs the tasks of all the targets in parallel and collects
// their progress. Failed tasks are never retried.
type Orchestrator struct {
	Targets []*types.Target

	env    environment
	signal *CancellationSignal
	board  *progress.Board
	tasks  []*TargetTask

	locker  xsync.Mutex
	started bool
}

func New(
	ctx context.Context,
	source types.StreamSource,
	probe resolution.Probe,
	cfg types.RecordingConfig,
	targets []*types.Target,
	opts ...Option,
) (*Orchestrator, error) {
	if source == nil {
		return nil, fmt.Errorf("the stream source is not set")
	}
	if err := types.CheckSameKind(targets); err != nil {
		return nil, err
	}
	for _, target := range targets {
		if err := target.Validate(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &Orchestrator{
		Targets: targets,
		env: environment{
			Source: source,
			Probe:  probe,
			Config: cfg,
		},
		signal: NewCancellationSignal(),
		board:  progress.NewBoard(),
	}
	Options(opts).apply(&o.env)
	o.env.Probe = o.env.Metrics.InstrumentProbe(o.env.Probe)

	for idx, target := range targets {
		streamIndex := 0
		if len(targets) > 1 {
			streamIndex = idx + 1
		}
		name := entryName(target, streamIndex)
		h, err := o.board.Register(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("unable to register target %s: %w", name, err)
		}
		o.tasks = append(o.tasks, newTargetTask(target, streamIndex, &o.env, h))
	}
	return o, nil
}

func entryName(target *types.Target, streamIndex int) string {
	if streamIndex == 0 {
		return target.String()
	}
	return fmt.Sprintf("Stream %d: %s", streamIndex, target)
}

// RequestShutdown asks all the tasks to stop. It does not wait.
func (o *Orchestrator) RequestShutdown() {
	o.signal.Set()
}

// Snapshot returns a copy of the progress of every target.
func (o *Orchestrator) Snapshot(ctx context.Context) []progress.Entry {
	return o.board.Snapshot(ctx)
}

func (o *Orchestrator) Summary(ctx context.Context) progress.Summary {
	return o.board.Summary(ctx)
}

// Run starts the tasks and waits for them. After a shutdown request it
// waits at most ShutdownTimeout and abandons the tasks that did not stop
// by then. Run may be called only once.
func (o *Orchestrator) Run(ctx context.Context) (_ret progress.Summary) {
	logger.Debugf(ctx, "Run")
	defer func() { logger.Debugf(ctx, "/Run: %d/%d completed", _ret.Completed, _ret.Total) }()

	alreadyStarted := xsync.DoR1(ctx, &o.locker, func() bool {
		if o.started {
			return true
		}
		o.started = true
		return false
	})
	if alreadyStarted {
		logger.Errorf(ctx, "the orchestrator was already started")
		return o.Summary(ctx)
	}

	ctx, cancelFn := o.signal.Context(ctx)
	defer cancelFn()

	var wg sync.WaitGroup
	for idx, task := range o.tasks {
		if idx > 0 {
			if err := clock.Sleep(ctx, o.env.Clock, o.env.Config.StartStagger); err != nil {
				break
			}
		}
		wg.Add(1)
		observability.Go(ctx, func(ctx context.Context) {
			defer wg.Done()
			if err := task.Run(ctx); err != nil {
				logger.Debugf(ctx, "the task of %s ended with: %v", task.Target, err)
			}
		})
	}

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	select {
	case <-allDone:
	case <-ctx.Done():
		logger.Infof(ctx, "stopping the recordings")
		t := time.NewTimer(o.env.Config.ShutdownTimeout)
		defer t.Stop()
		select {
		case <-allDone:
		case <-t.C:
			logger.Warnf(ctx, "some recordings did not stop within %v, abandoning them", o.env.Config.ShutdownTimeout)
		}
	}

	o.sealAll(xcontext.DetachDone(ctx))
	summary := o.Summary(ctx)
	logger.Infof(ctx, "summary:\n%s", summary)
	return summary
}

// sealAll freezes the entries of the tasks that did not finish (or did not
// even start), so the snapshot no longer changes.
func (o *Orchestrator) sealAll(ctx context.Context) {
	now := clock.OrDefault(o.env.Clock).Now()
	for _, task := range o.tasks {
		task.progress.Seal(ctx, func(e *progress.Entry) {
			state := progress.StateStopped
			if e.TotalBytes > 0 {
				state = progress.StateCompleted
			}
			e.State = state
			e.Status = state.Label()
			e.UpdatedAt = now
		})
	}
}

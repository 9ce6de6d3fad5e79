package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/liverecorder/pkg/clock"
	"github.com/xaionaro-go/liverecorder/pkg/progress"
	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
)

// TargetTask records one target for the lifetime of an orchestrator run.
//
// In the manual mode it checks once whether the target is live and records
// the broadcast if it is. In the automatic mode it keeps waiting for
// broadcasts until cancelled. Sessions of a task never overlap.
type TargetTask struct {
	Target *types.Target

	// Index is the 1-based stream number used in artifact names; zero
	// omits it.
	Index int

	env      *environment
	progress *progress.Handle
	restart  *RestartController

	sessions           int
	totalBytes         uint64
	totalElapsed       time.Duration
	connectionFailures uint
}

func newTargetTask(
	target *types.Target,
	index int,
	env *environment,
	progress *progress.Handle,
) *TargetTask {
	return &TargetTask{
		Target:   target,
		Index:    index,
		env:      env,
		progress: progress,
		restart: &RestartController{
			Source: env.Source,
			Delay:  env.Config.RestartDelay,
			Clock:  env.Clock,
		},
	}
}

func (t *TargetTask) clock() clock.Clock {
	return clock.OrDefault(t.env.Clock)
}

// Run returns only fatal-task errors; transient failures are handled
// inside.
func (t *TargetTask) Run(ctx context.Context) (_err error) {
	ctx = belt.WithField(ctx, "target", t.Target.String())
	logger.Debugf(ctx, "Run")
	defer func() { logger.Debugf(ctx, "/Run: %v", _err) }()

	t.setState(ctx, progress.StateStarting)
	state, err := t.run(ctx)
	t.seal(ctx, state, err)
	report(ctx, t.env, types.StatusLine{
		Target:  t.Target.String(),
		Event:   types.StatusEventTaskEnded,
		Message: fmt.Sprintf("done: %s", state),
	})
	return err
}

func (t *TargetTask) run(ctx context.Context) (progress.State, error) {
	cfg := t.env.Config

	if err := t.checkCountry(ctx); err != nil {
		t.giveUp(ctx, "the platform is not reachable", err)
		return progress.StateFailed, err
	}

	for {
		if ctx.Err() != nil {
			return t.stoppedState(), nil
		}

		res := t.attempt(ctx)
		if ctx.Err() != nil || res.Outcome == types.OutcomeCancelled {
			return t.stoppedState(), nil
		}

		outcome := res.Outcome
		if outcome == types.OutcomeTransientError && types.Classify(res.Err) == types.ErrorClassExpectedTerminal {
			outcome = types.OutcomeOffline
		}
		switch outcome {
		case types.OutcomeOffline, types.OutcomeFinished:
			if cfg.Mode == types.ModeManual {
				if t.sessions == 0 {
					report(ctx, t.env, types.StatusLine{
						Target:  t.Target.String(),
						Event:   types.StatusEventNotLive,
						Message: "the user is not currently live",
					})
					return progress.StateNotLive, nil
				}
				return t.endedState(), nil
			}
			report(ctx, t.env, types.StatusLine{
				Target:  t.Target.String(),
				Event:   types.StatusEventWaiting,
				Message: "not live, waiting before the re-check",
				Wait:    cfg.RecheckInterval,
			})
			t.setState(ctx, progress.StateWaiting)
			if err := clock.SleepInSteps(ctx, t.env.Clock, cfg.RecheckInterval, cfg.WaitStep, nil); err != nil {
				return t.stoppedState(), nil
			}

		case types.OutcomeDurationReached:
			if cfg.Mode == types.ModeManual {
				return t.endedState(), nil
			}

		case types.OutcomeTransientError:
			switch types.Classify(res.Err) {
			case types.ErrorClassTransientFast:
				report(ctx, t.env, types.StatusLine{
					Target:      t.Target.String(),
					Event:       types.StatusEventTransportHiccup,
					Message:     "the platform request failed",
					Remediation: types.RemediationRetrying,
					Wait:        cfg.TransportRetryDelay,
					Err:         res.Err,
				})
				if err := clock.Sleep(ctx, t.env.Clock, cfg.TransportRetryDelay); err != nil {
					return t.stoppedState(), nil
				}

			case types.ErrorClassTransientSlow:
				t.connectionFailures++
				if limit := cfg.MaxConsecutiveConnectionFailures; limit > 0 && t.connectionFailures >= limit {
					err := fmt.Errorf("%d connection failures in a row: %w", t.connectionFailures, res.Err)
					t.giveUp(ctx, "the connection keeps failing", err)
					return progress.StateFailed, err
				}
				report(ctx, t.env, types.StatusLine{
					Target:      t.Target.String(),
					Event:       types.StatusEventConnectionFailure,
					Message:     "the connection was closed",
					Remediation: types.RemediationCoolingDown,
					Wait:        cfg.ConnectionCooldown,
					Err:         res.Err,
				})
				t.setState(ctx, progress.StateCoolingDown)
				if err := clock.SleepInSteps(ctx, t.env.Clock, cfg.ConnectionCooldown, cfg.WaitStep, nil); err != nil {
					return t.stoppedState(), nil
				}

			default:
				t.giveUp(ctx, "the recording failed", res.Err)
				return progress.StateFailed, res.Err
			}

		default:
			err := fmt.Errorf("unexpected session outcome %s: %w", res.Outcome, res.Err)
			t.giveUp(ctx, "internal error", err)
			return progress.StateFailed, err
		}
	}
}

// attempt resolves the identity of the target and runs one session
// followed by the restarts requested on resolution changes.
func (t *TargetTask) attempt(ctx context.Context) SessionResult {
	if err := t.resolveIdentity(ctx); err != nil {
		return SessionResult{
			Outcome: types.OutcomeTransientError,
			Err:     err,
		}
	}

	for {
		res := newSession(t.Target, t.Index, t.env, t.progress).Run(ctx)
		t.fold(ctx, res)
		if res.Outcome != types.OutcomeRestartPending {
			return res
		}

		restart, err := t.restart.ShouldRestart(ctx, t.Target)
		switch {
		case ctx.Err() != nil:
			res.Outcome = types.OutcomeCancelled
			return res
		case err != nil:
			res.Outcome = types.OutcomeTransientError
			res.Err = err
			return res
		case !restart:
			res.Outcome = types.OutcomeFinished
			return res
		}
		report(ctx, t.env, types.StatusLine{
			Target:      t.Target.String(),
			Event:       types.StatusEventRestart,
			Message:     "starting a new recording after the resolution change",
			Remediation: types.RemediationRestarting,
		})
	}
}

// resolveIdentity derives the handle and the room ID of the target from
// what the target was created with.
func (t *TargetTask) resolveIdentity(ctx context.Context) error {
	switch t.Target.Kind() {
	case types.TargetKindURL:
		if t.Target.EffectiveHandle() != "" {
			return nil
		}
		if resolver, ok := t.env.Source.(types.URLResolver); ok {
			handle, roomID, err := resolver.ResolveURL(ctx, t.Target.URL)
			if err != nil {
				return fmt.Errorf("unable to resolve URL '%s': %w", t.Target.URL, err)
			}
			t.Target.SetResolvedHandle(handle)
			if roomID != "" {
				t.Target.SetResolvedRoomID(roomID)
			}
			return nil
		}
		handle := types.HandleFromURL(t.Target.URL)
		if handle == "" {
			return types.ErrInvalidTarget{Reason: fmt.Sprintf("unable to find the user name in '%s'", t.Target.URL)}
		}
		if err := types.ValidateHandle(handle); err != nil {
			return err
		}
		t.Target.SetResolvedHandle(handle)

	case types.TargetKindRoomID:
		if t.Target.EffectiveHandle() != "" {
			return nil
		}
		resolver, ok := t.env.Source.(types.UserResolver)
		if !ok {
			return nil
		}
		handle, err := resolver.ResolveUserFromRoom(ctx, t.Target.RoomID)
		if err != nil {
			logger.Debugf(ctx, "unable to find the user of room %s: %v", t.Target.RoomID, err)
			return nil
		}
		t.Target.SetResolvedHandle(handle)
	}
	return nil
}

func (t *TargetTask) checkCountry(ctx context.Context) error {
	checker, ok := t.env.Source.(types.CountryChecker)
	if !ok {
		return nil
	}
	if t.env.Config.Mode != types.ModeAutomatic && t.Target.EffectiveRoomID() != "" {
		return nil
	}
	blacklisted, err := checker.IsCountryBlacklisted(ctx)
	if err != nil {
		logger.Warnf(ctx, "unable to check if the platform is available in this country: %v", err)
		return nil
	}
	if blacklisted {
		return types.ErrCountryBlacklisted
	}
	return nil
}

func (t *TargetTask) giveUp(ctx context.Context, msg string, err error) {
	report(ctx, t.env, types.StatusLine{
		Target:      t.Target.String(),
		Event:       types.StatusEventTaskFailure,
		Message:     msg,
		Remediation: types.RemediationGivingUp,
		Err:         err,
	})
}

// fold accumulates a finished session into the totals of the task.
func (t *TargetTask) fold(ctx context.Context, res SessionResult) {
	if res.OutputPath == "" {
		return
	}
	t.sessions++
	t.totalBytes += res.Bytes
	t.totalElapsed += res.Elapsed
	if res.Bytes > 0 {
		t.connectionFailures = 0
	}

	sessions, totalBytes, totalElapsed := t.sessions, t.totalBytes, t.totalElapsed
	now := t.clock().Now()
	t.progress.Update(ctx, func(e *progress.Entry) {
		e.Sessions = sessions
		e.TotalBytes = totalBytes
		e.TotalElapsed = totalElapsed
		e.Elapsed = res.Elapsed
		e.Bytes = res.Bytes
		if res.Resolution != "" {
			e.Resolution = res.Resolution
		}
		e.UpdatedAt = now
	})
}

func (t *TargetTask) stoppedState() progress.State {
	if t.totalBytes > 0 {
		return progress.StateCompleted
	}
	return progress.StateStopped
}

func (t *TargetTask) endedState() progress.State {
	if t.totalBytes > 0 {
		return progress.StateCompleted
	}
	return progress.StateNotLive
}

func (t *TargetTask) setState(ctx context.Context, state progress.State) {
	now := t.clock().Now()
	t.progress.Update(ctx, func(e *progress.Entry) {
		e.State = state
		e.Status = state.Label()
		e.UpdatedAt = now
	})
}

func (t *TargetTask) seal(ctx context.Context, state progress.State, err error) {
	now := t.clock().Now()
	t.progress.Seal(ctx, func(e *progress.Entry) {
		e.State = state
		e.Status = state.Label()
		if err != nil {
			e.Status = fmt.Sprintf("%s: %v", state.Label(), err)
		}
		e.UpdatedAt = now
	})
}

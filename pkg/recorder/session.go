package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/liverecorder/pkg/bufferedwriter"
	"github.com/xaionaro-go/liverecorder/pkg/clock"
	"github.com/xaionaro-go/liverecorder/pkg/progress"
	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
	"github.com/xaionaro-go/liverecorder/pkg/resolution"
	"github.com/xaionaro-go/xcontext"
)

const readBufferSize = 64 * 1024

// SessionResult is what is left of a session after it ended.
type SessionResult struct {
	SessionID  uuid.UUID
	Outcome    types.Outcome
	Err        error
	OutputPath string
	StartedAt  time.Time
	Elapsed    time.Duration
	Bytes      uint64
	Resolution string
}

// Session is one continuous recording attempt into a single artifact.
//
// A session is used once: Run drives it from the liveness check to one of
// the outcomes and releases everything it opened.
type Session struct {
	ID     uuid.UUID
	Target *types.Target

	// Index is the 1-based stream number used in the artifact name; zero
	// omits it.
	Index int

	env      *environment
	progress *progress.Handle

	state            atomic.Int32
	restartRequested atomic.Bool

	monitor         *resolution.Monitor
	writer          *bufferedwriter.BufferedWriter
	outputPath      string
	startedAt       time.Time
	lastProgressAt  time.Time
	lastLiveCheckAt time.Time
}

func newSession(
	target *types.Target,
	index int,
	env *environment,
	progress *progress.Handle,
) *Session {
	return &Session{
		ID:       uuid.New(),
		Target:   target,
		Index:    index,
		env:      env,
		progress: progress,
	}
}

func (s *Session) State() types.SessionState {
	return types.SessionState(s.state.Load())
}

func (s *Session) setState(state types.SessionState) {
	s.state.Store(int32(state))
}

// RequestRestart makes the session end with OutcomeRestartPending after
// the current chunk.
func (s *Session) RequestRestart() {
	s.restartRequested.Store(true)
}

func (s *Session) IsRestartRequested() bool {
	return s.restartRequested.Load()
}

func (s *Session) clock() clock.Clock {
	return clock.OrDefault(s.env.Clock)
}

func (s *Session) Run(ctx context.Context) (_ret SessionResult) {
	ctx = belt.WithField(ctx, "session_id", s.ID.String())
	logger.Debugf(ctx, "Run")
	defer func() { logger.Debugf(ctx, "/Run: %s: %v", _ret.Outcome, _ret.Err) }()
	defer s.setState(types.SessionStateEnded)

	result := SessionResult{SessionID: s.ID}

	s.setState(types.SessionStateCheckingLive)
	live, err := s.checkLive(ctx)
	if err != nil {
		return s.failed(ctx, result, err)
	}
	if !live {
		result.Outcome = types.OutcomeOffline
		return result
	}

	s.setState(types.SessionStateResolving)
	url, err := s.env.Source.ResolvePlaybackURL(ctx, s.Target)
	if err != nil {
		return s.failed(ctx, result, fmt.Errorf("unable to resolve the playback URL: %w", err))
	}
	if url == "" {
		return s.failed(ctx, result, types.ErrNoPlaybackURL)
	}

	settings := s.resolutionSettings(ctx)

	s.setState(types.SessionStateStreaming)
	return s.stream(ctx, url, settings, result)
}

func (s *Session) failed(
	ctx context.Context,
	result SessionResult,
	err error,
) SessionResult {
	if ctx.Err() != nil {
		result.Outcome = types.OutcomeCancelled
		return result
	}
	result.Outcome = types.OutcomeTransientError
	result.Err = err
	return result
}

// checkLive re-resolves the room of a handle (the room changes between
// broadcasts) and asks whether it is live.
func (s *Session) checkLive(ctx context.Context) (bool, error) {
	s.lastLiveCheckAt = s.clock().Now()
	return checkLive(ctx, s.env.Source, s.Target)
}

func checkLive(
	ctx context.Context,
	source types.StreamSource,
	target *types.Target,
) (bool, error) {
	if handle := target.EffectiveHandle(); handle != "" && target.RoomID == "" {
		roomID, err := source.ResolveRoomFromHandle(ctx, handle)
		switch {
		case errors.Is(err, types.ErrNotLive):
			return false, nil
		case err != nil:
			return false, fmt.Errorf("unable to resolve the room of @%s: %w", handle, err)
		case roomID == "":
			return false, nil
		}
		target.SetResolvedRoomID(roomID)
	}

	live, err := source.IsLive(ctx, target)
	if err != nil {
		return false, fmt.Errorf("unable to check if %s is live: %w", target, err)
	}
	return live, nil
}

func (s *Session) resolutionSettings(ctx context.Context) types.ResolutionSettings {
	cfg := s.env.Config
	settings := types.ResolutionSettings{
		RestartOnResolutionChange: cfg.RestartOnResolutionChange,
		CheckInterval:             cfg.ResolutionCheckInterval,
	}
	if s.env.Settings != nil {
		stored, err := s.env.Settings.ResolutionSettings(ctx, s.Target.EffectiveHandle(), s.Target.EffectiveRoomID())
		if err != nil {
			logger.Warnf(ctx, "unable to read the resolution settings, using the defaults: %v", err)
		} else {
			settings.RestartOnResolutionChange = settings.RestartOnResolutionChange || stored.RestartOnResolutionChange
			if stored.CheckInterval > 0 {
				settings.CheckInterval = stored.CheckInterval
			}
		}
	}
	if settings.CheckInterval <= 0 {
		settings.CheckInterval = types.DefaultConfig(ctx).ResolutionCheckInterval
	}
	return settings
}

func (s *Session) onResolutionChange(
	ctx context.Context,
	restartEnabled bool,
	oldRes, newRes resolution.Resolution,
) {
	line := types.StatusLine{
		Target:  s.Target.String(),
		Event:   types.StatusEventResolutionChanged,
		Message: fmt.Sprintf("resolution changed %s → %s", oldRes, newRes),
	}
	if restartEnabled {
		line.Remediation = types.RemediationRestarting
		s.RequestRestart()
	}
	report(ctx, s.env, line)
}

func (s *Session) stream(
	ctx context.Context,
	url string,
	settings types.ResolutionSettings,
	result SessionResult,
) (_ret SessionResult) {
	cfg := s.env.Config
	clk := s.clock()

	s.startedAt = clk.Now()
	f, outputPath, err := createArtifact(OutputPath(cfg.OutputDir, s.Target.UserName(), s.startedAt, s.Index))
	if err != nil {
		return s.failed(ctx, result, err)
	}
	s.outputPath = outputPath
	result.OutputPath = outputPath
	result.StartedAt = s.startedAt
	s.writer = bufferedwriter.New(f, cfg.BufferSize)

	s.env.Metrics.SessionStarted()
	defer func() { s.env.Metrics.SessionEnded(_ret.Outcome.String()) }()

	// the monitor is stopped before the artifact is finalized
	defer func() { _ret = s.finalize(ctx, _ret) }()
	if s.env.Probe != nil {
		s.monitor = resolution.NewMonitor(s.env.Probe)
		s.monitor.Clock = s.env.Clock
		if cfg.ProbeTimeout > 0 {
			s.monitor.ProbeTimeout = cfg.ProbeTimeout
		}
		restartEnabled := settings.RestartOnResolutionChange
		err := s.monitor.Start(ctx, url, settings.CheckInterval, func(
			ctx context.Context,
			oldRes, newRes resolution.Resolution,
		) {
			s.onResolutionChange(ctx, restartEnabled, oldRes, newRes)
		})
		if err != nil {
			logger.Warnf(ctx, "unable to start the resolution monitor: %v", err)
		}
	}

	report(ctx, s.env, types.StatusLine{
		Target:  s.Target.String(),
		Event:   types.StatusEventRecordingStarted,
		Message: fmt.Sprintf("recording to '%s'", outputPath),
	})
	s.lastProgressAt = time.Time{}
	s.updateProgress(ctx, true)

	result.Outcome, result.Err = s.streamLoop(ctx, url)
	return result
}

// streamLoop (re)connects to the stream until one of the outcomes is
// reached.
func (s *Session) streamLoop(
	ctx context.Context,
	url string,
) (types.Outcome, error) {
	cfg := s.env.Config
	buf := make([]byte, readBufferSize)
	firstConnect := true
	for {
		if ctx.Err() != nil {
			return types.OutcomeCancelled, nil
		}
		if !firstConnect {
			live, err := s.checkLive(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return types.OutcomeCancelled, nil
				}
				if types.Classify(err) != types.ErrorClassTransientFast {
					return types.OutcomeTransientError, err
				}
				report(ctx, s.env, types.StatusLine{
					Target:      s.Target.String(),
					Event:       types.StatusEventTransportHiccup,
					Message:     "unable to re-check the liveness before reconnecting",
					Remediation: types.RemediationRetrying,
					Wait:        cfg.TransportRetryDelay,
					Err:         err,
				})
				if err := clock.Sleep(ctx, s.env.Clock, cfg.TransportRetryDelay); err != nil {
					return types.OutcomeCancelled, nil
				}
				continue
			}
			if !live {
				return s.wentOffline(), nil
			}
		}
		firstConnect = false

		body, err := s.env.Source.FetchChunks(ctx, url)
		if err == nil {
			var (
				outcome types.Outcome
				n       uint64
			)
			outcome, n, err = s.readConnection(ctx, body, buf)
			body.Close()
			if outcome != types.UndefinedOutcome {
				return outcome, err
			}
			if err == nil {
				logger.Debugf(ctx, "the connection was closed by the remote side after %d bytes", n)
				if n > 0 {
					continue
				}
				// an empty connection; do not hammer the platform
				if err := clock.Sleep(ctx, s.env.Clock, cfg.TransportRetryDelay); err != nil {
					return types.OutcomeCancelled, nil
				}
				continue
			}
		}
		if ctx.Err() != nil {
			return types.OutcomeCancelled, nil
		}

		switch types.Classify(err) {
		case types.ErrorClassTransientFast:
			report(ctx, s.env, types.StatusLine{
				Target:      s.Target.String(),
				Event:       types.StatusEventTransportHiccup,
				Message:     "the stream connection was interrupted",
				Remediation: types.RemediationRetrying,
				Wait:        cfg.TransportRetryDelay,
				Err:         err,
			})
			if err := clock.Sleep(ctx, s.env.Clock, cfg.TransportRetryDelay); err != nil {
				return types.OutcomeCancelled, nil
			}
		default:
			return types.OutcomeTransientError, err
		}
	}
}

// readConnection copies one connection into the writer. It returns a
// defined outcome if the session must end; otherwise the connection ended
// (with a nil error on io.EOF) and the caller decides what to do next.
func (s *Session) readConnection(
	ctx context.Context,
	body io.Reader,
	buf []byte,
) (types.Outcome, uint64, error) {
	cfg := s.env.Config
	clk := s.clock()
	var total uint64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := s.writer.Write(buf[:n]); err != nil {
				return types.OutcomeTransientError, total, fmt.Errorf("unable to write to the artifact: %w", err)
			}
			total += uint64(n)
			s.env.Metrics.AddBytes(s.Target.String(), n)
			s.updateProgress(ctx, false)
		}

		switch {
		case ctx.Err() != nil:
			return types.OutcomeCancelled, total, nil
		case cfg.MaxDuration > 0 && clk.Since(s.startedAt) >= cfg.MaxDuration:
			return types.OutcomeDurationReached, total, nil
		case s.IsRestartRequested():
			return types.OutcomeRestartPending, total, nil
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return types.UndefinedOutcome, total, nil
			}
			return types.UndefinedOutcome, total, readErr
		}

		if cfg.LivenessCheckInterval > 0 && clk.Since(s.lastLiveCheckAt) >= cfg.LivenessCheckInterval {
			live, err := s.checkLive(ctx)
			switch {
			case ctx.Err() != nil:
				return types.OutcomeCancelled, total, nil
			case err != nil:
				logger.Debugf(ctx, "unable to re-check the liveness, continuing: %v", err)
			case !live:
				return s.wentOffline(), total, nil
			}
		}
	}
}

func (s *Session) wentOffline() types.Outcome {
	if s.writer != nil && s.writer.BytesReceived() > 0 {
		return types.OutcomeFinished
	}
	return types.OutcomeOffline
}

func (s *Session) currentResolution(ctx context.Context) string {
	if s.monitor == nil {
		return ""
	}
	res, ok := s.monitor.Current(ctx)
	if !ok {
		return ""
	}
	return res.String()
}

func (s *Session) updateProgress(ctx context.Context, force bool) {
	if s.progress == nil {
		return
	}
	now := s.clock().Now()
	if !force && now.Sub(s.lastProgressAt) < s.env.Config.ProgressInterval {
		return
	}
	s.lastProgressAt = now

	elapsed := now.Sub(s.startedAt)
	bytes := s.writer.BytesReceived()
	res := s.currentResolution(ctx)
	s.progress.Update(ctx, func(e *progress.Entry) {
		e.State = progress.StateRecording
		e.Status = progress.StateRecording.Label()
		e.Elapsed = elapsed
		e.Bytes = bytes
		e.Percent = progress.Percent(elapsed, s.env.Config.MaxDuration)
		if res != "" {
			e.Resolution = res
		}
		e.OutputPath = s.outputPath
		e.UpdatedAt = now
	})
}

// finalize flushes and closes the artifact, folds the session into the
// result and hands the artifact over to the post-processor.
func (s *Session) finalize(
	ctx context.Context,
	result SessionResult,
) SessionResult {
	if s.monitor != nil {
		s.monitor.Stop(xcontext.DetachDone(ctx))
		result.Resolution = s.currentResolution(ctx)
	}

	result.Elapsed = s.clock().Since(s.startedAt)
	result.Bytes = s.writer.BytesReceived()

	var mErr *multierror.Error
	if err := s.writer.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to finalize '%s': %w", result.OutputPath, err))
	}
	if result.Bytes == 0 {
		if err := os.Remove(result.OutputPath); err != nil && !os.IsNotExist(err) {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to remove the empty artifact '%s': %w", result.OutputPath, err))
		}
	}
	if err := mErr.ErrorOrNil(); err != nil {
		logger.Errorf(ctx, "%v", err)
		if result.Err == nil {
			result.Err = err
		}
	}

	report(ctx, s.env, types.StatusLine{
		Target: s.Target.String(),
		Event:  types.StatusEventRecordingEnded,
		Message: fmt.Sprintf("the recording ended (%s) after %s, %s in '%s'",
			result.Outcome, progress.FormatDuration(result.Elapsed), humanize.Bytes(result.Bytes), result.OutputPath),
	})

	if result.Bytes > 0 && s.env.PostProcessor != nil {
		s.env.PostProcessor.HandleArtifact(xcontext.DetachDone(ctx), result.OutputPath)
	}
	return result
}

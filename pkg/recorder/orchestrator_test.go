package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/liverecorder/pkg/progress"
	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
	"github.com/xaionaro-go/liverecorder/pkg/resolution"
)

func handles(t *testing.T, names ...string) []*types.Target {
	var result []*types.Target
	for _, name := range names {
		target, err := types.NewTargetFromHandle(name)
		require.NoError(t, err)
		result = append(result, target)
	}
	return result
}

type staticSettings struct {
	settings types.ResolutionSettings
	calls    atomic.Int32
}

func (s *staticSettings) ResolutionSettings(ctx context.Context, handle, roomID string) (types.ResolutionSettings, error) {
	s.calls.Add(1)
	return s.settings, nil
}

func TestNewValidation(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t.TempDir())

	_, err := New(ctx, &fakeSource{}, nil, cfg, nil)
	assert.ErrorIs(t, err, types.ErrNoTargets)

	room, err := types.NewTargetFromRoomID("123")
	require.NoError(t, err)
	_, err = New(ctx, &fakeSource{}, nil, cfg, append(handles(t, "alice"), room))
	assert.ErrorIs(t, err, types.ErrMixedTargetKinds)
	assert.Equal(t, types.ErrorClassFatalProcess, types.Classify(err))

	badCfg := cfg
	badCfg.BufferSize = 0
	_, err = New(ctx, &fakeSource{}, nil, badCfg, handles(t, "alice"))
	assert.Error(t, err)

	o, err := New(ctx, &fakeSource{}, nil, cfg, handles(t, "alice", "bob"))
	require.NoError(t, err)
	snapshot := o.Snapshot(ctx)
	require.Len(t, snapshot, 2)
	assert.Equal(t, "Stream 1: @alice", snapshot[0].Name)
	assert.Equal(t, progress.StatePending, snapshot[1].State)
}

func TestOrchestratorShutdown(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t.TempDir())
	cfg.Mode = types.ModeAutomatic

	source := &fakeSource{}
	o, err := New(ctx, source, nil, cfg, handles(t, "alice", "bob", "carol"),
		OptionReporter{Reporter: &recordingReporter{}},
	)
	require.NoError(t, err)

	go func() {
		time.Sleep(200 * time.Millisecond)
		o.RequestShutdown()
	}()

	startedAt := time.Now()
	summary := o.Run(ctx)
	assert.Less(t, time.Since(startedAt), 5*time.Second)

	require.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Completed)
	assert.NotZero(t, summary.TotalBytes)

	before := o.Snapshot(ctx)
	time.Sleep(50 * time.Millisecond)
	after := o.Snapshot(ctx)
	assert.Equal(t, before, after)

	artifacts := listArtifacts(t, cfg.OutputDir)
	require.Len(t, artifacts, 3)
	for _, path := range artifacts {
		assert.Regexp(t, `_Stream-[123]_flv\.mp4$`, path)
	}
}

func TestOrchestratorRestartsProduceDistinctArtifacts(t *testing.T) {
	const restarts = 3
	ctx := context.Background()
	cfg := testConfig(t.TempDir())
	finalURLSuffix := fmt.Sprintf("/%d.flv", restarts+1)

	var (
		probeLocker sync.Mutex
		probeCalls  = map[string]int{}
		finalDone   atomic.Bool
	)
	probe := resolution.ProbeFunc(func(ctx context.Context, url string, timeout time.Duration) (resolution.Resolution, error) {
		probeLocker.Lock()
		defer probeLocker.Unlock()
		probeCalls[url]++
		if probeCalls[url] == 1 || strings.HasSuffix(url, finalURLSuffix) {
			return resolution.Resolution{Width: 720, Height: 1280}, nil
		}
		return resolution.Resolution{Width: 1080, Height: 1920}, nil
	})

	source := &fakeSource{
		liveFn: func(int) bool { return !finalDone.Load() },
		fetchFn: func(ctx context.Context, url string, call int) (io.ReadCloser, error) {
			if strings.HasSuffix(url, finalURLSuffix) {
				finalDone.Store(true)
				return &chunkReader{Chunks: 5, Size: 10}, nil
			}
			return &chunkReader{Chunks: -1, Size: 10, Delay: time.Millisecond}, nil
		},
	}
	settings := &staticSettings{settings: types.ResolutionSettings{
		RestartOnResolutionChange: true,
		CheckInterval:             10 * time.Millisecond,
	}}
	reporter := &recordingReporter{}
	pp := &recordingPostProcessor{}

	o, err := New(ctx, source, probe, cfg, handles(t, "alice"),
		OptionReporter{Reporter: reporter},
		OptionSettingsProvider{Provider: settings},
		OptionPostProcessor{PostProcessor: pp},
	)
	require.NoError(t, err)

	summary := o.Run(ctx)
	require.Equal(t, 1, summary.Completed)
	assert.Equal(t, restarts+1, summary.Entries[0].Sessions)
	assert.Equal(t, restarts, reporter.Count(types.StatusEventRestart))
	assert.Equal(t, int32(restarts+1), settings.calls.Load())

	artifacts := listArtifacts(t, cfg.OutputDir)
	require.Len(t, artifacts, restarts+1)
	assert.ElementsMatch(t, artifacts, pp.Paths())
	for _, path := range artifacts {
		fi, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, fi.Size())
		assert.Equal(t, filepath.Join(cfg.OutputDir, "alice"), filepath.Dir(path))
	}
}

func TestAutomaticModeRechecksUntilLive(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t.TempDir())
	cfg.Mode = types.ModeAutomatic

	room, err := types.NewTargetFromRoomID("123")
	require.NoError(t, err)

	source := &fakeSource{
		liveFn: func(call int) bool { return call == 3 },
		fetchFn: func(ctx context.Context, url string, call int) (io.ReadCloser, error) {
			return &chunkReader{Chunks: 3, Size: 10}, nil
		},
	}
	var o *Orchestrator
	reporter := &recordingReporter{
		onReport: func(line types.StatusLine) {
			if line.Event == types.StatusEventRecordingEnded {
				o.RequestShutdown()
			}
		},
	}
	o, err = New(ctx, source, nil, cfg, []*types.Target{room}, OptionReporter{Reporter: reporter})
	require.NoError(t, err)

	summary := o.Run(ctx)
	assert.Equal(t, 2, reporter.CountBefore(types.StatusEventWaiting, types.StatusEventRecordingStarted))
	assert.Equal(t, 1, reporter.Count(types.StatusEventRecordingStarted))
	assert.Equal(t, uint64(30), summary.TotalBytes)
	assert.Equal(t, progress.StateCompleted, summary.Entries[0].State)
}

func TestManualModeNotLive(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t.TempDir())

	source := &fakeSource{liveFn: func(int) bool { return false }}
	reporter := &recordingReporter{}
	o, err := New(ctx, source, nil, cfg, handles(t, "alice"), OptionReporter{Reporter: reporter})
	require.NoError(t, err)

	summary := o.Run(ctx)
	assert.Equal(t, 0, summary.Completed)
	assert.Equal(t, progress.StateNotLive, summary.Entries[0].State)
	assert.Equal(t, 1, reporter.Count(types.StatusEventNotLive))
	assert.Equal(t, 0, reporter.Count(types.StatusEventWaiting))
	assert.Equal(t, 1, source.LiveCalls())
	assert.Empty(t, listArtifacts(t, cfg.OutputDir))
}

func TestCountryBlacklisted(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t.TempDir())
	cfg.Mode = types.ModeAutomatic

	source := fakeCheckingSource{&fakeSource{blacklisted: true}}
	reporter := &recordingReporter{}
	o, err := New(ctx, source, nil, cfg, handles(t, "alice"), OptionReporter{Reporter: reporter})
	require.NoError(t, err)

	summary := o.Run(ctx)
	assert.Equal(t, progress.StateFailed, summary.Entries[0].State)
	assert.Equal(t, 1, reporter.Count(types.StatusEventTaskFailure))
	assert.Equal(t, 0, source.LiveCalls())
}

func TestConnectionFailures(t *testing.T) {
	failingSource := func() *fakeSource {
		return &fakeSource{
			fetchFn: func(ctx context.Context, url string, call int) (io.ReadCloser, error) {
				return nil, types.ErrConnection{Err: errors.New("connection refused")}
			},
		}
	}

	t.Run("escalated", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t.TempDir())
		cfg.MaxConsecutiveConnectionFailures = 2

		source := failingSource()
		reporter := &recordingReporter{}
		o, err := New(ctx, source, nil, cfg, handles(t, "alice"), OptionReporter{Reporter: reporter})
		require.NoError(t, err)

		summary := o.Run(ctx)
		assert.Equal(t, progress.StateFailed, summary.Entries[0].State)
		assert.Equal(t, 1, reporter.Count(types.StatusEventConnectionFailure))
		assert.Equal(t, 1, reporter.Count(types.StatusEventTaskFailure))
		assert.Equal(t, 2, source.FetchCalls())
	})

	t.Run("unlimited", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t.TempDir())

		source := failingSource()
		reporter := &recordingReporter{}
		o, err := New(ctx, source, nil, cfg, handles(t, "alice"), OptionReporter{Reporter: reporter})
		require.NoError(t, err)

		go func() {
			time.Sleep(100 * time.Millisecond)
			o.RequestShutdown()
		}()
		summary := o.Run(ctx)
		assert.Equal(t, progress.StateStopped, summary.Entries[0].State)
		assert.GreaterOrEqual(t, reporter.Count(types.StatusEventConnectionFailure), 2)
		assert.Equal(t, 0, reporter.Count(types.StatusEventTaskFailure))
	})
}

func TestRunTwice(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{liveFn: func(int) bool { return false }}
	o, err := New(ctx, source, nil, testConfig(t.TempDir()), handles(t, "alice"))
	require.NoError(t, err)

	o.Run(ctx)
	calls := source.LiveCalls()
	o.Run(ctx)
	assert.Equal(t, calls, source.LiveCalls())
}

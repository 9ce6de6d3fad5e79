package resolution

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeResult struct {
	res Resolution
	err error
}

type sequenceProbe struct {
	locker  sync.Mutex
	results []probeResult
	tail    probeResult
	calls   int
}

func (p *sequenceProbe) Probe(ctx context.Context, url string, timeout time.Duration) (Resolution, error) {
	p.locker.Lock()
	defer p.locker.Unlock()
	idx := p.calls
	p.calls++
	if idx < len(p.results) {
		return p.results[idx].res, p.results[idx].err
	}
	return p.tail.res, p.tail.err
}

func (p *sequenceProbe) Calls() int {
	p.locker.Lock()
	defer p.locker.Unlock()
	return p.calls
}

type changeRecorder struct {
	locker  sync.Mutex
	changes [][2]Resolution
}

func (r *changeRecorder) callback(ctx context.Context, oldRes, newRes Resolution) {
	r.locker.Lock()
	defer r.locker.Unlock()
	r.changes = append(r.changes, [2]Resolution{oldRes, newRes})
}

func (r *changeRecorder) Changes() [][2]Resolution {
	r.locker.Lock()
	defer r.locker.Unlock()
	return append([][2]Resolution(nil), r.changes...)
}

var (
	res720  = Resolution{Width: 1280, Height: 720}
	res1080 = Resolution{Width: 1920, Height: 1080}
)

func newTestMonitor(p Probe) *Monitor {
	m := NewMonitor(p)
	m.StopTimeout = time.Second
	return m
}

func TestMonitorFiresOncePerChange(t *testing.T) {
	ctx := context.Background()
	probe := &sequenceProbe{
		results: []probeResult{{res: res720}, {res: res720}, {res: res1080}, {res: res1080}},
		tail:    probeResult{res: res1080},
	}
	rec := &changeRecorder{}
	m := newTestMonitor(probe)

	require.NoError(t, m.Start(ctx, "http://stream", 5*time.Millisecond, rec.callback))
	cur, ok := m.Current(ctx)
	require.True(t, ok)
	require.Equal(t, res720, cur)

	require.Eventually(t, func() bool { return probe.Calls() >= 6 }, 5*time.Second, time.Millisecond)
	m.Stop(ctx)

	require.Equal(t, [][2]Resolution{{res720, res1080}}, rec.Changes())
	cur, ok = m.Current(ctx)
	require.True(t, ok)
	require.Equal(t, res1080, cur)
}

func TestMonitorFirstSuccessIsBaseline(t *testing.T) {
	ctx := context.Background()
	probe := &sequenceProbe{
		results: []probeResult{{err: errors.New("no stream yet")}, {res: res720}, {res: res720}},
		tail:    probeResult{res: res720},
	}
	rec := &changeRecorder{}
	m := newTestMonitor(probe)

	require.NoError(t, m.Start(ctx, "http://stream", 5*time.Millisecond, rec.callback))
	_, ok := m.Current(ctx)
	require.False(t, ok)

	require.Eventually(t, func() bool { return probe.Calls() >= 4 }, 5*time.Second, time.Millisecond)
	m.Stop(ctx)
	require.Empty(t, rec.Changes())
}

func TestMonitorStopsAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	errProbe := errors.New("ffprobe failed")
	probe := &sequenceProbe{
		results: []probeResult{
			{res: res720},
			{err: errProbe},
			{err: errProbe},
			{res: res720},
			{err: errProbe},
			{err: errProbe},
		},
		tail: probeResult{err: errProbe},
	}
	m := newTestMonitor(probe)

	require.NoError(t, m.Start(ctx, "http://stream", time.Millisecond, func(context.Context, Resolution, Resolution) {}))
	require.Eventually(t, func() bool { return !m.IsRunning(ctx) }, 5*time.Second, time.Millisecond)
	assert.Equal(t, 7, probe.Calls())

	// the monitor may be started again after it stopped by itself
	probe2 := &sequenceProbe{tail: probeResult{res: res720}}
	m.Probe = probe2
	require.NoError(t, m.Start(ctx, "http://stream", time.Millisecond, func(context.Context, Resolution, Resolution) {}))
	require.True(t, m.IsRunning(ctx))
	m.Stop(ctx)

	// a failed initial probe does not count toward the limit
	probe3 := &sequenceProbe{tail: probeResult{err: errProbe}}
	m.Probe = probe3
	require.NoError(t, m.Start(ctx, "http://stream", time.Millisecond, func(context.Context, Resolution, Resolution) {}))
	require.Eventually(t, func() bool { return !m.IsRunning(ctx) }, 5*time.Second, time.Millisecond)
	assert.Equal(t, 1+DefaultMaxFailures, probe3.Calls())
}

func TestMonitorStartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	probe := &sequenceProbe{tail: probeResult{res: res720}}
	m := newTestMonitor(probe)
	cb := func(context.Context, Resolution, Resolution) {}

	require.NoError(t, m.Start(ctx, "http://stream", time.Hour, cb))
	require.NoError(t, m.Start(ctx, "http://stream", time.Hour, cb))
	require.Equal(t, 1, probe.Calls())
	require.True(t, m.IsRunning(ctx))

	m.Stop(ctx)
	m.Stop(ctx)
	require.False(t, m.IsRunning(ctx))
}

func TestMonitorNoCallbackAfterStop(t *testing.T) {
	ctx := context.Background()
	var flip atomic.Uint64
	probe := ProbeFunc(func(ctx context.Context, url string, timeout time.Duration) (Resolution, error) {
		if flip.Add(1)%2 == 0 {
			return res720, nil
		}
		return res1080, nil
	})

	for i := 0; i < 20; i++ {
		var (
			calls   atomic.Int64
			stopped atomic.Bool
			late    atomic.Bool
		)
		m := newTestMonitor(probe)
		require.NoError(t, m.Start(ctx, "http://stream", time.Microsecond, func(context.Context, Resolution, Resolution) {
			if stopped.Load() {
				late.Store(true)
			}
			calls.Add(1)
		}))
		require.Eventually(t, func() bool { return calls.Load() > 0 }, 5*time.Second, time.Microsecond)
		m.Stop(ctx)
		stopped.Store(true)
		require.False(t, m.IsRunning(ctx))

		countAtStop := calls.Load()
		time.Sleep(5 * time.Millisecond)
		require.Equal(t, countAtStop, calls.Load())
		require.False(t, late.Load())
	}
}

func TestMonitorStopWithoutStart(t *testing.T) {
	m := newTestMonitor(&sequenceProbe{})
	m.Stop(context.Background())
}

func TestMonitorValidation(t *testing.T) {
	ctx := context.Background()
	m := newTestMonitor(&sequenceProbe{})
	require.Error(t, m.Start(ctx, "http://stream", 0, func(context.Context, Resolution, Resolution) {}))
	require.Error(t, m.Start(ctx, "http://stream", time.Second, nil))
}

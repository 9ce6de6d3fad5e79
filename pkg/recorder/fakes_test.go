package recorder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
)

type fakeSource struct {
	locker sync.Mutex

	liveFn  func(call int) bool
	fetchFn func(ctx context.Context, url string, call int) (io.ReadCloser, error)

	// liveErrFn makes IsLive fail on the calls it returns an error for.
	liveErrFn func(call int) error

	// blacklisted makes the source implement types.CountryChecker only
	// through fakeCheckingSource.
	blacklisted bool

	liveCalls  int
	urlCalls   int
	fetchCalls int
	fetchURLs  []string
}

var _ types.StreamSource = (*fakeSource)(nil)

func (s *fakeSource) IsLive(ctx context.Context, target *types.Target) (bool, error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.liveCalls++
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s.liveErrFn != nil {
		if err := s.liveErrFn(s.liveCalls); err != nil {
			return false, err
		}
	}
	if s.liveFn == nil {
		return true, nil
	}
	return s.liveFn(s.liveCalls), nil
}

func (s *fakeSource) ResolvePlaybackURL(ctx context.Context, target *types.Target) (string, error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.urlCalls++
	return fmt.Sprintf("https://pull.example/%s/%d.flv", target.UserName(), s.urlCalls), nil
}

func (s *fakeSource) ResolveRoomFromHandle(ctx context.Context, handle string) (string, error) {
	return "7000" + handle, nil
}

func (s *fakeSource) FetchChunks(ctx context.Context, url string) (io.ReadCloser, error) {
	s.locker.Lock()
	s.fetchCalls++
	call := s.fetchCalls
	s.fetchURLs = append(s.fetchURLs, url)
	fetchFn := s.fetchFn
	s.locker.Unlock()

	if fetchFn == nil {
		return &chunkReader{Chunks: -1, Size: 100, Delay: time.Millisecond}, nil
	}
	return fetchFn(ctx, url, call)
}

func (s *fakeSource) LiveCalls() int {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.liveCalls
}

func (s *fakeSource) FetchCalls() int {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.fetchCalls
}

type fakeCheckingSource struct {
	*fakeSource
}

var _ types.CountryChecker = fakeCheckingSource{}

func (s fakeCheckingSource) IsCountryBlacklisted(ctx context.Context) (bool, error) {
	return s.blacklisted, nil
}

// chunkReader yields Chunks chunks of Size bytes (forever if Chunks is
// negative) and then Err (io.EOF if Err is nil).
type chunkReader struct {
	Chunks int
	Size   int
	Delay  time.Duration
	Err    error

	// Rand makes the chunk sizes vary between 1 and Size.
	Rand *rand.Rand

	// OnChunk is called after a chunk is produced and before it is returned.
	OnChunk func(idx int, chunk []byte)

	// Produced collects everything returned to the caller.
	Produced *bytes.Buffer

	count  int
	closed bool
}

func (r *chunkReader) Read(b []byte) (int, error) {
	if r.closed {
		return 0, io.ErrClosedPipe
	}
	if r.Chunks >= 0 && r.count >= r.Chunks {
		if r.Err != nil {
			return 0, r.Err
		}
		return 0, io.EOF
	}
	if r.Delay > 0 {
		time.Sleep(r.Delay)
	}

	size := r.Size
	if r.Rand != nil {
		size = 1 + r.Rand.Intn(r.Size)
	}
	if size > len(b) {
		size = len(b)
	}
	for i := 0; i < size; i++ {
		b[i] = byte(r.count + i)
	}
	chunk := b[:size]
	r.count++
	if r.Produced != nil {
		r.Produced.Write(chunk)
	}
	if r.OnChunk != nil {
		r.OnChunk(r.count, chunk)
	}
	return size, nil
}

func (r *chunkReader) Close() error {
	r.closed = true
	return nil
}

type recordingReporter struct {
	locker   sync.Mutex
	lines    []types.StatusLine
	onReport func(types.StatusLine)
}

var _ types.Reporter = (*recordingReporter)(nil)

func (r *recordingReporter) Report(ctx context.Context, line types.StatusLine) {
	r.locker.Lock()
	r.lines = append(r.lines, line)
	onReport := r.onReport
	r.locker.Unlock()
	if onReport != nil {
		onReport(line)
	}
}

func (r *recordingReporter) Count(ev types.StatusEvent) int {
	r.locker.Lock()
	defer r.locker.Unlock()
	count := 0
	for _, line := range r.lines {
		if line.Event == ev {
			count++
		}
	}
	return count
}

// CountBefore counts the ev events reported before the first stop event.
func (r *recordingReporter) CountBefore(ev, stop types.StatusEvent) int {
	r.locker.Lock()
	defer r.locker.Unlock()
	count := 0
	for _, line := range r.lines {
		if line.Event == stop {
			break
		}
		if line.Event == ev {
			count++
		}
	}
	return count
}

type recordingPostProcessor struct {
	locker sync.Mutex
	paths  []string
}

func (p *recordingPostProcessor) HandleArtifact(ctx context.Context, path string) {
	p.locker.Lock()
	defer p.locker.Unlock()
	p.paths = append(p.paths, path)
}

func (p *recordingPostProcessor) Paths() []string {
	p.locker.Lock()
	defer p.locker.Unlock()
	return append([]string(nil), p.paths...)
}

func testConfig(outputDir string) types.RecordingConfig {
	cfg := types.DefaultConfig(context.Background())
	cfg.OutputDir = outputDir
	cfg.BufferSize = 1000
	cfg.RecheckInterval = 20 * time.Millisecond
	cfg.ResolutionCheckInterval = 10 * time.Millisecond
	cfg.ProgressInterval = 0
	cfg.TransportRetryDelay = time.Millisecond
	cfg.ConnectionCooldown = 5 * time.Millisecond
	cfg.RestartDelay = time.Millisecond
	cfg.StartStagger = 5 * time.Millisecond
	cfg.ProbeTimeout = time.Second
	cfg.WaitStep = 5 * time.Millisecond
	return cfg
}

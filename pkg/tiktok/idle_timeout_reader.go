package tiktok

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
)

// idleTimeoutReader closes the body if a single Read waits longer than the
// timeout, so a stalled connection surfaces as an ErrTransport instead of
// hanging forever.
type idleTimeoutReader struct {
	body     io.ReadCloser
	timeout  time.Duration
	timer    *time.Timer
	timedOut atomic.Bool
}

func newIdleTimeoutReader(body io.ReadCloser, timeout time.Duration) *idleTimeoutReader {
	r := &idleTimeoutReader{
		body:    body,
		timeout: timeout,
	}
	r.timer = time.AfterFunc(timeout, func() {
		r.timedOut.Store(true)
		body.Close()
	})
	return r
}

func (r *idleTimeoutReader) Read(b []byte) (int, error) {
	r.timer.Reset(r.timeout)
	n, err := r.body.Read(b)
	r.timer.Stop()
	if r.timedOut.Load() {
		return n, types.ErrTransport{Err: fmt.Errorf("no data for %v", r.timeout)}
	}
	if err == nil || errors.Is(err, io.EOF) {
		return n, err
	}
	return n, types.ErrTransport{Err: err}
}

func (r *idleTimeoutReader) Close() error {
	r.timer.Stop()
	return r.body.Close()
}

// Package resolution watches the encoded resolution of a live stream.
package resolution

import (
	"context"
	"fmt"
	"time"
)

type Resolution struct {
	Width  uint
	Height uint
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

func (r Resolution) IsZero() bool {
	return r.Width == 0 && r.Height == 0
}

// Probe takes a best-effort snapshot of the resolution of the stream at url.
// Implementations must give up after timeout.
type Probe interface {
	Probe(ctx context.Context, url string, timeout time.Duration) (Resolution, error)
}

type ProbeFunc func(ctx context.Context, url string, timeout time.Duration) (Resolution, error)

func (fn ProbeFunc) Probe(ctx context.Context, url string, timeout time.Duration) (Resolution, error) {
	return fn(ctx, url, timeout)
}

// ChangeCallback is called from the monitor goroutine once per detected
// change. It must not block.
type ChangeCallback func(ctx context.Context, oldRes, newRes Resolution)

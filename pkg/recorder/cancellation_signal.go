package recorder

import (
	"context"
	"sync"
)

// CancellationSignal is a one-way stop request shared by all the tasks of
// an orchestrator. Once set it is never reset.
type CancellationSignal struct {
	once   sync.Once
	doneCh chan struct{}
}

func NewCancellationSignal() *CancellationSignal {
	return &CancellationSignal{
		doneCh: make(chan struct{}),
	}
}

// Set requests the stop. It is safe to call it many times and from many
// goroutines.
func (s *CancellationSignal) Set() {
	s.once.Do(func() {
		close(s.doneCh)
	})
}

func (s *CancellationSignal) IsSet() bool {
	select {
	case <-s.doneCh:
		return true
	default:
		return false
	}
}

func (s *CancellationSignal) Done() <-chan struct{} {
	return s.doneCh
}

// Context returns a child of parent that is cancelled when the signal is set.
func (s *CancellationSignal) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancelFn := context.WithCancel(parent)
	go func() {
		select {
		case <-s.doneCh:
			cancelFn()
		case <-ctx.Done():
		}
	}()
	return ctx, cancelFn
}

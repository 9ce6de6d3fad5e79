// Package progress keeps the per-target progress entries that external
// reporters poll.
package progress

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/xsync"
)

// Board is the set of progress entries of one orchestrator run.
//
// Each entry has its own lock, so updates of unrelated targets never wait
// for each other.
type Board struct {
	locker  xsync.Mutex
	handles []*Handle
	byName  map[string]*Handle
}

func NewBoard() *Board {
	return &Board{
		byName: map[string]*Handle{},
	}
}

func (b *Board) Register(ctx context.Context, name string) (*Handle, error) {
	return xsync.DoA1R2(ctx, &b.locker, b.register, name)
}

func (b *Board) register(name string) (*Handle, error) {
	if _, ok := b.byName[name]; ok {
		return nil, fmt.Errorf("entry '%s' is already registered", name)
	}
	h := newHandle(name)
	b.handles = append(b.handles, h)
	b.byName[name] = h
	return h, nil
}

func (b *Board) Get(ctx context.Context, name string) *Handle {
	return xsync.DoR1(ctx, &b.locker, func() *Handle {
		return b.byName[name]
	})
}

func (b *Board) Len(ctx context.Context) int {
	return xsync.DoR1(ctx, &b.locker, func() int {
		return len(b.handles)
	})
}

// Snapshot returns copies of all entries in registration order.
func (b *Board) Snapshot(ctx context.Context) []Entry {
	handles := xsync.DoR1(ctx, &b.locker, func() []*Handle {
		return append([]*Handle(nil), b.handles...)
	})
	result := make([]Entry, 0, len(handles))
	for _, h := range handles {
		result = append(result, h.Get(ctx))
	}
	return result
}

func (b *Board) Summary(ctx context.Context) Summary {
	return Summarize(b.Snapshot(ctx))
}

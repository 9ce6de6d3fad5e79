package progress

import (
	"context"

	"github.com/xaionaro-go/xsync"
)

// Handle gives the owning task write access to one Entry.
//
// All the fields changed by one Update call become visible at once; once
// the handle is sealed no further updates are applied.
type Handle struct {
	locker xsync.Mutex
	entry  Entry
	sealed bool
}

func newHandle(name string) *Handle {
	return &Handle{
		entry: Entry{
			Name:   name,
			State:  StatePending,
			Status: StatePending.Label(),
		},
	}
}

// Update applies fn to the entry. It returns false (and does nothing) if
// the handle is already sealed.
func (h *Handle) Update(ctx context.Context, fn func(*Entry)) bool {
	return xsync.DoR1(ctx, &h.locker, func() bool {
		if h.sealed {
			return false
		}
		fn(&h.entry)
		return true
	})
}

// Seal applies the final update and forbids any further ones.
func (h *Handle) Seal(ctx context.Context, fn func(*Entry)) bool {
	return xsync.DoR1(ctx, &h.locker, func() bool {
		if h.sealed {
			return false
		}
		if fn != nil {
			fn(&h.entry)
		}
		h.sealed = true
		return true
	})
}

func (h *Handle) IsSealed(ctx context.Context) bool {
	return xsync.DoR1(ctx, &h.locker, func() bool {
		return h.sealed
	})
}

func (h *Handle) Get(ctx context.Context) Entry {
	return xsync.DoR1(ctx, &h.locker, func() Entry {
		return h.entry
	})
}

package types

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

type TargetKind int

const (
	UndefinedTargetKind = TargetKind(iota)
	TargetKindURL
	TargetKindHandle
	TargetKindRoomID
)

func (k TargetKind) String() string {
	switch k {
	case UndefinedTargetKind:
		return "undefined"
	case TargetKindURL:
		return "url"
	case TargetKindHandle:
		return "user"
	case TargetKindRoomID:
		return "room_id"
	default:
		return fmt.Sprintf("unknown_target_kind_%d", int(k))
	}
}

// Target identifies one stream to record.
//
// Exactly one of URL, Handle and RoomID is set at creation and never
// changes afterwards. The resolved handle and room ID are derived values:
// a room ID of a handle may change between broadcasts, so it is re-resolved
// on every liveness check.
type Target struct {
	URL    string
	Handle string
	RoomID string

	locker         sync.Mutex
	resolvedHandle string
	resolvedRoomID string
}

func NewTargetFromURL(u string) (*Target, error) {
	t := &Target{URL: strings.TrimSpace(u)}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func NewTargetFromHandle(handle string) (*Target, error) {
	t := &Target{Handle: NormalizeHandle(handle)}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func NewTargetFromRoomID(roomID string) (*Target, error) {
	t := &Target{RoomID: strings.TrimSpace(roomID)}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func NewTarget(kind TargetKind, value string) (*Target, error) {
	switch kind {
	case TargetKindURL:
		return NewTargetFromURL(value)
	case TargetKindHandle:
		return NewTargetFromHandle(value)
	case TargetKindRoomID:
		return NewTargetFromRoomID(value)
	default:
		return nil, ErrInvalidTarget{Reason: fmt.Sprintf("unexpected target kind %s", kind)}
	}
}

var handleInURL = regexp.MustCompile(`tiktok\.com/@([^/?#]+)`)

// HandleFromURL extracts the user name from a "tiktok.com/@<user>/live"
// URL. It returns an empty string for URLs without a user name (like the
// short "vm.tiktok.com" links).
func HandleFromURL(u string) string {
	m := handleInURL.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	return m[1]
}

// ValidateHandle checks that a user name is safe to be used as a path
// component.
func ValidateHandle(handle string) error {
	invalid := handle == "" || handle == "." || handle == ".." ||
		strings.ContainsFunc(handle, func(r rune) bool {
			return unicode.IsSpace(r) || r == '/' || r == '\\' || r == '@'
		})
	if invalid {
		return ErrInvalidTarget{Reason: fmt.Sprintf("'%s' is not a valid user name", handle)}
	}
	return nil
}

// NormalizeHandle strips the surrounding whitespace and the leading '@'.
func NormalizeHandle(handle string) string {
	return strings.TrimPrefix(strings.TrimSpace(handle), "@")
}

func (t *Target) Kind() TargetKind {
	switch {
	case t.URL != "":
		return TargetKindURL
	case t.Handle != "":
		return TargetKindHandle
	case t.RoomID != "":
		return TargetKindRoomID
	}
	return UndefinedTargetKind
}

func (t *Target) Validate() error {
	count := 0
	for _, v := range []string{t.URL, t.Handle, t.RoomID} {
		if v != "" {
			count++
		}
	}
	if count != 1 {
		return ErrInvalidTarget{Reason: fmt.Sprintf("exactly one of URL, user and room ID must be set, but %d are set", count)}
	}

	switch {
	case t.URL != "":
		if !strings.Contains(t.URL, "tiktok.com") {
			return ErrInvalidTarget{Reason: fmt.Sprintf("'%s' is not a TikTok URL", t.URL)}
		}
	case t.Handle != "":
		if err := ValidateHandle(t.Handle); err != nil {
			return err
		}
	case t.RoomID != "":
		if strings.ContainsFunc(t.RoomID, func(r rune) bool { return !unicode.IsDigit(r) }) {
			return ErrInvalidTarget{Reason: fmt.Sprintf("'%s' is not a valid room ID", t.RoomID)}
		}
	}
	return nil
}

// EffectiveHandle returns the handle the target was created with, or the
// one resolved later (from a URL or a room ID).
func (t *Target) EffectiveHandle() string {
	if t.Handle != "" {
		return t.Handle
	}
	t.locker.Lock()
	defer t.locker.Unlock()
	return t.resolvedHandle
}

// EffectiveRoomID returns the room ID the target was created with, or the
// most recently resolved one.
func (t *Target) EffectiveRoomID() string {
	if t.RoomID != "" {
		return t.RoomID
	}
	t.locker.Lock()
	defer t.locker.Unlock()
	return t.resolvedRoomID
}

// SetResolvedHandle remembers the user name found for a URL or room ID
// target. An invalid user name is ignored.
func (t *Target) SetResolvedHandle(handle string) {
	handle = NormalizeHandle(handle)
	if ValidateHandle(handle) != nil {
		return
	}
	t.locker.Lock()
	defer t.locker.Unlock()
	t.resolvedHandle = handle
}

func (t *Target) SetResolvedRoomID(roomID string) {
	t.locker.Lock()
	defer t.locker.Unlock()
	t.resolvedRoomID = roomID
}

// UserName is the name used for output directories and file names.
func (t *Target) UserName() string {
	if handle := t.EffectiveHandle(); handle != "" {
		return handle
	}
	if roomID := t.EffectiveRoomID(); roomID != "" {
		return roomID
	}
	return "unknown"
}

func (t *Target) String() string {
	switch t.Kind() {
	case TargetKindHandle:
		return "@" + t.Handle
	case TargetKindRoomID:
		if handle := t.EffectiveHandle(); handle != "" {
			return fmt.Sprintf("@%s (room %s)", handle, t.RoomID)
		}
		return "room " + t.RoomID
	case TargetKindURL:
		if handle := t.EffectiveHandle(); handle != "" {
			return "@" + handle
		}
		return t.URL
	}
	return "<undefined target>"
}

// CheckSameKind returns ErrMixedTargetKinds if the targets are of
// different identity kinds.
func CheckSameKind(targets []*Target) error {
	if len(targets) == 0 {
		return ErrNoTargets
	}
	kind := targets[0].Kind()
	for _, t := range targets[1:] {
		if t.Kind() != kind {
			return fmt.Errorf("%w: %s and %s", ErrMixedTargetKinds, kind, t.Kind())
		}
	}
	return nil
}

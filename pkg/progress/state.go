package progress

import (
	"fmt"
)

type State int

const (
	UndefinedState = State(iota)
	StatePending
	StateStarting
	StateWaiting
	StateRecording
	StateCoolingDown
	StateCompleted
	StateNotLive
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case UndefinedState:
		return "undefined"
	case StatePending:
		return "pending"
	case StateStarting:
		return "starting"
	case StateWaiting:
		return "waiting"
	case StateRecording:
		return "recording"
	case StateCoolingDown:
		return "cooling_down"
	case StateCompleted:
		return "completed"
	case StateNotLive:
		return "not_live"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown_state_%d", int(s))
	}
}

// Label is a short human-readable status.
func (s State) Label() string {
	switch s {
	case StatePending:
		return "⏳ Waiting"
	case StateStarting:
		return "🔄 Starting"
	case StateWaiting:
		return "💤 Offline, re-checking later"
	case StateRecording:
		return "🔴 Recording"
	case StateCoolingDown:
		return "🧊 Cooling down"
	case StateCompleted:
		return "✅ Completed"
	case StateNotLive:
		return "⚫ Not live"
	case StateFailed:
		return "❌ Failed"
	case StateStopped:
		return "⏹ Stopped"
	}
	return s.String()
}

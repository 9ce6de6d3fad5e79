package types

import (
	"fmt"
)

// Outcome is the reason a recording session ended.
type Outcome int

const (
	UndefinedOutcome = Outcome(iota)

	// OutcomeFinished: the broadcast ended after something was recorded.
	OutcomeFinished

	// OutcomeOffline: the target was not live (or went offline before
	// anything was recorded).
	OutcomeOffline

	OutcomeDurationReached
	OutcomeTransientError
	OutcomeCancelled

	// OutcomeRestartPending is the only non-terminal outcome: the resolution
	// changed and a new session should start right away.
	OutcomeRestartPending
)

func (o Outcome) String() string {
	switch o {
	case UndefinedOutcome:
		return "undefined"
	case OutcomeFinished:
		return "finished"
	case OutcomeOffline:
		return "offline"
	case OutcomeDurationReached:
		return "duration_reached"
	case OutcomeTransientError:
		return "transient_error"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeRestartPending:
		return "restart_pending"
	default:
		return fmt.Sprintf("unknown_outcome_%d", int(o))
	}
}

func (o Outcome) IsTerminal() bool {
	return o != OutcomeRestartPending && o != UndefinedOutcome
}

type SessionState int

const (
	UndefinedSessionState = SessionState(iota)
	SessionStateCheckingLive
	SessionStateResolving
	SessionStateStreaming
	SessionStateEnded
)

func (s SessionState) String() string {
	switch s {
	case UndefinedSessionState:
		return "undefined"
	case SessionStateCheckingLive:
		return "checking_live"
	case SessionStateResolving:
		return "resolving"
	case SessionStateStreaming:
		return "streaming"
	case SessionStateEnded:
		return "ended"
	default:
		return fmt.Sprintf("unknown_session_state_%d", int(s))
	}
}

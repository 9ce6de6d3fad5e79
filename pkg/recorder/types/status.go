package types

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type StatusEvent int

const (
	UndefinedStatusEvent = StatusEvent(iota)
	StatusEventWaiting
	StatusEventRecordingStarted
	StatusEventRecordingEnded
	StatusEventNotLive
	StatusEventTransportHiccup
	StatusEventConnectionFailure
	StatusEventSessionFailure
	StatusEventTaskFailure
	StatusEventResolutionChanged
	StatusEventRestart
	StatusEventTaskEnded
)

func (ev StatusEvent) String() string {
	switch ev {
	case UndefinedStatusEvent:
		return "undefined"
	case StatusEventWaiting:
		return "waiting"
	case StatusEventRecordingStarted:
		return "recording_started"
	case StatusEventRecordingEnded:
		return "recording_ended"
	case StatusEventNotLive:
		return "not_live"
	case StatusEventTransportHiccup:
		return "transport_hiccup"
	case StatusEventConnectionFailure:
		return "connection_failure"
	case StatusEventSessionFailure:
		return "session_failure"
	case StatusEventTaskFailure:
		return "task_failure"
	case StatusEventResolutionChanged:
		return "resolution_changed"
	case StatusEventRestart:
		return "restart"
	case StatusEventTaskEnded:
		return "task_ended"
	default:
		return fmt.Sprintf("unknown_status_event_%d", int(ev))
	}
}

// IsFailure returns true for events that are reported as warnings or errors.
func (ev StatusEvent) IsFailure() bool {
	switch ev {
	case StatusEventTransportHiccup,
		StatusEventConnectionFailure,
		StatusEventSessionFailure,
		StatusEventTaskFailure:
		return true
	}
	return false
}

type Remediation int

const (
	RemediationNone = Remediation(iota)
	RemediationRetrying
	RemediationCoolingDown
	RemediationRestarting
	RemediationGivingUp
)

func (r Remediation) String() string {
	switch r {
	case RemediationNone:
		return ""
	case RemediationRetrying:
		return "retrying"
	case RemediationCoolingDown:
		return "cooling down"
	case RemediationRestarting:
		return "restarting"
	case RemediationGivingUp:
		return "giving up"
	default:
		return fmt.Sprintf("unknown_remediation_%d", int(r))
	}
}

// StatusLine is one human-readable report about a target.
type StatusLine struct {
	Target      string
	Event       StatusEvent
	Message     string
	Remediation Remediation
	Wait        time.Duration
	Err         error
}

func (l StatusLine) String() string {
	var b strings.Builder
	b.WriteString(l.Target)
	b.WriteString(": ")
	b.WriteString(l.Message)
	if l.Err != nil {
		fmt.Fprintf(&b, ": %v", l.Err)
	}
	if l.Remediation != RemediationNone {
		b.WriteString("; ")
		b.WriteString(l.Remediation.String())
		if l.Wait > 0 {
			fmt.Fprintf(&b, " in %v", l.Wait)
		}
	}
	return b.String()
}

type Reporter interface {
	Report(ctx context.Context, line StatusLine)
}

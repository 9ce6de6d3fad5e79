package types

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotLive            = errors.New("the target is not currently live")
	ErrNoPlaybackURL      = errors.New("unable to retrieve the playback URL")
	ErrCountryBlacklisted = errors.New("the platform is not available in your country, use a VPN/proxy or log in with cookies")
	ErrNoTargets          = errors.New("no targets were given")
	ErrMixedTargetKinds   = errors.New("targets of different kinds cannot be mixed")
	ErrUserNotFound       = errors.New("the user was not found")
)

type ErrInvalidTarget struct {
	Reason string
}

func (e ErrInvalidTarget) Error() string {
	return fmt.Sprintf("invalid target: %s", e.Reason)
}

// ErrTransport is a short-lived transport hiccup (a timeout, a reset in the
// middle of a response body, a 5xx). It is retried in place.
type ErrTransport struct {
	Err error
}

func (e ErrTransport) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e ErrTransport) Unwrap() error {
	return e.Err
}

// ErrConnection means the remote side or the network is unreachable. It is
// handled with a task-level cooldown.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

type ErrorClass int

const (
	UndefinedErrorClass = ErrorClass(iota)
	ErrorClassExpectedTerminal
	ErrorClassTransientFast
	ErrorClassTransientSlow
	ErrorClassFatalSession
	ErrorClassFatalTask
	ErrorClassFatalProcess
)

func (c ErrorClass) String() string {
	switch c {
	case UndefinedErrorClass:
		return "undefined"
	case ErrorClassExpectedTerminal:
		return "expected-terminal"
	case ErrorClassTransientFast:
		return "transient-fast"
	case ErrorClassTransientSlow:
		return "transient-slow"
	case ErrorClassFatalSession:
		return "fatal-session"
	case ErrorClassFatalTask:
		return "fatal-task"
	case ErrorClassFatalProcess:
		return "fatal-process"
	default:
		return fmt.Sprintf("unknown_error_class_%d", int(c))
	}
}

// Classify maps an error to the recovery policy the recorder applies to it.
func Classify(err error) ErrorClass {
	if err == nil {
		return UndefinedErrorClass
	}

	var (
		errInvalidTarget ErrInvalidTarget
		errConnection    ErrConnection
		errTransport     ErrTransport
	)
	switch {
	case errors.Is(err, ErrNotLive),
		errors.Is(err, context.Canceled):
		return ErrorClassExpectedTerminal
	case errors.Is(err, ErrCountryBlacklisted),
		errors.Is(err, ErrUserNotFound):
		return ErrorClassFatalTask
	case errors.Is(err, ErrMixedTargetKinds),
		errors.Is(err, ErrNoTargets),
		errors.As(err, &errInvalidTarget):
		return ErrorClassFatalProcess
	case errors.As(err, &errConnection):
		return ErrorClassTransientSlow
	case errors.As(err, &errTransport),
		errors.Is(err, context.DeadlineExceeded):
		return ErrorClassTransientFast
	}
	return ErrorClassFatalSession
}

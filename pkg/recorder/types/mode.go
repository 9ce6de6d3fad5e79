package types

import (
	"fmt"
	"strings"
)

type Mode int

const (
	UndefinedMode = Mode(iota)
	ModeManual
	ModeAutomatic
)

func (m Mode) String() string {
	switch m {
	case UndefinedMode:
		return "undefined"
	case ModeManual:
		return "manual"
	case ModeAutomatic:
		return "automatic"
	default:
		return fmt.Sprintf("unknown_mode_%d", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual":
		return ModeManual, nil
	case "automatic", "auto":
		return ModeAutomatic, nil
	}
	return UndefinedMode, fmt.Errorf("unknown mode '%s', expected 'manual' or 'automatic'", s)
}

// Set implements pflag.Value.
func (m *Mode) Set(s string) error {
	v, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Type implements pflag.Value.
func (m *Mode) Type() string {
	return "mode"
}

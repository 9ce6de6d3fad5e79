// Package secret keeps credentials (bot tokens, cookies, proxy passwords)
// out of logs and debug dumps while still (de)serializing them as plain
// YAML values in the settings file.
package secret

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/xaionaro-go/secret"
)

type Any[T comparable] struct {
	secret.Any[T]
}

func New[T comparable](in T) Any[T] {
	return Any[T]{Any: secret.New(in)}
}

// IsZero is used by the YAML encoder for `omitempty`.
func (s Any[T]) IsZero() (_ret bool) {
	defer func() {
		if r := recover(); r != nil {
			_ret = true
		}
	}()
	var zero T
	return s.Get() == zero
}

// MarshalYAML writes the plain value; an unset secret is written as the
// zero value of T.
func (s Any[T]) MarshalYAML() (_ret any, _err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			_ret = zero
		}
	}()
	return s.Get(), nil
}

func (s *Any[T]) UnmarshalYAML(b []byte) (_err error) {
	defer func() {
		if r := recover(); r != nil {
			_err = fmt.Errorf("got a panic: %v", r)
		}
	}()

	var v T
	if err := yaml.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unable to yaml.Unmarshal: %w", err)
	}
	s.Set(v)
	return nil
}

package observability

import (
	"fmt"
	"strings"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/pkg/field"
	"github.com/facebookincubator/go-belt/tool/logger"
	loggertypes "github.com/facebookincubator/go-belt/tool/logger/types"
)

const hiddenPlaceholder = "<HIDDEN>"

// SecretValuesFilter replaces the secret values (bot token, proxy
// credentials, session cookies) in everything that is logged.
type SecretValuesFilter struct {
	SecretsProvider SecretsProvider
}

func NewSecretValuesFilter(sp SecretsProvider) *SecretValuesFilter {
	return &SecretValuesFilter{
		SecretsProvider: sp,
	}
}

var _ logger.PreHook = (*SecretValuesFilter)(nil)

func (sf *SecretValuesFilter) ProcessInput(
	_ belt.TraceIDs,
	_ logger.Level,
	args ...any,
) loggertypes.PreHookResult {
	sf.filterArgs(args)
	return loggertypes.PreHookResult{}
}

func (sf *SecretValuesFilter) ProcessInputf(
	_ belt.TraceIDs,
	_ logger.Level,
	format string,
	args ...any,
) loggertypes.PreHookResult {
	sf.filterArgs(args)
	return loggertypes.PreHookResult{}
}

func (sf *SecretValuesFilter) ProcessInputFields(
	_ belt.TraceIDs,
	_ logger.Level,
	_ string,
	fields field.AbstractFields,
) loggertypes.PreHookResult {
	fields.ForEachField(func(f *field.Field) bool {
		f.Value = sf.filterValue(f.Value)
		return true
	})
	return loggertypes.PreHookResult{}
}

func (sf *SecretValuesFilter) filterArgs(args []any) {
	for idx, arg := range args {
		args[idx] = sf.filterValue(arg)
	}
}

func (sf *SecretValuesFilter) filterValue(v any) any {
	switch v := v.(type) {
	case string:
		return sf.filterString(v)
	case []byte:
		return []byte(sf.filterString(string(v)))
	case error:
		s := v.Error()
		if censored := sf.filterString(s); censored != s {
			return censoredError{message: censored, err: v}
		}
		return v
	case fmt.Stringer:
		s := v.String()
		if censored := sf.filterString(s); censored != s {
			return censored
		}
		return v
	default:
		return v
	}
}

func (sf *SecretValuesFilter) filterString(s string) string {
	if sf.SecretsProvider == nil {
		return s
	}
	for _, secret := range sf.SecretsProvider.SecretWords() {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, hiddenPlaceholder)
	}
	return s
}

// censoredError keeps errors.Is/As working on the original error.
type censoredError struct {
	message string
	err     error
}

func (e censoredError) Error() string {
	return e.message
}

func (e censoredError) Unwrap() error {
	return e.err
}

package observability

import (
	"runtime"
	"strings"

	xruntime "github.com/facebookincubator/go-belt/pkg/runtime"
)

// CallerPCFilter skips the frames of the locking and logging helpers, so
// the reported caller is the code that actually logged.
func CallerPCFilter(
	originalPCFilter xruntime.PCFilter,
) xruntime.PCFilter {
	return func(pc uintptr) bool {
		if !originalPCFilter(pc) {
			return false
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			return true
		}
		switch funcName := fn.Name(); {
		case strings.Contains(funcName, "xaionaro-go/xsync"):
			return false
		case strings.Contains(funcName, "xaionaro-go/observability"):
			return false
		case strings.Contains(funcName, "pkg/logwriter"):
			return false
		}
		file, _ := fn.FileLine(pc)
		switch {
		case strings.HasSuffix(file, "/context.go"):
			return false
		case strings.HasSuffix(file, "/reporter.go"):
			return false
		}
		return true
	}
}

// InstallCallerPCFilter wraps the current default caller filter of go-belt.
func InstallCallerPCFilter() {
	xruntime.DefaultCallerPCFilter = CallerPCFilter(xruntime.DefaultCallerPCFilter)
}

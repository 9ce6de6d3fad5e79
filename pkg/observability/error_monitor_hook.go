package observability

import (
	"bytes"
	"context"
	"fmt"
	"runtime"

	"github.com/DataDog/gostackparse"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/pkg/field"
	xruntime "github.com/facebookincubator/go-belt/pkg/runtime"
	errmontypes "github.com/facebookincubator/go-belt/tool/experimental/errmon/types"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/adapter"
	loggertypes "github.com/facebookincubator/go-belt/tool/logger/types"
	xobservability "github.com/xaionaro-go/observability"
)

const maxStackBufferSize = 10 * 1024 * 1024

func getGoroutines() ([]errmontypes.Goroutine, int) {
	stackBufferSize := 65536 * runtime.NumGoroutine()
	if stackBufferSize > maxStackBufferSize {
		stackBufferSize = maxStackBufferSize
	}
	stackBuffer := make([]byte, stackBufferSize)
	n := runtime.Stack(stackBuffer, true)
	goroutines, _ := gostackparse.Parse(bytes.NewReader(stackBuffer[:n]))

	result := make([]errmontypes.Goroutine, 0, len(goroutines))
	for _, goroutine := range goroutines {
		result = append(result, *goroutine)
	}

	n = runtime.Stack(stackBuffer, false)
	current, _ := gostackparse.Parse(bytes.NewReader(stackBuffer[:n]))
	if len(current) != 1 {
		return result, 0
	}
	return result, current[0].ID
}

// ErrorMonitorLoggerHook forwards every warning and error to the error
// monitor (Sentry) together with a dump of all the goroutines. Sending is
// asynchronous; if the queue is full the event is dropped.
type ErrorMonitorLoggerHook struct {
	ErrorMonitor errmontypes.ErrorMonitor
	SendChan     chan ErrorMonitorMessage
	MinLevel     loggertypes.Level
}

type ErrorMonitorMessage struct {
	Entry              *loggertypes.Entry
	Goroutines         []errmontypes.Goroutine
	CurrentGoroutineID int
	StackTrace         xruntime.PCs
}

func NewErrorMonitorLoggerHook(
	ctx context.Context,
	errorMonitor errmontypes.ErrorMonitor,
) *ErrorMonitorLoggerHook {
	h := &ErrorMonitorLoggerHook{
		ErrorMonitor: errorMonitor,
		SendChan:     make(chan ErrorMonitorMessage, 10),
		MinLevel:     loggertypes.LevelWarning,
	}
	xobservability.Go(ctx, h.senderLoop)
	return h
}

var _ loggertypes.PreHook = (*ErrorMonitorLoggerHook)(nil)

// entryCatcher is an emitter that only remembers the entry, used to let
// the logger adapter build the entry for us.
type entryCatcher struct {
	LastEntry *loggertypes.Entry
}

var _ loggertypes.Emitter = (*entryCatcher)(nil)

func (e *entryCatcher) Emit(entry *loggertypes.Entry) {
	e.LastEntry = entry
}

func (e *entryCatcher) Flush() {}

func (h *ErrorMonitorLoggerHook) catch(
	level loggertypes.Level,
	logFn func(l loggertypes.Logger),
) loggertypes.PreHookResult {
	if level > h.MinLevel {
		return loggertypes.PreHookResult{}
	}
	catcher := &entryCatcher{}
	logFn(adapter.LoggerFromEmitter(catcher).WithLevel(h.MinLevel))
	h.sendReport(catcher.LastEntry)
	return loggertypes.PreHookResult{}
}

func (h *ErrorMonitorLoggerHook) ProcessInput(
	_ belt.TraceIDs,
	level loggertypes.Level,
	args ...any,
) loggertypes.PreHookResult {
	return h.catch(level, func(l loggertypes.Logger) {
		l.Log(level, args...)
	})
}

func (h *ErrorMonitorLoggerHook) ProcessInputf(
	_ belt.TraceIDs,
	level loggertypes.Level,
	format string,
	args ...any,
) loggertypes.PreHookResult {
	return h.catch(level, func(l loggertypes.Logger) {
		l.Logf(level, format, args...)
	})
}

func (h *ErrorMonitorLoggerHook) ProcessInputFields(
	_ belt.TraceIDs,
	level loggertypes.Level,
	message string,
	fields field.AbstractFields,
) loggertypes.PreHookResult {
	return h.catch(level, func(l loggertypes.Logger) {
		l.LogFields(level, message, fields)
	})
}

func copyEntry(entry *loggertypes.Entry) *loggertypes.Entry {
	entryDup := *entry
	if entry.Fields != nil {
		fields := make(field.Fields, 0, entry.Fields.Len())
		entry.Fields.ForEachField(func(f *field.Field) bool {
			fields = append(fields, *f)
			return true
		})
		entryDup.Fields = fields
	}
	return &entryDup
}

func (h *ErrorMonitorLoggerHook) sendReport(entry *loggertypes.Entry) {
	if entry == nil {
		return
	}
	goroutines, currentGoroutineID := getGoroutines()
	select {
	case h.SendChan <- ErrorMonitorMessage{
		Entry:              copyEntry(entry),
		Goroutines:         goroutines,
		CurrentGoroutineID: currentGoroutineID,
		StackTrace:         xruntime.CallerStackTrace(nil),
	}:
	default:
		logger.Default().Errorf("unable to send an error to the error monitor, the queue is full")
	}
}

func (h *ErrorMonitorLoggerHook) senderLoop(ctx context.Context) {
	for {
		var message ErrorMonitorMessage
		select {
		case <-ctx.Done():
			return
		case message = <-h.SendChan:
		}
		h.ErrorMonitor.Emitter().Emit(&errmontypes.Event{
			Entry:       *message.Entry,
			ExternalIDs: []any{},
			Exception: errmontypes.Exception{
				IsPanic:    message.Entry.Level <= loggertypes.LevelPanic,
				Error:      fmt.Errorf("[%s] %s", message.Entry.Level, message.Entry.Message),
				StackTrace: message.StackTrace,
			},
			CurrentGoroutineID: message.CurrentGoroutineID,
			Goroutines:         message.Goroutines,
		})
	}
}

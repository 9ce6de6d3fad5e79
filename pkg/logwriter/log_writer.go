// Package logwriter turns the output of a subprocess into log entries.
package logwriter

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/xsync"
)

const flushInterval = time.Second

// LogWriter logs every complete line written to it. Incomplete lines are
// logged on the periodic flush or on Close.
type LogWriter struct {
	Logger       logger.Logger
	Level        logger.Level
	Buffer       bytes.Buffer
	BufferLocker xsync.Mutex

	cancelFn context.CancelFunc
}

var _ io.WriteCloser = (*LogWriter)(nil)

func New(
	ctx context.Context,
	l logger.Logger,
	level logger.Level,
) *LogWriter {
	ctx, cancelFn := context.WithCancel(ctx)
	w := &LogWriter{
		Logger:   l,
		Level:    level,
		cancelFn: cancelFn,
	}
	go w.flusher(ctx)
	return w
}

func (w *LogWriter) flusher(ctx context.Context) {
	t := time.NewTicker(flushInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.Flush()
			return
		case <-t.C:
		}
		w.Flush()
	}
}

func (w *LogWriter) Write(b []byte) (int, error) {
	ctx := xsync.WithNoLogging(context.TODO(), true)
	lines := xsync.DoR1(ctx, &w.BufferLocker, func() []string {
		w.Buffer.Write(b)
		var lines []string
		for {
			idx := bytes.IndexByte(w.Buffer.Bytes(), '\n')
			if idx < 0 {
				break
			}
			line := string(bytes.TrimSpace(w.Buffer.Next(idx + 1)))
			if line != "" {
				lines = append(lines, line)
			}
		}
		return lines
	})
	for _, line := range lines {
		w.Logger.Logf(w.Level, "%s", line)
	}
	return len(b), nil
}

// Flush logs whatever is left in the buffer, even without a trailing newline.
func (w *LogWriter) Flush() {
	ctx := xsync.WithNoLogging(context.TODO(), true)
	s := xsync.DoR1(ctx, &w.BufferLocker, func() string {
		s := string(bytes.TrimSpace(w.Buffer.Bytes()))
		w.Buffer.Reset()
		return s
	})
	if len(s) == 0 {
		return
	}
	w.Logger.Logf(w.Level, "%s", s)
}

func (w *LogWriter) Close() error {
	w.cancelFn()
	w.Flush()
	return nil
}

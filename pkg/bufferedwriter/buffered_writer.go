// Package bufferedwriter accumulates stream chunks in memory and writes them
// to a sink in fixed-size blocks.
package bufferedwriter

import (
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/datacounter"
)

const DefaultBlockSize = 512 * 1024

// BufferedWriter is not safe for concurrent use: a sink is exclusively
// owned by one recording session.
type BufferedWriter struct {
	sink      io.Writer
	counter   *datacounter.WriterCounter
	blockSize int
	buf       []byte
	received  uint64
	closed    bool
}

var _ io.WriteCloser = (*BufferedWriter)(nil)

func New(sink io.Writer, blockSize int) *BufferedWriter {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &BufferedWriter{
		sink:      sink,
		counter:   datacounter.NewWriterCounter(sink),
		blockSize: blockSize,
		buf:       make([]byte, 0, blockSize),
	}
}

// Write buffers p and writes every complete block to the sink.
//
// The returned count is always len(p) unless the writer is closed: bytes
// that could not be flushed stay in the buffer and are retried by the next
// Write or Flush.
func (w *BufferedWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	w.buf = append(w.buf, p...)
	w.received += uint64(len(p))

	full := len(w.buf) - len(w.buf)%w.blockSize
	if full == 0 {
		return len(p), nil
	}
	if err := w.writeOut(full); err != nil {
		return len(p), err
	}
	return len(p), nil
}

// Flush writes out everything buffered, including a trailing partial block.
func (w *BufferedWriter) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	return w.writeOut(len(w.buf))
}

func (w *BufferedWriter) writeOut(n int) error {
	written, err := w.counter.Write(w.buf[:n])
	w.buf = w.buf[:copy(w.buf, w.buf[written:])]
	if err != nil {
		return fmt.Errorf("unable to write %d bytes to the sink: %w", n, err)
	}
	if written != n {
		return fmt.Errorf("unable to write %d bytes to the sink: %w", n, io.ErrShortWrite)
	}
	return nil
}

// Close flushes the buffer and closes the sink if it is an io.Closer. The
// sink is closed even if the flush failed.
func (w *BufferedWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var result *multierror.Error
	if err := w.Flush(); err != nil {
		result = multierror.Append(result, err)
	}
	if closer, ok := w.sink.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("unable to close the sink: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// BytesReceived is the total amount of bytes passed to Write.
func (w *BufferedWriter) BytesReceived() uint64 {
	return w.received
}

// BytesFlushed is the total amount of bytes that reached the sink.
func (w *BufferedWriter) BytesFlushed() uint64 {
	return w.counter.Count()
}

// Buffered is the amount of bytes waiting for the next flush.
func (w *BufferedWriter) Buffered() int {
	return len(w.buf)
}

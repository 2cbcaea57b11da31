// SPDX-License-Identifier: MPL-2.0

package tee

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// TimestampLayout is the layout of the per-line stamp in the log sink.
const TimestampLayout = "2006-01-02 15:04:05"

type (
	// Writer is an io.Writer that forwards every write to a terminal sink
	// verbatim and to a log sink with line-start timestamps. It is safe for
	// concurrent use; each Write is applied atomically to both sinks.
	Writer struct {
		mu          sync.Mutex
		console     io.Writer
		log         io.Writer
		now         func() time.Time
		atLineStart bool
	}

	// Option configures a Writer.
	Option func(*Writer)
)

// WithNow overrides the time source used for stamps.
func WithNow(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}

// New creates a Writer. A nil log sink makes the Writer a plain pass-through.
func New(console, log io.Writer, opts ...Option) *Writer {
	w := &Writer{
		console:     console,
		log:         log,
		now:         time.Now,
		atLineStart: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write forwards p to both sinks. It always reports len(p) consumed when the
// console accepted the bytes; log sink failures are returned but do not stop
// console output.
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	if w.console != nil {
		if _, err := w.console.Write(p); err != nil {
			errs = append(errs, err)
		}
	}
	if w.log != nil {
		if _, err := w.log.Write(w.stamp(p)); err != nil {
			errs = append(errs, err)
		}
	}
	return len(p), errors.Join(errs...)
}

// WriteString implements io.StringWriter.
func (w *Writer) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// stamp returns p with a timestamp inserted at each non-empty logical line
// start and updates the line-start state. Must be called with mu held.
func (w *Writer) stamp(p []byte) []byte {
	prefix := "[" + w.now().Format(TimestampLayout) + "] "

	var buf bytes.Buffer
	buf.Grow(len(p) + len(prefix))

	rest := p
	for len(rest) > 0 {
		i := bytes.IndexByte(rest, '\n')
		line := rest
		if i >= 0 {
			line = rest[:i]
		}
		if w.atLineStart && len(line) > 0 {
			buf.WriteString(prefix)
		}
		buf.Write(line)

		if i < 0 {
			w.atLineStart = false
			break
		}
		buf.WriteByte('\n')
		w.atLineStart = true
		rest = rest[i+1:]
	}
	return buf.Bytes()
}

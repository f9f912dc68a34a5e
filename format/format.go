package format

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"golang.org/x/term"
)

// ErrStreamClosed reports a write to an output stream that was closed under
// us, e.g. a pager exiting before the operation finished printing. Callers
// should treat it exactly like a user interrupt: stop producing output and
// unwind quietly. It is deliberately its own error kind and does not wrap
// context cancellation or any signal machinery.
var ErrStreamClosed = errors.New("output stream closed")

const defaultWidth = 79

// Formatter writes human-readable progress lines to a stream.
type Formatter struct {
	w io.Writer
	// Autoline appends a newline to every Printf when set. On by default.
	Autoline bool
	width    int
}

// New creates a Formatter on w. When w is a terminal its current width is
// captured; otherwise a conservative default is used.
func New(w io.Writer) *Formatter {
	f := &Formatter{w: w, Autoline: true, width: defaultWidth}
	if file, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(int(file.Fd())); err == nil && cols > 0 {
			f.width = cols
		}
	}
	return f
}

// Width returns the detected stream width in columns.
func (f *Formatter) Width() int { return f.width }

// Printf writes a formatted line, appending a newline when Autoline is set.
// A write failure on a closed stream is reported as ErrStreamClosed.
func (f *Formatter) Printf(format string, args ...any) error {
	if f.Autoline {
		format += "\n"
	}
	if _, err := fmt.Fprintf(f.w, format, args...); err != nil {
		return classify(err)
	}
	return nil
}

// classify maps closed-stream write errors to ErrStreamClosed and passes
// everything else through.
func classify(err error) error {
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrStreamClosed, err)
	}
	return err
}

package nanolog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const diagTimeFormat = "01-02|15:04:05"

var (
	diagColorReset  = "\x1b[0m"
	diagColorRed    = "\x1b[31m"
	diagColorYellow = "\x1b[33m"
	diagColorGray   = "\x1b[90m"
)

// diagWriter reports the library's own operational health -- write
// failures, file-open failures, reopen events -- on a stream separate
// from the log file itself. It is not on any producer hot path; the
// worker calls it only on the rare error branch.
type diagWriter struct {
	out      io.Writer
	useColor bool
	mu       sync.Mutex
}

// newDiagWriter creates a diagnostics writer over out. If out is an
// *os.File attached to a terminal, messages are colorized.
func newDiagWriter(out io.Writer) *diagWriter {
	useColor := false
	if f, ok := out.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		if useColor {
			out = colorable.NewColorable(f)
		}
	}
	return &diagWriter{out: out, useColor: useColor}
}

// defaultDiagWriter writes to stderr, colorized if it is a terminal.
func defaultDiagWriter() *diagWriter {
	return newDiagWriter(os.Stderr)
}

func (d *diagWriter) printf(color, tag, format string, args ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format(diagTimeFormat)
	if d.useColor {
		fmt.Fprintf(d.out, "%s%s%s [%s] %s\n", color, tag, diagColorReset, ts, msg)
	} else {
		fmt.Fprintf(d.out, "%s [%s] %s\n", tag, ts, msg)
	}
}

// reportWriteFailure is called by the compression worker when a sink
// write has exhausted its retry and degraded to a sticky failure.
func (d *diagWriter) reportWriteFailure(err error) {
	if d == nil {
		return
	}
	d.printf(diagColorRed, "WRITE-FAIL", "%v (at %s)", err, callerFrame())
}

// reportFileOpenFailure is called by the LifecycleController when
// SetLogFile cannot open the requested path.
func (d *diagWriter) reportFileOpenFailure(path string, err error) {
	if d == nil {
		return
	}
	d.printf(diagColorRed, "OPEN-FAIL", "%s: %v", path, err)
}

// reportReopen is called on a successful SetLogFile rotation.
func (d *diagWriter) reportReopen(path string) {
	if d == nil {
		return
	}
	d.printf(diagColorGray, "REOPEN", "%s", path)
}

// reportBufferAllocFailure writes a line reporting that a staging
// buffer of the given size could not be allocated. No code path in the
// package calls it.
func (d *diagWriter) reportBufferAllocFailure(size int) {
	if d == nil {
		return
	}
	d.printf(diagColorYellow, "ALLOC-FAIL", "could not allocate %d-byte staging buffer, aborting", size)
}

// callerFrame names the call site one level above the diag report,
// useful when reportWriteFailure fires from deep inside the worker's
// retry path.
func callerFrame() stack.Call {
	return stack.Caller(2)
}

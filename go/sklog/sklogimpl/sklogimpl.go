// Package sklogimpl holds the interface between the sklog convenience
// functions and the logger implementations that back them.
package sklogimpl

import (
	"sync/atomic"
)

// Severity of a log line.
type Severity int

const (
	Debug Severity = iota
	Info
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Debug:
		return "Debug"
	case Info:
		return "Info"
	case Warning:
		return "Warning"
	case Error:
		return "Error"
	case Fatal:
		return "Fatal"
	}
	return "Unknown"
}

// Logger is implemented by logging backends (see the stdlogging package).
type Logger interface {
	// Log a line at the given severity. If format is empty the args are
	// handled as fmt.Sprint does, otherwise as fmt.Sprintf. depth is the
	// number of stack frames to skip when reporting the log call site; 0
	// means the caller of Log. A Fatal log must exit the program after
	// flushing.
	Log(depth int, severity Severity, format string, args ...interface{})

	// Flush any buffered log lines.
	Flush()
}

var logger atomic.Value

// SetLogger installs the backend used by all subsequent log calls. Must be
// called before any logging happens; the sklog package does so from an init
// function.
func SetLogger(l Logger) {
	logger.Store(&l)
}

// Log forwards to the installed Logger. The depth is relative to the caller
// of Log.
func Log(depth int, severity Severity, format string, args ...interface{}) {
	(*logger.Load().(*Logger)).Log(depth+1, severity, format, args...)
}

// Flush forwards to the installed Logger.
func Flush() {
	(*logger.Load().(*Logger)).Flush()
}

// Package skerr provides an error implementation which includes the call
// stack at the point where the error was created or wrapped. Prefer these
// functions to fmt.Errorf and errors.New; the recorded context makes errors
// returned up through several layers much easier to trace.
package skerr

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Maximum number of stack frames recorded per error.
const stackHeight = 6

// StackTrace identifies one frame of a call stack.
type StackTrace struct {
	File string
	Line int
}

func (st StackTrace) String() string {
	return fmt.Sprintf("%s:%d", st.File, st.Line)
}

// CallStack returns up to height frames of the current call stack, starting
// at startAt, where 0 means the caller of CallStack itself.
func CallStack(height, startAt int) []StackTrace {
	stack := make([]StackTrace, 0, height)
	for i := 0; i < height; i++ {
		_, file, line, ok := runtime.Caller(startAt + 1 + i)
		if !ok {
			break
		}
		stack = append(stack, StackTrace{File: filepath.Base(file), Line: line})
	}
	return stack
}

// ErrorWithContext wraps an error with the call stack at the point where it
// passed through this package, plus an optional message.
type ErrorWithContext struct {
	// Wrapped is the original error, or nil for errors created by Fmt.
	Wrapped error
	// CallStack captured when the error was created or wrapped. The first
	// frame is the caller of Fmt, Wrap, or Wrapf.
	CallStack []StackTrace
	// Message to prepend to the wrapped error's message, if non-empty.
	Message string
}

func (err *ErrorWithContext) Error() string {
	var sb strings.Builder
	if err.Message != "" {
		sb.WriteString(err.Message)
		if err.Wrapped != nil {
			sb.WriteString(": ")
		}
	}
	if err.Wrapped != nil {
		sb.WriteString(err.Wrapped.Error())
	}
	if len(err.CallStack) > 0 {
		sb.WriteString(" At")
		for _, st := range err.CallStack {
			sb.WriteString(" ")
			sb.WriteString(st.String())
		}
	}
	return sb.String()
}

// Unwrap supports errors.Is and errors.As.
func (err *ErrorWithContext) Unwrap() error {
	return err.Wrapped
}

// Fmt is a replacement for fmt.Errorf which records the call stack.
func Fmt(fmtStr string, args ...interface{}) error {
	return &ErrorWithContext{
		Message:   fmt.Sprintf(fmtStr, args...),
		CallStack: CallStack(stackHeight, 1),
	}
}

// Wrap records the call stack on an existing error. The returned error's
// message includes err's message unchanged.
func Wrap(err error) error {
	return &ErrorWithContext{
		Wrapped:   err,
		CallStack: CallStack(stackHeight, 1),
	}
}

// Wrapf is like Wrap, prepending a formatted message. As a convention, the
// message gives the operation that failed, eg.:
//
//	skerr.Wrapf(err, "reading try results from %s", path)
func Wrapf(err error, fmtStr string, args ...interface{}) error {
	return &ErrorWithContext{
		Wrapped:   err,
		Message:   fmt.Sprintf(fmtStr, args...),
		CallStack: CallStack(stackHeight, 1),
	}
}

// Unwrap returns the innermost error wrapped by err, unwrapping through any
// number of ErrorWithContext layers. Returns err itself when it carries no
// context. Use this to compare against sentinel errors; for matching, the
// standard errors.Is also traverses these errors.
func Unwrap(err error) error {
	for {
		withContext, ok := err.(*ErrorWithContext)
		if !ok || withContext.Wrapped == nil {
			return err
		}
		err = withContext.Wrapped
	}
}

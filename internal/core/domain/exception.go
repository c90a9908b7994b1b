package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Exception is a failure described by class name, message and backtrace.
// Hosts that already carry this shape can return it directly as the error.
type Exception struct {
	Class     string
	Message   string
	Backtrace []string
}

func (e *Exception) Error() string {
	return e.Message
}

// Backtracer is implemented by errors that carry stack frames.
type Backtracer interface {
	Backtrace() []string
}

// DirtyExitError reports that the worker process died while running the job.
type DirtyExitError struct {
	Reason string
}

func (e *DirtyExitError) Error() string {
	if e.Reason == "" {
		return "worker exited dirty"
	}
	return "worker exited dirty: " + e.Reason
}

// IsDirtyExit reports whether err is, or wraps, a DirtyExitError.
func IsDirtyExit(err error) bool {
	var d *DirtyExitError
	return errors.As(err, &d)
}

// Describe extracts class, message and backtrace from any error.
func Describe(err error) Exception {
	if err == nil {
		return Exception{}
	}

	var ex *Exception
	if errors.As(err, &ex) {
		out := *ex
		if out.Message == "" {
			out.Message = err.Error()
		}
		return out
	}

	desc := Exception{
		Class:   typeName(err),
		Message: err.Error(),
	}
	var bt Backtracer
	if errors.As(err, &bt) {
		desc.Backtrace = bt.Backtrace()
	}
	return desc
}

// typeName strips the pointer marker so *pkg.MyError reads as pkg.MyError.
func typeName(err error) string {
	return strings.TrimLeft(fmt.Sprintf("%T", err), "*")
}

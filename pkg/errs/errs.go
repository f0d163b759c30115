// Package errs provides the structured errors reported by the binding and refresh engine.
package errs

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the category of an error.
type Kind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown Kind = iota
	// KindConfig indicates a binding set up against something that is not bindable.
	KindConfig
	// KindPropagation indicates a link failed to carry a value during a sync pass.
	KindPropagation
	// KindRefresh indicates a refreshable body failed.
	KindRefresh
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindPropagation:
		return "propagation"
	case KindRefresh:
		return "refresh"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Error is a categorized error carrying the operation that produced it.
type Error struct {
	// Op is the operation that failed (e.g., "binding.Sync").
	Op string
	// Kind categorizes the error.
	Kind Kind
	// Err is the underlying error.
	Err error
	// Stack holds the call stack for recovered panics.
	Stack string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

// E builds an Error stamped with the current time.
func E(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err, Timestamp: time.Now()}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// PanicValue wraps a value recovered from a panic.
type PanicValue struct {
	Value any
}

func (p *PanicValue) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// Recover converts a recovered panic into an *Error stored in dst.
// Usage: defer errs.Recover("binding.transform", &err)
func Recover(op string, dst *error) {
	if r := recover(); r != nil {
		*dst = &Error{
			Op:        op,
			Kind:      KindPanic,
			Err:       &PanicValue{Value: r},
			Stack:     CaptureStack(),
			Timestamp: time.Now(),
		}
	}
}

// CaptureStack returns the current call stack as a string.
func CaptureStack() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var sb strings.Builder
	for {
		frame, more := frames.Next()
		sb.WriteString(frame.Function)
		sb.WriteString("\n\t")
		sb.WriteString(frame.File)
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(frame.Line))
		sb.WriteString("\n")
		if !more {
			break
		}
	}
	return sb.String()
}

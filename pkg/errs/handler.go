package errs

import (
	"errors"
	"log/slog"
	"sync"
)

// Handler receives errors that cannot be returned to a caller, such as
// propagation failures during a background sync pass or failed async refreshes.
type Handler interface {
	Handle(err *Error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(err *Error)

func (f HandlerFunc) Handle(err *Error) {
	f(err)
}

// LogHandler writes errors to a structured logger.
type LogHandler struct {
	Logger *slog.Logger
}

func (h *LogHandler) Handle(err *Error) {
	if err == nil {
		return
	}
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		slog.String("op", err.Op),
		slog.String("kind", err.Kind.String()),
		slog.Any("err", err.Err),
	}
	if err.Stack != "" {
		attrs = append(attrs, slog.String("stack", err.Stack))
	}
	logger.Error("engine error", attrs...)
}

// Collector is a Handler that keeps every error it receives.
// It is mostly useful in tests.
type Collector struct {
	mu   sync.Mutex
	errs []*Error
}

func (c *Collector) Handle(err *Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

// Errors returns a copy of the collected errors.
func (c *Collector) Errors() []*Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Error, len(c.errs))
	copy(out, c.errs)
	return out
}

// Len returns the number of collected errors.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

// Join combines the handlers into one; nil handlers are skipped.
func Join(handlers ...Handler) Handler {
	var hs []Handler
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return HandlerFunc(func(err *Error) {
		for _, h := range hs {
			h.Handle(err)
		}
	})
}

// Report sends err to h, wrapping it as an *Error of the given kind if needed.
func Report(h Handler, op string, kind Kind, err error) {
	if h == nil || err == nil {
		return
	}
	var e *Error
	if !errors.As(err, &e) {
		e = E(op, kind, err)
	}
	h.Handle(e)
}

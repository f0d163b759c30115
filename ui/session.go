package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/delaneyj/bindparty/pkg/errs"
)

// ErrSessionClosed is returned by Do once the session has been closed.
var ErrSessionClosed = errors.New("session closed")

var sessionSerials atomic.Uint64

type sessionKey struct{}

// Session is the single control flow of one client. Steps run through Do
// one at a time; asynchronous refresh bodies run outside of it and come back
// through Do to swap their content in.
type Session struct {
	id      string
	target  Target
	root    Node
	logger  *slog.Logger
	handler errs.Handler

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	mu      sync.Mutex
	builder *Builder
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionID overrides the generated session id.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		s.id = id
	}
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionErrorHandler receives errors that cannot be returned to a caller,
// such as failed asynchronous refreshes.
func WithSessionErrorHandler(h errs.Handler) SessionOption {
	return func(s *Session) {
		s.handler = h
	}
}

// NewSession creates a session rendering into root on target.
func NewSession(target Target, root Node, opts ...SessionOption) *Session {
	s := &Session{
		id:     fmt.Sprintf("session-%d", sessionSerials.Add(1)),
		target: target,
		root:   root,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.handler == nil {
		s.handler = &errs.LogHandler{Logger: s.logger}
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.builder = &Builder{session: s, stack: NewStack(Frame{Container: root, Slot: DefaultSlot})}
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Target returns the element system the session renders into.
func (s *Session) Target() Target {
	return s.target
}

// Root returns the session's root container.
func (s *Session) Root() Node {
	return s.root
}

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Close disconnects the session. Steps already running finish; later ones
// are refused, and pending asynchronous refreshes are dropped.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.cancel()
	s.logger.Debug("session closed", slog.String("session", s.id))
}

// Do runs fn as one step of the session with the session's builder. Calls
// made with a context handed out by an enclosing Do of the same session run
// inline. That context must not be passed to other goroutines.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context, b *Builder) error) error {
	if s.holds(ctx) {
		return fn(ctx, s.builder)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return ErrSessionClosed
	}

	defer s.flush()
	return fn(context.WithValue(ctx, sessionKey{}, s), s.builder)
}

// Flush delivers pending updates when the target batches them.
func (s *Session) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flush()
}

func (s *Session) flush() {
	if f, ok := s.target.(Flusher); ok {
		f.Flush()
	}
}

func (s *Session) holds(ctx context.Context) bool {
	held, _ := ctx.Value(sessionKey{}).(*Session)
	return held == s
}

// insideAnySession reports whether ctx belongs to a running step of some session.
func insideAnySession(ctx context.Context) bool {
	held, _ := ctx.Value(sessionKey{}).(*Session)
	return held != nil
}

func (s *Session) report(op string, err error) {
	if err == nil || s.closed.Load() {
		return
	}
	s.logger.Warn("session step failed",
		slog.String("session", s.id),
		slog.String("op", op),
		slog.Any("err", err),
	)
	errs.Report(s.handler, op, errs.KindRefresh, err)
}

func (s *Session) detachedBuilder() (*Builder, *buffer) {
	buf := &buffer{}
	return &Builder{session: s, stack: NewStack(Frame{Container: buf, Slot: DefaultSlot})}, buf
}

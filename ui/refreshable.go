package ui

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/delaneyj/bindparty/pkg/errs"
)

// RefreshableKind is the container kind created around every refreshable site.
const RefreshableKind = "refreshable"

// RenderFunc builds elements through b from args.
type RenderFunc[A any] func(ctx context.Context, b *Builder, args A) error

// SiteState is the lifecycle position of one refreshable site.
type SiteState int32

const (
	Unbuilt SiteState = iota
	Built
	Rebuilding
	AwaitingBody
	Clearing
	Attaching
)

func (s SiteState) String() string {
	switch s {
	case Unbuilt:
		return "unbuilt"
	case Built:
		return "built"
	case Rebuilding:
		return "rebuilding"
	case AwaitingBody:
		return "awaiting-body"
	case Clearing:
		return "clearing"
	case Attaching:
		return "attaching"
	default:
		return fmt.Sprintf("SiteState(%d)", int32(s))
	}
}

// Refreshable is a UI-building function that can be re-run in place.
//
// Every Render records a site: the container the output lives in, the session
// that owns it, the instance it belongs to and the arguments it was built with.
// Refresh re-runs the function for each live site and replaces the container's
// content.
//
// Synchronous refreshables clear and rebuild inside a session step. Asynchronous
// ones build into a detached buffer first and only swap the container's content
// once the body is done, so the display never shows an empty container. Their
// refreshes are queued per site and applied in order.
type Refreshable[A any] struct {
	name  string
	fn    RenderFunc[A]
	async bool

	mu    sync.Mutex
	sites []*site[A]
	wg    sync.WaitGroup
}

// RefreshableOption configures a Refreshable.
type RefreshableOption func(*refreshableConfig)

type refreshableConfig struct {
	name string
}

// WithName names the refreshable in logs and errors.
func WithName(name string) RefreshableOption {
	return func(c *refreshableConfig) {
		c.name = name
	}
}

// New creates a synchronous refreshable.
func New[A any](fn RenderFunc[A], opts ...RefreshableOption) *Refreshable[A] {
	return newRefreshable(fn, false, opts)
}

// NewAsync creates a refreshable whose body may block without blanking the
// display.
func NewAsync[A any](fn RenderFunc[A], opts ...RefreshableOption) *Refreshable[A] {
	return newRefreshable(fn, true, opts)
}

func newRefreshable[A any](fn RenderFunc[A], async bool, opts []RefreshableOption) *Refreshable[A] {
	cfg := refreshableConfig{name: "refreshable"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Refreshable[A]{name: cfg.name, fn: fn, async: async}
}

// Async reports whether the body runs off-session.
func (r *Refreshable[A]) Async() bool {
	return r.async
}

// Render builds the function's output at the current position of b.
func (r *Refreshable[A]) Render(ctx context.Context, b *Builder, args A) error {
	return r.render(ctx, b, nil, args)
}

// Refresh re-runs the function for every live site.
func (r *Refreshable[A]) Refresh(ctx context.Context) error {
	return r.refresh(ctx, nil, nil)
}

// RefreshWith replaces the recorded arguments of every live site and refreshes.
func (r *Refreshable[A]) RefreshWith(ctx context.Context, args A) error {
	return r.refresh(ctx, nil, &args)
}

// Of returns a handle scoped to instance. Sites rendered through the handle
// are refreshed only through handles for the same instance. instance must be
// comparable.
func (r *Refreshable[A]) Of(instance any) Handle[A] {
	if instance != nil && !reflect.TypeOf(instance).Comparable() {
		panic(fmt.Sprintf("ui: refreshable instance of type %T is not comparable", instance))
	}
	return Handle[A]{r: r, instance: instance}
}

// Sites returns the number of live sites.
func (r *Refreshable[A]) Sites() int {
	return len(r.live(nil))
}

// States returns the state of every live site in render order.
func (r *Refreshable[A]) States() []SiteState {
	sites := r.live(nil)
	out := make([]SiteState, len(sites))
	for i, s := range sites {
		out[i] = s.getState()
	}
	return out
}

// Wait blocks until every queued background refresh has finished.
func (r *Refreshable[A]) Wait() {
	r.wg.Wait()
}

// Handle is a Refreshable bound to one instance.
type Handle[A any] struct {
	r        *Refreshable[A]
	instance any
}

// Render builds the function's output at the current position of b for the
// handle's instance.
func (h Handle[A]) Render(ctx context.Context, b *Builder, args A) error {
	return h.r.render(ctx, b, h.instance, args)
}

// Refresh re-runs the function for the live sites of the handle's instance.
func (h Handle[A]) Refresh(ctx context.Context) error {
	return h.r.refresh(ctx, h.match, nil)
}

// RefreshWith replaces the recorded arguments of the instance's sites and
// refreshes them.
func (h Handle[A]) RefreshWith(ctx context.Context, args A) error {
	return h.r.refresh(ctx, h.match, &args)
}

func (h Handle[A]) match(s *site[A]) bool {
	return s.instance == h.instance
}

type site[A any] struct {
	session   *Session
	container Node
	instance  any

	mu      sync.Mutex
	args    A
	state   SiteState
	pending []A
	running bool
}

func (s *site[A]) live() bool {
	return !s.session.Closed() && s.container.Alive()
}

func (s *site[A]) getArgs() A {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.args
}

func (s *site[A]) setArgs(args A) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.args = args
}

func (s *site[A]) getState() SiteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *site[A]) setState(state SiteState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (r *Refreshable[A]) op() string {
	return "ui.refresh(" + r.name + ")"
}

func (r *Refreshable[A]) render(ctx context.Context, b *Builder, instance any, args A) error {
	t := b.Target()
	container := t.NewContainer(RefreshableKind)
	b.Add(container)

	s := &site[A]{session: b.session, container: container, instance: instance, args: args}
	r.mu.Lock()
	r.sites = slices.DeleteFunc(r.sites, func(s *site[A]) bool {
		return !s.live()
	})
	r.sites = append(r.sites, s)
	r.mu.Unlock()

	if r.async {
		s.setState(AwaitingBody)
		db, buf := b.session.detachedBuilder()
		if err := r.call(ctx, db, args); err != nil {
			s.setState(Built)
			return r.wrap(err)
		}
		s.setState(Attaching)
		buf.attachTo(t, container)
	} else {
		err := b.Within(container, func() error {
			return r.call(ctx, b, args)
		})
		if err != nil {
			s.setState(Built)
			t.RequestUpdate(container)
			return r.wrap(err)
		}
	}
	s.setState(Built)
	t.RequestUpdate(container)
	return nil
}

func (r *Refreshable[A]) refresh(ctx context.Context, match func(*site[A]) bool, args *A) error {
	var errList []error
	for _, s := range r.live(match) {
		if args != nil {
			s.setArgs(*args)
		}
		switch {
		case r.async:
			r.enqueue(s)
		case !s.session.holds(ctx) && insideAnySession(ctx):
			// Blocking on another session from inside a step could deadlock
			// against a step of that session doing the same.
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				s.session.report(r.op(), r.rebuild(s.session.Context(), s))
			}()
		default:
			if err := r.rebuild(ctx, s); err != nil {
				errList = append(errList, err)
			}
		}
	}
	return errors.Join(errList...)
}

// live prunes sites whose container or session is gone and returns the
// remaining ones accepted by match.
func (r *Refreshable[A]) live(match func(*site[A]) bool) []*site[A] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sites = slices.DeleteFunc(r.sites, func(s *site[A]) bool {
		return !s.live()
	})
	out := make([]*site[A], 0, len(r.sites))
	for _, s := range r.sites {
		if match == nil || match(s) {
			out = append(out, s)
		}
	}
	return out
}

func (r *Refreshable[A]) rebuild(ctx context.Context, s *site[A]) error {
	err := s.session.Do(ctx, func(ctx context.Context, b *Builder) error {
		if !s.container.Alive() {
			return nil
		}
		s.setState(Rebuilding)
		defer s.setState(Built)

		t := b.Target()
		t.Clear(s.container)
		err := b.Within(s.container, func() error {
			return r.call(ctx, b, s.getArgs())
		})
		t.RequestUpdate(s.container)
		return err
	})
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return r.wrap(err)
}

func (r *Refreshable[A]) enqueue(s *site[A]) {
	s.mu.Lock()
	s.pending = append(s.pending, s.args)
	start := !s.running
	s.running = true
	s.mu.Unlock()

	if start {
		r.wg.Add(1)
		go r.drain(s)
	}
}

func (r *Refreshable[A]) drain(s *site[A]) {
	defer r.wg.Done()
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		args := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.session.report(r.op(), r.rebuildAsync(s, args))
	}
}

func (r *Refreshable[A]) rebuildAsync(s *site[A], args A) error {
	if !s.live() {
		return nil
	}
	sess := s.session
	ctx := sess.Context()

	s.setState(AwaitingBody)
	b, buf := sess.detachedBuilder()
	if err := r.call(ctx, b, args); err != nil {
		s.setState(Built)
		if sess.Closed() {
			return nil
		}
		return r.wrap(err)
	}

	err := sess.Do(ctx, func(ctx context.Context, sb *Builder) error {
		if !s.container.Alive() {
			return nil
		}
		t := sb.Target()
		s.setState(Clearing)
		t.Clear(s.container)
		s.setState(Attaching)
		buf.attachTo(t, s.container)
		t.RequestUpdate(s.container)
		return nil
	})
	s.setState(Built)
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

func (r *Refreshable[A]) call(ctx context.Context, b *Builder, args A) (err error) {
	defer errs.Recover(r.op(), &err)
	return r.fn(ctx, b, args)
}

func (r *Refreshable[A]) wrap(err error) error {
	if err == nil {
		return nil
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return errs.E(r.op(), errs.KindRefresh, err)
}

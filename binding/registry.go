package binding

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/delaneyj/bindparty/pkg/errs"
)

// DefaultInterval is the default period of the synchronization pass.
const DefaultInterval = 100 * time.Millisecond

// Stats describes one synchronization pass.
type Stats struct {
	Links    int
	Writes   int
	Pruned   int
	Errors   int
	Duration time.Duration
	At       time.Time
}

// Registry stores every active link and keeps linked properties in sync.
//
// Writes to an Attribute propagate immediately through Propagate. Properties
// that cannot observe their own writes, such as plain struct fields, are
// picked up by Sync, which Start runs periodically.
//
// All methods are safe for concurrent use. Sync copies the link set before
// iterating, so links may be added while a pass is running.
type Registry struct {
	interval time.Duration
	logger   *slog.Logger
	handler  errs.Handler

	mu       sync.RWMutex
	links    []*Link
	bySource map[ID][]*Link

	passMu sync.Mutex
	passes atomic.Uint64
	last   atomic.Pointer[Stats]

	loopMu  sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithInterval sets the period of the synchronization pass.
func WithInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets the logger used for propagation failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithErrorHandler receives propagation errors in addition to the log.
func WithErrorHandler(h errs.Handler) Option {
	return func(r *Registry) {
		r.handler = h
	}
}

// NewRegistry creates an empty registry. Create one per process, or one per test.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		interval: DefaultInterval,
		logger:   slog.Default(),
		bySource: make(map[ID][]*Link),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Interval returns the period of the synchronization pass.
func (r *Registry) Interval() time.Duration {
	return r.interval
}

// BindTo links self to other: values flow from self to other through forward.
// The current value is propagated once before returning.
func (r *Registry) BindTo(self, other Ref, forward Transform) error {
	src, dst, err := resolve("binding.BindTo", self, other)
	if err != nil {
		return err
	}
	r.add(newLink(src, dst, forward, To))
	r.Propagate(src.ID())
	return nil
}

// BindFrom links self from other: values flow from other to self through backward.
// The current value is propagated once before returning.
func (r *Registry) BindFrom(self, other Ref, backward Transform) error {
	dst, src, err := resolve("binding.BindFrom", self, other)
	if err != nil {
		return err
	}
	r.add(newLink(src, dst, backward, From))
	r.Propagate(src.ID())
	return nil
}

// Bind links self and other in both directions. On creation other's value
// wins: it is pushed to self first, then self's value is pushed back, which
// is a no-op when forward and backward are inverses.
func (r *Registry) Bind(self, other Ref, forward, backward Transform) error {
	a, b, err := resolve("binding.Bind", self, other)
	if err != nil {
		return err
	}
	r.add(newLink(b, a, backward, Both))
	r.Propagate(b.ID())
	r.add(newLink(a, b, forward, Both))
	r.Propagate(a.ID())
	return nil
}

func resolve(op string, self, other Ref) (Property, Property, error) {
	a, err := self.Property()
	if err != nil {
		return nil, nil, errs.E(op, errs.KindConfig, err)
	}
	b, err := other.Property()
	if err != nil {
		return nil, nil, errs.E(op, errs.KindConfig, err)
	}
	for _, p := range []Property{a, b} {
		if _, err := p.Get(); err != nil {
			return nil, nil, errs.E(op, errs.KindConfig, err)
		}
	}
	return a, b, nil
}

func (r *Registry) add(l *Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links = append(r.links, l)
	id := l.src.ID()
	r.bySource[id] = append(r.bySource[id], l)
}

func (r *Registry) drop(l *Link) {
	if l.dropped.Swap(true) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := l.src.ID()
	remaining := slices.DeleteFunc(r.bySource[id], func(x *Link) bool { return x == l })
	if len(remaining) == 0 {
		delete(r.bySource, id)
	} else {
		r.bySource[id] = remaining
	}
	r.links = slices.DeleteFunc(r.links, func(x *Link) bool { return x == l })
}

func (r *Registry) outgoing(id ID) []*Link {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.bySource[id])
}

// Links returns a snapshot of the registered links.
func (r *Registry) Links() []*Link {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.links)
}

// Len returns the number of registered links.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.links)
}

// Reset removes every link.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		l.dropped.Store(true)
	}
	r.links = nil
	r.bySource = make(map[ID][]*Link)
}

// Propagate pushes the current value of the property id to every property
// reachable through links from it. Each property is visited at most once,
// so bidirectional pairs do not bounce values back and forth.
func (r *Registry) Propagate(id ID) {
	r.propagate(id, mapset.NewThreadUnsafeSet[ID]())
}

func (r *Registry) propagate(id ID, visited mapset.Set[ID]) {
	visited.Add(id)
	for _, l := range r.outgoing(id) {
		if l.dropped.Load() {
			continue
		}
		target := l.dst.ID()
		if visited.Contains(target) {
			l.prime()
			continue
		}
		if _, err := l.transfer(false); err != nil {
			r.fail(l, err)
			continue
		}
		r.propagate(target, visited)
	}
}

// fail prunes links with a missing end and reports every other error.
// It returns true when the link was pruned.
func (r *Registry) fail(l *Link, err error) bool {
	if errors.Is(err, ErrGone) {
		r.drop(l)
		r.logger.Debug("pruned dangling link", slog.String("link", l.String()))
		return true
	}
	r.logger.Warn("link propagation failed",
		slog.String("link", l.String()),
		slog.Any("err", err),
	)
	errs.Report(r.handler, "binding.propagate", errs.KindPropagation, err)
	return false
}

// Sync runs one synchronization pass over a snapshot of all links. A link
// writes its target only if its source changed since the link last saw it and
// the transformed value differs from the target. Links with a destroyed end
// are pruned. A failing link is reported and kept.
func (r *Registry) Sync() Stats {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	start := time.Now()
	links := r.Links()
	st := Stats{Links: len(links), At: start}

	for _, l := range links {
		if l.dropped.Load() {
			continue
		}
		wrote, err := l.transfer(true)
		switch {
		case err != nil:
			if r.fail(l, err) {
				st.Pruned++
			} else {
				st.Errors++
			}
		case wrote:
			st.Writes++
			visited := mapset.NewThreadUnsafeSet(l.src.ID())
			r.propagate(l.dst.ID(), visited)
		}
	}

	st.Duration = time.Since(start)
	r.passes.Add(1)
	r.last.Store(&st)
	return st
}

// Passes returns the number of completed synchronization passes.
func (r *Registry) Passes() uint64 {
	return r.passes.Load()
}

// LastStats returns the stats of the most recent pass, if any.
func (r *Registry) LastStats() (Stats, bool) {
	st := r.last.Load()
	if st == nil {
		return Stats{}, false
	}
	return *st, true
}

// Start runs Sync every interval until Stop is called or ctx is done.
// Calling Start on a running registry does nothing.
func (r *Registry) Start(ctx context.Context) {
	r.loopMu.Lock()
	defer r.loopMu.Unlock()

	if r.stop != nil {
		return
	}
	r.stop = make(chan struct{})
	r.stopped = make(chan struct{})

	stopCh, stoppedCh := r.stop, r.stopped
	go r.loop(ctx, stopCh, stoppedCh)
	r.logger.Debug("binding registry started", slog.Duration("interval", r.interval))
}

// Stop halts the periodic pass and waits for it to finish. It is safe to
// call on a registry that was never started.
func (r *Registry) Stop() {
	r.loopMu.Lock()
	stopCh, stoppedCh := r.stop, r.stopped
	r.stop, r.stopped = nil, nil
	r.loopMu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-stoppedCh
	}
}

func (r *Registry) loop(ctx context.Context, stop, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			r.Sync()
		}
	}
}

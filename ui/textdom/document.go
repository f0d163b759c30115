// Package textdom is an in-memory element tree that renders to markup.
// It implements ui.Target and delivers the whole page as a frame every time
// a flush finds dirty elements and the markup actually changed.
package textdom

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/delaneyj/bindparty/ui"
)

// RootKind is the kind of a document's root element.
const RootKind = "page"

// Document is a ui.Target backed by an element tree.
type Document struct {
	logger *slog.Logger

	mu      sync.Mutex
	nextID  uint64
	root    *Element
	dirty   mapset.Set[uint64]
	frames  []string
	last    uint64
	onFrame []func(frame string)
}

var _ ui.Target = (*Document)(nil)
var _ ui.Flusher = (*Document)(nil)
var _ ui.Holder = (*Element)(nil)

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the document logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// OnFrame registers fn to receive every delivered frame.
func OnFrame(fn func(frame string)) Option {
	return func(d *Document) {
		d.onFrame = append(d.onFrame, fn)
	}
}

// New creates an empty document.
func New(opts ...Option) *Document {
	d := &Document{
		logger: slog.Default(),
		dirty:  mapset.NewThreadUnsafeSet[uint64](),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.root = d.element(RootKind, "")
	return d
}

// Root returns the page element.
func (d *Document) Root() *Element {
	return d.root
}

func (d *Document) element(kind, text string) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return &Element{doc: d, id: d.nextID, kind: kind, text: text, alive: true}
}

func (d *Document) own(n ui.Node) *Element {
	e, ok := n.(*Element)
	if !ok || e.doc != d {
		panic(fmt.Sprintf("textdom: %T does not belong to this document", n))
	}
	return e
}

func (d *Document) NewContainer(kind string) ui.Node {
	return d.element(kind, "")
}

// Clear removes and releases every child of container.
func (d *Document) Clear(container ui.Node) {
	e := d.own(container)
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range e.slots {
		for _, c := range s.children {
			c.release()
		}
	}
	e.slots = nil
}

// Attach appends node to the named slot of container. A node attached to a
// removed container is released immediately.
func (d *Document) Attach(container ui.Node, slotName string, node ui.Node) {
	parent, child := d.own(container), d.own(node)
	if slotName == "" {
		slotName = ui.DefaultSlot
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !parent.alive {
		child.release()
		return
	}
	s := parent.slot(slotName, true)
	s.children = append(s.children, child)
	child.parent = parent
}

func (d *Document) RequestUpdate(node ui.Node) {
	e := d.own(node)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirty.Add(e.id)
}

// Pending returns the number of elements marked dirty since the last flush.
func (d *Document) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty.Cardinality()
}

// Flush renders the page if anything was marked dirty. The frame is delivered
// only when its markup differs from the previous one.
func (d *Document) Flush() {
	d.mu.Lock()
	if d.dirty.Cardinality() == 0 {
		d.mu.Unlock()
		return
	}
	d.dirty.Clear()
	frame := render(d.root)
	sum := xxhash.Sum64String(frame)
	if len(d.frames) > 0 && sum == d.last {
		d.mu.Unlock()
		return
	}
	d.last = sum
	d.frames = append(d.frames, frame)
	listeners := d.onFrame
	d.mu.Unlock()

	d.logger.Debug("frame delivered", slog.Int("bytes", len(frame)), slog.Uint64("hash", sum))
	for _, fn := range listeners {
		fn(frame)
	}
}

// Frames returns every delivered frame in order.
func (d *Document) Frames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.frames...)
}

// Render returns the current markup of the live tree without delivering it.
func (d *Document) Render() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return render(d.root)
}

// RenderElement returns the current markup of e.
func (d *Document) RenderElement(e *Element) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return render(e)
}

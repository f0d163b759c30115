package textdom

import (
	"context"
	"maps"
	"slices"

	"github.com/delaneyj/bindparty/binding"
	"github.com/delaneyj/bindparty/ui"
)

// ClickHandler runs as one step of the session the click arrived on.
type ClickHandler func(ctx context.Context, b *ui.Builder) error

type slot struct {
	name     string
	children []*Element
}

// Element is a node of a Document. All state is guarded by the document lock.
type Element struct {
	doc    *Document
	id     uint64
	kind   string
	text   string
	props  map[string]any
	slots  []*slot
	parent *Element
	alive  bool

	onClick  ClickHandler
	textAttr *binding.Attribute[string]
	held     map[string]any
}

// ID returns the element id, unique within its document.
func (e *Element) ID() uint64 {
	return e.id
}

// Kind returns the element kind.
func (e *Element) Kind() string {
	return e.kind
}

func (e *Element) Alive() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.alive
}

func (e *Element) Text() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.text
}

// SetText changes the text and marks the element dirty.
func (e *Element) SetText(text string) {
	e.doc.mu.Lock()
	e.text = text
	e.doc.mu.Unlock()
	e.doc.RequestUpdate(e)
}

// Prop returns a render property.
func (e *Element) Prop(name string) (any, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	v, ok := e.props[name]
	return v, ok
}

// SetProp changes a render property. The caller requests the update.
func (e *Element) SetProp(name string, value any) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.props == nil {
		e.props = map[string]any{}
	}
	e.props[name] = value
}

// Disabled reports whether the "disable" prop is set.
func (e *Element) Disabled() bool {
	v, _ := e.Prop("disable")
	b, _ := v.(bool)
	return b
}

// Children returns the children in the named slot.
func (e *Element) Children(name string) []*Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if s := e.slot(name, false); s != nil {
		return slices.Clone(s.children)
	}
	return nil
}

// Parent returns the element this one is attached to, or nil.
func (e *Element) Parent() *Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.parent
}

func (e *Element) slot(name string, create bool) *slot {
	for _, s := range e.slots {
		if s.name == name {
			return s
		}
	}
	if !create {
		return nil
	}
	s := &slot{name: name}
	e.slots = append(e.slots, s)
	return s
}

func (e *Element) release() {
	e.alive = false
	e.parent = nil
	for _, s := range e.slots {
		for _, c := range s.children {
			c.release()
		}
	}
	e.slots = nil
	e.held = nil
}

// Hold keeps v reachable while the element is alive. A later value under the
// same key replaces the earlier one. Removed elements drop what they hold.
func (e *Element) Hold(key string, v any) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.alive {
		return
	}
	if e.held == nil {
		e.held = make(map[string]any)
	}
	e.held[key] = v
}

func (e *Element) sortedProps() []string {
	return slices.Sorted(maps.Keys(e.props))
}

// Click runs the element's click handler as a step of s. Disabled or
// removed elements ignore clicks.
func (e *Element) Click(ctx context.Context, s *ui.Session) error {
	e.doc.mu.Lock()
	handler, alive := e.onClick, e.alive
	e.doc.mu.Unlock()
	if handler == nil || !alive || e.Disabled() {
		return nil
	}
	return s.Do(ctx, func(ctx context.Context, b *ui.Builder) error {
		return handler(ctx, b)
	})
}

// TextAttr returns the element's text as an attribute registered with reg,
// creating it on first use. Writes to the attribute update the text.
func (e *Element) TextAttr(reg *binding.Registry) *binding.Attribute[string] {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.textAttr == nil {
		e.textAttr = binding.NewAttribute(reg, e, "text", e.text, binding.WithOnChange(e.SetText))
	}
	return e.textAttr
}

// Attr exposes "text" once TextAttr has been called.
func (e *Element) Attr(name string) (binding.Property, bool) {
	e.doc.mu.Lock()
	a := e.textAttr
	e.doc.mu.Unlock()
	if name != "text" || a == nil {
		return nil, false
	}
	return a.Property(), true
}

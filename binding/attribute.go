package binding

import (
	"sync"
	"sync/atomic"
	"weak"
)

var serials atomic.Uint64

// Attribute is a value whose writes are observed by a Registry.
//
// Every Set stores the value, runs the change callbacks synchronously and then
// propagates the value across the attribute's links. Set never compares the new
// value with the old one, so callbacks fire even when the value is unchanged.
//
// Attributes must be created with NewAttribute. The registry only holds weak
// references to them, so an attribute is collected together with its owner.
type Attribute[T any] struct {
	reg   *Registry
	owner any
	id    ID

	mu       sync.RWMutex
	value    T
	onChange []func(T)
}

// AttributeOption configures an Attribute.
type AttributeOption[T any] func(*Attribute[T])

// WithOnChange registers a change callback at construction.
func WithOnChange[T any](fn func(T)) AttributeOption[T] {
	return func(a *Attribute[T]) {
		a.onChange = append(a.onChange, fn)
	}
}

// NewAttribute creates an attribute named name belonging to owner.
// If owner implements Alive() bool, links touching the attribute are pruned
// once it reports false. reg may be nil for an attribute that is never bound.
func NewAttribute[T any](reg *Registry, owner any, name string, initial T, opts ...AttributeOption[T]) *Attribute[T] {
	a := &Attribute[T]{
		reg:   reg,
		owner: owner,
		id:    ID{owner: serials.Add(1), name: name},
		value: initial,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the attribute's identity.
func (a *Attribute[T]) ID() ID {
	return a.id
}

// Name returns the attribute's name.
func (a *Attribute[T]) Name() string {
	return a.id.name
}

// Value returns the last assigned value.
func (a *Attribute[T]) Value() T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value
}

// Set assigns v, runs the change callbacks and propagates v to linked properties.
func (a *Attribute[T]) Set(v T) {
	a.store(v)
	if a.reg != nil {
		a.reg.Propagate(a.id)
	}
}

// OnChange registers an additional change callback.
func (a *Attribute[T]) OnChange(fn func(T)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChange = append(a.onChange, fn)
}

func (a *Attribute[T]) store(v T) {
	a.mu.Lock()
	a.value = v
	callbacks := a.onChange
	a.mu.Unlock()

	for _, fn := range callbacks {
		fn(v)
	}
}

func (a *Attribute[T]) gone() bool {
	return dead(a.owner)
}

// Property returns a weakly held view of the attribute for use in links.
func (a *Attribute[T]) Property() Property {
	return &attributeProperty[T]{ptr: weak.Make(a), id: a.id}
}

// Ref returns a reference to the attribute for Registry bind calls.
func (a *Attribute[T]) Ref() Ref {
	return Ref{prop: a.Property()}
}

type attributeProperty[T any] struct {
	ptr weak.Pointer[Attribute[T]]
	id  ID
}

func (p *attributeProperty[T]) ID() ID {
	return p.id
}

func (p *attributeProperty[T]) attribute() (*Attribute[T], error) {
	a := p.ptr.Value()
	if a == nil || a.gone() {
		return nil, ErrGone
	}
	return a, nil
}

func (p *attributeProperty[T]) Get() (any, error) {
	a, err := p.attribute()
	if err != nil {
		return nil, err
	}
	return a.Value(), nil
}

// Set stores the value and runs callbacks. Propagation is left to the
// registry, which is already walking the link graph when it calls Set.
func (p *attributeProperty[T]) Set(v any) error {
	a, err := p.attribute()
	if err != nil {
		return err
	}
	tv, err := cast[T](v)
	if err != nil {
		return err
	}
	a.store(tv)
	return nil
}

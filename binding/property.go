package binding

import (
	"errors"
	"fmt"
	"reflect"
	"weak"
)

var (
	// ErrNotBindable is returned when a binding names something that cannot be bound.
	ErrNotBindable = errors.New("not bindable")
	// ErrGone is returned by properties whose owner was destroyed or collected.
	ErrGone = errors.New("owner is gone")
	// ErrType is returned when a value cannot be stored in a property.
	ErrType = errors.New("type mismatch")
)

// ID identifies a bindable property: the identity of its owner plus a name.
type ID struct {
	owner any
	name  string
}

// Name returns the property name.
func (id ID) Name() string {
	return id.name
}

func (id ID) String() string {
	if serial, ok := id.owner.(uint64); ok {
		return fmt.Sprintf("#%d.%s", serial, id.name)
	}
	return fmt.Sprintf("%T.%s", id.owner, id.name)
}

// Property is a readable and writable value the registry can link.
// Get and Set return ErrGone once the owner is no longer available.
type Property interface {
	ID() ID
	Get() (any, error)
	Set(v any) error
}

// Bindable is implemented by objects that expose attributes by name.
type Bindable interface {
	Attr(name string) (Property, bool)
}

// Ref is a property reference whose resolution may have failed.
// Resolution errors surface when the Ref is handed to the registry.
type Ref struct {
	prop Property
	err  error
}

// Of wraps an existing property.
func Of(p Property) Ref {
	if p == nil {
		return Ref{err: fmt.Errorf("nil property: %w", ErrNotBindable)}
	}
	return Ref{prop: p}
}

// Property returns the resolved property or the resolution error.
func (r Ref) Property() (Property, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.prop == nil {
		return nil, fmt.Errorf("empty ref: %w", ErrNotBindable)
	}
	return r.prop, nil
}

// Attr looks up the named attribute on obj, which must implement Bindable.
func Attr(obj any, name string) Ref {
	b, ok := obj.(Bindable)
	if !ok {
		return Ref{err: fmt.Errorf("%T has no bindable attributes: %w", obj, ErrNotBindable)}
	}
	p, ok := b.Attr(name)
	if !ok || p == nil {
		return Ref{err: fmt.Errorf("%T.%s: %w", obj, name, ErrNotBindable)}
	}
	return Ref{prop: p}
}

type aliveChecker interface {
	Alive() bool
}

func dead(owner any) bool {
	a, ok := owner.(aliveChecker)
	return ok && !a.Alive()
}

// Field references an exported field of a plain struct. The struct is held
// weakly, so binding it does not keep it alive. Writes made directly to the
// field are picked up by the registry's periodic pass.
func Field[T any](obj *T, name string) Ref {
	if obj == nil {
		return Ref{err: fmt.Errorf("nil %T: %w", obj, ErrNotBindable)}
	}
	rt := reflect.TypeFor[T]()
	if rt.Kind() != reflect.Struct {
		return Ref{err: fmt.Errorf("%s is not a struct: %w", rt, ErrNotBindable)}
	}
	sf, ok := rt.FieldByName(name)
	if !ok || !sf.IsExported() {
		return Ref{err: fmt.Errorf("%s.%s: %w", rt, name, ErrNotBindable)}
	}
	w := weak.Make(obj)
	return Ref{prop: &fieldProperty[T]{
		ptr:   w,
		index: sf.Index,
		typ:   sf.Type,
		id:    ID{owner: w, name: name},
	}}
}

type fieldProperty[T any] struct {
	ptr   weak.Pointer[T]
	index []int
	typ   reflect.Type
	id    ID
}

func (p *fieldProperty[T]) ID() ID {
	return p.id
}

func (p *fieldProperty[T]) field() (reflect.Value, error) {
	obj := p.ptr.Value()
	if obj == nil || dead(obj) {
		return reflect.Value{}, ErrGone
	}
	f, err := reflect.ValueOf(obj).Elem().FieldByIndexErr(p.index)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%s: %w", p.id, err)
	}
	return f, nil
}

func (p *fieldProperty[T]) Get() (any, error) {
	f, err := p.field()
	if err != nil {
		return nil, err
	}
	return f.Interface(), nil
}

func (p *fieldProperty[T]) Set(v any) error {
	f, err := p.field()
	if err != nil {
		return err
	}
	rv, err := assignable(v, p.typ)
	if err != nil {
		return fmt.Errorf("%s: %w", p.id, err)
	}
	f.Set(rv)
	return nil
}

// Entry references one key of a map. The map is held weakly through its pointer.
func Entry[K comparable, V any](m *map[K]V, key K) Ref {
	if m == nil {
		return Ref{err: fmt.Errorf("nil map: %w", ErrNotBindable)}
	}
	w := weak.Make(m)
	return Ref{prop: &entryProperty[K, V]{
		ptr: w,
		key: key,
		id:  ID{owner: w, name: fmt.Sprint(key)},
	}}
}

type entryProperty[K comparable, V any] struct {
	ptr weak.Pointer[map[K]V]
	key K
	id  ID
}

func (p *entryProperty[K, V]) ID() ID {
	return p.id
}

func (p *entryProperty[K, V]) Get() (any, error) {
	m := p.ptr.Value()
	if m == nil {
		return nil, ErrGone
	}
	return (*m)[p.key], nil
}

func (p *entryProperty[K, V]) Set(v any) error {
	m := p.ptr.Value()
	if m == nil {
		return ErrGone
	}
	tv, err := cast[V](v)
	if err != nil {
		return fmt.Errorf("%s: %w", p.id, err)
	}
	if *m == nil {
		*m = make(map[K]V)
	}
	(*m)[p.key] = tv
	return nil
}

func cast[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	tv, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: want %s, got %T", ErrType, reflect.TypeFor[T](), v)
	}
	return tv, nil
}

func assignable(v any, typ reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(typ), nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(typ) {
		return reflect.Value{}, fmt.Errorf("%w: want %s, got %s", ErrType, typ, rv.Type())
	}
	return rv, nil
}

package binding

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/delaneyj/bindparty/pkg/errs"
)

// Direction tells which bind call created a link.
type Direction uint8

const (
	// To links a property to another one.
	To Direction = iota + 1
	// From links a property from another one.
	From
	// Both marks one half of a bidirectional pair.
	Both
)

func (d Direction) String() string {
	switch d {
	case To:
		return "to"
	case From:
		return "from"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// Transform converts a value on its way across a link.
type Transform func(v any) (any, error)

// Identity passes values through unchanged.
func Identity(v any) (any, error) {
	return v, nil
}

// Func adapts a typed function to a Transform.
func Func[A, B any](fn func(A) B) Transform {
	return func(v any) (any, error) {
		a, err := cast[A](v)
		if err != nil {
			return nil, err
		}
		return fn(a), nil
	}
}

// FuncErr adapts a typed function that may fail to a Transform.
func FuncErr[A, B any](fn func(A) (B, error)) Transform {
	return func(v any) (any, error) {
		a, err := cast[A](v)
		if err != nil {
			return nil, err
		}
		return fn(a)
	}
}

// Link is a one-way synchronization rule from a source to a target property.
// The registry owns every link; a bidirectional binding is a pair of links.
type Link struct {
	src       Property
	dst       Property
	transform Transform
	dir       Direction
	dropped   atomic.Bool

	mu     sync.Mutex
	last   any
	primed bool
}

func newLink(src, dst Property, transform Transform, dir Direction) *Link {
	if transform == nil {
		transform = Identity
	}
	return &Link{src: src, dst: dst, transform: transform, dir: dir}
}

// Source returns the identity of the property values are read from.
func (l *Link) Source() ID {
	return l.src.ID()
}

// Target returns the identity of the property values are written to.
func (l *Link) Target() ID {
	return l.dst.ID()
}

// Direction returns how the link was created.
func (l *Link) Direction() Direction {
	return l.dir
}

func (l *Link) String() string {
	return fmt.Sprintf("%s -> %s (%s)", l.src.ID(), l.dst.ID(), l.dir)
}

// transfer moves the source value to the target. With onlyChanged set it does
// nothing unless the source changed since the link last looked at it. The
// target is written only when the transformed value differs from it.
func (l *Link) transfer(onlyChanged bool) (bool, error) {
	out, write, err := l.prepare(onlyChanged)
	if err != nil || !write {
		return false, err
	}
	if err := l.dst.Set(out); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Link) prepare(onlyChanged bool) (any, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, err := l.src.Get()
	if err != nil {
		return nil, false, err
	}
	cur, err := l.dst.Get()
	if err != nil {
		return nil, false, err
	}
	if onlyChanged && l.primed && equal(v, l.last) {
		return nil, false, nil
	}

	// A failed transform leaves the link unprimed so the next pass retries it.
	out, err := l.apply(v)
	if err != nil {
		l.primed = false
		return nil, false, err
	}
	l.last, l.primed = v, true
	if equal(out, cur) {
		return nil, false, nil
	}
	return out, true, nil
}

// prime records the current source value as seen without writing anything.
func (l *Link) prime() {
	v, err := l.src.Get()
	if err != nil {
		return
	}
	l.mu.Lock()
	l.last, l.primed = v, true
	l.mu.Unlock()
}

func (l *Link) apply(v any) (out any, err error) {
	defer errs.Recover("binding.transform", &err)
	return l.transform(v)
}

func equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

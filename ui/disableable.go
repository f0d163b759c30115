package ui

import (
	"errors"

	"github.com/delaneyj/bindparty/binding"
	"github.com/delaneyj/bindparty/pkg/errs"
)

// ErrNoRegistry is returned by bind calls on a Disableable created without
// a binding registry.
var ErrNoRegistry = errors.New("no binding registry")

// EnabledAttr is the attribute name Disableable exposes for binding.
const EnabledAttr = "enabled"

// Disableable gives an element a bindable enabled state. Every write to the
// state sets the element's "disable" prop to its negation and asks the target
// to redraw the element.
type Disableable struct {
	el      PropSetter
	target  Target
	reg     *binding.Registry
	enabled *binding.Attribute[bool]
}

// NewDisableable wraps el. The element starts enabled.
//
// The enabled state belongs to el: its links are pruned once el is removed.
// If el is a Holder it keeps the Disableable reachable, so callers may drop
// the returned value. Otherwise the caller must keep it for as long as the
// bindings should work. reg may be nil when the state is never bound.
func NewDisableable(reg *binding.Registry, target Target, el PropSetter) *Disableable {
	d := &Disableable{el: el, target: target, reg: reg}
	d.enabled = binding.NewAttribute(reg, el, EnabledAttr, true, binding.WithOnChange(d.apply))
	if h, ok := el.(Holder); ok {
		h.Hold(EnabledAttr, d)
	}
	d.enabled.Set(true)
	return d
}

func (d *Disableable) registry(op string) (*binding.Registry, error) {
	if d.reg == nil {
		return nil, errs.E(op, errs.KindConfig, ErrNoRegistry)
	}
	return d.reg, nil
}

func (d *Disableable) apply(enabled bool) {
	d.el.SetProp("disable", !enabled)
	d.target.RequestUpdate(d.el)
}

// Element returns the wrapped element.
func (d *Disableable) Element() PropSetter {
	return d.el
}

// Alive reports whether the wrapped element still exists.
func (d *Disableable) Alive() bool {
	return d.el.Alive()
}

// Attr exposes the enabled state to the binding registry.
func (d *Disableable) Attr(name string) (binding.Property, bool) {
	if name != EnabledAttr {
		return nil, false
	}
	return d.enabled.Property(), true
}

// Enabled reports the current state.
func (d *Disableable) Enabled() bool {
	return d.enabled.Value()
}

func (d *Disableable) Enable() {
	d.enabled.Set(true)
}

func (d *Disableable) Disable() {
	d.enabled.Set(false)
}

func (d *Disableable) SetEnabled(v bool) {
	d.enabled.Set(v)
}

// BindEnabledTo copies the enabled state to other.
func (d *Disableable) BindEnabledTo(other binding.Ref, forward binding.Transform) error {
	reg, err := d.registry("ui.BindEnabledTo")
	if err != nil {
		return err
	}
	return reg.BindTo(d.enabled.Ref(), other, forward)
}

// BindEnabledFrom copies other into the enabled state.
func (d *Disableable) BindEnabledFrom(other binding.Ref, backward binding.Transform) error {
	reg, err := d.registry("ui.BindEnabledFrom")
	if err != nil {
		return err
	}
	return reg.BindFrom(d.enabled.Ref(), other, backward)
}

// BindEnabled keeps the enabled state and other in sync. other's value wins
// when the link is created.
func (d *Disableable) BindEnabled(other binding.Ref, forward, backward binding.Transform) error {
	reg, err := d.registry("ui.BindEnabled")
	if err != nil {
		return err
	}
	return reg.Bind(d.enabled.Ref(), other, forward, backward)
}

// EnabledOf references the enabled attribute of obj.
func EnabledOf(obj any) binding.Ref {
	return binding.Attr(obj, EnabledAttr)
}

package binding_test

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/delaneyj/bindparty/binding"
	"github.com/delaneyj/bindparty/pkg/errs"
	"github.com/delaneyj/bindparty/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, opts ...binding.Option) (*binding.Registry, *errs.Collector) {
	t.Helper()
	c := &errs.Collector{}
	opts = append([]binding.Option{
		binding.WithLogger(logging.Discard()),
		binding.WithErrorHandler(c),
	}, opts...)
	reg := binding.NewRegistry(opts...)
	t.Cleanup(reg.Stop)
	t.Cleanup(reg.Reset)
	return reg, c
}

type model struct {
	Number  int
	Label   string
	private int
}

func TestBindTo(t *testing.T) {
	reg, _ := newRegistry(t)
	a := binding.NewAttribute(reg, nil, "n", 3)
	b := binding.NewAttribute(reg, nil, "n", 0)

	require.NoError(t, reg.BindTo(a.Ref(), b.Ref(), nil))
	assert.Equal(t, 3, b.Value(), "current value propagates immediately")
	assert.Equal(t, 1, reg.Len())

	a.Set(4)
	assert.Equal(t, 4, b.Value(), "writes propagate without a pass")

	b.Set(10)
	assert.Equal(t, 4, a.Value(), "one-way link never flows back")
}

func TestBindFrom(t *testing.T) {
	reg, _ := newRegistry(t)
	self := binding.NewAttribute(reg, nil, "label", "")
	other := binding.NewAttribute(reg, nil, "n", 2)

	require.NoError(t, reg.BindFrom(self.Ref(), other.Ref(), binding.Func(func(n int) string {
		return "n=" + strconv.Itoa(n)
	})))
	assert.Equal(t, "n=2", self.Value())

	other.Set(5)
	assert.Equal(t, "n=5", self.Value())
	assert.Equal(t, binding.From, reg.Links()[0].Direction())
}

func TestBindTargetWins(t *testing.T) {
	reg, _ := newRegistry(t)
	a := binding.NewAttribute(reg, nil, "n", 1)
	b := binding.NewAttribute(reg, nil, "n", 5)

	require.NoError(t, reg.Bind(a.Ref(), b.Ref(), nil, nil))
	assert.Equal(t, 5, a.Value())
	assert.Equal(t, 5, b.Value())
	assert.Equal(t, 2, reg.Len())

	a.Set(6)
	assert.Equal(t, 6, b.Value())
	b.Set(7)
	assert.Equal(t, 7, a.Value())

	st := reg.Sync()
	assert.Zero(t, st.Writes)
}

func TestBindChangeCallbacks(t *testing.T) {
	reg, _ := newRegistry(t)
	var seen []int
	a := binding.NewAttribute(reg, nil, "n", 0)
	b := binding.NewAttribute(reg, nil, "n", 0, binding.WithOnChange(func(v int) {
		seen = append(seen, v)
	}))
	require.NoError(t, reg.BindTo(a.Ref(), b.Ref(), nil))
	assert.Empty(t, seen, "equal values are not written across links")

	a.Set(1)
	a.Set(1)
	assert.Equal(t, []int{1}, seen)
}

func TestBidirectionalConvergence(t *testing.T) {
	t.Run("plain fields", func(t *testing.T) {
		reg, _ := newRegistry(t)
		x := &model{Number: 1}
		y := &model{Number: 2}

		require.NoError(t, reg.Bind(binding.Field(x, "Number"), binding.Field(y, "Number"), nil, nil))
		assert.Equal(t, 2, x.Number)
		assert.Equal(t, 2, y.Number)

		x.Number = 10
		st := reg.Sync()
		assert.Equal(t, 10, y.Number)
		assert.Equal(t, 1, st.Writes)
		assert.Zero(t, reg.Sync().Writes, "second pass settles")

		y.Number = 20
		reg.Sync()
		assert.Equal(t, 20, x.Number)
		assert.Zero(t, reg.Sync().Writes)
	})

	t.Run("attribute and field", func(t *testing.T) {
		reg, _ := newRegistry(t)
		m := &model{Label: "from model"}
		a := binding.NewAttribute(reg, nil, "text", "from attribute")

		require.NoError(t, reg.Bind(a.Ref(), binding.Field(m, "Label"), nil, nil))
		assert.Equal(t, "from model", a.Value())

		a.Set("typed")
		assert.Equal(t, "typed", m.Label)

		m.Label = "edited"
		reg.Sync()
		assert.Equal(t, "edited", a.Value())
		assert.Zero(t, reg.Sync().Writes)
	})

	t.Run("non inverse transforms do not oscillate", func(t *testing.T) {
		reg, _ := newRegistry(t)
		a := binding.NewAttribute(reg, nil, "n", 0)
		b := binding.NewAttribute(reg, nil, "n", 0)
		plusOne := binding.Func(func(n int) int { return n + 1 })

		require.NoError(t, reg.Bind(a.Ref(), b.Ref(), plusOne, nil))
		assert.Equal(t, 0, a.Value())
		assert.Equal(t, 1, b.Value())

		a.Set(5)
		assert.Equal(t, 6, b.Value())
		assert.Equal(t, 5, a.Value())

		for range 3 {
			assert.Zero(t, reg.Sync().Writes)
		}
	})
}

func TestChains(t *testing.T) {
	reg, _ := newRegistry(t)
	a := binding.NewAttribute(reg, nil, "n", 1)
	b := binding.NewAttribute(reg, nil, "n", 0)
	c := binding.NewAttribute(reg, nil, "n", 0)

	require.NoError(t, reg.BindTo(a.Ref(), b.Ref(), nil))
	require.NoError(t, reg.BindTo(b.Ref(), c.Ref(), binding.Func(func(n int) int { return n * 10 })))
	assert.Equal(t, 10, c.Value())

	a.Set(2)
	assert.Equal(t, 2, b.Value())
	assert.Equal(t, 20, c.Value())
}

func TestMultipleLinksToOneTarget(t *testing.T) {
	reg, _ := newRegistry(t)
	a := binding.NewAttribute(reg, nil, "n", 1)
	b := binding.NewAttribute(reg, nil, "n", 2)
	dst := binding.NewAttribute(reg, nil, "n", 0)

	require.NoError(t, reg.BindTo(a.Ref(), dst.Ref(), nil))
	require.NoError(t, reg.BindTo(b.Ref(), dst.Ref(), nil))
	require.NoError(t, reg.BindTo(b.Ref(), dst.Ref(), nil))
	assert.Equal(t, 3, reg.Len(), "links are never deduplicated")
	assert.Equal(t, 2, dst.Value())

	a.Set(9)
	assert.Equal(t, 9, dst.Value())
}

type widget struct {
	text *binding.Attribute[string]
}

func (w *widget) Attr(name string) (binding.Property, bool) {
	if name == "text" {
		return w.text.Property(), true
	}
	return nil, false
}

func TestConfigurationErrors(t *testing.T) {
	reg, _ := newRegistry(t)
	good := binding.NewAttribute(reg, nil, "n", 0)
	w := &widget{text: binding.NewAttribute(reg, nil, "text", "")}
	n := 3

	tests := []struct {
		name string
		ref  binding.Ref
	}{
		{"not bindable object", binding.Attr(struct{}{}, "value")},
		{"unknown attribute", binding.Attr(w, "value")},
		{"unknown field", binding.Field(&model{}, "Missing")},
		{"unexported field", binding.Field(&model{}, "private")},
		{"not a struct", binding.Field(&n, "Value")},
		{"nil struct", binding.Field[model](nil, "Number")},
		{"nil property", binding.Of(nil)},
		{"empty ref", binding.Ref{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, bind := range []func() error{
				func() error { return reg.BindTo(good.Ref(), tt.ref, nil) },
				func() error { return reg.BindFrom(tt.ref, good.Ref(), nil) },
				func() error { return reg.Bind(good.Ref(), tt.ref, nil, nil) },
			} {
				err := bind()
				require.Error(t, err)
				assert.ErrorIs(t, err, binding.ErrNotBindable)
				assert.Equal(t, errs.KindConfig, errs.KindOf(err))
			}
		})
	}
	assert.Zero(t, reg.Len())

	t.Run("resolvable attribute", func(t *testing.T) {
		require.NoError(t, reg.BindFrom(binding.Attr(w, "text"), good.Ref(), binding.Func(strconv.Itoa)))
		assert.Equal(t, "0", w.text.Value())
	})
}

func TestPropagationErrors(t *testing.T) {
	reg, c := newRegistry(t)
	m := &model{Number: 1}
	healthy := &model{}
	bad := binding.NewAttribute(reg, nil, "n", 0)
	boom := errors.New("boom")

	failing := binding.FuncErr(func(n int) (int, error) {
		if n > 1 {
			return 0, boom
		}
		return n, nil
	})
	require.NoError(t, reg.BindTo(binding.Field(m, "Number"), bad.Ref(), failing))
	require.NoError(t, reg.BindTo(binding.Field(m, "Number"), binding.Field(healthy, "Number"), nil))
	require.Zero(t, c.Len())

	m.Number = 2
	st := reg.Sync()
	assert.Equal(t, 1, st.Errors)
	assert.Equal(t, 1, st.Writes)
	assert.Equal(t, 2, healthy.Number, "other links keep running")
	assert.Equal(t, 2, reg.Len(), "faulting link stays registered")

	st = reg.Sync()
	assert.Equal(t, 1, st.Errors, "fault is visible on every pass")
	require.Equal(t, 2, c.Len())
	for _, e := range c.Errors() {
		assert.ErrorIs(t, e, boom)
		assert.Equal(t, errs.KindPropagation, e.Kind)
	}

	m.Number = 1
	st = reg.Sync()
	assert.Zero(t, st.Errors, "fixed once the source is valid again")
	assert.Equal(t, 1, bad.Value())
}

func TestTransformPanics(t *testing.T) {
	reg, c := newRegistry(t)
	m := &model{}
	dst := binding.NewAttribute(reg, nil, "n", 0)
	require.NoError(t, reg.BindTo(binding.Field(m, "Number"), dst.Ref(), binding.Func(func(n int) int {
		if n == 13 {
			panic("unlucky")
		}
		return n
	})))

	m.Number = 13
	assert.NotPanics(t, func() { reg.Sync() })
	require.Equal(t, 1, c.Len())
	assert.Equal(t, errs.KindPanic, c.Errors()[0].Kind)
}

func TestTypeMismatch(t *testing.T) {
	reg, c := newRegistry(t)
	src := binding.NewAttribute(reg, nil, "n", 1)
	dst := binding.NewAttribute(reg, nil, "s", "")

	require.NoError(t, reg.BindTo(src.Ref(), dst.Ref(), nil))
	require.Equal(t, 1, c.Len())
	assert.ErrorIs(t, c.Errors()[0], binding.ErrType)
	assert.Equal(t, "", dst.Value())
}

func TestDanglingLinks(t *testing.T) {
	t.Run("destroyed owner", func(t *testing.T) {
		reg, c := newRegistry(t)
		o := &owner{alive: true}
		a := binding.NewAttribute(reg, o, "n", 1)
		m := &model{}

		require.NoError(t, reg.Bind(a.Ref(), binding.Field(m, "Number"), nil, nil))
		require.Equal(t, 2, reg.Len())

		o.alive = false
		m.Number = 42
		var st binding.Stats
		assert.NotPanics(t, func() { st = reg.Sync() })
		assert.Equal(t, 2, st.Pruned)
		assert.Zero(t, st.Writes)
		assert.Zero(t, reg.Len())
		assert.Zero(t, c.Len())
		assert.Equal(t, 0, a.Value(), "destroyed side is not written")

		assert.Zero(t, reg.Sync().Links)
	})

	t.Run("collected struct", func(t *testing.T) {
		reg, c := newRegistry(t)
		dst := binding.NewAttribute(reg, nil, "n", 0)

		func() {
			m := &model{Number: 8}
			require.NoError(t, reg.BindFrom(dst.Ref(), binding.Field(m, "Number"), nil))
		}()
		assert.Equal(t, 8, dst.Value())

		require.Eventually(t, func() bool {
			runtime.GC()
			reg.Sync()
			return reg.Len() == 0
		}, time.Second, 10*time.Millisecond)
		assert.Zero(t, c.Len())
	})

	t.Run("binding a destroyed owner", func(t *testing.T) {
		reg, _ := newRegistry(t)
		a := binding.NewAttribute(reg, &owner{}, "n", 1)
		b := binding.NewAttribute(reg, nil, "n", 1)
		err := reg.BindTo(a.Ref(), b.Ref(), nil)
		assert.ErrorIs(t, err, binding.ErrGone)
		assert.Equal(t, errs.KindConfig, errs.KindOf(err))
	})
}

func TestEntry(t *testing.T) {
	reg, _ := newRegistry(t)
	data := map[string]int{"volume": 3}
	a := binding.NewAttribute(reg, nil, "volume", 0)

	require.NoError(t, reg.Bind(a.Ref(), binding.Entry(&data, "volume"), nil, nil))
	assert.Equal(t, 3, a.Value())

	a.Set(4)
	assert.Equal(t, 4, data["volume"])

	data["volume"] = 11
	reg.Sync()
	assert.Equal(t, 11, a.Value())

	var empty map[string]string
	require.NoError(t, reg.BindTo(binding.NewAttribute(reg, nil, "s", "x").Ref(), binding.Entry(&empty, "k"), nil))
	assert.Equal(t, "x", empty["k"])
}

func TestStartStop(t *testing.T) {
	reg, _ := newRegistry(t, binding.WithInterval(5*time.Millisecond))
	assert.Equal(t, 5*time.Millisecond, reg.Interval())

	m := &model{}
	a := binding.NewAttribute(reg, nil, "n", 0)
	require.NoError(t, reg.BindFrom(a.Ref(), binding.Field(m, "Number"), nil))

	reg.Start(context.Background())
	reg.Start(context.Background())

	require.Eventually(t, func() bool { return reg.Passes() > 0 }, time.Second, time.Millisecond)
	reg.Stop()
	reg.Stop()

	m.Number = 99
	passes := reg.Passes()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, passes, reg.Passes(), "no passes after stop")

	st, ok := reg.LastStats()
	require.True(t, ok)
	assert.Equal(t, 1, st.Links)
}

func TestStartStopsWithContext(t *testing.T) {
	reg, _ := newRegistry(t, binding.WithInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	reg.Start(ctx)
	require.Eventually(t, func() bool { return reg.Passes() > 0 }, time.Second, time.Millisecond)
	cancel()
	reg.Stop()
}

func TestConcurrentBindAndSync(t *testing.T) {
	reg, _ := newRegistry(t)
	src := binding.NewAttribute(reg, nil, "n", 0)

	var wg sync.WaitGroup
	targets := make([]*binding.Attribute[int], 50)
	for i := range targets {
		targets[i] = binding.NewAttribute(reg, nil, fmt.Sprintf("t%d", i), 0)
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, dst := range targets {
			assert.NoError(t, reg.BindTo(src.Ref(), dst.Ref(), nil))
		}
	}()
	go func() {
		defer wg.Done()
		for range 50 {
			reg.Sync()
		}
	}()
	wg.Wait()

	src.Set(1)
	for _, dst := range targets {
		assert.Equal(t, 1, dst.Value())
	}
	assert.Equal(t, 50, reg.Len())
}

func TestReset(t *testing.T) {
	reg, _ := newRegistry(t)
	a := binding.NewAttribute(reg, nil, "n", 0)
	b := binding.NewAttribute(reg, nil, "n", 0)
	require.NoError(t, reg.Bind(a.Ref(), b.Ref(), nil, nil))

	reg.Reset()
	assert.Zero(t, reg.Len())
	a.Set(1)
	assert.Equal(t, 0, b.Value())
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "to", binding.To.String())
	assert.Equal(t, "from", binding.From.String())
	assert.Equal(t, "both", binding.Both.String())
	assert.Equal(t, "unknown", binding.Direction(0).String())
}

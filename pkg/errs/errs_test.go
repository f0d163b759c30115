package errs_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/delaneyj/bindparty/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind errs.Kind
		want string
	}{
		{errs.KindUnknown, "unknown"},
		{errs.KindConfig, "config"},
		{errs.KindPropagation, "propagation"},
		{errs.KindRefresh, "refresh"},
		{errs.KindPanic, "panic"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestErrorUnwrap(t *testing.T) {
	sentinel := errors.New("boom")
	err := fmt.Errorf("outer: %w", errs.E("binding.Sync", errs.KindPropagation, sentinel))

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, errs.KindPropagation, errs.KindOf(err))
	assert.Equal(t, errs.KindUnknown, errs.KindOf(sentinel))
	assert.Contains(t, err.Error(), "binding.Sync [propagation]: boom")
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer errs.Recover("test.op", &err)
		panic("kaboom")
	}

	err := run()
	require.Error(t, err)
	assert.Equal(t, errs.KindPanic, errs.KindOf(err))

	var pv *errs.PanicValue
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, "kaboom", pv.Value)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.NotEmpty(t, e.Stack)
}

func TestReportWrapsPlainErrors(t *testing.T) {
	c := &errs.Collector{}
	errs.Report(c, "ui.refresh", errs.KindRefresh, errors.New("nope"))
	errs.Report(c, "ui.refresh", errs.KindRefresh, nil)
	errs.Report(nil, "ui.refresh", errs.KindRefresh, errors.New("dropped"))

	got := c.Errors()
	require.Len(t, got, 1)
	assert.Equal(t, "ui.refresh", got[0].Op)
	assert.Equal(t, errs.KindRefresh, got[0].Kind)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	h := &errs.LogHandler{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	h.Handle(errs.E("binding.Sync", errs.KindPropagation, errors.New("bad transform")))

	out := buf.String()
	assert.Contains(t, out, "op=binding.Sync")
	assert.Contains(t, out, "kind=propagation")
	assert.Contains(t, out, `err="bad transform"`)
}

func TestJoin(t *testing.T) {
	a, b := &errs.Collector{}, &errs.Collector{}
	h := errs.Join(a, nil, b)
	h.Handle(errs.E("x", errs.KindUnknown, errors.New("y")))
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())
}

package textdom

import (
	"fmt"

	"github.com/delaneyj/bindparty/ui"
)

func docOf(b *ui.Builder) *Document {
	d, ok := b.Target().(*Document)
	if !ok {
		panic(fmt.Sprintf("textdom: builder renders into %T", b.Target()))
	}
	return d
}

// Label adds a text element.
func Label(b *ui.Builder, text string) *Element {
	return ui.Add(b, docOf(b).element("label", text))
}

// Column adds a vertical container and builds its children with fn.
func Column(b *ui.Builder, fn func() error) (*Element, error) {
	return container(b, "column", fn)
}

// Row adds a horizontal container and builds its children with fn.
func Row(b *ui.Builder, fn func() error) (*Element, error) {
	return container(b, "row", fn)
}

func container(b *ui.Builder, kind string, fn func() error) (*Element, error) {
	e := ui.Add(b, docOf(b).element(kind, ""))
	if fn == nil {
		return e, nil
	}
	return e, b.Within(e, fn)
}

// Button adds a clickable element. onClick may be nil.
func Button(b *ui.Builder, text string, onClick ClickHandler) *Element {
	e := docOf(b).element("button", text)
	e.onClick = onClick
	return ui.Add(b, e)
}

package textdom

import (
	"github.com/valyala/quicktemplate"

	"github.com/delaneyj/bindparty/ui"
)

// render must be called with the document lock held.
func render(e *Element) string {
	bb := quicktemplate.AcquireByteBuffer()
	qw := quicktemplate.AcquireWriter(bb)
	streamElement(qw, e)
	quicktemplate.ReleaseWriter(qw)
	s := string(bb.B)
	quicktemplate.ReleaseByteBuffer(bb)
	return s
}

func streamElement(qw *quicktemplate.Writer, e *Element) {
	qw.N().S("<")
	qw.N().S(e.kind)
	for _, name := range e.sortedProps() {
		switch v := e.props[name].(type) {
		case bool:
			if v {
				qw.N().S(" ")
				qw.E().S(name)
			}
		default:
			qw.N().S(" ")
			qw.E().S(name)
			qw.N().S(`="`)
			qw.E().V(v)
			qw.N().S(`"`)
		}
	}
	qw.N().S(">")
	qw.E().S(e.text)
	for _, s := range e.slots {
		if s.name != ui.DefaultSlot {
			qw.N().S(`<template slot="`)
			qw.E().S(s.name)
			qw.N().S(`">`)
		}
		for _, c := range s.children {
			streamElement(qw, c)
		}
		if s.name != ui.DefaultSlot {
			qw.N().S("</template>")
		}
	}
	qw.N().S("</")
	qw.N().S(e.kind)
	qw.N().S(">")
}

package ui

// Builder attaches new elements to the current parent of its context stack.
// The session owns one Builder for its steps; asynchronous refreshes get a
// detached one that collects top-level elements until they are swapped in.
type Builder struct {
	session *Session
	stack   *Stack
}

// Session returns the session the builder belongs to.
func (b *Builder) Session() *Session {
	return b.session
}

// Target returns the element system of the builder's session.
func (b *Builder) Target() Target {
	return b.session.target
}

// Stack returns the builder's context stack.
func (b *Builder) Stack() *Stack {
	return b.stack
}

// Add attaches n to the current parent and returns it.
func (b *Builder) Add(n Node) Node {
	f, ok := b.stack.Current()
	if !ok {
		f = Frame{Container: b.session.root, Slot: DefaultSlot}
	}
	if buf, ok := f.Container.(*buffer); ok {
		buf.add(f.Slot, n)
		return n
	}
	b.session.target.Attach(f.Container, f.Slot, n)
	return n
}

// Within runs fn with container as the current parent.
func (b *Builder) Within(container Node, fn func() error) error {
	return b.stack.With(container, DefaultSlot, fn)
}

// WithinSlot runs fn with the named slot of container as the current parent.
func (b *Builder) WithinSlot(container Node, slot string, fn func() error) error {
	return b.stack.With(container, slot, fn)
}

// Add attaches n through b and returns it with its concrete type.
func Add[N Node](b *Builder, n N) N {
	b.Add(n)
	return n
}

type placement struct {
	slot string
	node Node
}

// buffer collects the top-level elements of a body that runs off-session.
type buffer struct {
	placed []placement
}

func (b *buffer) Alive() bool { return true }

func (b *buffer) add(slot string, n Node) {
	b.placed = append(b.placed, placement{slot: slot, node: n})
}

func (b *buffer) attachTo(t Target, container Node) {
	for _, p := range b.placed {
		t.Attach(container, p.slot, p.node)
	}
}

package ui

// DefaultSlot is the slot used when none is named.
const DefaultSlot = "default"

// Node is an element produced by a Target. The engine treats nodes as
// opaque apart from liveness: a node that is no longer Alive has been
// removed from its tree and must not receive new children.
type Node interface {
	Alive() bool
}

// Target is the element system the engine renders into.
//
// Implementations must tolerate NewContainer and Attach on detached nodes
// being called from goroutines other than the session's, since asynchronous
// refreshes build their content off the session before swapping it in.
type Target interface {
	// NewContainer creates a detached container node of the given kind.
	NewContainer(kind string) Node
	// Clear removes every child of container and releases them.
	Clear(container Node)
	// Attach inserts node into the named slot of container.
	Attach(container Node, slot string, node Node)
	// RequestUpdate marks node dirty for delivery to the display.
	RequestUpdate(node Node)
}

// Flusher is implemented by targets that deliver dirty nodes in batches.
// Sessions flush after every step.
type Flusher interface {
	Flush()
}

// PropSetter is a node whose render properties can be changed.
type PropSetter interface {
	Node
	SetProp(name string, value any)
}

// Holder is a node that keeps companion objects reachable for as long as it
// is alive. Bindable state attached to a node is only weakly referenced by
// the binding registry, so it has to be held by the node it belongs to.
type Holder interface {
	Hold(key string, v any)
}

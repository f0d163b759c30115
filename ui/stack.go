package ui

import "errors"

// ErrEmptyStack is returned by Pop on a stack without frames.
var ErrEmptyStack = errors.New("context stack is empty")

// Frame is one level of declarative nesting: the container new elements
// attach to and the slot they go in.
type Frame struct {
	Container Node
	Slot      string
}

// Stack tracks the current parent during declarative construction.
//
// A Stack belongs to one execution flow and is not safe for concurrent use;
// every Builder owns its own.
type Stack struct {
	frames []Frame
}

// NewStack creates a stack holding the given frames, bottom first.
func NewStack(frames ...Frame) *Stack {
	return &Stack{frames: append([]Frame(nil), frames...)}
}

// Push makes container the current parent. An empty slot means DefaultSlot.
func (s *Stack) Push(container Node, slot string) {
	if slot == "" {
		slot = DefaultSlot
	}
	s.frames = append(s.frames, Frame{Container: container, Slot: slot})
}

// Pop removes and returns the current frame.
func (s *Stack) Pop() (Frame, error) {
	n := len(s.frames)
	if n == 0 {
		return Frame{}, ErrEmptyStack
	}
	f := s.frames[n-1]
	s.frames[n-1] = Frame{}
	s.frames = s.frames[:n-1]
	return f, nil
}

// Current returns the innermost frame.
func (s *Stack) Current() (Frame, bool) {
	if len(s.frames) == 0 {
		return Frame{}, false
	}
	return s.frames[len(s.frames)-1], true
}

// Depth returns the number of frames.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// With runs fn with container as the current parent. The frame is removed
// when fn returns, fails or panics, together with any frame fn pushed and
// did not pop.
func (s *Stack) With(container Node, slot string, fn func() error) error {
	depth := len(s.frames)
	s.Push(container, slot)
	defer s.unwind(depth)
	return fn()
}

func (s *Stack) unwind(depth int) {
	for len(s.frames) > depth {
		s.Pop()
	}
}

package runtime

import (
	"fmt"
)

// This module implements a stack of call frames.
// Call frames are used by the interpreter to allocate local storage
// for the activations of routines, processes and main.

// Frame is a call frame, representing a piece of memory for an activation.
// Name is the name of the routine (or process) the frame has been created for;
// it selects the frame's layout in the program.
type Frame struct {
	Name     string
	Slots    []int64
	ReturnPC int
	Parent   *Frame
}

// NewFrame creates a new call frame with size zero-initialized slots.
func NewFrame(nm string, size int) *Frame {
	return &Frame{
		Name:     nm,
		Slots:    make([]int64, size),
		ReturnPC: -1,
	}
}

func (f *Frame) String() string {
	return fmt.Sprintf("<frame %s[%d] -> %d>", f.Name, len(f.Slots), f.ReturnPC)
}

// IsRoot is a predicate: Is this a root frame?
func (f *Frame) IsRoot() bool {
	return (f.Parent == nil)
}

// ---------------------------------------------------------------------------

// FrameStack is a call stack of frames.
type FrameStack struct {
	frameTOS *Frame
	depth    int
}

// Current gets the current frame of a stack (TOS).
func (fst *FrameStack) Current() *Frame {
	if fst.frameTOS == nil {
		panic("attempt to access frame from empty stack")
	}
	return fst.frameTOS
}

// Depth returns the number of frames on the stack.
func (fst *FrameStack) Depth() int {
	return fst.depth
}

// PushNewFrame pushes a new frame as TOS, having the recent TOS as its
// parent.
func (fst *FrameStack) PushNewFrame(nm string, size int, returnPC int) *Frame {
	f := NewFrame(nm, size)
	f.ReturnPC = returnPC
	f.Parent = fst.frameTOS
	fst.frameTOS = f
	fst.depth++
	tracer().P("frame", nm).Debugf("pushing new frame")
	return f
}

// PopFrame pops the top-most frame. Returns the popped frame.
func (fst *FrameStack) PopFrame() *Frame {
	if fst.frameTOS == nil {
		panic("attempt to pop frame from empty call stack")
	}
	f := fst.frameTOS
	tracer().Debugf("popping frame [%s]", f.Name)
	fst.frameTOS = fst.frameTOS.Parent
	fst.depth--
	return f
}

// Each iterates over the frames, starting with TOS.
func (fst *FrameStack) Each(mapper func(*Frame)) {
	for f := fst.frameTOS; f != nil; f = f.Parent {
		mapper(f)
	}
}

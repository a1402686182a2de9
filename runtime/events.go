package runtime

import (
	"fmt"
	"io"
)

// EventKind classifies side effects of an instruction.
type EventKind int8

// Events are produced by output, input and drawing instructions.
const (
	NoEvent EventKind = iota
	OutputEvent
	InputEvent
	DrawEvent
)

func (k EventKind) String() string {
	switch k {
	case OutputEvent:
		return "output"
	case InputEvent:
		return "input"
	case DrawEvent:
		return "draw"
	}
	return "none"
}

// DrawKind is the kind of a drawing command.
type DrawKind int8

// Drawing commands.
const (
	CmdLine DrawKind = iota
	CmdColor
	CmdClear
)

// DrawCommand is a request to the drawing collaborator.
type DrawCommand struct {
	Kind           DrawKind
	X1, Y1, X2, Y2 int64
	Color          int64
}

func (cmd DrawCommand) String() string {
	switch cmd.Kind {
	case CmdLine:
		return fmt.Sprintf("line (%d,%d)-(%d,%d)", cmd.X1, cmd.Y1, cmd.X2, cmd.Y2)
	case CmdColor:
		return fmt.Sprintf("color %d", cmd.Color)
	}
	return "clear"
}

// Event is a side effect of a single step, reported to the inspection view.
type Event struct {
	Kind   EventKind
	Thread int
	Text   string      // output text
	Value  int64       // value read by input
	Draw   DrawCommand // for draw events
}

// --- Collaborators -------------------------------------------------------------

// Output receives text written by a thread.
type Output interface {
	Write(thread int, text string) error
}

// Input delivers integers to read instructions.
type Input interface {
	ReadInt(thread int) (int64, error)
}

// Drawer executes drawing commands. The runtime only waits for the
// acknowledgement, not for any rendering.
type Drawer interface {
	Draw(cmd DrawCommand) error
}

// OutputFunc adapts a function to the Output interface.
type OutputFunc func(thread int, text string) error

// Write is part of interface Output.
func (f OutputFunc) Write(thread int, text string) error {
	return f(thread, text)
}

// InputFunc adapts a function to the Input interface.
type InputFunc func(thread int) (int64, error)

// ReadInt is part of interface Input.
func (f InputFunc) ReadInt(thread int) (int64, error) {
	return f(thread)
}

// WriterOutput returns an Output writing all text to w, regardless of the
// thread.
func WriterOutput(w io.Writer) Output {
	return OutputFunc(func(_ int, text string) error {
		_, err := io.WriteString(w, text)
		return err
	})
}

type discard struct{}

func (discard) Write(int, string) error { return nil }
func (discard) Draw(DrawCommand) error  { return nil }

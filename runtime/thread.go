package runtime

import (
	"fmt"

	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/gobaci/program"
)

// ThreadState is the scheduling state of a thread.
type ThreadState int8

// Thread states. Threads start Ready; only the scheduler flips between
// Ready and Running. A running thread may block itself or terminate.
const (
	Ready ThreadState = iota
	Running
	Blocked
	Terminated
)

func (s ThreadState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("ThreadState(%d)", int8(s))
}

// BlockKind tells what kind of object a thread is waiting for.
type BlockKind int8

// Kinds of synchronization objects a thread may block on.
const (
	NotBlocked BlockKind = iota
	OnSemaphore
	OnMonitor
	OnCondition
)

func (k BlockKind) String() string {
	switch k {
	case OnSemaphore:
		return "semaphore"
	case OnMonitor:
		return "monitor"
	case OnCondition:
		return "condition"
	}
	return "-"
}

// BlockReason references the synchronization object a blocked thread is
// waiting for.
type BlockReason struct {
	Kind BlockKind
	ID   int
	Name string
}

func (r BlockReason) String() string {
	if r.Kind == NotBlocked {
		return "-"
	}
	return fmt.Sprintf("%s %s", r.Kind, r.Name)
}

// Thread is the execution context of a single logical process: program
// counter, operand stack, call frames and scheduling state.
type Thread struct {
	id     int
	name   string
	state  ThreadState
	reason BlockReason
	pc     int
	stack  []int64
	frames FrameStack
	fault  *gobaci.RuntimeError
	steps  int
}

// NewThread creates a thread in state Ready, starting at entry.
func NewThread(id int, entry program.Entry) *Thread {
	th := &Thread{
		id:   id,
		name: entry.Name,
		pc:   entry.Entry,
	}
	th.frames.PushNewFrame(entry.Name, entry.FrameSize, -1)
	return th
}

// ID returns the thread's id. The main thread has id 0.
func (th *Thread) ID() int { return th.id }

// Name returns the name of the thread's process block.
func (th *Thread) Name() string { return th.name }

// State returns the thread's scheduling state.
func (th *Thread) State() ThreadState { return th.state }

// Reason returns what a blocked thread is waiting for.
func (th *Thread) Reason() BlockReason { return th.reason }

// PC returns the index of the next instruction to execute.
func (th *Thread) PC() int { return th.pc }

// Fault returns the error which terminated the thread, if any.
func (th *Thread) Fault() *gobaci.RuntimeError { return th.fault }

// Steps returns the number of instructions the thread has executed.
func (th *Thread) Steps() int { return th.steps }

// Depth returns the number of call frames.
func (th *Thread) Depth() int { return th.frames.Depth() }

func (th *Thread) String() string {
	return fmt.Sprintf("<thread %d %s %s pc=%d>", th.id, th.name, th.state, th.pc)
}

// IsAlive is a predicate: has the thread not terminated yet?
func (th *Thread) IsAlive() bool {
	return th.state != Terminated
}

func (th *Thread) setState(s ThreadState) {
	if th.state != s {
		tracer().Debugf("thread %d: %s → %s", th.id, th.state, s)
	}
	th.state = s
}

func (th *Thread) block(reason BlockReason) {
	th.reason = reason
	th.setState(Blocked)
}

// wake makes a blocked thread ready again.
func (th *Thread) wake() {
	th.reason = BlockReason{}
	th.setState(Ready)
}

func (th *Thread) terminate(err *gobaci.RuntimeError) {
	th.fault = err
	th.reason = BlockReason{}
	th.setState(Terminated)
}

// --- Operand stack ------------------------------------------------------------

type stackFault struct{}

func (stackFault) Error() string { return "operand stack underflow" }

func (th *Thread) push(v int64) {
	th.stack = append(th.stack, v)
}

func (th *Thread) pop() (int64, error) {
	n := len(th.stack)
	if n == 0 {
		return 0, stackFault{}
	}
	v := th.stack[n-1]
	th.stack = th.stack[:n-1]
	return v, nil
}

func (th *Thread) top() (int64, error) {
	if len(th.stack) == 0 {
		return 0, stackFault{}
	}
	return th.stack[len(th.stack)-1], nil
}

func (th *Thread) memory(globals []int64) program.Memory {
	return program.Memory{Globals: globals, Frame: th.frames.Current().Slots}
}

package runtime

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/gobaci/program"
)

// DefaultMaxCallDepth bounds the number of nested routine activations of a
// thread.
const DefaultMaxCallDepth = 1000

// StepResult is the outcome of executing a single instruction: the new state
// of the thread, a side effect (if any) and a runtime error (if any).
type StepResult struct {
	State ThreadState
	Event Event
	Err   *gobaci.RuntimeError
}

// Interpreter executes instructions against the shared state of a Machine.
// It is not safe for concurrent use; a run drives it from a single goroutine.
type Interpreter struct {
	machine     *Machine
	out         Output
	in          Input
	draw        Drawer
	fatalFaults bool
	maxDepth    int
}

// NewInterpreter creates an interpreter operating on m. Output and drawing
// requests are discarded and read instructions fail until collaborators are
// set.
func NewInterpreter(m *Machine) *Interpreter {
	return &Interpreter{
		machine:  m,
		out:      discard{},
		draw:     discard{},
		maxDepth: DefaultMaxCallDepth,
	}
}

// SetOutput sets the collaborator for write instructions.
func (ip *Interpreter) SetOutput(out Output) {
	if out == nil {
		out = discard{}
	}
	ip.out = out
}

// SetInput sets the collaborator for read instructions.
func (ip *Interpreter) SetInput(in Input) {
	ip.in = in
}

// SetDrawer sets the drawing collaborator.
func (ip *Interpreter) SetDrawer(d Drawer) {
	if d == nil {
		d = discard{}
	}
	ip.draw = d
}

// SetFatalFaults switches off fault isolation: every runtime error stops the
// whole run instead of the offending thread only.
func (ip *Interpreter) SetFatalFaults(fatal bool) {
	ip.fatalFaults = fatal
}

// SetMaxCallDepth limits the nesting of routine calls per thread.
func (ip *Interpreter) SetMaxCallDepth(depth int) {
	if depth < 1 {
		depth = DefaultMaxCallDepth
	}
	ip.maxDepth = depth
}

// fault is an error raised by an instruction, before it is turned into a
// RuntimeError.
type fault struct {
	kind  gobaci.ErrKind
	fatal bool
	msg   string
}

func faultf(kind gobaci.ErrKind, format string, args ...interface{}) *fault {
	return &fault{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func fatalf(kind gobaci.ErrKind, format string, args ...interface{}) *fault {
	return &fault{kind: kind, fatal: true, msg: fmt.Sprintf(format, args...)}
}

// Execute performs exactly one fetch-decode-execute cycle for a thread.
// The thread is expected to be Running; after Execute it is Running (if it
// may continue), Blocked or Terminated.
func (ip *Interpreter) Execute(prog *program.Program, th *Thread) StepResult {
	pc := th.pc
	if pc == prog.Len() { // ran past the last instruction
		tracer().Debugf("thread %d ran off the end of code", th.id)
		ip.terminate(th, nil)
		return StepResult{State: th.state}
	}
	instr, ok := prog.Instruction(pc)
	if !ok {
		f := fatalf(gobaci.InvalidAddress, "pc %d outside of code with %d instructions", pc, prog.Len())
		return ip.raise(th, pc, 0, f)
	}
	th.steps++
	th.pc = pc + 1
	ev, f := ip.exec(prog, th, instr)
	if f != nil {
		return ip.raise(th, pc, instr.Line, f)
	}
	ev.Thread = th.id
	return StepResult{State: th.state, Event: ev}
}

func (ip *Interpreter) raise(th *Thread, pc, line int, f *fault) StepResult {
	err := &gobaci.RuntimeError{
		Reason: f.kind,
		Thread: th.id,
		PC:     pc,
		Line:   line,
		Msg:    f.msg,
		Fatal:  f.fatal || ip.fatalFaults,
	}
	tracer().Errorf("%v", err)
	ip.terminate(th, err)
	return StepResult{State: th.state, Err: err}
}

func (ip *Interpreter) terminate(th *Thread, err *gobaci.RuntimeError) {
	th.terminate(err)
	ip.machine.release(th)
}

func (ip *Interpreter) exec(prog *program.Program, th *Thread, instr program.Instruction) (Event, *fault) {
	var ev Event
	switch op := instr.Op; {
	case op == program.Nop:
	case op == program.Push:
		th.push(instr.Imm)
	case op == program.Pop:
		if _, err := th.pop(); err != nil {
			return ev, faultf(gobaci.StackFault, "%v", err)
		}
	case op == program.Dup:
		v, err := th.top()
		if err != nil {
			return ev, faultf(gobaci.StackFault, "%v", err)
		}
		th.push(v)
	case op == program.Load, op == program.Store, op == program.LoadIdx, op == program.StoreIdx:
		return ev, ip.access(prog, th, instr)
	case op.IsUnary() || op.IsOperator():
		return ev, ip.arithmetic(th, op)
	case op == program.Jump, op == program.JumpFalse, op == program.Call, op == program.Return:
		return ev, ip.branch(prog, th, instr)
	case op.UsesSync():
		return ev, ip.synchronize(th, instr)
	case op == program.Write, op == program.WriteStr, op == program.Writeln, op == program.Read:
		return ip.io(th, instr)
	case op == program.DrawLine, op == program.SetColor, op == program.Clear:
		return ip.drawing(th, op)
	case op == program.Trap:
		return ev, faultf(gobaci.ErrKind(instr.Imm), "%s", instr.Text)
	case op == program.Halt:
		ip.terminate(th, nil)
	default:
		return ev, fatalf(gobaci.InvalidAddress, "illegal opcode %d", uint8(op))
	}
	return ev, nil
}

// --- Memory ---------------------------------------------------------------------

func (ip *Interpreter) access(prog *program.Program, th *Thread, instr program.Instruction) *fault {
	mem := th.memory(ip.machine.globals)
	addr := instr.Addr
	var value int64
	var err error
	switch instr.Op {
	case program.Store:
		if value, err = th.pop(); err != nil {
			return faultf(gobaci.StackFault, "%v", err)
		}
	case program.StoreIdx:
		if value, err = th.pop(); err != nil {
			return faultf(gobaci.StackFault, "%v", err)
		}
		fallthrough
	case program.LoadIdx:
		index, err := th.pop()
		if err != nil {
			return faultf(gobaci.StackFault, "%v", err)
		}
		if index < 0 || index >= int64(instr.Len) {
			return faultf(gobaci.IndexOutOfRange, "index %d outside of array %s[0..%d]", index, addr, instr.Len-1)
		}
		addr.Offset += int(index)
	}
	if instr.Op == program.Load || instr.Op == program.LoadIdx {
		v, err := prog.Resolve(addr, mem)
		if err != nil {
			return fatalf(gobaci.InvalidAddress, "%v", err)
		}
		th.push(v)
		return nil
	}
	cell, err := mem.Cell(addr)
	if err != nil {
		return fatalf(gobaci.InvalidAddress, "%v", err)
	}
	*cell = value
	return nil
}

// --- Arithmetic ----------------------------------------------------------------

func (ip *Interpreter) arithmetic(th *Thread, op program.Opcode) *fault {
	var x, y int64
	var err error
	if !op.IsUnary() {
		if y, err = th.pop(); err != nil {
			return faultf(gobaci.StackFault, "%v", err)
		}
	}
	if x, err = th.pop(); err != nil {
		return faultf(gobaci.StackFault, "%v", err)
	}
	r, err := program.Eval(op, x, y)
	switch {
	case errors.Is(err, program.ErrDivisionByZero):
		return faultf(gobaci.DivisionByZero, "%v", err)
	case errors.Is(err, program.ErrOverflow):
		return faultf(gobaci.ArithmeticOverflow, "%v", err)
	case err != nil:
		return fatalf(gobaci.InvalidAddress, "%v", err)
	}
	th.push(r)
	return nil
}

// --- Control flow -------------------------------------------------------------

func (ip *Interpreter) target(prog *program.Program, instr program.Instruction) (int, *fault) {
	a := instr.Addr
	if a.Kind != program.Code || a.Offset < 0 || a.Offset >= prog.Len() {
		return 0, faultf(gobaci.InvalidJump, "%s target %s outside of code with %d instructions",
			instr.Op, a, prog.Len())
	}
	return a.Offset, nil
}

func (ip *Interpreter) branch(prog *program.Program, th *Thread, instr program.Instruction) *fault {
	switch instr.Op {
	case program.Jump:
		pc, f := ip.target(prog, instr)
		if f != nil {
			return f
		}
		th.pc = pc
	case program.JumpFalse:
		v, err := th.pop()
		if err != nil {
			return faultf(gobaci.StackFault, "%v", err)
		}
		pc, f := ip.target(prog, instr)
		if f != nil {
			return f
		}
		if v == 0 {
			th.pc = pc
		}
	case program.Call:
		pc, f := ip.target(prog, instr)
		if f != nil {
			return f
		}
		if th.frames.Depth() >= ip.maxDepth {
			return faultf(gobaci.StackFault, "call depth exceeds %d", ip.maxDepth)
		}
		argc := int(instr.Imm)
		if argc < 0 || argc > instr.Len || argc > len(th.stack) {
			return faultf(gobaci.StackFault, "cannot pass %d arguments into frame of size %d", argc, instr.Len)
		}
		args := th.stack[len(th.stack)-argc:]
		frame := th.frames.PushNewFrame(instr.Text, instr.Len, th.pc)
		copy(frame.Slots, args)
		th.stack = th.stack[:len(th.stack)-argc]
		th.pc = pc
	case program.Return:
		if th.frames.Current().IsRoot() {
			return faultf(gobaci.StackFault, "return outside of routine")
		}
		frame := th.frames.PopFrame()
		th.pc = frame.ReturnPC
	}
	return nil
}

// --- Synchronization -----------------------------------------------------------

func (ip *Interpreter) synchronize(th *Thread, instr program.Instruction) *fault {
	m := ip.machine
	id := instr.Imm
	switch instr.Op {
	case program.Wait, program.Signal, program.InitSem:
		sem, err := m.semaphore(id)
		if err != nil {
			return fatalf(gobaci.InvalidAddress, "%v", err)
		}
		switch instr.Op {
		case program.Wait:
			if m.semWait(sem, int(id), th) {
				tracer().Debugf("thread %d blocks on semaphore %s", th.id, sem.name)
			}
		case program.Signal:
			if err := m.semSignal(sem); err != nil {
				return faultf(gobaci.SyncMisuse, "%v", err)
			}
		case program.InitSem:
			v, err := th.pop()
			if err != nil {
				return faultf(gobaci.StackFault, "%v", err)
			}
			if err := m.semInit(sem, v); err != nil {
				return faultf(gobaci.SyncMisuse, "%v", err)
			}
		}
	case program.Enter, program.Exit:
		mon, err := m.monitor(id)
		if err != nil {
			return fatalf(gobaci.InvalidAddress, "%v", err)
		}
		if instr.Op == program.Enter {
			blocked, err := m.enter(mon, int(id), th)
			if err != nil {
				return faultf(gobaci.SyncMisuse, "%v", err)
			}
			if blocked {
				tracer().Debugf("thread %d waits for monitor %s", th.id, mon.name)
			}
		} else if err := m.exit(mon, th); err != nil {
			return faultf(gobaci.SyncMisuse, "%v", err)
		}
	default:
		cond, mon, err := m.condition(id)
		if err != nil {
			return fatalf(gobaci.InvalidAddress, "%v", err)
		}
		switch instr.Op {
		case program.CondWait:
			err = m.condWait(cond, mon, int(id), th)
		case program.CondSignal:
			err = m.condSignal(cond, mon, th)
		case program.CondEmpty:
			th.push(truth(cond.waiters.Empty()))
		}
		if err != nil {
			return faultf(gobaci.SyncMisuse, "%v", err)
		}
	}
	return nil
}

func truth(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// --- Input, output and drawing -----------------------------------------------

func (ip *Interpreter) io(th *Thread, instr program.Instruction) (Event, *fault) {
	ev := Event{Kind: OutputEvent}
	switch instr.Op {
	case program.Write:
		v, err := th.pop()
		if err != nil {
			return ev, faultf(gobaci.StackFault, "%v", err)
		}
		if instr.Imm == 1 {
			ev.Text = strconv.FormatBool(v != 0)
		} else {
			ev.Text = strconv.FormatInt(v, 10)
		}
	case program.WriteStr:
		ev.Text = instr.Text
	case program.Writeln:
		ev.Text = "\n"
	case program.Read:
		ev.Kind = InputEvent
		if ip.in == nil {
			return ev, faultf(gobaci.IOFault, "no input available")
		}
		v, err := ip.in.ReadInt(th.id)
		if err != nil {
			return ev, faultf(gobaci.IOFault, "read failed: %v", err)
		}
		ev.Value = v
		th.push(v)
		return ev, nil
	}
	if err := ip.out.Write(th.id, ev.Text); err != nil {
		return ev, faultf(gobaci.IOFault, "write failed: %v", err)
	}
	return ev, nil
}

func (ip *Interpreter) drawing(th *Thread, op program.Opcode) (Event, *fault) {
	var cmd DrawCommand
	switch op {
	case program.DrawLine:
		var coords [4]int64
		for i := 3; i >= 0; i-- {
			v, err := th.pop()
			if err != nil {
				return Event{}, faultf(gobaci.StackFault, "%v", err)
			}
			coords[i] = v
		}
		cmd = DrawCommand{Kind: CmdLine, X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}
	case program.SetColor:
		v, err := th.pop()
		if err != nil {
			return Event{}, faultf(gobaci.StackFault, "%v", err)
		}
		cmd = DrawCommand{Kind: CmdColor, Color: v}
	case program.Clear:
		cmd = DrawCommand{Kind: CmdClear}
	}
	if err := ip.draw.Draw(cmd); err != nil {
		return Event{}, faultf(gobaci.DrawFault, "%s failed: %v", cmd, err)
	}
	return Event{Kind: DrawEvent, Draw: cmd}, nil
}

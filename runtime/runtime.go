/*
Package runtime implements the execution engine for compiled BACI programs:
threads, the shared VM state, an interpreter and a scheduler.

Concurrency is simulated. A single goroutine drives a run, and the scheduler
interleaves the logical threads of a program by executing one instruction
per step. Semaphores and monitors are modelled as state transitions of
threads, never by host synchronization primitives. Interleavings are
deterministic: running the same program twice yields the same sequence of
thread states, unless randomized scheduling has been requested, in which
case the seed determines the interleaving.

Threads

There is one thread for the main block (id 0) and one for every process
block of a program, in order of declaration. A thread is Ready, Running,
Blocked or Terminated. Only the scheduler flips between Ready and Running;
a thread blocks or terminates by executing an instruction.

Faults

Runtime errors local to a thread (arithmetic faults, index errors, misuse of
synchronization objects, bad jump targets) terminate the offending thread
only. Errors which indicate a corrupt program, such as addresses outside of
the data image, stop the whole run. A deadlock is an outcome, not an error.

For a thorough discussion of an interpreter's runtime environment, refer to
"Language Implementation Patterns" by Terence Parr.

----------------------------------------------------------------------

BSD License

Copyright (c) 2017-21, Norbert Pillmayer

All rights reserved.

Redistribution and use in source and binary forms, with or without
modification, are permitted provided that the following conditions
are met:

1. Redistributions of source code must retain the above copyright
notice, this list of conditions and the following disclaimer.

2. Redistributions in binary form must reproduce the above copyright
notice, this list of conditions and the following disclaimer in the
documentation and/or other materials provided with the distribution.

3. Neither the name of this software or the names of its contributors
may be used to endorse or promote products derived from this software
without specific prior written permission.

THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
"AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
HOLDER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
(INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE. */
package runtime

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/gobaci/program"
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'baci.runtime'.
func tracer() tracing.Trace {
	return tracing.Select("baci.runtime")
}

// State is the lifecycle state of a Runtime.
type State int32

// Runtime states. A runtime is Idle after creation or reset, RunActive while
// Run is active, Paused after Run has been stopped between two steps, and
// Halted after the program has terminated, deadlocked or faulted.
const (
	Idle State = iota
	RunActive
	Paused
	Halted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RunActive:
		return "running"
	case Paused:
		return "paused"
	case Halted:
		return "halted"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// RunOutcome classifies the end of a run.
type RunOutcome int8

// Outcomes of Run. Inconclusive means the step limit has been reached
// before the program terminated.
const (
	RunCompleted RunOutcome = iota
	RunDeadlocked
	RunFaulted
	RunInconclusive
	RunStopped
)

func (o RunOutcome) String() string {
	switch o {
	case RunCompleted:
		return "completed"
	case RunDeadlocked:
		return "deadlocked"
	case RunFaulted:
		return "faulted"
	case RunInconclusive:
		return "inconclusive"
	case RunStopped:
		return "stopped"
	}
	return fmt.Sprintf("RunOutcome(%d)", int8(o))
}

// Result is the result of Run. Err is set for RunFaulted only;
// ThreadErrors lists errors which terminated single threads.
type Result struct {
	Outcome      RunOutcome
	Steps        int
	Err          *gobaci.RuntimeError
	ThreadErrors []*gobaci.RuntimeError
	Blocked      []int
	Snapshot     Snapshot
}

// TraceStep records the states of all threads after a step.
type TraceStep struct {
	Step   int
	Thread int
	States []ThreadState
}

// --- Options -------------------------------------------------------------------

// Option configures a Runtime.
type Option func(*Runtime)

// WithStepLimit bounds the number of steps of Run. Zero means no limit.
func WithStepLimit(n int) Option {
	return func(rt *Runtime) { rt.limit = n }
}

// WithQuantum sets the number of consecutive steps granted to a thread.
func WithQuantum(n int) Option {
	return func(rt *Runtime) { rt.sched.SetQuantum(n) }
}

// WithRandom selects randomized interleaving with a given seed.
func WithRandom(seed int64) Option {
	return func(rt *Runtime) { rt.sched.SetRandom(seed) }
}

// WithFatalFaults makes every runtime error stop the whole run.
func WithFatalFaults(fatal bool) Option {
	return func(rt *Runtime) { rt.interp.SetFatalFaults(fatal) }
}

// WithMaxCallDepth limits the nesting of routine calls.
func WithMaxCallDepth(depth int) Option {
	return func(rt *Runtime) { rt.interp.SetMaxCallDepth(depth) }
}

// WithOutput sets the collaborator for write instructions.
func WithOutput(out Output) Option {
	return func(rt *Runtime) { rt.interp.SetOutput(out) }
}

// WithInput sets the collaborator for read instructions.
func WithInput(in Input) Option {
	return func(rt *Runtime) { rt.interp.SetInput(in) }
}

// WithDrawer sets the drawing collaborator.
func WithDrawer(d Drawer) Option {
	return func(rt *Runtime) { rt.interp.SetDrawer(d) }
}

// WithTrace switches recording of per-step thread states on or off.
func WithTrace(on bool) Option {
	return func(rt *Runtime) { rt.recording = on }
}

// --- Runtime -------------------------------------------------------------------

// Runtime bundles a program with the interpreter and scheduler of a run.
// Step, Run and Reset must be called from a single goroutine; Pause and
// State may be called from any goroutine.
type Runtime struct {
	prog         *program.Program
	machine      *Machine
	interp       *Interpreter
	sched        *Scheduler
	state        atomic.Int32
	pause        atomic.Bool
	limit        int
	steps        int
	recording    bool
	trace        []TraceStep
	threadErrors []*gobaci.RuntimeError
}

// New creates a runtime for prog, ready to run.
func New(prog *program.Program, opts ...Option) *Runtime {
	rt := &Runtime{prog: prog}
	rt.machine = NewMachine(prog)
	rt.interp = NewInterpreter(rt.machine)
	rt.sched = NewScheduler(prog)
	for _, opt := range opts {
		opt(rt)
	}
	rt.Reset()
	return rt
}

// Reset restores the initial state of the program. Options stay in effect.
func (rt *Runtime) Reset() {
	rt.machine.Reset()
	rt.sched.Reset()
	for _, th := range rt.sched.Threads() {
		rt.machine.Attach(th)
	}
	rt.steps = 0
	rt.trace = nil
	rt.threadErrors = nil
	rt.pause.Store(false)
	rt.state.Store(int32(Idle))
	tracer().Debugf("runtime reset, %d threads", rt.sched.Live())
}

// Program returns the program of the runtime.
func (rt *Runtime) Program() *program.Program {
	return rt.prog
}

// State returns the lifecycle state.
func (rt *Runtime) State() State {
	return State(rt.state.Load())
}

// Steps returns the number of instructions executed since the last reset.
func (rt *Runtime) Steps() int {
	return rt.steps
}

// Pause asks a running Run to stop before its next step.
func (rt *Runtime) Pause() {
	rt.pause.Store(true)
}

// ThreadErrors returns the errors which terminated single threads.
func (rt *Runtime) ThreadErrors() []*gobaci.RuntimeError {
	return append([]*gobaci.RuntimeError(nil), rt.threadErrors...)
}

// Trace returns the recorded thread states, one entry per step. Recording
// has to be switched on with WithTrace.
func (rt *Runtime) Trace() []TraceStep {
	return append([]TraceStep(nil), rt.trace...)
}

// Seed returns the seed of randomized scheduling and whether it is active.
func (rt *Runtime) Seed() (int64, bool) {
	return rt.sched.Seed()
}

// Snapshot returns a copy of the current state of the run.
func (rt *Runtime) Snapshot() Snapshot {
	return takeSnapshot(rt.machine, rt.sched.Threads(), rt.steps)
}

// Step executes a single instruction of the next thread.
func (rt *Runtime) Step() Outcome {
	out := rt.sched.Step(rt.interp)
	switch out.Kind {
	case Advanced:
		rt.steps++
		if out.Err != nil {
			rt.threadErrors = append(rt.threadErrors, out.Err)
		}
		if rt.recording {
			rt.record(out.Thread)
		}
		if rt.State() == Idle {
			rt.state.Store(int32(Paused))
		}
	case RuntimeFault:
		if rt.State() != Halted {
			rt.steps++
			if rt.recording {
				rt.record(out.Thread)
			}
		}
		rt.state.Store(int32(Halted))
	default:
		rt.state.Store(int32(Halted))
	}
	return out
}

func (rt *Runtime) record(thread int) {
	threads := rt.sched.Threads()
	states := make([]ThreadState, len(threads))
	for i, th := range threads {
		states[i] = th.state
	}
	rt.trace = append(rt.trace, TraceStep{Step: rt.steps, Thread: thread, States: states})
}

// Run steps until all threads have terminated, the program deadlocks or
// faults, the step limit is reached, the context is cancelled or Pause is
// called. Cancellation takes effect between two steps only.
func (rt *Runtime) Run(ctx context.Context) Result {
	rt.pause.Store(false)
	rt.state.Store(int32(RunActive))
	res := Result{Outcome: RunStopped}
	for {
		if ctx.Err() != nil || rt.pause.Load() {
			rt.state.Store(int32(Paused))
			break
		}
		if rt.limit > 0 && rt.steps >= rt.limit {
			res.Outcome = RunInconclusive
			rt.state.Store(int32(Paused))
			break
		}
		out := rt.Step()
		if out.Kind == Advanced {
			continue
		}
		switch out.Kind {
		case AllTerminated:
			res.Outcome = RunCompleted
		case Deadlocked:
			res.Outcome = RunDeadlocked
			res.Blocked = out.Blocked
		case RuntimeFault:
			res.Outcome = RunFaulted
			res.Err = out.Err
		}
		break
	}
	res.Steps = rt.steps
	res.ThreadErrors = rt.ThreadErrors()
	res.Snapshot = rt.Snapshot()
	tracer().Infof("run %s after %d steps", res.Outcome, res.Steps)
	return res
}

package runtime

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/gobaci/compiler"
	"github.com/npillmayer/gobaci/program"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

type instrs = []program.Instruction

func mainOnly(code instrs, globals int) *program.Program {
	return program.New(program.Image{
		Code: code,
		Data: make([]int64, globals),
		Main: program.Entry{Name: "main"},
	})
}

func compile(t *testing.T, src string) *program.Program {
	t.Helper()
	result, err := compiler.Compile(src)
	if err != nil {
		t.Fatalf("cannot compile test program: %v", err)
	}
	return result.Program
}

func global(t *testing.T, snap Snapshot, name string) int64 {
	t.Helper()
	v, ok := snap.Global(name)
	if !ok {
		t.Fatalf("no global variable %q", name)
	}
	return v.Value
}

func TestRoundRobin(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	prog := program.New(program.Image{
		Code:      instrs{{Op: program.Halt}},
		Main:      program.Entry{Name: "main"},
		Processes: []program.Entry{{Name: "p"}, {Name: "q"}},
	})
	for _, c := range []struct {
		quantum int
		order   []int
	}{
		{1, []int{0, 1, 2, 0, 1, 2}},
		{2, []int{0, 0, 1, 1, 2, 2}},
		{3, []int{0, 0, 1, 1, 2, 2}},
	} {
		sched := NewScheduler(prog)
		sched.SetQuantum(c.quantum)
		exec := &countingExecutor{budget: map[int]int{0: 2, 1: 2, 2: 2}}
		var out Outcome
		for out = sched.Step(exec); out.Kind == Advanced; out = sched.Step(exec) {
		}
		if out.Kind != AllTerminated {
			t.Errorf("quantum %d: expected all threads to terminate, outcome is %s", c.quantum, out.Kind)
		}
		if !reflect.DeepEqual(exec.order, c.order) {
			t.Errorf("quantum %d: expected order %v, have %v", c.quantum, c.order, exec.order)
		}
	}
}

type countingExecutor struct {
	order  []int
	budget map[int]int
}

func (ce *countingExecutor) Execute(_ *program.Program, th *Thread) StepResult {
	ce.order = append(ce.order, th.ID())
	ce.budget[th.ID()]--
	if ce.budget[th.ID()] == 0 {
		th.terminate(nil)
	}
	return StepResult{State: th.State()}
}

func TestSemaphoreWakeOrder(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	prog := program.New(program.Image{
		Code: instrs{
			{Op: program.Wait}, {Op: program.Halt}, // main, p
			{Op: program.Signal}, {Op: program.Signal}, {Op: program.Halt}, // q
		},
		Main:       program.Entry{Name: "main"},
		Processes:  []program.Entry{{Name: "p"}, {Name: "q", Entry: 2}},
		Semaphores: []program.Semaphore{{Name: "s"}},
	})
	rt := New(prog)
	for i := 0; i < 3; i++ {
		rt.Step()
	}
	snap := rt.Snapshot()
	if th, _ := snap.Thread(0); th.State != Ready {
		t.Errorf("expected main to be woken first, is %s", th.State)
	}
	if th, _ := snap.Thread(1); th.State != Blocked || th.Reason.Kind != OnSemaphore {
		t.Errorf("expected p to be blocked on s, is %s", th.State)
	}
	if s := snap.Semaphores[0]; s.Count != -1 || !reflect.DeepEqual(s.Waiters, []int{1}) {
		t.Errorf("expected count -1 with p waiting, have %d %v", s.Count, s.Waiters)
	}
	res := rt.Run(context.Background())
	if res.Outcome != RunCompleted {
		t.Fatalf("expected run to complete, is %s", res.Outcome)
	}
	if res.Snapshot.Semaphores[0].Count != 0 {
		t.Errorf("expected balanced semaphore to end at 0, is %d", res.Snapshot.Semaphores[0].Count)
	}
}

func TestDeadlock(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	prog := compile(t, `
        semaphore a = 0, b = 0;
        process p { wait(a); signal(b); }
        process q { wait(b); signal(a); }
        main { }
    `)
	rt := New(prog)
	res := rt.Run(context.Background())
	if res.Outcome != RunDeadlocked {
		t.Fatalf("expected deadlock, outcome is %s", res.Outcome)
	}
	if !reflect.DeepEqual(res.Blocked, []int{1, 2}) {
		t.Errorf("expected threads 1 and 2 to be blocked, have %v", res.Blocked)
	}
	if res.Err != nil || len(res.ThreadErrors) != 0 {
		t.Errorf("deadlock is not an error, have %v %v", res.Err, res.ThreadErrors)
	}
	if rt.State() != Halted {
		t.Errorf("expected runtime to be halted, is %s", rt.State())
	}
}

func TestBalancedSemaphores(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	prog := compile(t, `
        semaphore mutex = 1;
        int x = 0;
        process p { int i; for (i = 0; i < 10; i++) { wait(mutex); x = x + 1; signal(mutex); } }
        process q { int i; for (i = 0; i < 10; i++) { wait(mutex); x = x + 2; signal(mutex); } }
        main { }
    `)
	res := New(prog).Run(context.Background())
	if res.Outcome != RunCompleted {
		t.Fatalf("expected run to complete, is %s", res.Outcome)
	}
	if x := global(t, res.Snapshot, "x"); x != 30 {
		t.Errorf("expected x = 30, is %d", x)
	}
}

func TestThreadLocalFault(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	img := program.Image{
		Code: instrs{
			{Op: program.Push, Imm: 1}, {Op: program.Push, Imm: 0}, {Op: program.Div, Line: 3}, {Op: program.Halt},
			{Op: program.Push, Imm: 7}, {Op: program.Store, Addr: program.GlobalAddr(0)}, {Op: program.Halt},
		},
		Data:      []int64{0},
		Main:      program.Entry{Name: "main"},
		Processes: []program.Entry{{Name: "p", Entry: 4}},
	}
	rt := New(program.New(img))
	res := rt.Run(context.Background())
	if res.Outcome != RunCompleted {
		t.Fatalf("expected run to complete, is %s", res.Outcome)
	}
	if len(res.ThreadErrors) != 1 {
		t.Fatalf("expected one thread error, have %v", res.ThreadErrors)
	}
	err := res.ThreadErrors[0]
	if err.Kind() != gobaci.DivisionByZero || err.Thread != 0 || err.PC != 2 || err.Line != 3 {
		t.Errorf("unexpected thread error %v", err)
	}
	if err.Severity() != gobaci.Error {
		t.Errorf("expected thread error to be non-fatal")
	}
	if p, _ := res.Snapshot.Thread(1); p.State != Terminated || p.Fault != nil {
		t.Errorf("expected p to terminate normally, is %s", p.State)
	}
	if g := rt.machine.Globals(); g[0] != 7 {
		t.Errorf("expected p to store 7, have %d", g[0])
	}
	//
	res = New(program.New(img), WithFatalFaults(true)).Run(context.Background())
	if res.Outcome != RunFaulted || res.Err == nil || !res.Err.Fatal {
		t.Errorf("expected division by zero to be fatal without fault isolation, is %s", res.Outcome)
	}
	var rterr *gobaci.RuntimeError
	if !errors.As(error(res.Err), &rterr) || rterr.Reason != gobaci.DivisionByZero {
		t.Errorf("expected runtime error, have %v", res.Err)
	}
}

func TestFatalInvalidAddress(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	rt := New(mainOnly(instrs{{Op: program.Load, Addr: program.GlobalAddr(5)}, {Op: program.Halt}}, 1))
	res := rt.Run(context.Background())
	if res.Outcome != RunFaulted || res.Err.Kind() != gobaci.InvalidAddress {
		t.Fatalf("expected fatal invalid address, have %s %v", res.Outcome, res.Err)
	}
	if res.Err.Severity() != gobaci.Fatal {
		t.Errorf("expected severity fatal")
	}
	if out := rt.Step(); out.Kind != RuntimeFault {
		t.Errorf("expected runtime fault to be sticky, is %s", out.Kind)
	}
}

func TestCallAndReturn(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	prog := program.New(program.Image{
		Code: instrs{
			{Op: program.Push, Imm: 3},
			{Op: program.Push, Imm: 4},
			{Op: program.Call, Addr: program.CodeAddr(5), Imm: 2, Len: 2, Text: "sub"},
			{Op: program.Store, Addr: program.GlobalAddr(0)},
			{Op: program.Halt},
			{Op: program.Load, Addr: program.FrameAddr(0)},
			{Op: program.Load, Addr: program.FrameAddr(1)},
			{Op: program.Sub},
			{Op: program.Return},
		},
		Data:     []int64{0},
		Main:     program.Entry{Name: "main"},
		Routines: []program.Entry{{Name: "sub", Kind: program.RoutineSym, Entry: 5, FrameSize: 2}},
	})
	rt := New(prog)
	for i := 0; i < 4; i++ {
		rt.Step()
	}
	if th, _ := rt.Snapshot().Thread(0); th.Depth != 2 {
		t.Errorf("expected a routine frame, depth is %d", th.Depth)
	}
	res := rt.Run(context.Background())
	if res.Outcome != RunCompleted {
		t.Fatalf("expected run to complete, is %s", res.Outcome)
	}
	if v := res.Snapshot.Globals; len(v) != 0 {
		t.Errorf("expected no named globals, have %v", v)
	}
	if g := rt.machine.Globals(); g[0] != -1 {
		t.Errorf("expected 3 - 4 = -1, have %d", g[0])
	}
}

func TestRoutinesAndArrays(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	prog := compile(t, `
        int a[5];
        int sum = 0;
        int square(int v) { return v * v; }
        main {
            int i;
            for (i = 0; i < 5; i++) { a[i] = square(i); }
            for (i = 0; i < 5; i++) { sum = sum + a[i]; }
        }
    `)
	res := New(prog).Run(context.Background())
	if res.Outcome != RunCompleted || len(res.ThreadErrors) != 0 {
		t.Fatalf("expected run to complete without errors, is %s %v", res.Outcome, res.ThreadErrors)
	}
	if sum := global(t, res.Snapshot, "sum"); sum != 30 {
		t.Errorf("expected sum of squares 30, is %d", sum)
	}
	a, _ := res.Snapshot.Global("a")
	if !reflect.DeepEqual(a.Values, []int64{0, 1, 4, 9, 16}) {
		t.Errorf("unexpected array %v", a.Values)
	}
}

func TestRuntimeFaults(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	for _, c := range []struct {
		src  string
		kind gobaci.ErrKind
	}{
		{"int a[3]; main { int i; i = 3; a[i] = 1; }", gobaci.IndexOutOfRange},
		{"int x; main { x = 7 % (x - x); }", gobaci.DivisionByZero},
		{"int f(int v) { if (v > 0) { return v; } } main { int x; x = f(0); }", gobaci.MissingReturn},
		{"int f(int v) { return f(v + 1); } main { int x; x = f(0); }", gobaci.StackFault},
		{"binarysem b = 1; main { signal(b); }", gobaci.SyncMisuse},
		{"int x; main { read(x); }", gobaci.IOFault},
	} {
		res := New(compile(t, c.src), WithMaxCallDepth(50)).Run(context.Background())
		if res.Outcome != RunCompleted {
			t.Errorf("%q: expected thread-local fault, outcome is %s", c.src, res.Outcome)
			continue
		}
		if len(res.ThreadErrors) != 1 || res.ThreadErrors[0].Kind() != c.kind {
			t.Errorf("%q: expected %s, have %v", c.src, c.kind, res.ThreadErrors)
		}
	}
}

func TestBlockLocalsStartAfresh(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	prog := compile(t, `
        int scalars, cells;
        main {
            int k;
            for (k = 0; k < 3; k++) {
                int n;
                int a[2];
                n = n + 1;
                a[1] = a[1] + 1;
                scalars = scalars + n;
                cells = cells + a[1];
            }
        }
    `)
	res := New(prog).Run(context.Background())
	if res.Outcome != RunCompleted || len(res.ThreadErrors) != 0 {
		t.Fatalf("expected run to complete, is %s %v", res.Outcome, res.ThreadErrors)
	}
	if s, c := global(t, res.Snapshot, "scalars"), global(t, res.Snapshot, "cells"); s != 3 || c != 3 {
		t.Errorf("expected locals to be zeroed on every iteration, scalars = %d, cells = %d", s, c)
	}
}

func TestPauseAndResume(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	prog := compile(t, `main { write(1); write(2); write(3); }`)
	var rt *Runtime
	var out strings.Builder
	pausing := OutputFunc(func(thread int, text string) error {
		out.WriteString(text)
		if text == "1" {
			rt.Pause()
		}
		return nil
	})
	rt = New(prog, WithOutput(pausing))
	res := rt.Run(context.Background())
	if res.Outcome != RunStopped || rt.State() != Paused {
		t.Fatalf("expected paused run, is %s in state %s", res.Outcome, rt.State())
	}
	if out.String() != "1" {
		t.Errorf("expected run to pause after first write, output is %q", out.String())
	}
	res = rt.Run(context.Background())
	if res.Outcome != RunCompleted || out.String() != "123" {
		t.Errorf("expected resumed run to complete, is %s with output %q", res.Outcome, out.String())
	}
}

func TestReturnFromRootFrame(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	prog := mainOnly(instrs{{Op: program.Push, Imm: 1}, {Op: program.Return}}, 0)
	res := New(prog).Run(context.Background())
	if res.Outcome != RunCompleted {
		t.Fatalf("expected thread-local fault, outcome is %s", res.Outcome)
	}
	if len(res.ThreadErrors) != 1 || res.ThreadErrors[0].Kind() != gobaci.StackFault {
		t.Errorf("expected stack fault for return outside of routine, have %v", res.ThreadErrors)
	}
}

func TestInputOutput(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	prog := compile(t, `
        int n;
        main {
            read(n);
            write("n = ", n, " ", n > 40);
            writeln();
        }
    `)
	var out strings.Builder
	in := InputFunc(func(int) (int64, error) { return 42, nil })
	res := New(prog, WithOutput(WriterOutput(&out)), WithInput(in)).Run(context.Background())
	if res.Outcome != RunCompleted || len(res.ThreadErrors) != 0 {
		t.Fatalf("expected run to complete, is %s %v", res.Outcome, res.ThreadErrors)
	}
	if out.String() != "n = 42 true\n" {
		t.Errorf("unexpected output %q", out.String())
	}
}

type drawRecorder struct {
	cmds []DrawCommand
}

func (r *drawRecorder) Draw(cmd DrawCommand) error {
	r.cmds = append(r.cmds, cmd)
	return nil
}

func TestDrawing(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	prog := compile(t, `main { clear(); setcolor(3); line(1, 2, 3, 4); }`)
	rec := &drawRecorder{}
	rt := New(prog, WithDrawer(rec))
	var events []Event
	for out := rt.Step(); out.Kind == Advanced; out = rt.Step() {
		if out.Event.Kind == DrawEvent {
			events = append(events, out.Event)
		}
	}
	expect := []DrawCommand{
		{Kind: CmdClear},
		{Kind: CmdColor, Color: 3},
		{Kind: CmdLine, X1: 1, Y1: 2, X2: 3, Y2: 4},
	}
	if !reflect.DeepEqual(rec.cmds, expect) {
		t.Errorf("expected %v, have %v", expect, rec.cmds)
	}
	if len(events) != 3 {
		t.Errorf("expected 3 draw events, have %d", len(events))
	}
}

func TestStepLimitAndStop(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	prog := compile(t, "main { while (true) { } }")
	rt := New(prog, WithStepLimit(500))
	res := rt.Run(context.Background())
	if res.Outcome != RunInconclusive || res.Steps != 500 {
		t.Errorf("expected inconclusive run after 500 steps, is %s after %d", res.Outcome, res.Steps)
	}
	if res.Err != nil {
		t.Errorf("inconclusive run is not an error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rt.Reset()
	if res = rt.Run(ctx); res.Outcome != RunStopped || res.Steps != 0 {
		t.Errorf("expected stopped run without steps, is %s after %d", res.Outcome, res.Steps)
	}
	if rt.State() != Paused {
		t.Errorf("expected runtime to be paused, is %s", rt.State())
	}
}

func TestDeterministicTrace(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	src := `
        semaphore s = 1;
        int x;
        process p { int i; for (i = 0; i < 5; i++) { wait(s); x = x + i; signal(s); } }
        process q { int i; for (i = 0; i < 5; i++) { wait(s); x = x * 2; signal(s); } }
        main { }
    `
	prog := compile(t, src)
	traceOf := func(opts ...Option) []TraceStep {
		rt := New(prog, append(opts, WithTrace(true))...)
		rt.Run(context.Background())
		return rt.Trace()
	}
	t1, t2 := traceOf(), traceOf()
	if len(t1) == 0 || !reflect.DeepEqual(t1, t2) {
		t.Errorf("expected two runs to produce identical traces")
	}
	r1, r2 := traceOf(WithRandom(7)), traceOf(WithRandom(7))
	if !reflect.DeepEqual(r1, r2) {
		t.Errorf("expected randomized runs with equal seeds to produce identical traces")
	}
	if seed, ok := New(prog, WithRandom(7)).Seed(); !ok || seed != 7 {
		t.Errorf("expected randomized run with seed 7, have %d/%v", seed, ok)
	}
	if _, ok := New(prog).Seed(); ok {
		t.Errorf("expected default run not to be randomized")
	}
	rt := New(compile(t, src), WithTrace(true))
	rt.Run(context.Background())
	if !reflect.DeepEqual(rt.Trace(), t1) {
		t.Errorf("expected recompiled program to run identically")
	}
}

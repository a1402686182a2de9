package runtime

import (
	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/gobaci/program"
)

// Snapshot is a read-only copy of the state of a run, taken between two
// steps. Modifying a snapshot has no effect on the run.
type Snapshot struct {
	Steps      int
	Threads    []ThreadInfo
	Globals    []VarInfo
	Semaphores []SemaphoreInfo
	Monitors   []MonitorInfo
}

// ThreadInfo describes a thread.
type ThreadInfo struct {
	ID     int
	Name   string
	State  ThreadState
	Reason BlockReason
	PC     int
	Line   int
	Depth  int
	Locals []VarInfo // variables of the innermost frame
	Fault  *gobaci.RuntimeError
}

// VarInfo holds the current value of a variable. For arrays, Values holds
// the elements and Value is 0.
type VarInfo struct {
	Name   string
	Type   program.Type
	Value  int64
	Values []int64
}

// SemaphoreInfo describes a semaphore and its waiting threads.
type SemaphoreInfo struct {
	Name    string
	Count   int64
	Binary  bool
	Waiters []int
}

// MonitorInfo describes a monitor, its queues and its condition variables.
type MonitorInfo struct {
	Name       string
	Owner      int // -1 if free
	Entry      []int
	Resume     []int
	Conditions []ConditionInfo
}

// ConditionInfo describes a condition variable and its waiting threads.
type ConditionInfo struct {
	Name    string
	Waiters []int
}

// Global returns the global variable with a given name.
func (s Snapshot) Global(name string) (VarInfo, bool) {
	for _, v := range s.Globals {
		if v.Name == name {
			return v, true
		}
	}
	return VarInfo{}, false
}

// Thread returns the thread with a given id.
func (s Snapshot) Thread(id int) (ThreadInfo, bool) {
	for _, th := range s.Threads {
		if th.ID == id {
			return th, true
		}
	}
	return ThreadInfo{}, false
}

// takeSnapshot copies the state of a machine and its threads.
func takeSnapshot(m *Machine, threads []*Thread, steps int) Snapshot {
	prog := m.prog
	snap := Snapshot{Steps: steps}
	for _, sym := range prog.Symbols() {
		if !sym.Kind.IsStorage() || sym.Addr.Kind != program.Global {
			continue
		}
		snap.Globals = append(snap.Globals, readVar(sym.Name, sym.Type, sym.Addr.Offset, sym.Length, m.globals))
	}
	for _, th := range threads {
		info := ThreadInfo{
			ID:     th.id,
			Name:   th.name,
			State:  th.state,
			Reason: th.reason,
			PC:     th.pc,
			Line:   prog.LineOf(th.pc),
			Depth:  th.frames.Depth(),
			Fault:  th.fault,
		}
		if th.frames.Depth() > 0 {
			frame := th.frames.Current()
			if layout, ok := prog.FrameLayout(frame.Name); ok {
				for _, l := range layout.Locals {
					info.Locals = append(info.Locals, readVar(l.Name, l.Type, l.Offset, l.Length, frame.Slots))
				}
			}
		}
		snap.Threads = append(snap.Threads, info)
	}
	for _, sem := range m.sems {
		snap.Semaphores = append(snap.Semaphores, SemaphoreInfo{
			Name:    sem.name,
			Count:   sem.count,
			Binary:  sem.binary,
			Waiters: queued(sem.waiters),
		})
	}
	descr := prog.Monitors()
	for i, mon := range m.mons {
		info := MonitorInfo{
			Name:   mon.name,
			Owner:  mon.owner,
			Entry:  queued(mon.entry),
			Resume: queued(mon.resume),
		}
		for _, cid := range descr[i].Conditions {
			if cid < 0 || cid >= len(m.conds) {
				continue
			}
			c := m.conds[cid]
			info.Conditions = append(info.Conditions, ConditionInfo{Name: c.name, Waiters: queued(c.waiters)})
		}
		snap.Monitors = append(snap.Monitors, info)
	}
	return snap
}

func readVar(name string, typ program.Type, offset, length int, mem []int64) VarInfo {
	v := VarInfo{Name: name, Type: typ}
	if length > 0 {
		if offset >= 0 && offset+length <= len(mem) {
			v.Values = append([]int64(nil), mem[offset:offset+length]...)
		}
		return v
	}
	if offset >= 0 && offset < len(mem) {
		v.Value = mem[offset]
	}
	return v
}

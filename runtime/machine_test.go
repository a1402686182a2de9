package runtime

import (
	"testing"

	"github.com/npillmayer/gobaci/program"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func syncProgram() *program.Program {
	return program.New(program.Image{
		Code:       []program.Instruction{{Op: program.Halt}},
		Semaphores: []program.Semaphore{{Name: "s"}, {Name: "b", Initial: 1, Binary: true}},
		Monitors:   []program.Monitor{{Name: "m", Conditions: []int{0}}},
		Conditions: []program.Condition{{Name: "c", Monitor: 0}},
	})
}

func attachThreads(m *Machine, n int) []*Thread {
	threads := make([]*Thread, n)
	for i := range threads {
		threads[i] = NewThread(i, program.Entry{Name: "t"})
		m.Attach(threads[i])
	}
	return threads
}

func TestSemaphoreFIFO(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	m := NewMachine(syncProgram())
	th := attachThreads(m, 3)
	sem := m.sems[0]
	if !m.semWait(sem, 0, th[0]) || !m.semWait(sem, 0, th[1]) {
		t.Fatal("expected P on semaphore with value 0 to block")
	}
	if n := m.SemaphoreCount(0); n != -2 {
		t.Errorf("expected count -2 with two waiters, is %d", n)
	}
	if err := m.semSignal(sem); err != nil {
		t.Fatal(err)
	}
	if th[0].State() != Ready || th[1].State() != Blocked {
		t.Errorf("expected first waiter to be woken first, have %s and %s", th[0], th[1])
	}
	if th[1].Reason().Kind != OnSemaphore || th[1].Reason().Name != "s" {
		t.Errorf("expected thread 1 to wait for semaphore s, reason is %s", th[1].Reason())
	}
	_ = m.semSignal(sem)
	_ = m.semSignal(sem)
	if m.SemaphoreCount(0) != 1 || !sem.waiters.Empty() {
		t.Errorf("expected count 1 and no waiters, have %d and %v", sem.count, queued(sem.waiters))
	}
	if m.semWait(sem, 0, th[2]) {
		t.Error("expected P on semaphore with value 1 not to block")
	}
}

func TestBinarySemaphoreMisuse(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	m := NewMachine(syncProgram())
	bin := m.sems[1]
	if err := m.semSignal(bin); err == nil {
		t.Error("expected V on binary semaphore with value 1 to fail")
	}
	if err := m.semInit(bin, 2); err == nil {
		t.Error("expected initialsem of binary semaphore with 2 to fail")
	}
	if err := m.semInit(m.sems[0], -1); err == nil {
		t.Error("expected initialsem with negative value to fail")
	}
	th := attachThreads(m, 1)
	m.semWait(m.sems[0], 0, th[0])
	if err := m.semInit(m.sems[0], 3); err == nil {
		t.Error("expected initialsem of semaphore with waiters to fail")
	}
}

func TestMonitorHandOver(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	m := NewMachine(syncProgram())
	th := attachThreads(m, 3)
	mon, cond := m.mons[0], m.conds[0]
	for i, expectBlock := range []bool{false, true, true} {
		blocked, err := m.enter(mon, 0, th[i])
		if err != nil {
			t.Fatal(err)
		}
		if blocked != expectBlock {
			t.Errorf("thread %d: expected blocked=%v", i, expectBlock)
		}
	}
	if _, err := m.enter(mon, 0, th[0]); err == nil {
		t.Error("expected re-entering a held monitor to fail")
	}
	if err := m.condWait(cond, mon, 0, th[0]); err != nil {
		t.Fatal(err)
	}
	if mon.owner != 1 || th[1].State() != Ready {
		t.Fatalf("expected monitor to pass to thread 1, owner is %d", mon.owner)
	}
	if err := m.condSignal(cond, mon, th[1]); err != nil {
		t.Fatal(err)
	}
	if mon.owner != 1 || th[0].State() != Blocked || th[0].Reason().Kind != OnMonitor {
		t.Errorf("expected signaller to keep monitor and waiter to wait for it, %s", th[0])
	}
	if err := m.exit(mon, th[2]); err == nil {
		t.Error("expected exit by non-owner to fail")
	}
	if err := m.exit(mon, th[1]); err != nil {
		t.Fatal(err)
	}
	if mon.owner != 0 || th[0].State() != Ready || th[2].State() != Blocked {
		t.Errorf("expected signalled thread to be served before entry queue, owner is %d", mon.owner)
	}
	if err := m.exit(mon, th[0]); err != nil {
		t.Fatal(err)
	}
	if mon.owner != 2 || th[2].State() != Ready {
		t.Errorf("expected thread 2 to own monitor, owner is %d", mon.owner)
	}
	if err := m.condSignal(cond, mon, th[0]); err == nil {
		t.Error("expected signalc outside of monitor to fail")
	}
}

func TestTerminationReleasesMonitor(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.runtime")
	defer teardown()
	//
	m := NewMachine(syncProgram())
	th := attachThreads(m, 2)
	m.enter(m.mons[0], 0, th[0])
	m.enter(m.mons[0], 0, th[1])
	th[0].terminate(nil)
	m.release(th[0])
	if m.MonitorOwner(0) != 1 || th[1].State() != Ready {
		t.Errorf("expected monitor to pass to thread 1, owner is %d", m.MonitorOwner(0))
	}
}

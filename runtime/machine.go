package runtime

import (
	"fmt"

	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/npillmayer/gobaci/program"
)

// This module implements the shared state of a run: globals, semaphores,
// monitors and condition variables. Wait queues are FIFO lists of thread ids.

type semaphore struct {
	name    string
	count   int64
	binary  bool
	waiters *arraylist.List
}

type monitor struct {
	name   string
	owner  int             // thread id, -1 if free
	entry  *arraylist.List // threads blocked in Enter
	resume *arraylist.List // signalled threads, served before entry
}

type condition struct {
	name    string
	monitor int
	waiters *arraylist.List
}

// Machine is the shared VM state of one run. It is owned by exactly one
// Interpreter and must not be shared between runs.
type Machine struct {
	prog    *program.Program
	globals []int64
	sems    []*semaphore
	mons    []*monitor
	conds   []*condition
	threads map[int]*Thread
}

// NewMachine creates the initial VM state for a program.
func NewMachine(prog *program.Program) *Machine {
	m := &Machine{prog: prog}
	m.Reset()
	return m
}

// Reset restores the initial state: globals from the data image, semaphores
// at their initial values, all monitors free and all queues empty.
func (m *Machine) Reset() {
	m.globals = m.prog.Data()
	m.sems = m.sems[:0]
	for _, s := range m.prog.Semaphores() {
		m.sems = append(m.sems, &semaphore{
			name:    s.Name,
			count:   s.Initial,
			binary:  s.Binary,
			waiters: arraylist.New(),
		})
	}
	m.mons = m.mons[:0]
	for _, mon := range m.prog.Monitors() {
		m.mons = append(m.mons, &monitor{
			name:   mon.Name,
			owner:  -1,
			entry:  arraylist.New(),
			resume: arraylist.New(),
		})
	}
	m.conds = m.conds[:0]
	for _, c := range m.prog.Conditions() {
		m.conds = append(m.conds, &condition{
			name:    c.Name,
			monitor: c.Monitor,
			waiters: arraylist.New(),
		})
	}
	m.threads = make(map[int]*Thread)
}

// Program returns the program the machine executes.
func (m *Machine) Program() *program.Program {
	return m.prog
}

// Globals returns a copy of the global data.
func (m *Machine) Globals() []int64 {
	return append([]int64(nil), m.globals...)
}

// Attach makes a thread known to the machine, so it can be woken up by
// other threads.
func (m *Machine) Attach(th *Thread) {
	m.threads[th.id] = th
}

// Thread returns the attached thread with a given id.
func (m *Machine) Thread(id int) (*Thread, bool) {
	th, ok := m.threads[id]
	return th, ok
}

// MonitorOwner returns the id of the thread holding a monitor, or -1.
func (m *Machine) MonitorOwner(id int) int {
	if id < 0 || id >= len(m.mons) {
		return -1
	}
	return m.mons[id].owner
}

// SemaphoreCount returns the counter of a semaphore. A negative count -n
// means that n threads are waiting.
func (m *Machine) SemaphoreCount(id int) int64 {
	if id < 0 || id >= len(m.sems) {
		return 0
	}
	return m.sems[id].count
}

func (m *Machine) semaphore(id int64) (*semaphore, error) {
	if id < 0 || id >= int64(len(m.sems)) {
		return nil, fmt.Errorf("no semaphore with id %d", id)
	}
	return m.sems[id], nil
}

func (m *Machine) monitor(id int64) (*monitor, error) {
	if id < 0 || id >= int64(len(m.mons)) {
		return nil, fmt.Errorf("no monitor with id %d", id)
	}
	return m.mons[id], nil
}

func (m *Machine) condition(id int64) (*condition, *monitor, error) {
	if id < 0 || id >= int64(len(m.conds)) {
		return nil, nil, fmt.Errorf("no condition with id %d", id)
	}
	c := m.conds[id]
	mon, err := m.monitor(int64(c.monitor))
	if err != nil {
		return nil, nil, err
	}
	return c, mon, nil
}

// dequeue removes the first thread id from a wait queue.
func dequeue(q *arraylist.List) (int, bool) {
	v, ok := q.Get(0)
	if !ok {
		return -1, false
	}
	q.Remove(0)
	return v.(int), true
}

func queued(q *arraylist.List) []int {
	ids := make([]int, 0, q.Size())
	for _, v := range q.Values() {
		ids = append(ids, v.(int))
	}
	return ids
}

// --- Semaphores ----------------------------------------------------------------

// semWait performs P on a semaphore. It returns true if th has to block.
func (m *Machine) semWait(sem *semaphore, id int, th *Thread) bool {
	sem.count--
	if sem.count >= 0 {
		return false
	}
	sem.waiters.Add(th.id)
	th.block(BlockReason{Kind: OnSemaphore, ID: id, Name: sem.name})
	return true
}

// semSignal performs V on a semaphore, waking the longest waiting thread.
func (m *Machine) semSignal(sem *semaphore) error {
	if sem.binary && sem.count >= 1 && sem.waiters.Empty() {
		return fmt.Errorf("signal on binary semaphore %s with value 1", sem.name)
	}
	sem.count++
	if tid, ok := dequeue(sem.waiters); ok {
		if waiter, found := m.threads[tid]; found {
			waiter.wake()
		}
	}
	return nil
}

// semInit resets the counter of a semaphore.
func (m *Machine) semInit(sem *semaphore, v int64) error {
	switch {
	case !sem.waiters.Empty():
		return fmt.Errorf("initialsem on semaphore %s with %d waiting threads", sem.name, sem.waiters.Size())
	case v < 0:
		return fmt.Errorf("initialsem on semaphore %s with negative value %d", sem.name, v)
	case sem.binary && v > 1:
		return fmt.Errorf("initialsem on binary semaphore %s with value %d", sem.name, v)
	}
	sem.count = v
	return nil
}

// --- Monitors ---------------------------------------------------------------------

// enter acquires a monitor for th. It returns true if th has to block.
func (m *Machine) enter(mon *monitor, id int, th *Thread) (bool, error) {
	switch mon.owner {
	case -1:
		mon.owner = th.id
		return false, nil
	case th.id:
		return false, fmt.Errorf("thread %d already holds monitor %s", th.id, mon.name)
	}
	mon.entry.Add(th.id)
	th.block(BlockReason{Kind: OnMonitor, ID: id, Name: mon.name})
	return true, nil
}

// exit releases a monitor held by th.
func (m *Machine) exit(mon *monitor, th *Thread) error {
	if mon.owner != th.id {
		return fmt.Errorf("thread %d does not hold monitor %s", th.id, mon.name)
	}
	m.handOver(mon)
	return nil
}

// handOver passes a monitor to the first signalled thread, else to the first
// thread waiting for entry, else frees it.
func (m *Machine) handOver(mon *monitor) {
	mon.owner = -1
	for _, q := range []*arraylist.List{mon.resume, mon.entry} {
		for !q.Empty() {
			tid, _ := dequeue(q)
			th, ok := m.threads[tid]
			if !ok || !th.IsAlive() {
				continue
			}
			mon.owner = tid
			th.wake()
			tracer().Debugf("monitor %s handed over to thread %d", mon.name, tid)
			return
		}
	}
}

// condWait blocks th on a condition and releases the monitor.
func (m *Machine) condWait(cond *condition, mon *monitor, id int, th *Thread) error {
	if mon.owner != th.id {
		return fmt.Errorf("waitc on %s outside of monitor %s", cond.name, mon.name)
	}
	cond.waiters.Add(th.id)
	th.block(BlockReason{Kind: OnCondition, ID: id, Name: cond.name})
	m.handOver(mon)
	return nil
}

// condSignal moves the longest waiting thread of a condition to the resume
// queue of its monitor. The signaller keeps the monitor.
func (m *Machine) condSignal(cond *condition, mon *monitor, th *Thread) error {
	if mon.owner != th.id {
		return fmt.Errorf("signalc on %s outside of monitor %s", cond.name, mon.name)
	}
	tid, ok := dequeue(cond.waiters)
	if !ok {
		return nil
	}
	mon.resume.Add(tid)
	if waiter, found := m.threads[tid]; found {
		waiter.reason = BlockReason{Kind: OnMonitor, ID: cond.monitor, Name: mon.name}
	}
	return nil
}

// release frees every monitor held by a terminating thread.
func (m *Machine) release(th *Thread) {
	for _, mon := range m.mons {
		if mon.owner == th.id {
			tracer().Infof("thread %d terminated inside monitor %s", th.id, mon.name)
			m.handOver(mon)
		}
	}
}

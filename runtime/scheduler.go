package runtime

import (
	"fmt"
	"math/rand"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"
	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/gobaci/program"
)

// Executor executes a single instruction of a thread. *Interpreter is the
// production implementation; tests may substitute their own.
type Executor interface {
	Execute(prog *program.Program, th *Thread) StepResult
}

var _ Executor = (*Interpreter)(nil)

// OutcomeKind classifies the outcome of a scheduler step.
type OutcomeKind int8

// Outcomes of a scheduler step.
const (
	Advanced OutcomeKind = iota
	AllTerminated
	Deadlocked
	RuntimeFault
)

func (k OutcomeKind) String() string {
	switch k {
	case Advanced:
		return "advanced"
	case AllTerminated:
		return "all terminated"
	case Deadlocked:
		return "deadlocked"
	case RuntimeFault:
		return "runtime fault"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int8(k))
}

// Outcome is the result of a scheduler step. For Advanced, Thread is the id
// of the thread which executed an instruction and Err a thread-local error,
// if one occurred. For Deadlocked, Blocked lists the ids of all blocked
// threads.
type Outcome struct {
	Kind    OutcomeKind
	Thread  int
	Event   Event
	Err     *gobaci.RuntimeError
	Blocked []int
}

// Scheduler owns the threads of a run and selects which one executes next.
// Selection is round-robin in creation order, unless randomized mode has been
// requested. The scheduler never touches the shared VM state.
type Scheduler struct {
	prog     *program.Program
	threads  []*Thread // all threads, by creation order
	rotation []*Thread // threads not yet terminated
	last     *Thread   // thread of the previous step
	slice    int       // remaining steps of last's time slice
	quantum  int
	seed     int64
	rnd      *rand.Rand
	fault    *gobaci.RuntimeError
}

// NewScheduler creates a scheduler with one thread for main and one for every
// process block of prog. Main gets id 0, processes follow in declaration
// order.
func NewScheduler(prog *program.Program) *Scheduler {
	s := &Scheduler{prog: prog, quantum: 1}
	s.Reset()
	return s
}

// Reset re-creates all threads at their entry points.
func (s *Scheduler) Reset() {
	s.threads = s.threads[:0]
	s.threads = append(s.threads, NewThread(0, s.prog.Main()))
	for i, e := range s.prog.Processes() {
		s.threads = append(s.threads, NewThread(i+1, e))
	}
	s.rotation = append([]*Thread(nil), s.threads...)
	s.last, s.slice, s.fault = nil, 0, nil
	if s.rnd != nil {
		s.rnd = rand.New(rand.NewSource(s.seed))
	}
	tracer().Debugf("scheduler created %d threads", len(s.threads))
}

// SetQuantum sets the number of consecutive steps a thread may run before the
// next thread is selected.
func (s *Scheduler) SetQuantum(n int) {
	if n < 1 {
		n = 1
	}
	s.quantum = n
}

// SetRandom switches to randomized interleaving. Runs with the same seed
// produce the same interleaving.
func (s *Scheduler) SetRandom(seed int64) {
	s.seed = seed
	s.rnd = rand.New(rand.NewSource(seed))
}

// Seed returns the seed of randomized mode and whether it is active.
func (s *Scheduler) Seed() (int64, bool) {
	return s.seed, s.rnd != nil
}

// Threads returns all threads in creation order, including terminated ones.
func (s *Scheduler) Threads() []*Thread {
	return append([]*Thread(nil), s.threads...)
}

// Thread returns the thread with a given id.
func (s *Scheduler) Thread(id int) (*Thread, bool) {
	if id < 0 || id >= len(s.threads) {
		return nil, false
	}
	return s.threads[id], true
}

// Live returns the number of threads which have not terminated.
func (s *Scheduler) Live() int {
	return len(s.rotation)
}

// Step selects a ready thread and lets exec execute one instruction of it.
func (s *Scheduler) Step(exec Executor) Outcome {
	if s.fault != nil {
		return Outcome{Kind: RuntimeFault, Thread: s.fault.Thread, Err: s.fault}
	}
	if len(s.rotation) == 0 {
		return Outcome{Kind: AllTerminated, Thread: -1}
	}
	th := s.pick()
	if th == nil {
		blocked := s.blocked()
		tracer().Infof("deadlock: threads %v are blocked", blocked)
		return Outcome{Kind: Deadlocked, Thread: -1, Blocked: blocked}
	}
	th.setState(Running)
	r := exec.Execute(s.prog, th)
	if th.state == Running {
		th.setState(Ready)
	}
	s.last = th
	s.reap()
	if r.Err != nil && r.Err.Fatal {
		s.fault = r.Err
		return Outcome{Kind: RuntimeFault, Thread: th.id, Event: r.Event, Err: r.Err}
	}
	return Outcome{Kind: Advanced, Thread: th.id, Event: r.Event, Err: r.Err}
}

// pick returns the next thread to run, or nil if no thread is ready.
func (s *Scheduler) pick() *Thread {
	if s.last != nil && s.last.state == Ready && s.slice > 0 {
		s.slice--
		return s.last
	}
	var next *Thread
	if s.rnd != nil {
		var ready []*Thread
		for _, th := range s.rotation {
			if th.state == Ready {
				ready = append(ready, th)
			}
		}
		if len(ready) > 0 {
			next = ready[s.rnd.Intn(len(ready))]
		}
	} else {
		start := 0
		if s.last != nil {
			for start < len(s.rotation) && s.rotation[start].id <= s.last.id {
				start++
			}
		}
		for i := 0; i < len(s.rotation); i++ {
			th := s.rotation[(start+i)%len(s.rotation)]
			if th.state == Ready {
				next = th
				break
			}
		}
	}
	if next != nil {
		s.slice = s.quantum - 1
	}
	return next
}

// reap removes terminated threads from the rotation.
func (s *Scheduler) reap() {
	alive := s.rotation[:0]
	for _, th := range s.rotation {
		if th.IsAlive() {
			alive = append(alive, th)
		} else {
			tracer().Debugf("reaping thread %d (%s)", th.id, th.name)
		}
	}
	s.rotation = alive
}

// blocked returns the ids of all blocked threads, in ascending order.
func (s *Scheduler) blocked() []int {
	set := treeset.NewWith(utils.IntComparator)
	for _, th := range s.rotation {
		if th.state == Blocked {
			set.Add(th.id)
		}
	}
	ids := make([]int, 0, set.Size())
	for _, v := range set.Values() {
		ids = append(ids, v.(int))
	}
	return ids
}

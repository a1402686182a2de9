package runtime_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/gobaci/compiler"
	"github.com/npillmayer/gobaci/program"
	"github.com/npillmayer/gobaci/runtime"
)

const counterMonitor = `
monitor counter {
    int count = 0;
    void inc() { count = count + 1; }
}

process p { int i; for (i = 0; i < 100; i++) { inc(); } }
process q { int i; for (i = 0; i < 100; i++) { inc(); } }

main { }
`

const handshake = `
semaphore s = 0;
int done = 0;

process producer { signal(s); done = done + 1; }
process consumer { wait(s); done = done + 1; }

main { }
`

const boundedBuffer = `
const int N = 2;

monitor buffer {
    int slots[N];
    int in = 0, out = 0, size = 0;
    condition notFull, notEmpty;

    void put(int v) {
        if (size == N) { waitc(notFull); }
        slots[in] = v;
        in = (in + 1) % N;
        size++;
        signalc(notEmpty);
    }

    int take() {
        int v;
        if (size == 0) { waitc(notEmpty); }
        v = slots[out];
        out = (out + 1) % N;
        size--;
        signalc(notFull);
        return v;
    }
}

int total = 0;

process producer { int i; for (i = 1; i <= 10; i++) { put(i); } }
process consumer { int i; for (i = 1; i <= 10; i++) { total = total + take(); } }

main { }
`

func mustCompile(src string) *program.Program {
	result, err := compiler.Compile(src)
	Expect(err).NotTo(HaveOccurred())
	Expect(result.Program).NotTo(BeNil())
	return result.Program
}

// checkInvariants verifies the integrity of synchronization objects in a
// snapshot.
func checkInvariants(snap runtime.Snapshot) {
	for _, sem := range snap.Semaphores {
		if sem.Count < 0 {
			Expect(sem.Waiters).To(HaveLen(int(-sem.Count)), "semaphore %s", sem.Name)
		} else {
			Expect(sem.Waiters).To(BeEmpty(), "semaphore %s", sem.Name)
		}
	}
	for _, mon := range snap.Monitors {
		if mon.Owner >= 0 {
			owner, ok := snap.Thread(mon.Owner)
			Expect(ok).To(BeTrue())
			Expect(owner.State).NotTo(Equal(runtime.Terminated))
			Expect(owner.State).NotTo(Equal(runtime.Blocked), "owner of monitor %s", mon.Name)
		}
		for _, id := range append(mon.Entry, mon.Resume...) {
			th, _ := snap.Thread(id)
			Expect(th.State).To(Equal(runtime.Blocked))
			Expect(th.Reason.Kind).To(Equal(runtime.OnMonitor))
		}
	}
}

func stepToEnd(rt *runtime.Runtime, limit int) runtime.Outcome {
	var out runtime.Outcome
	for i := 0; i < limit; i++ {
		out = rt.Step()
		checkInvariants(rt.Snapshot())
		if out.Kind != runtime.Advanced {
			return out
		}
	}
	Fail("program did not terminate within step limit")
	return out
}

var _ = Describe("Teaching scenarios", func() {

	Context("two processes incrementing a counter inside a monitor", func() {
		var prog *program.Program

		BeforeEach(func() {
			prog = mustCompile(counterMonitor)
		})

		It("should end with counter 200", func() {
			res := runtime.New(prog).Run(context.Background())
			Expect(res.Outcome).To(Equal(runtime.RunCompleted))
			Expect(res.ThreadErrors).To(BeEmpty())
			count, ok := res.Snapshot.Global("count")
			Expect(ok).To(BeTrue())
			Expect(count.Value).To(Equal(int64(200)))
		})

		It("should end with counter 200 for any interleaving", func() {
			for seed := int64(1); seed <= 5; seed++ {
				for _, quantum := range []int{1, 3, 7} {
					rt := runtime.New(prog, runtime.WithRandom(seed), runtime.WithQuantum(quantum))
					res := rt.Run(context.Background())
					Expect(res.Outcome).To(Equal(runtime.RunCompleted))
					count, _ := res.Snapshot.Global("count")
					Expect(count.Value).To(Equal(int64(200)), "seed %d, quantum %d", seed, quantum)
				}
			}
		})

		It("should never let two threads hold the monitor", func() {
			rt := runtime.New(prog, runtime.WithQuantum(2))
			Expect(stepToEnd(rt, 100000).Kind).To(Equal(runtime.AllTerminated))
		})
	})

	Context("a semaphore signalled before it is awaited", func() {
		It("should let both threads terminate without blocking", func() {
			rt := runtime.New(mustCompile(handshake), runtime.WithTrace(true))
			res := rt.Run(context.Background())
			Expect(res.Outcome).To(Equal(runtime.RunCompleted))
			for _, step := range rt.Trace() {
				Expect(step.States).NotTo(ContainElement(runtime.Blocked))
			}
			done, _ := res.Snapshot.Global("done")
			Expect(done.Value).To(Equal(int64(2)))
			Expect(res.Snapshot.Semaphores[0].Count).To(Equal(int64(0)))
		})
	})

	Context("a reference to an undeclared identifier", func() {
		It("should yield a compile error and no program", func() {
			result, err := compiler.Compile("main { x = 1; }")
			Expect(err).To(HaveOccurred())
			Expect(result.Program).To(BeNil())
			var cerr *gobaci.CompileError
			Expect(err).To(BeAssignableToTypeOf(cerr))
			cerr = err.(*gobaci.CompileError)
			Expect(cerr.Kind()).To(Equal(gobaci.SemanticError))
			Expect(cerr.Pos.Line).To(Equal(1))
		})
	})

	Context("a jump outside of the program", func() {
		var out strings.Builder
		var res runtime.Result

		BeforeEach(func() {
			out.Reset()
			prog := program.New(program.Image{
				Code: []program.Instruction{
					{Op: program.Jump, Addr: program.CodeAddr(99), Line: 1},
					{Op: program.WriteStr, Text: "p done"},
					{Op: program.Halt},
				},
				Main:      program.Entry{Name: "main"},
				Processes: []program.Entry{{Name: "p", Entry: 1}},
			})
			Expect(prog.Validate()).NotTo(Succeed())
			res = runtime.New(prog, runtime.WithOutput(runtime.WriterOutput(&out))).Run(context.Background())
		})

		It("should raise a runtime error for the offending thread", func() {
			Expect(res.ThreadErrors).To(HaveLen(1))
			err := res.ThreadErrors[0]
			Expect(err.Kind()).To(Equal(gobaci.InvalidJump))
			Expect(err.Thread).To(Equal(0))
			Expect(err.Severity()).To(Equal(gobaci.Error))
		})

		It("should halt only the offending thread", func() {
			Expect(res.Outcome).To(Equal(runtime.RunCompleted))
			Expect(out.String()).To(Equal("p done"))
			p, _ := res.Snapshot.Thread(1)
			Expect(p.State).To(Equal(runtime.Terminated))
			Expect(p.Fault).To(BeNil())
		})
	})

	Context("a bounded buffer with condition variables", func() {
		It("should pass every item from producer to consumer", func() {
			rt := runtime.New(mustCompile(boundedBuffer))
			Expect(stepToEnd(rt, 100000).Kind).To(Equal(runtime.AllTerminated))
			snap := rt.Snapshot()
			total, _ := snap.Global("total")
			Expect(total.Value).To(Equal(int64(55)))
			size, _ := snap.Global("size")
			Expect(size.Value).To(Equal(int64(0)))
		})
	})

	Context("two processes waiting for each other", func() {
		It("should be classified as deadlocked", func() {
			prog := mustCompile(`
                semaphore a = 0, b = 0;
                process p { wait(a); signal(b); }
                process q { wait(b); signal(a); }
                main { }
            `)
			res := runtime.New(prog).Run(context.Background())
			Expect(res.Outcome).To(Equal(runtime.RunDeadlocked))
			Expect(res.Blocked).To(Equal([]int{1, 2}))
			Expect(res.Err).To(BeNil())
		})
	})
})

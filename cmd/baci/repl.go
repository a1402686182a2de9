package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/npillmayer/gobaci/config"
	"github.com/npillmayer/gobaci/drawing"
	"github.com/npillmayer/gobaci/program"
	"github.com/npillmayer/gobaci/runtime"
	"github.com/pterm/pterm"
)

// debugger is an interactive step debugger for a program.
type debugger struct {
	prog     *program.Program
	settings config.Settings
	rt       *runtime.Runtime
	repl     *readline.Instance
	canvas   *drawing.Canvas
	rec      *drawing.Recorder
	result   runtime.Result
}

func newDebugger(prog *program.Program, settings config.Settings, canvas *drawing.Canvas,
	rec *drawing.Recorder, opts []runtime.Option) (*debugger, error) {
	//
	repl, err := readline.New("baci> ")
	if err != nil {
		return nil, err
	}
	dbg := &debugger{
		prog:     prog,
		settings: settings,
		repl:     repl,
		canvas:   canvas,
		rec:      rec,
		result:   runtime.Result{Outcome: runtime.RunStopped},
	}
	opts = append(opts, runtime.WithInput(runtime.InputFunc(dbg.readInt)))
	dbg.rt = runtime.New(prog, opts...)
	return dbg, nil
}

func (dbg *debugger) close() {
	dbg.repl.Close()
}

// readInt prompts for input on behalf of a thread.
func (dbg *debugger) readInt(thread int) (int64, error) {
	dbg.repl.SetPrompt(fmt.Sprintf("read (thread %d)> ", thread))
	defer dbg.repl.SetPrompt("baci> ")
	line, err := dbg.repl.Readline()
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(line), 10, 64)
}

// REPL starts interactive mode.
func (dbg *debugger) REPL() {
	tracer().Infof("Quit with <ctrl>D or q")
	pterm.Info.Println("Welcome to the BACI debugger, type 'h' for help")
	for {
		line, err := dbg.repl.Readline()
		if err != nil { // io.EOF
			break
		}
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		if quit := dbg.Execute(strings.Fields(line)); quit {
			break
		}
	}
	println("Good bye!")
}

const help = `s [n]   execute n steps (default 1)
r       run until the program terminates, deadlocks or faults
t       show threads
v       show variables
y       show semaphores and monitors
l       show program listing
p       show program structure
c       show drawing canvas
reset   restart the program
q       quit`

// Execute executes a debugger command. It returns true if the user wants to
// quit.
func (dbg *debugger) Execute(args []string) bool {
	snap := func() runtime.Snapshot { return dbg.rt.Snapshot() }
	switch args[0] {
	case "s", "step":
		n := 1
		if len(args) > 1 {
			var err error
			if n, err = strconv.Atoi(args[1]); err != nil || n < 1 {
				pterm.Error.Println("step count must be a positive number")
				return false
			}
		}
		dbg.step(n)
	case "r", "run":
		dbg.result = dbg.rt.Run(context.Background())
		reportResult(dbg.result)
	case "t", "threads":
		fmt.Println(threadTable(snap()))
	case "v", "vars":
		fmt.Println(variableTable(snap()))
	case "y", "sync":
		fmt.Println(syncTable(snap()))
	case "l", "list":
		printListing(os.Stdout, dbg.prog)
	case "p":
		printStructure(dbg.prog)
	case "c", "canvas":
		dbg.canvas.Render(os.Stdout)
	case "reset":
		dbg.rt.Reset()
		dbg.rec.Reset()
		dbg.canvas.Draw(runtime.DrawCommand{Kind: runtime.CmdClear})
		dbg.result = runtime.Result{Outcome: runtime.RunStopped}
		pterm.Info.Println("program reset")
	case "h", "help":
		fmt.Println(help)
	case "q", "quit":
		return true
	default:
		pterm.Error.Println(fmt.Sprintf("unknown command %q, type 'h' for help", args[0]))
	}
	return false
}

// step executes up to n steps and reports each of them.
func (dbg *debugger) step(n int) {
	for i := 0; i < n; i++ {
		if dbg.settings.StepLimit > 0 && dbg.rt.Steps() >= dbg.settings.StepLimit {
			pterm.Warning.Println(fmt.Sprintf("step limit %d reached", dbg.settings.StepLimit))
			dbg.result = runtime.Result{Outcome: runtime.RunInconclusive, Steps: dbg.rt.Steps()}
			return
		}
		out := dbg.rt.Step()
		switch out.Kind {
		case runtime.Advanced:
			th, _ := dbg.rt.Snapshot().Thread(out.Thread)
			fmt.Printf("step %d: thread %d (%s) is %s at pc %d, line %d\n",
				dbg.rt.Steps(), th.ID, th.Name, th.State, th.PC, th.Line)
			if out.Err != nil {
				reportError(out.Err)
			}
			continue
		case runtime.AllTerminated:
			dbg.result = runtime.Result{Outcome: runtime.RunCompleted, Steps: dbg.rt.Steps()}
		case runtime.Deadlocked:
			dbg.result = runtime.Result{Outcome: runtime.RunDeadlocked, Steps: dbg.rt.Steps(), Blocked: out.Blocked}
		case runtime.RuntimeFault:
			dbg.result = runtime.Result{Outcome: runtime.RunFaulted, Steps: dbg.rt.Steps(), Err: out.Err}
		}
		dbg.result.ThreadErrors = dbg.rt.ThreadErrors()
		dbg.result.Snapshot = dbg.rt.Snapshot()
		reportResult(dbg.result)
		return
	}
}

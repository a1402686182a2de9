package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/gobaci/compiler"
	"github.com/npillmayer/gobaci/config"
	"github.com/npillmayer/gobaci/drawing"
	"github.com/npillmayer/gobaci/fileio"
	"github.com/npillmayer/gobaci/program"
	"github.com/npillmayer/gobaci/runtime"
	"github.com/pterm/pterm"
	"github.com/tebeka/atexit"

	"github.com/npillmayer/schuko/gtrace"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
)

// Exit codes
const (
	exitOK = iota
	exitLoad
	exitDeadlock
	exitFault
	exitInconclusive
)

// tracer keys of all packages of the toolchain
var traceKeys = []string{
	"baci.scanner", "baci.compiler", "baci.program", "baci.runtime",
	"baci.drawing", "baci.fileio", "baci.config", "baci.cli",
}

func main() {
	initDisplay()
	gtrace.SyntaxTracer = gologadapter.New()
	tlevel := flag.String("trace", "", "Trace level [Debug|Info|Error]")
	steps := flag.Int("steps", 0, "Step limit, 0 = unlimited")
	quantum := flag.Int("quantum", 0, "Consecutive steps per thread")
	random := flag.Bool("random", false, "Randomized interleaving")
	seed := flag.Int64("seed", 0, "Seed for randomized interleaving")
	fatal := flag.Bool("fatal-faults", false, "Every runtime error stops the run")
	list := flag.Bool("list", false, "Print a program listing")
	compileOnly := flag.Bool("compile-only", false, "Compile, but do not run")
	outfile := flag.String("o", "", "Save the compiled program (.nsbx)")
	interactive := flag.Bool("i", false, "Interactive step debugger")
	flag.Parse()
	//
	flagKeys := map[string]string{
		"steps": config.KeyStepLimit, "quantum": config.KeyQuantum,
		"random": config.KeyRandom, "seed": config.KeySeed,
		"fatal-faults": config.KeyFatalFaults, "trace": config.KeyTraceLevel,
	}
	values := map[string]interface{}{
		config.KeyStepLimit: *steps, config.KeyQuantum: *quantum,
		config.KeyRandom: *random, config.KeySeed: *seed,
		config.KeyFatalFaults: *fatal, config.KeyTraceLevel: *tlevel,
	}
	overrides := config.Map{}
	flag.Visit(func(f *flag.Flag) { // only flags given on the command line
		if key, ok := flagKeys[f.Name]; ok {
			overrides[key] = values[key]
		}
	})
	settings := config.FromSource(config.Overlay{overrides, config.Global()})
	setTraceLevel(tracing.TraceLevelFromString(settings.TraceLevel))
	tracer().Infof("settings: %s", settings)
	if flag.NArg() != 1 {
		pterm.Error.Println("usage: baci [flags] file.nsb|file.nsbx")
		flag.PrintDefaults()
		atexit.Exit(exitLoad)
	}
	prog, err := load(flag.Arg(0))
	if err != nil {
		reportError(err)
		atexit.Exit(exitLoad)
	}
	if *list {
		if !printListing(os.Stdout, prog) {
			atexit.Exit(exitLoad)
		}
	}
	if *outfile != "" {
		if err := fileio.SaveProgram(*outfile, prog); err != nil {
			reportError(err)
			atexit.Exit(exitLoad)
		}
		pterm.Info.Println(fmt.Sprintf("program saved to %s", *outfile))
	}
	if *compileOnly {
		atexit.Exit(exitOK)
	}
	canvas := drawing.NewCanvas(canvasWidth, canvasHeight)
	rec := drawing.NewRecorder()
	opts := append(settings.Options(),
		runtime.WithOutput(runtime.WriterOutput(os.Stdout)),
		runtime.WithDrawer(drawers{rec, canvas}),
	)
	if *interactive {
		dbg, err := newDebugger(prog, settings, canvas, rec, opts)
		if err != nil {
			reportError(err)
			atexit.Exit(exitLoad)
		}
		atexit.Register(dbg.close)
		dbg.REPL()
		atexit.Exit(exitCode(dbg.result))
	}
	opts = append(opts, runtime.WithInput(stdinInput()))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	rt := runtime.New(prog, opts...)
	if seed, ok := rt.Seed(); ok {
		pterm.Info.Println(fmt.Sprintf("randomized interleaving, replay with -random -seed %d", seed))
	}
	res := rt.Run(ctx)
	reportResult(res)
	if len(rec.Commands()) > 0 {
		canvas.Render(os.Stdout)
	}
	atexit.Exit(exitCode(res))
}

// load reads a source file and compiles it, or reads a compiled program.
func load(path string) (*program.Program, error) {
	loaded, err := fileio.Load(path)
	if err != nil {
		return nil, err
	}
	if loaded.IsProgram() {
		tracer().Infof("loaded compiled program %s", path)
		return loaded.Program, nil
	}
	result, err := compiler.Compile(loaded.Source)
	if err != nil {
		return nil, err
	}
	for _, w := range result.Warnings {
		pterm.Warning.Println(w.Error())
	}
	return result.Program, nil
}

func exitCode(res runtime.Result) int {
	switch res.Outcome {
	case runtime.RunCompleted:
		return exitOK
	case runtime.RunDeadlocked:
		return exitDeadlock
	case runtime.RunFaulted:
		return exitFault
	}
	return exitInconclusive
}

func setTraceLevel(level tracing.TraceLevel) {
	for _, key := range traceKeys {
		tracing.Select(key).SetTraceLevel(level)
	}
}

// We use pterm for moderately fancy output.
func initDisplay() {
	pterm.EnableDebugMessages()
	pterm.Info.Prefix = pterm.Prefix{
		Text:  "  >>",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  "  Error",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}

// reportError prints an error, classified by its severity.
func reportError(err error) {
	var e gobaci.ErrorBase
	if !errors.As(err, &e) {
		pterm.Error.Println(err.Error())
		return
	}
	switch e.Severity() {
	case gobaci.Warning:
		pterm.Warning.Println(e.Error())
	case gobaci.Fatal:
		pterm.Error.Println(fmt.Sprintf("[fatal %s] %s", e.Kind(), e.Error()))
	default:
		pterm.Error.Println(fmt.Sprintf("[%s] %s", e.Kind(), e.Error()))
	}
}

// reportResult prints the outcome of a run.
func reportResult(res runtime.Result) {
	for _, err := range res.ThreadErrors {
		reportError(err)
	}
	switch res.Outcome {
	case runtime.RunCompleted:
		pterm.Info.Println(fmt.Sprintf("all threads terminated after %d steps", res.Steps))
	case runtime.RunDeadlocked:
		pterm.Warning.Println(fmt.Sprintf("deadlock after %d steps, blocked threads: %v", res.Steps, res.Blocked))
		fmt.Println(threadTable(res.Snapshot))
	case runtime.RunFaulted:
		reportError(res.Err)
	case runtime.RunInconclusive:
		pterm.Warning.Println(fmt.Sprintf("step limit reached after %d steps", res.Steps))
	case runtime.RunStopped:
		pterm.Warning.Println(fmt.Sprintf("stopped after %d steps", res.Steps))
	}
}

// stdinInput reads integers from standard input, one per line.
func stdinInput() runtime.Input {
	scanner := bufio.NewScanner(os.Stdin)
	return runtime.InputFunc(func(thread int) (int64, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return 0, err
			}
			return 0, errors.New("end of input")
		}
		return strconv.ParseInt(strings.TrimSpace(scanner.Text()), 10, 64)
	})
}

const canvasWidth, canvasHeight = 60, 20

// drawers forwards drawing commands to several drawers.
type drawers []runtime.Drawer

func (d drawers) Draw(cmd runtime.DrawCommand) error {
	for _, drawer := range d {
		if err := drawer.Draw(cmd); err != nil {
			return err
		}
	}
	return nil
}

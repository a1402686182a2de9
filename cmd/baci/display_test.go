package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/npillmayer/gobaci/compiler"
	"github.com/npillmayer/gobaci/drawing"
	"github.com/npillmayer/gobaci/runtime"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

const philosophers = `
binarysem mutex = 1;
monitor table {
    int eaten = 0;
    condition served;
    void eat() { eaten++; signalc(served); }
}
bool hungry = true;
process p { wait(mutex); eat(); signal(mutex); }
process q { wait(mutex); eat(); signal(mutex); hungry = false; }
main { }
`

func TestDisplayTables(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.cli")
	defer teardown()
	//
	result, err := compiler.Compile(philosophers)
	if err != nil {
		t.Fatal(err)
	}
	res := runtime.New(result.Program).Run(context.Background())
	if res.Outcome != runtime.RunCompleted {
		t.Fatalf("expected run to complete, is %s", res.Outcome)
	}
	threads := threadTable(res.Snapshot)
	for _, s := range []string{"main", "p", "q", "terminated"} {
		if !strings.Contains(threads, s) {
			t.Errorf("expected thread table to contain %q:\n%s", s, threads)
		}
	}
	vars := variableTable(res.Snapshot)
	if !strings.Contains(vars, "eaten") || !strings.Contains(vars, "false") {
		t.Errorf("expected eaten and hungry = false in variable table:\n%s", vars)
	}
	syncs := syncTable(res.Snapshot)
	for _, s := range []string{"mutex", "binarysem", "table", "table.served", "free"} {
		if !strings.Contains(syncs, s) {
			t.Errorf("expected sync table to contain %q:\n%s", s, syncs)
		}
	}
	ll := structure(result.Program)
	if len(ll) == 0 || ll[0].Text != "threads" {
		t.Errorf("expected structure to start with threads, have %v", ll)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestPrintListing(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.cli")
	defer teardown()
	//
	result, err := compiler.Compile(philosophers)
	if err != nil {
		t.Fatal(err)
	}
	var out strings.Builder
	if !printListing(&out, result.Program) || !strings.Contains(out.String(), "Enter") {
		t.Errorf("expected listing to be written, have %q", out.String())
	}
	if printListing(failingWriter{}, result.Program) {
		t.Errorf("expected failing writer to be reported")
	}
}

func TestFormatting(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.cli")
	defer teardown()
	//
	if s := formatVar(runtime.VarInfo{Values: []int64{1, 2, 3}}); s != "[1 2 3]" {
		t.Errorf("unexpected array format %q", s)
	}
	if s := formatIDs(nil); s != "-" {
		t.Errorf("expected empty queue to print as '-', is %q", s)
	}
	if s := formatIDs([]int{2, 1}); s != "2 1" {
		t.Errorf("expected queue order to be kept, is %q", s)
	}
}

func TestExitCodes(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.cli")
	defer teardown()
	//
	for outcome, code := range map[runtime.RunOutcome]int{
		runtime.RunCompleted:    exitOK,
		runtime.RunDeadlocked:   exitDeadlock,
		runtime.RunFaulted:      exitFault,
		runtime.RunInconclusive: exitInconclusive,
		runtime.RunStopped:      exitInconclusive,
	} {
		if c := exitCode(runtime.Result{Outcome: outcome}); c != code {
			t.Errorf("%s: expected exit code %d, have %d", outcome, code, c)
		}
	}
}

func TestDrawersFanOut(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.cli")
	defer teardown()
	//
	rec, canvas := drawing.NewRecorder(), drawing.NewCanvas(3, 1)
	d := drawers{rec, canvas}
	d.Draw(runtime.DrawCommand{Kind: runtime.CmdLine, X1: 0, Y1: 0, X2: 2, Y2: 0})
	if len(rec.Commands()) != 1 || canvas.String() != "###\n" {
		t.Errorf("expected command to reach both drawers")
	}
}

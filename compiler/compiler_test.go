package compiler

import (
	"errors"
	"testing"

	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/gobaci/program"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

const sample = `
const int N = 2;
int counter = 0;
semaphore s = 1;

int twice(int v) {
    return 2 * v;
}

process p {
    wait(s);
    counter = counter + twice(N);
    signal(s);
}

process q {
    bump();   // declared below
}

void bump() {
    counter++;
}

main {
    write("counter = ", counter);
    writeln();
}
`

func TestCompileSample(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.compiler")
	defer teardown()
	//
	result, err := Compile(sample)
	if err != nil {
		t.Fatal(err)
	}
	prog := result.Program
	if err := prog.Validate(); err != nil {
		t.Errorf("expected compiled program to be valid: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings, have %v", result.Warnings)
	}
	procs := prog.Processes()
	if len(procs) != 2 || procs[0].Name != "p" || procs[1].Name != "q" {
		t.Fatalf("expected processes p and q in order of declaration, have %v", procs)
	}
	bump, ok := prog.EntryPoint("bump")
	if !ok {
		t.Fatal("expected label for routine bump")
	}
	found := false
	for pc := procs[1].Entry; pc < prog.Len(); pc++ {
		instr, _ := prog.Instruction(pc)
		if instr.Op == program.Call {
			found = instr.Addr.Offset == bump
			break
		}
	}
	if !found {
		t.Errorf("expected forward call in q to be patched to bump at %d", bump)
	}
	if sym, ok := prog.Lookup("s"); !ok || sym.Kind != program.SemaphoreSym || sym.SyncID != 0 {
		t.Errorf("expected semaphore s with id 0, have %v", sym)
	}
	if sems := prog.Semaphores(); len(sems) != 1 || sems[0].Initial != 1 {
		t.Errorf("expected semaphore s initialized to 1, have %v", sems)
	}
}

func TestConstantInitializers(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.compiler")
	defer teardown()
	//
	src := `
        const int K = 5;
        int n = 3 * K + 1, m = -(K % 3);
        bool b = !true || 2 < K;
        int a[K - 2];
        int z;
        main { z = n + m + a[0]; if (b) { write(z); } }
    `
	result, err := Compile(src)
	if err != nil {
		t.Fatal(err)
	}
	data := result.Program.Data()
	expect := []int64{16, -2, 1, 0, 0, 0, 0}
	if len(data) != len(expect) {
		t.Fatalf("expected %d globals, have %d: %v", len(expect), len(data), data)
	}
	for i, v := range expect {
		if data[i] != v {
			t.Errorf("expected global %d to be %d, is %d", i, v, data[i])
		}
	}
	if a, _ := result.Program.Lookup("a"); a.Kind != program.ArraySym || a.Length != 3 {
		t.Errorf("expected array a of length 3, have %v", a)
	}
}

func TestUndeclaredIdentifier(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.compiler")
	defer teardown()
	//
	result, err := Compile("int x;\nmain {\n  x = y + 1;\n}\n")
	if err == nil {
		t.Fatal("expected compile error for undeclared identifier")
	}
	if result.Program != nil {
		t.Errorf("expected no program to be produced")
	}
	var cerr *gobaci.CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected a CompileError, have %T", err)
	}
	if cerr.Kind() != gobaci.SemanticError || cerr.Pos.Line != 3 {
		t.Errorf("expected semantic error at line 3, have %v", cerr)
	}
	if cerr.Severity() != gobaci.Error {
		t.Errorf("expected severity error, have %s", cerr.Severity())
	}
}

var compileErrors = []struct {
	name string
	src  string
	kind gobaci.ErrKind
}{
	{"duplicate", "int x; int x;", gobaci.SemanticError},
	{"huge array", "int a[70000]; main { }", gobaci.SemanticError},
	{"huge frame", "main { int a[40000]; int b[40000]; }", gobaci.SemanticError},
	{"init type", "int x = true;", gobaci.TypeMismatch},
	{"nested process", "main { process p { } }", gobaci.SemanticError},
	{"assign const", "const int K = 1; main { K = 2; }", gobaci.SemanticError},
	{"wait on int", "int x; main { wait(x); }", gobaci.TypeMismatch},
	{"condition outside", "monitor m { condition c; } main { signalc(c); }", gobaci.SemanticError},
	{"unresolved forward", "main { foo(); }", gobaci.SemanticError},
	{"prototype only", "int f(int a); main { f(1); }", gobaci.SemanticError},
	{"array length", "int a[0];", gobaci.SemanticError},
	{"global init", "int x = 1; int y = x + 1;", gobaci.SemanticError},
	{"lexical", "main { int x; x = 3 $ 4; }", gobaci.LexicalError},
	{"routine arity", "void f(int a) { } main { f(1, 2); }", gobaci.SemanticError},
	{"forward arity", "main { f(1, 2); } void f(int a) { }", gobaci.SemanticError},
	{"monitor call", "monitor m { void a() { } void b() { a(); } }", gobaci.SemanticError},
	{"duplicate main", "main { } main { }", gobaci.SemanticError},
	{"sem arity", "semaphore s, t; main { wait(s, t); }", gobaci.SemanticError},
	{"syntax", "main { int x; x = 1 +; }", gobaci.SyntaxError},
	{"relational", "main { bool b; b = 1 < true; }", gobaci.TypeMismatch},
	{"return type", "int f() { return true; }", gobaci.TypeMismatch},
	{"void value", "void f() { } main { int x; x = f(); }", gobaci.TypeMismatch},
	{"condition", "main { int x; if (x) { } }", gobaci.TypeMismatch},
	{"binary init", "binarysem b = 2;", gobaci.SemanticError},
	{"local semaphore", "main { semaphore s; }", gobaci.SemanticError},
	{"missing brace", "main { write(1);", gobaci.SyntaxError},
	{"string value", `main { int x; x = "no"; }`, gobaci.TypeMismatch},
}

func TestCompileErrors(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.compiler")
	defer teardown()
	//
	for _, test := range compileErrors {
		result, err := Compile(test.src)
		if err == nil {
			t.Errorf("%s: expected compile error", test.name)
			continue
		}
		if result.Program != nil {
			t.Errorf("%s: expected no program", test.name)
		}
		var cerr *gobaci.CompileError
		if !errors.As(err, &cerr) {
			t.Errorf("%s: expected CompileError, have %T", test.name, err)
			continue
		}
		t.Logf("%s: %v", test.name, cerr)
		if cerr.Kind() != test.kind {
			t.Errorf("%s: expected %s, have %s", test.name, test.kind, cerr.Kind())
		}
		if !cerr.Pos.IsKnown() {
			t.Errorf("%s: expected error to carry a position", test.name)
		}
	}
}

func TestForwardCallDiscardsValue(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.compiler")
	defer teardown()
	//
	result, err := Compile("main { f(); } int f() { return 1; }")
	if err != nil {
		t.Fatal(err)
	}
	prog := result.Program
	main := prog.Main()
	call, _ := prog.Instruction(main.Entry)
	next, _ := prog.Instruction(main.Entry + 1)
	if call.Op != program.Call || next.Op != program.Pop {
		t.Errorf("expected Call followed by Pop, have %s and %s", call, next)
	}
}

func TestWarnings(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.compiler")
	defer teardown()
	//
	result, err := Compile("int unused; semaphore idle; main { int x; x = 1; }")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, have %v", result.Warnings)
	}
	for _, w := range result.Warnings {
		if w.Severity() != gobaci.Warning || w.Kind() != gobaci.UnusedDeclaration {
			t.Errorf("unexpected warning %v", w)
		}
	}
}

func TestMissingMainIsHalt(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.compiler")
	defer teardown()
	//
	result, err := Compile("process p { write(1); }")
	if err != nil {
		t.Fatal(err)
	}
	main := result.Program.Main()
	instr, _ := result.Program.Instruction(main.Entry)
	if main.Name != "main" || instr.Op != program.Halt {
		t.Errorf("expected implicit main thread to halt, have %v at %d", instr, main.Entry)
	}
}

func TestMonitorRoutines(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.compiler")
	defer teardown()
	//
	src := `
    monitor bank {
        int balance = 10;
        condition funds;
        void deposit(int n) { balance = balance + n; signalc(funds); }
        int withdraw(int n) {
            while (balance < n) waitc(funds);
            balance = balance - n;
            return balance;
        }
    }
    process client { int left; left = withdraw(5); deposit(1); }
    `
	result, err := Compile(src)
	if err != nil {
		t.Fatal(err)
	}
	prog := result.Program
	if m := prog.Monitors(); len(m) != 1 || len(m[0].Conditions) != 1 {
		t.Fatalf("expected monitor with one condition, have %v", m)
	}
	deposit, _ := prog.FrameLayout("deposit")
	if deposit.Monitor != 0 {
		t.Errorf("expected deposit to belong to monitor 0")
	}
	first, _ := prog.Instruction(deposit.Entry)
	if first.Op != program.Enter {
		t.Errorf("expected monitor routine to start with Enter, has %s", first)
	}
	if _, ok := prog.Lookup("balance"); !ok {
		t.Errorf("expected monitor variable in symbols")
	}
	if err := prog.Validate(); err != nil {
		t.Error(err)
	}
}

func TestDeterminism(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.compiler")
	defer teardown()
	//
	r1, err := Compile(sample)
	if err != nil {
		t.Fatal(err)
	}
	r2, _ := Compile(sample)
	fp1, err := r1.Program.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	fp2, _ := r2.Program.Fingerprint()
	if fp1 != fp2 {
		t.Errorf("expected identical fingerprints, have %s and %s", fp1, fp2)
	}
	if r1.Program.Len() != r2.Program.Len() {
		t.Fatalf("expected identical code length")
	}
	for i := 0; i < r1.Program.Len(); i++ {
		a, _ := r1.Program.Instruction(i)
		b, _ := r2.Program.Instruction(i)
		if a != b {
			t.Errorf("instruction %d differs: %s vs %s", i, a, b)
		}
	}
}

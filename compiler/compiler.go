package compiler

import (
	"fmt"

	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/gobaci/program"
	"github.com/npillmayer/gobaci/scanner"
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'baci.compiler'.
func tracer() tracing.Trace {
	return tracing.Select("baci.compiler")
}

// Result is the outcome of a successful compilation: a program and
// zero or more warnings.
type Result struct {
	Program  *program.Program
	Warnings []*gobaci.CompileError
}

// Compile compiles BACI source text into a program. On failure the error
// returned is a *gobaci.CompileError, and no program is produced.
func Compile(source string) (Result, error) {
	lexer, err := scanner.NewLexer()
	if err != nil {
		return Result{}, err
	}
	scan, err := lexer.Scanner(source)
	if err != nil {
		return Result{}, err
	}
	scan.SetErrorHandler(func(e error) {
		tracer().Debugf("lexical error: %v", e)
	})
	return CompileTokens(scan)
}

// CompileTokens compiles a program from a token source. Compilation stops at
// the first error.
func CompileTokens(tokens scanner.Tokenizer) (Result, error) {
	c := newCompiler(tokens)
	if err := c.compileProgram(); err != nil {
		tracer().Infof("compilation failed: %v", err)
		return Result{}, err
	}
	prog := program.New(c.image())
	tracer().Infof("compiled program with %d instructions, %d warnings", prog.Len(), len(c.warnings))
	return Result{Program: prog, Warnings: c.warnings}, nil
}

// --- Compiler state ----------------------------------------------------------

// frameContext describes the routine, process or main block currently being
// compiled.
type frameContext struct {
	entry   *program.Entry
	size    int
	routine *program.Symbol // nil for main and processes
	monitor int
}

func (f *frameContext) isRoutine() bool {
	return f.routine != nil
}

// callSite is a Call instruction whose target is patched at the end of
// compilation, when all frame sizes are known.
type callSite struct {
	pc  int
	sym *program.Symbol
}

// forwardCall is a call in statement position to a routine not declared yet.
type forwardCall struct {
	pc      int // Call instruction
	popPC   int // Nop, to be replaced by Pop for non-void routines
	name    string
	args    []program.Type
	pos     gobaci.Position
	monitor int // monitor of the calling routine, or -1
}

type compiler struct {
	tokens     scanner.Tokenizer
	tok        gobaci.Token // lookahead
	line       int          // source line for emitted instructions
	scopes     program.ScopeTree
	code       []program.Instruction
	data       []int64
	symbols    []*program.Symbol
	main       *program.Entry
	processes  []program.Entry
	routines   []program.Entry
	routineOf  map[*program.Symbol]int
	semaphores []program.Semaphore
	monitors   []program.Monitor
	conditions []program.Condition
	monitor    int // monitor currently being declared, or -1
	frame      *frameContext
	calls      []callSite
	forwards   []forwardCall
	warnings   []*gobaci.CompileError
}

func newCompiler(tokens scanner.Tokenizer) *compiler {
	c := &compiler{
		tokens:    tokens,
		routineOf: make(map[*program.Symbol]int),
		monitor:   -1,
	}
	c.next()
	return c
}

// --- Tokens -------------------------------------------------------------------

func (c *compiler) next() gobaci.Token {
	prev := c.tok
	c.tok = c.tokens.NextToken()
	return prev
}

func (c *compiler) is(t gobaci.TokType) bool {
	return c.tok.TokType() == t
}

func (c *compiler) accept(t gobaci.TokType) bool {
	if c.is(t) {
		c.next()
		return true
	}
	return false
}

func (c *compiler) expect(t gobaci.TokType) (gobaci.Token, error) {
	if !c.is(t) {
		return c.tok, c.unexpected(fmt.Sprintf("'%s'", scanner.TokenName(t)))
	}
	return c.next(), nil
}

// unexpected reports the lookahead as a syntax error. Error tokens produced
// by the scanner are reported as lexical errors.
func (c *compiler) unexpected(what string) error {
	if c.is(scanner.Error) {
		msg, _ := c.tok.Value().(string)
		if msg == "" {
			msg = fmt.Sprintf("illegal input %q", c.tok.Lexeme())
		}
		return gobaci.CompileErrorf(gobaci.LexicalError, c.tok.Pos(), "%s", msg)
	}
	found := scanner.TokenName(c.tok.TokType())
	if c.is(scanner.Ident) || c.is(scanner.Number) {
		found = fmt.Sprintf("%s '%s'", found, c.tok.Lexeme())
	}
	return gobaci.CompileErrorf(gobaci.SyntaxError, c.tok.Pos(), "expected %s, found %s", what, found)
}

func (c *compiler) errorf(kind gobaci.ErrKind, pos gobaci.Position, format string, args ...interface{}) error {
	return gobaci.CompileErrorf(kind, pos, format, args...)
}

func (c *compiler) warnf(pos gobaci.Position, format string, args ...interface{}) {
	w := gobaci.CompileErrorf(gobaci.UnusedDeclaration, pos, format, args...)
	w.Warn = true
	c.warnings = append(c.warnings, w)
}

// --- Symbols -------------------------------------------------------------------

// declare defines a symbol in scope sc. Duplicate declarations within the
// same scope are errors.
func (c *compiler) declare(sc *program.Scope, name gobaci.Token, kind program.SymKind) (*program.Symbol, error) {
	sym, old := sc.DefineSymbol(name.Lexeme(), kind)
	if sym == nil {
		return nil, c.errorf(gobaci.SemanticError, name.Pos(),
			"duplicate declaration of '%s' (previous declaration as %s at %s)", name.Lexeme(), old.Kind, old.Pos)
	}
	sym.Pos = name.Pos()
	sym.Monitor = c.monitor
	c.symbols = append(c.symbols, sym)
	tracer().Debugf("declared %v in %v", sym, sc)
	return sym, nil
}

// resolve looks up an identifier and marks it as used.
func (c *compiler) resolve(name gobaci.Token) (*program.Symbol, error) {
	sym, _ := c.scopes.Current().ResolveSymbol(name.Lexeme())
	if sym == nil {
		return nil, c.errorf(gobaci.SemanticError, name.Pos(), "undeclared identifier '%s'", name.Lexeme())
	}
	sym.Used = true
	return sym, nil
}

// allocate reserves storage for a variable or array of length n (0 for
// scalars), either in the data image or in the current frame.
func (c *compiler) allocate(sym *program.Symbol, n int) {
	cells := n
	if cells == 0 {
		cells = 1
	}
	sym.Length = n
	if c.frame == nil {
		sym.Addr = program.GlobalAddr(len(c.data))
		c.data = append(c.data, make([]int64, cells)...)
		return
	}
	sym.Addr = program.FrameAddr(c.frame.size)
	c.frame.size += cells
	c.frame.entry.Locals = append(c.frame.entry.Locals, program.Local{
		Name:   sym.Name,
		Offset: sym.Addr.Offset,
		Length: n,
		Type:   sym.Type,
	})
}

// --- Program -------------------------------------------------------------------

func (c *compiler) compileProgram() error {
	c.scopes.PushNewScope("globals")
	for !c.is(scanner.EOF) {
		if err := c.topDeclaration(); err != nil {
			return err
		}
	}
	return c.finish()
}

// finish resolves forward references, patches calls, provides a main thread
// if the source does not declare one, and collects warnings.
func (c *compiler) finish() error {
	for _, sym := range c.symbols {
		if sym.Kind == program.RoutineSym && !sym.Defined {
			return c.errorf(gobaci.SemanticError, sym.Pos, "routine '%s' declared but never defined", sym.Name)
		}
	}
	for _, fwd := range c.forwards {
		sym, _ := c.scopes.Globals().ResolveSymbol(fwd.name)
		if sym == nil {
			return c.errorf(gobaci.SemanticError, fwd.pos, "undeclared routine '%s'", fwd.name)
		}
		if sym.Kind != program.RoutineSym {
			return c.errorf(gobaci.TypeMismatch, fwd.pos, "'%s' is a %s, not a routine", fwd.name, sym.Kind)
		}
		sym.Used = true
		if err := c.checkCall(sym, fwd.args, fwd.monitor, fwd.pos); err != nil {
			return err
		}
		if sym.Type != program.Void {
			c.code[fwd.popPC].Op = program.Pop
		}
		c.calls = append(c.calls, callSite{pc: fwd.pc, sym: sym})
	}
	for _, call := range c.calls {
		routine := c.routines[c.routineOf[call.sym]]
		c.code[call.pc].Addr = program.CodeAddr(routine.Entry)
		c.code[call.pc].Len = routine.FrameSize
		c.code[call.pc].Text = call.sym.Name
	}
	if c.main == nil {
		c.main = &program.Entry{Name: "main", Kind: program.ProcessSym, Entry: len(c.code), Monitor: -1}
		c.emit(program.Instruction{Op: program.Halt})
	}
	for _, sym := range c.symbols {
		switch {
		case (sym.Kind == program.VarSym || sym.Kind == program.ArraySym) && !sym.Used:
			c.warnf(sym.Pos, "variable '%s' declared but never used", sym.Name)
		case sym.Kind.IsSemaphore() && !sym.Used:
			c.warnf(sym.Pos, "semaphore '%s' declared but never used", sym.Name)
		}
	}
	return nil
}

func (c *compiler) image() program.Image {
	img := program.Image{
		Code:       c.code,
		Data:       c.data,
		Main:       *c.main,
		Processes:  c.processes,
		Routines:   c.routines,
		Semaphores: c.semaphores,
		Monitors:   c.monitors,
		Conditions: c.conditions,
	}
	img.Symbols = make([]program.Symbol, len(c.symbols))
	for i, sym := range c.symbols {
		img.Symbols[i] = *sym
	}
	return img
}

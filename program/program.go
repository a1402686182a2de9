package program

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/cnf/structhash"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'baci.program'.
func tracer() tracing.Trace {
	return tracing.Select("baci.program")
}

// ErrInvalidAddress is wrapped by all errors caused by an address pointing
// outside of its address space.
var ErrInvalidAddress = errors.New("invalid address")

// MaxFrameSize bounds the number of slots of a call frame. It bounds the
// length of arrays as well.
const MaxFrameSize = 1 << 16

// --- Descriptors -------------------------------------------------------------

// Local describes a slot (or a run of slots for arrays) of a call frame.
type Local struct {
	Name   string
	Offset int
	Length int // 0 for scalars
	Type   Type
}

// Entry describes executable code: the main block, a process block or a
// routine. Threads start at the entry of main or of a process; routines are
// entered by Call.
type Entry struct {
	Name      string
	Kind      SymKind // ProcessSym or RoutineSym; main is a ProcessSym
	Entry     int
	FrameSize int
	Params    []Type
	Result    Type
	Monitor   int // id of the enclosing monitor, or -1
	Locals    []Local
	Line      int
}

// Semaphore describes a semaphore declaration.
type Semaphore struct {
	Name    string
	Initial int64
	Binary  bool
}

// Monitor describes a monitor declaration.
type Monitor struct {
	Name       string
	Conditions []int
}

// Condition describes a condition variable declared within a monitor.
type Condition struct {
	Name    string
	Monitor int
}

// Image is the complete, exported content of a program. It is used to build
// programs, either by the compiler or programmatically, and as the unit of
// serialization.
type Image struct {
	Code       []Instruction
	Data       []int64
	Symbols    []Symbol
	Main       Entry
	Processes  []Entry
	Routines   []Entry
	Semaphores []Semaphore
	Monitors   []Monitor
	Conditions []Condition
}

// --- Program ----------------------------------------------------------------

// Program is the immutable result of a compilation: instructions, the initial
// data image and descriptions of everything the runtime needs to know about
// threads, routines and synchronization objects. All accessors return copies.
// A Program may be shared between any number of runs.
type Program struct {
	img    Image
	labels map[string]int
	frames map[string]int // entry name → index into layout
	layout []Entry
}

// New creates a program from an image. The image is copied, callers may
// modify it afterwards. New does not validate the image; a program built from
// a broken image will produce runtime errors when executed.
func New(img Image) *Program {
	p := &Program{
		img:    copyImage(img),
		labels: make(map[string]int),
		frames: make(map[string]int),
	}
	if p.img.Main.Name == "" {
		p.img.Main.Name = "main"
	}
	add := func(e Entry) {
		p.labels[e.Name] = e.Entry
		p.frames[e.Name] = len(p.layout)
		p.layout = append(p.layout, e)
	}
	add(p.img.Main)
	for _, e := range p.img.Processes {
		add(e)
	}
	for _, e := range p.img.Routines {
		add(e)
	}
	tracer().Debugf("program with %d instructions, %d globals", len(p.img.Code), len(p.img.Data))
	return p
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.img.Code)
}

// Instruction returns the instruction at index i. If i is out of range,
// the second result is false.
func (p *Program) Instruction(i int) (Instruction, bool) {
	if i < 0 || i >= len(p.img.Code) {
		return Instruction{}, false
	}
	return p.img.Code[i], true
}

// LineOf returns the source line of the instruction at index i, or 0.
func (p *Program) LineOf(i int) int {
	if instr, ok := p.Instruction(i); ok {
		return instr.Line
	}
	return 0
}

// Data returns a fresh copy of the initial data image.
func (p *Program) Data() []int64 {
	return append([]int64(nil), p.img.Data...)
}

// EntryPoint returns the instruction index of a routine or process label.
func (p *Program) EntryPoint(name string) (int, bool) {
	e, ok := p.labels[name]
	return e, ok
}

// Main returns the entry of the main thread. If the source does not contain
// a main block, the main thread consists of a single Halt instruction.
func (p *Program) Main() Entry {
	return copyEntry(p.img.Main)
}

// Processes returns the process entries in order of declaration.
func (p *Program) Processes() []Entry {
	return copyEntries(p.img.Processes)
}

// Routines returns the routine entries in order of declaration.
func (p *Program) Routines() []Entry {
	return copyEntries(p.img.Routines)
}

// FrameLayout returns the entry describing frames created for name (main,
// a process or a routine).
func (p *Program) FrameLayout(name string) (Entry, bool) {
	if i, ok := p.frames[name]; ok {
		return copyEntry(p.layout[i]), true
	}
	return Entry{}, false
}

// Semaphores returns the semaphore descriptors, indexed by semaphore id.
func (p *Program) Semaphores() []Semaphore {
	return append([]Semaphore(nil), p.img.Semaphores...)
}

// Monitors returns the monitor descriptors, indexed by monitor id.
func (p *Program) Monitors() []Monitor {
	m := make([]Monitor, len(p.img.Monitors))
	for i, mon := range p.img.Monitors {
		m[i] = Monitor{Name: mon.Name, Conditions: append([]int(nil), mon.Conditions...)}
	}
	return m
}

// Conditions returns the condition descriptors, indexed by condition id.
func (p *Program) Conditions() []Condition {
	return append([]Condition(nil), p.img.Conditions...)
}

// Symbols returns all symbols in order of declaration.
func (p *Program) Symbols() []Symbol {
	syms := make([]Symbol, len(p.img.Symbols))
	for i, s := range p.img.Symbols {
		syms[i] = copySymbol(s)
	}
	return syms
}

// Lookup finds a symbol by name. Global symbols take precedence over
// symbols declared in inner scopes.
func (p *Program) Lookup(name string) (Symbol, bool) {
	found := -1
	for i, s := range p.img.Symbols {
		if s.Name != name {
			continue
		}
		if s.Depth == 0 {
			return copySymbol(s), true
		}
		if found < 0 {
			found = i
		}
	}
	if found >= 0 {
		return copySymbol(p.img.Symbols[found]), true
	}
	return Symbol{}, false
}

// Image returns a copy of the program's content.
func (p *Program) Image() Image {
	return copyImage(p.img)
}

// --- Addresses ----------------------------------------------------------------

// Memory is a view of the data a thread is able to address: the globals of
// a run and the slots of the thread's current frame.
type Memory struct {
	Globals []int64
	Frame   []int64
}

// Cell returns a pointer to the memory cell addressed by a.
func (m Memory) Cell(a Address) (*int64, error) {
	switch a.Kind {
	case Global:
		if a.Offset < 0 || a.Offset >= len(m.Globals) {
			return nil, fmt.Errorf("%w: %s outside of %d globals", ErrInvalidAddress, a, len(m.Globals))
		}
		return &m.Globals[a.Offset], nil
	case Frame:
		if a.Offset < 0 || a.Offset >= len(m.Frame) {
			return nil, fmt.Errorf("%w: %s outside of frame of size %d", ErrInvalidAddress, a, len(m.Frame))
		}
		return &m.Frame[a.Offset], nil
	}
	return nil, fmt.Errorf("%w: %s is not a data address", ErrInvalidAddress, a)
}

// Resolve reads the value at address a. It does not modify m.
func (p *Program) Resolve(a Address, m Memory) (int64, error) {
	cell, err := m.Cell(a)
	if err != nil {
		return 0, err
	}
	return *cell, nil
}

// --- Validation -----------------------------------------------------------------

// Validate checks the structural integrity of a program: every branch target
// is an instruction, every global address is inside the data image and every
// synchronization object referenced is declared.
func (p *Program) Validate() error {
	n := len(p.img.Code)
	checkEntry := func(e Entry) error {
		if e.Entry < 0 || e.Entry >= n {
			return fmt.Errorf("entry of %q outside of code: %d", e.Name, e.Entry)
		}
		if e.FrameSize < 0 || e.FrameSize < len(e.Params) || e.FrameSize > MaxFrameSize {
			return fmt.Errorf("entry of %q has invalid frame size %d", e.Name, e.FrameSize)
		}
		return nil
	}
	if err := checkEntry(p.img.Main); err != nil {
		return err
	}
	for _, e := range p.img.Processes {
		if err := checkEntry(e); err != nil {
			return err
		}
	}
	for _, e := range p.img.Routines {
		if err := checkEntry(e); err != nil {
			return err
		}
	}
	for pc, instr := range p.img.Code {
		if err := p.validateInstruction(instr, n); err != nil {
			return fmt.Errorf("instruction %d (%s): %w", pc, instr, err)
		}
	}
	for i, c := range p.img.Conditions {
		if c.Monitor < 0 || c.Monitor >= len(p.img.Monitors) {
			return fmt.Errorf("condition %d refers to undeclared monitor %d", i, c.Monitor)
		}
	}
	return nil
}

func (p *Program) validateInstruction(instr Instruction, n int) error {
	if !instr.Op.IsValid() {
		return fmt.Errorf("unknown opcode")
	}
	switch instr.Op {
	case Jump, JumpFalse, Call:
		if instr.Addr.Kind != Code || instr.Addr.Offset < 0 || instr.Addr.Offset >= n {
			return fmt.Errorf("%w: branch target %s", ErrInvalidAddress, instr.Addr)
		}
		if instr.Op == Call && (instr.Len > MaxFrameSize || instr.Imm < 0 || instr.Imm > int64(instr.Len)) {
			return fmt.Errorf("call with %d arguments into frame of size %d", instr.Imm, instr.Len)
		}
	case Load, Store, LoadIdx, StoreIdx:
		size := 1
		if instr.Op == LoadIdx || instr.Op == StoreIdx {
			size = instr.Len
			if size < 1 || size > MaxFrameSize {
				return fmt.Errorf("%w: array length %d", ErrInvalidAddress, size)
			}
		}
		switch instr.Addr.Kind {
		case Global:
			if instr.Addr.Offset < 0 || instr.Addr.Offset+size > len(p.img.Data) {
				return fmt.Errorf("%w: %s outside of data image", ErrInvalidAddress, instr.Addr)
			}
		case Frame:
			if instr.Addr.Offset < 0 || instr.Addr.Offset+size > MaxFrameSize {
				return fmt.Errorf("%w: %s outside of any frame", ErrInvalidAddress, instr.Addr)
			}
		default:
			return fmt.Errorf("%w: %s is not a data address", ErrInvalidAddress, instr.Addr)
		}
	case Wait, Signal, InitSem:
		if instr.Imm < 0 || int(instr.Imm) >= len(p.img.Semaphores) {
			return fmt.Errorf("undeclared semaphore %d", instr.Imm)
		}
	case Enter, Exit:
		if instr.Imm < 0 || int(instr.Imm) >= len(p.img.Monitors) {
			return fmt.Errorf("undeclared monitor %d", instr.Imm)
		}
	case CondWait, CondSignal, CondEmpty:
		if instr.Imm < 0 || int(instr.Imm) >= len(p.img.Conditions) {
			return fmt.Errorf("undeclared condition %d", instr.Imm)
		}
	}
	return nil
}

// --- Listings and fingerprints ---------------------------------------------------

// Disassemble writes a listing of the program's instructions to w.
func (p *Program) Disassemble(w io.Writer) error {
	labels := make(map[int][]string)
	for _, e := range p.layout {
		labels[e.Entry] = append(labels[e.Entry], e.Name)
	}
	listing := table.NewWriter()
	listing.AppendHeader(table.Row{"PC", "Label", "Instruction", "Line"})
	for pc, instr := range p.img.Code {
		names := labels[pc]
		sort.Strings(names)
		label := ""
		for i, nm := range names {
			if i > 0 {
				label += ","
			}
			label += nm
		}
		line := ""
		if instr.Line > 0 {
			line = fmt.Sprintf("%d", instr.Line)
		}
		listing.AppendRow(table.Row{pc, label, instr.String(), line})
	}
	_, err := fmt.Fprintln(w, listing.Render())
	return err
}

// Fingerprint returns a hash over the complete content of a program.
// Compiling the same source twice yields identical fingerprints.
func (p *Program) Fingerprint() (string, error) {
	return structhash.Hash(p.img, 1)
}

// --- Copying ----------------------------------------------------------------

func copySymbol(s Symbol) Symbol {
	s.Params = append([]Type(nil), s.Params...)
	return s
}

func copyEntry(e Entry) Entry {
	e.Params = append([]Type(nil), e.Params...)
	e.Locals = append([]Local(nil), e.Locals...)
	return e
}

func copyEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	c := make([]Entry, len(entries))
	for i, e := range entries {
		c[i] = copyEntry(e)
	}
	return c
}

func copyImage(img Image) Image {
	c := Image{
		Code:       append([]Instruction(nil), img.Code...),
		Data:       append([]int64(nil), img.Data...),
		Main:       copyEntry(img.Main),
		Processes:  copyEntries(img.Processes),
		Routines:   copyEntries(img.Routines),
		Semaphores: append([]Semaphore(nil), img.Semaphores...),
		Conditions: append([]Condition(nil), img.Conditions...),
	}
	if img.Symbols != nil {
		c.Symbols = make([]Symbol, len(img.Symbols))
		for i, s := range img.Symbols {
			c.Symbols[i] = copySymbol(s)
		}
	}
	if img.Monitors != nil {
		c.Monitors = make([]Monitor, len(img.Monitors))
		for i, m := range img.Monitors {
			c.Monitors[i] = Monitor{Name: m.Name, Conditions: append([]int(nil), m.Conditions...)}
		}
	}
	return c
}

package program

import (
	"fmt"

	"github.com/npillmayer/gobaci"
)

// Symbol table for declarations. Symbol tables are attached to scopes.
// Scopes are organized in a tree, which the compiler treats as a stack.
//

// --- Types and kinds -------------------------------------------------------

// Type is the value type of a declaration or expression.
type Type int8

// Value types of the language.
const (
	Void Type = iota
	Int
	Bool
)

func (t Type) String() string {
	switch t {
	case Void:
		return "void"
	case Int:
		return "int"
	case Bool:
		return "bool"
	}
	return fmt.Sprintf("Type(%d)", int8(t))
}

// SymKind tells what a symbol denotes.
type SymKind int8

// Kinds of symbols.
const (
	NoSymbol SymKind = iota
	ConstSym
	VarSym
	ArraySym
	ParamSym
	SemaphoreSym
	BinarySemSym
	MonitorSym
	ConditionSym
	RoutineSym
	ProcessSym
)

var symKindNames = [...]string{"none", "const", "var", "array", "param",
	"semaphore", "binarysem", "monitor", "condition", "routine", "process"}

func (k SymKind) String() string {
	if int(k) < len(symKindNames) {
		return symKindNames[k]
	}
	return fmt.Sprintf("SymKind(%d)", int8(k))
}

// IsStorage is a predicate: does a symbol of this kind occupy data memory?
func (k SymKind) IsStorage() bool {
	return k == VarSym || k == ArraySym || k == ParamSym
}

// IsSemaphore is a predicate: does the kind denote a semaphore?
func (k SymKind) IsSemaphore() bool {
	return k == SemaphoreSym || k == BinarySemSym
}

// --- Symbols ----------------------------------------------------------------

// Symbol is an entry of a symbol table. Depending on Kind, some fields are
// not meaningful:
//
//    Addr     storage address of variables, arrays and parameters;
//             entry point (Code) of routines and processes
//    Value    value of constants
//    Length   number of elements of arrays
//    SyncID   id of semaphores, monitors and conditions
//    Monitor  id of the monitor a symbol is declared in, or -1
//
type Symbol struct {
	Name    string
	Kind    SymKind
	Type    Type
	Addr    Address
	Value   int64
	Length  int
	SyncID  int
	Monitor int
	Scope   string
	Depth   int
	Pos     gobaci.Position
	Params  []Type
	Defined bool   // routine has a body
	Used    bool   // symbol has been referenced
}

// NewSymbol creates a new symbol of a given kind.
func NewSymbol(nm string, kind SymKind) *Symbol {
	return &Symbol{
		Name:    nm,
		Kind:    kind,
		SyncID:  -1,
		Monitor: -1,
	}
}

// WithType sets the value type of a symbol. Use as
//
//    sym := NewSymbol("counter", VarSym).WithType(Int)
//
func (s *Symbol) WithType(t Type) *Symbol {
	s.Type = t
	return s
}

// String is a debug Stringer for symbols.
func (s *Symbol) String() string {
	return fmt.Sprintf("<%s %s '%s' %s>", s.Kind, s.Type, s.Name, s.Addr)
}

// === Symbol Tables =========================================================

// SymbolTable is a symbol table to store symbols (map-like semantics).
// Iteration follows declaration order.
type SymbolTable struct {
	table map[string]*Symbol
	order []*Symbol
}

// NewSymbolTable creates an empty symbol table.
//
func NewSymbolTable() *SymbolTable {
	var symtab = SymbolTable{
		table: make(map[string]*Symbol),
	}
	return &symtab
}

// ResolveSymbol checks for a symbol in the symbol table.
// Returns a symbol or nil.
//
func (t *SymbolTable) ResolveSymbol(name string) *Symbol {
	return t.table[name]
}

// DefineSymbol creates a new symbol to store into the symbol table.
// The symbol's name may not be empty.
// Will not overwrite an existing symbol with this name; instead, the
// existing one is returned as the second result.
//
func (t *SymbolTable) DefineSymbol(name string, kind SymKind) (*Symbol, *Symbol) {
	if len(name) == 0 {
		return nil, nil
	}
	if old := t.ResolveSymbol(name); old != nil {
		return nil, old
	}
	sym := NewSymbol(name, kind)
	t.InsertSymbol(sym)
	return sym, nil
}

// InsertSymbol inserts a pre-created symbol. Returns a symbol previously
// stored under the same name, which will be replaced.
func (t *SymbolTable) InsertSymbol(sym *Symbol) *Symbol {
	old := t.ResolveSymbol(sym.Name)
	t.table[sym.Name] = sym
	if old != nil {
		for i, s := range t.order {
			if s == old {
				t.order[i] = sym
				return old
			}
		}
	}
	t.order = append(t.order, sym)
	return old
}

// Size counts the symbols in a symbol table.
func (t *SymbolTable) Size() int {
	return len(t.order)
}

// Each iterates over each symbol in the table in order of declaration,
// executing a mapper function.
func (t *SymbolTable) Each(mapper func(string, *Symbol)) {
	for _, sym := range t.order {
		mapper(sym.Name, sym)
	}
}

// === Scopes ================================================================

// Scope is a named scope, which may contain symbol definitions. Scopes link back to a
// parent scope, forming a tree.
type Scope struct {
	Name   string
	Parent *Scope
	Depth  int
	symtab *SymbolTable
}

// NewScope creates a new scope.
func NewScope(nm string, parent *Scope) *Scope {
	sc := &Scope{
		Name:   nm,
		Parent: parent,
		symtab: NewSymbolTable(),
	}
	if parent != nil {
		sc.Depth = parent.Depth + 1
	}
	return sc
}

// Prettyfied Stringer.
func (s *Scope) String() string {
	return fmt.Sprintf("<scope %s>", s.Name)
}

// Symbols returns the symbol table of a scope.
func (s *Scope) Symbols() *SymbolTable {
	return s.symtab
}

// DefineSymbol defines a symbol in the scope. Returns the new symbol, or nil
// and the symbol already declared under this name in this scope.
//
func (s *Scope) DefineSymbol(name string, kind SymKind) (*Symbol, *Symbol) {
	sym, old := s.symtab.DefineSymbol(name, kind)
	if sym != nil {
		sym.Scope = s.Name
		sym.Depth = s.Depth
	}
	return sym, old
}

// ResolveSymbol finds a symbol. Returns the symbol (or nil) and a scope. The scope is
// the scope (of a scope-tree-path) the symbol was found in.
//
func (s *Scope) ResolveSymbol(name string) (*Symbol, *Scope) {
	for ; s != nil; s = s.Parent {
		if sym := s.symtab.ResolveSymbol(name); sym != nil {
			return sym, s
		}
	}
	return nil, nil
}

// ---------------------------------------------------------------------------

// ScopeTree can be treated as a stack during static analysis, thus
// building a tree from scopes which are pushed an popped to/from the stack.
//
type ScopeTree struct {
	ScopeBase *Scope
	ScopeTOS  *Scope
}

// Current gets the current scope of a stack (TOS).
func (scst *ScopeTree) Current() *Scope {
	if scst.ScopeTOS == nil {
		panic("attempt to access scope from empty stack")
	}
	return scst.ScopeTOS
}

// Globals gets the outermost scope, containing global symbols.
func (scst *ScopeTree) Globals() *Scope {
	if scst.ScopeBase == nil {
		panic("attempt to access global scope from empty stack")
	}
	return scst.ScopeBase
}

// PushNewScope pushes a scope onto the stack of scopes. A scope is constructed, including a symbol table
// for declarations.
func (scst *ScopeTree) PushNewScope(nm string) *Scope {
	scp := scst.ScopeTOS
	newsc := NewScope(nm, scp)
	if scp == nil { // the new scope is the global scope
		scst.ScopeBase = newsc // make new scope anchor
	}
	scst.ScopeTOS = newsc // new scope now TOS
	tracer().P("scope", newsc.Name).Debugf("pushing new scope")
	return newsc
}

// PopScope pops the top-most (recent) scope.
func (scst *ScopeTree) PopScope() *Scope {
	if scst.ScopeTOS == nil {
		panic("attempt to pop scope from empty stack")
	}
	sc := scst.ScopeTOS
	tracer().Debugf("popping scope [%s]", sc.Name)
	scst.ScopeTOS = scst.ScopeTOS.Parent
	return sc
}

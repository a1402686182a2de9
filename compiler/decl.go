package compiler

import (
	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/gobaci/program"
	"github.com/npillmayer/gobaci/scanner"
)

func (c *compiler) topDeclaration() error {
	c.line = c.tok.Pos().Line
	switch c.tok.TokType() {
	case scanner.KwConst:
		return c.constDeclaration()
	case scanner.KwInt, scanner.KwBool:
		typ := c.typeOf(c.next())
		name, err := c.expect(scanner.Ident)
		if err != nil {
			return err
		}
		if c.is(scanner.LParen) {
			return c.routineDeclaration(typ, name)
		}
		return c.variableDeclaration(typ, name)
	case scanner.KwVoid:
		c.next()
		if c.is(scanner.KwMain) {
			return c.mainBlock()
		}
		name, err := c.expect(scanner.Ident)
		if err != nil {
			return err
		}
		return c.routineDeclaration(program.Void, name)
	case scanner.KwSemaphore, scanner.KwBinarysem:
		return c.semaphoreDeclaration()
	case scanner.KwMonitor:
		return c.monitorDeclaration()
	case scanner.KwProcess:
		return c.processDeclaration()
	case scanner.KwMain:
		return c.mainBlock()
	case scanner.KwCondition:
		return c.errorf(gobaci.SemanticError, c.tok.Pos(), "condition variables may only be declared inside a monitor")
	}
	return c.unexpected("declaration")
}

func (c *compiler) typeOf(tok gobaci.Token) program.Type {
	switch tok.TokType() {
	case scanner.KwInt:
		return program.Int
	case scanner.KwBool:
		return program.Bool
	}
	return program.Void
}

func (c *compiler) valueType() (program.Type, error) {
	if c.is(scanner.KwInt) || c.is(scanner.KwBool) {
		return c.typeOf(c.next()), nil
	}
	return program.Void, c.unexpected("'int' or 'bool'")
}

// --- Constants and variables -------------------------------------------------------

// constDeclaration parses
//
//    const type ident = constexpr ;
//
func (c *compiler) constDeclaration() error {
	c.next()
	typ, err := c.valueType()
	if err != nil {
		return err
	}
	name, err := c.expect(scanner.Ident)
	if err != nil {
		return err
	}
	if _, err = c.expect(scanner.Assign); err != nil {
		return err
	}
	pos := c.tok.Pos()
	v, vtyp, err := c.constExpression()
	if err != nil {
		return err
	}
	if vtyp != typ {
		return c.errorf(gobaci.TypeMismatch, pos, "cannot initialize %s constant '%s' with %s value", typ, name.Lexeme(), vtyp)
	}
	sym, err := c.declare(c.scopes.Current(), name, program.ConstSym)
	if err != nil {
		return err
	}
	sym.Type, sym.Value = typ, v
	_, err = c.expect(scanner.Semicolon)
	return err
}

// variableDeclaration parses the remainder of
//
//    type ident [ "[" constexpr "]" ] [ "=" expr ] { "," ident … } ;
//
// after the first identifier. Global variables get constant initializers
// folded into the data image, local variables are initialized by code.
func (c *compiler) variableDeclaration(typ program.Type, name gobaci.Token) error {
	for {
		if err := c.declareVariable(typ, name); err != nil {
			return err
		}
		if !c.accept(scanner.Comma) {
			break
		}
		var err error
		if name, err = c.expect(scanner.Ident); err != nil {
			return err
		}
	}
	_, err := c.expect(scanner.Semicolon)
	return err
}

func (c *compiler) declareVariable(typ program.Type, name gobaci.Token) error {
	length := 0
	if c.accept(scanner.LBracket) {
		pos := c.tok.Pos()
		n, ntyp, err := c.constExpression()
		if err != nil {
			return err
		}
		if ntyp != program.Int || n <= 0 {
			return c.errorf(gobaci.SemanticError, pos, "length of array '%s' must be a positive integer constant", name.Lexeme())
		}
		if n > program.MaxFrameSize {
			return c.errorf(gobaci.SemanticError, pos, "array '%s' exceeds %d elements", name.Lexeme(), program.MaxFrameSize)
		}
		length = int(n)
		if _, err := c.expect(scanner.RBracket); err != nil {
			return err
		}
	}
	cells := length
	if cells == 0 {
		cells = 1
	}
	if c.frame != nil && c.frame.size+cells > program.MaxFrameSize {
		return c.errorf(gobaci.SemanticError, name.Pos(), "local variables exceed %d slots", program.MaxFrameSize)
	}
	kind := program.VarSym
	if length > 0 {
		kind = program.ArraySym
	}
	sym, err := c.declare(c.scopes.Current(), name, kind)
	if err != nil {
		return err
	}
	sym.Type = typ
	c.allocate(sym, length)
	if !c.accept(scanner.Assign) {
		if c.frame != nil { // re-entered blocks start afresh
			c.zero(sym, length)
		}
		return nil
	}
	pos := c.tok.Pos()
	if length > 0 {
		return c.errorf(gobaci.SemanticError, pos, "array '%s' cannot have an initializer", name.Lexeme())
	}
	if c.frame == nil {
		v, vtyp, err := c.constExpression()
		if err != nil {
			if ce, ok := err.(*gobaci.CompileError); ok && ce.Reason == gobaci.SemanticError {
				ce.Cause = "initializer of global variable '" + name.Lexeme() + "': " + ce.Cause
			}
			return err
		}
		if vtyp != typ {
			return c.errorf(gobaci.TypeMismatch, pos, "cannot initialize %s variable '%s' with %s value", typ, name.Lexeme(), vtyp)
		}
		c.data[sym.Addr.Offset] = v
		return nil
	}
	vtyp, err := c.expression()
	if err != nil {
		return err
	}
	if vtyp != typ {
		return c.errorf(gobaci.TypeMismatch, pos, "cannot initialize %s variable '%s' with %s value", typ, name.Lexeme(), vtyp)
	}
	c.emitStore(sym)
	return nil
}

// --- Synchronization objects ------------------------------------------------------

// semaphoreDeclaration parses
//
//    ( "semaphore" | "binarysem" ) ident [ "=" constexpr ] { "," … } ;
//
func (c *compiler) semaphoreDeclaration() error {
	kw := c.next()
	if c.frame != nil || c.monitor >= 0 {
		return c.errorf(gobaci.SemanticError, kw.Pos(), "semaphores must be declared at top level")
	}
	binary := kw.TokType() == scanner.KwBinarysem
	kind := program.SemaphoreSym
	if binary {
		kind = program.BinarySemSym
	}
	for {
		name, err := c.expect(scanner.Ident)
		if err != nil {
			return err
		}
		var initial int64
		if c.accept(scanner.Assign) {
			pos := c.tok.Pos()
			v, typ, err := c.constExpression()
			if err != nil {
				return err
			}
			if typ != program.Int {
				return c.errorf(gobaci.TypeMismatch, pos, "initial value of semaphore '%s' must be an integer", name.Lexeme())
			}
			if v < 0 || (binary && v > 1) {
				return c.errorf(gobaci.SemanticError, pos, "invalid initial value %d for %s '%s'", v, kind, name.Lexeme())
			}
			initial = v
		}
		sym, err := c.declare(c.scopes.Current(), name, kind)
		if err != nil {
			return err
		}
		sym.Type = program.Int
		sym.SyncID = len(c.semaphores)
		sym.Value = initial
		c.semaphores = append(c.semaphores, program.Semaphore{
			Name:    sym.Name,
			Initial: initial,
			Binary:  binary,
		})
		if !c.accept(scanner.Comma) {
			break
		}
	}
	_, err := c.expect(scanner.Semicolon)
	return err
}

// monitorDeclaration parses
//
//    monitor ident { { constdecl | vardecl | conddecl | routine } }
//
// Monitor variables live in global storage, but are visible to the
// monitor's routines only.
func (c *compiler) monitorDeclaration() error {
	c.next()
	name, err := c.expect(scanner.Ident)
	if err != nil {
		return err
	}
	sym, err := c.declare(c.scopes.Globals(), name, program.MonitorSym)
	if err != nil {
		return err
	}
	sym.SyncID = len(c.monitors)
	c.monitors = append(c.monitors, program.Monitor{Name: sym.Name})
	if _, err = c.expect(scanner.LBrace); err != nil {
		return err
	}
	c.monitor = sym.SyncID
	c.scopes.PushNewScope(sym.Name)
	for !c.accept(scanner.RBrace) {
		c.line = c.tok.Pos().Line
		switch c.tok.TokType() {
		case scanner.KwConst:
			err = c.constDeclaration()
		case scanner.KwCondition:
			err = c.conditionDeclaration()
		case scanner.KwInt, scanner.KwBool:
			typ := c.typeOf(c.next())
			var name gobaci.Token
			if name, err = c.expect(scanner.Ident); err != nil {
				break
			}
			if c.is(scanner.LParen) {
				err = c.routineDeclaration(typ, name)
			} else {
				err = c.variableDeclaration(typ, name)
			}
		case scanner.KwVoid:
			c.next()
			var name gobaci.Token
			if name, err = c.expect(scanner.Ident); err == nil {
				err = c.routineDeclaration(program.Void, name)
			}
		case scanner.KwProcess:
			err = c.errorf(gobaci.SemanticError, c.tok.Pos(), "process blocks are only allowed at top level")
		case scanner.KwMonitor:
			err = c.errorf(gobaci.SemanticError, c.tok.Pos(), "monitors cannot be nested")
		case scanner.KwSemaphore, scanner.KwBinarysem:
			err = c.errorf(gobaci.SemanticError, c.tok.Pos(), "semaphores must be declared at top level")
		default:
			err = c.unexpected("declaration in monitor")
		}
		if err != nil {
			return err
		}
	}
	c.scopes.PopScope()
	c.monitor = -1
	return nil
}

// conditionDeclaration parses
//
//    condition ident { "," ident } ;
//
func (c *compiler) conditionDeclaration() error {
	kw := c.next()
	if c.monitor < 0 || c.frame != nil {
		return c.errorf(gobaci.SemanticError, kw.Pos(), "condition variables may only be declared inside a monitor")
	}
	for {
		name, err := c.expect(scanner.Ident)
		if err != nil {
			return err
		}
		sym, err := c.declare(c.scopes.Current(), name, program.ConditionSym)
		if err != nil {
			return err
		}
		sym.SyncID = len(c.conditions)
		c.conditions = append(c.conditions, program.Condition{Name: sym.Name, Monitor: c.monitor})
		c.monitors[c.monitor].Conditions = append(c.monitors[c.monitor].Conditions, sym.SyncID)
		if !c.accept(scanner.Comma) {
			break
		}
	}
	_, err := c.expect(scanner.Semicolon)
	return err
}

// --- Routines and threads -------------------------------------------------------

// routineDeclaration parses the remainder of a routine declaration after its
// name. A routine without a body is a prototype.
func (c *compiler) routineDeclaration(result program.Type, name gobaci.Token) error {
	if c.frame != nil {
		return c.errorf(gobaci.SemanticError, name.Pos(), "routines cannot be nested")
	}
	params, names, err := c.parameters()
	if err != nil {
		return err
	}
	sym, err := c.routineSymbol(result, name, params)
	if err != nil {
		return err
	}
	if c.accept(scanner.Semicolon) {
		return nil
	}
	if !c.is(scanner.LBrace) {
		return c.unexpected("routine body or ';'")
	}
	sym.Defined = true
	entry := &c.routines[c.routineOf[sym]]
	entry.Entry = c.here()
	entry.Line = name.Pos().Line
	entry.Locals = nil
	sym.Addr = program.CodeAddr(entry.Entry)
	c.frame = &frameContext{entry: entry, routine: sym, monitor: c.monitor}
	c.scopes.PushNewScope(sym.Name)
	for i, pname := range names {
		psym, err := c.declare(c.scopes.Current(), pname, program.ParamSym)
		if err != nil {
			return err
		}
		psym.Type = params[i]
		psym.Used = true
		c.allocate(psym, 0)
	}
	if c.monitor >= 0 {
		c.emitSync(program.Enter, c.monitor)
	}
	if err := c.blockBody(); err != nil {
		return err
	}
	if result == program.Void {
		c.emitReturn()
	} else {
		c.emitTrap(gobaci.MissingReturn, "routine '"+sym.Name+"' ends without returning a value")
	}
	c.scopes.PopScope()
	entry.FrameSize = c.frame.size
	c.frame = nil
	tracer().Debugf("routine %s at %d, frame size %d", sym.Name, entry.Entry, entry.FrameSize)
	return nil
}

// emitReturn leaves the current routine, releasing its monitor.
func (c *compiler) emitReturn() {
	if c.frame.monitor >= 0 {
		c.emitSync(program.Exit, c.frame.monitor)
	}
	c.emitOp(program.Return)
}

func (c *compiler) parameters() ([]program.Type, []gobaci.Token, error) {
	if _, err := c.expect(scanner.LParen); err != nil {
		return nil, nil, err
	}
	var types []program.Type
	var names []gobaci.Token
	if c.accept(scanner.RParen) {
		return types, names, nil
	}
	for {
		typ, err := c.valueType()
		if err != nil {
			return nil, nil, err
		}
		name, err := c.expect(scanner.Ident)
		if err != nil {
			return nil, nil, err
		}
		types = append(types, typ)
		names = append(names, name)
		if !c.accept(scanner.Comma) {
			break
		}
	}
	_, err := c.expect(scanner.RParen)
	return types, names, err
}

// routineSymbol declares a routine or matches a definition with its
// prototype. Routines are declared globally, even those of monitors, as
// monitor routines are called by plain name from outside the monitor.
func (c *compiler) routineSymbol(result program.Type, name gobaci.Token, params []program.Type) (*program.Symbol, error) {
	if sym, _ := c.scopes.Globals().ResolveSymbol(name.Lexeme()); sym != nil &&
		sym.Kind == program.RoutineSym && !sym.Defined && c.is(scanner.LBrace) {
		if sym.Type != result || sym.Monitor != c.monitor || !sameTypes(sym.Params, params) {
			return nil, c.errorf(gobaci.TypeMismatch, name.Pos(),
				"definition of '%s' does not match its prototype at %s", name.Lexeme(), sym.Pos)
		}
		return sym, nil
	}
	sym, err := c.declare(c.scopes.Globals(), name, program.RoutineSym)
	if err != nil {
		return nil, err
	}
	sym.Type = result
	sym.Params = params
	c.routineOf[sym] = len(c.routines)
	c.routines = append(c.routines, program.Entry{
		Name:    sym.Name,
		Kind:    program.RoutineSym,
		Entry:   -1,
		Params:  params,
		Result:  result,
		Monitor: c.monitor,
		Line:    name.Pos().Line,
	})
	return sym, nil
}

func sameTypes(a, b []program.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// processDeclaration parses
//
//    process ident block
//
// Every process becomes a thread of its own.
func (c *compiler) processDeclaration() error {
	c.next()
	name, err := c.expect(scanner.Ident)
	if err != nil {
		return err
	}
	sym, err := c.declare(c.scopes.Globals(), name, program.ProcessSym)
	if err != nil {
		return err
	}
	sym.Used = true
	entry, err := c.threadBlock(sym.Name, name.Pos())
	if err != nil {
		return err
	}
	sym.Addr = program.CodeAddr(entry.Entry)
	c.processes = append(c.processes, entry)
	return nil
}

// mainBlock parses
//
//    [ "void" ] main [ "(" ")" ] block
//
func (c *compiler) mainBlock() error {
	kw, err := c.expect(scanner.KwMain)
	if err != nil {
		return err
	}
	if c.main != nil {
		return c.errorf(gobaci.SemanticError, kw.Pos(), "duplicate main block")
	}
	if c.accept(scanner.LParen) {
		if _, err := c.expect(scanner.RParen); err != nil {
			return err
		}
	}
	entry, err := c.threadBlock("main", kw.Pos())
	if err != nil {
		return err
	}
	c.main = &entry
	return nil
}

func (c *compiler) threadBlock(name string, pos gobaci.Position) (program.Entry, error) {
	entry := &program.Entry{
		Name:    name,
		Kind:    program.ProcessSym,
		Entry:   c.here(),
		Monitor: -1,
		Line:    pos.Line,
	}
	c.frame = &frameContext{entry: entry, monitor: -1}
	if err := c.block(name); err != nil {
		return program.Entry{}, err
	}
	c.emitOp(program.Halt)
	entry.FrameSize = c.frame.size
	c.frame = nil
	tracer().Debugf("thread %s at %d, frame size %d", name, entry.Entry, entry.FrameSize)
	return *entry, nil
}

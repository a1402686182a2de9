package compiler

import (
	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/gobaci/program"
	"github.com/npillmayer/gobaci/scanner"
)

// block parses a block with a scope of its own.
func (c *compiler) block(name string) error {
	c.scopes.PushNewScope(name)
	if err := c.blockBody(); err != nil {
		return err
	}
	c.scopes.PopScope()
	return nil
}

// blockBody parses
//
//    { { constdecl | vardecl | stmt } }
//
// within the current scope.
func (c *compiler) blockBody() error {
	if _, err := c.expect(scanner.LBrace); err != nil {
		return err
	}
	for !c.accept(scanner.RBrace) {
		c.line = c.tok.Pos().Line
		var err error
		switch c.tok.TokType() {
		case scanner.KwConst:
			err = c.constDeclaration()
		case scanner.KwInt, scanner.KwBool:
			typ := c.typeOf(c.next())
			var name gobaci.Token
			if name, err = c.expect(scanner.Ident); err == nil {
				if c.is(scanner.LParen) {
					err = c.errorf(gobaci.SemanticError, name.Pos(), "routines cannot be nested")
				} else {
					err = c.variableDeclaration(typ, name)
				}
			}
		case scanner.EOF:
			err = c.unexpected("'}'")
		default:
			err = c.statement()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) statement() error {
	c.line = c.tok.Pos().Line
	switch c.tok.TokType() {
	case scanner.LBrace:
		return c.block("block")
	case scanner.Semicolon:
		c.next()
		return nil
	case scanner.KwIf:
		return c.ifStatement()
	case scanner.KwWhile:
		return c.whileStatement()
	case scanner.KwFor:
		return c.forStatement()
	case scanner.KwReturn:
		return c.returnStatement()
	case scanner.KwHalt:
		c.next()
		c.emitOp(program.Halt)
		_, err := c.expect(scanner.Semicolon)
		return err
	case scanner.KwWait, scanner.KwSignal:
		return c.semaphoreStatement()
	case scanner.KwInitialsem:
		return c.initialsemStatement()
	case scanner.KwWaitc, scanner.KwSignalc:
		return c.conditionStatement()
	case scanner.KwWrite, scanner.KwWriteln:
		return c.writeStatement()
	case scanner.KwRead:
		return c.readStatement()
	case scanner.KwLine, scanner.KwSetcolor, scanner.KwClear:
		return c.drawStatement()
	case scanner.Ident:
		if err := c.simpleStatement(); err != nil {
			return err
		}
		_, err := c.expect(scanner.Semicolon)
		return err
	case scanner.KwProcess:
		return c.errorf(gobaci.SemanticError, c.tok.Pos(), "process blocks are only allowed at top level")
	case scanner.KwConst, scanner.KwInt, scanner.KwBool, scanner.KwSemaphore, scanner.KwBinarysem,
		scanner.KwCondition, scanner.KwMonitor:
		return c.errorf(gobaci.SemanticError, c.tok.Pos(), "declaration of '%s' not allowed here", c.tok.Lexeme())
	}
	return c.unexpected("statement")
}

// condition parses a parenthesized boolean expression.
func (c *compiler) condition() error {
	if _, err := c.expect(scanner.LParen); err != nil {
		return err
	}
	pos := c.tok.Pos()
	typ, err := c.expression()
	if err != nil {
		return err
	}
	if typ != program.Bool {
		return c.errorf(gobaci.TypeMismatch, pos, "condition must be bool, is %s", typ)
	}
	_, err = c.expect(scanner.RParen)
	return err
}

func (c *compiler) ifStatement() error {
	c.next()
	if err := c.condition(); err != nil {
		return err
	}
	jfalse := c.emitJump(program.JumpFalse)
	if err := c.statement(); err != nil {
		return err
	}
	if !c.is(scanner.KwElse) {
		c.patchJump(jfalse)
		return nil
	}
	c.next()
	jend := c.emitJump(program.Jump)
	c.patchJump(jfalse)
	if err := c.statement(); err != nil {
		return err
	}
	c.patchJump(jend)
	return nil
}

func (c *compiler) whileStatement() error {
	c.next()
	top := c.here()
	if err := c.condition(); err != nil {
		return err
	}
	jend := c.emitJump(program.JumpFalse)
	if err := c.statement(); err != nil {
		return err
	}
	c.emitJumpTo(program.Jump, top)
	c.patchJump(jend)
	return nil
}

// forStatement compiles
//
//    for ( init ; cond ; step ) body
//
// in a single pass, with the step placed before the body:
//
//    init
//    cond:  cond; JumpFalse end; Jump body
//    step:  step; Jump cond
//    body:  body; Jump step
//    end:
//
func (c *compiler) forStatement() error {
	c.next()
	if _, err := c.expect(scanner.LParen); err != nil {
		return err
	}
	if !c.is(scanner.Semicolon) {
		if err := c.simpleStatement(); err != nil {
			return err
		}
	}
	if _, err := c.expect(scanner.Semicolon); err != nil {
		return err
	}
	cond := c.here()
	jend := -1
	if !c.is(scanner.Semicolon) {
		pos := c.tok.Pos()
		typ, err := c.expression()
		if err != nil {
			return err
		}
		if typ != program.Bool {
			return c.errorf(gobaci.TypeMismatch, pos, "condition must be bool, is %s", typ)
		}
		jend = c.emitJump(program.JumpFalse)
	}
	if _, err := c.expect(scanner.Semicolon); err != nil {
		return err
	}
	jbody := c.emitJump(program.Jump)
	step := c.here()
	if !c.is(scanner.RParen) {
		if err := c.simpleStatement(); err != nil {
			return err
		}
	}
	c.emitJumpTo(program.Jump, cond)
	if _, err := c.expect(scanner.RParen); err != nil {
		return err
	}
	c.patchJump(jbody)
	if err := c.statement(); err != nil {
		return err
	}
	c.emitJumpTo(program.Jump, step)
	if jend >= 0 {
		c.patchJump(jend)
	}
	return nil
}

func (c *compiler) returnStatement() error {
	kw := c.next()
	if !c.frame.isRoutine() {
		if !c.is(scanner.Semicolon) {
			return c.errorf(gobaci.SemanticError, kw.Pos(), "%s cannot return a value", c.frame.entry.Name)
		}
		c.next()
		c.emitOp(program.Halt)
		return nil
	}
	result := c.frame.routine.Type
	if c.is(scanner.Semicolon) {
		if result != program.Void {
			return c.errorf(gobaci.TypeMismatch, kw.Pos(), "routine '%s' must return a %s value", c.frame.routine.Name, result)
		}
	} else {
		pos := c.tok.Pos()
		typ, err := c.expression()
		if err != nil {
			return err
		}
		if result == program.Void {
			return c.errorf(gobaci.TypeMismatch, pos, "void routine '%s' cannot return a value", c.frame.routine.Name)
		}
		if typ != result {
			return c.errorf(gobaci.TypeMismatch, pos, "routine '%s' must return %s, not %s", c.frame.routine.Name, result, typ)
		}
	}
	c.emitReturn()
	_, err := c.expect(scanner.Semicolon)
	return err
}

// --- Assignments and calls ------------------------------------------------------

// simpleStatement parses
//
//    lvalue "=" expr | lvalue "++" | lvalue "--" | call
//
func (c *compiler) simpleStatement() error {
	name, err := c.expect(scanner.Ident)
	if err != nil {
		return err
	}
	if c.is(scanner.LParen) {
		return c.callStatement(name)
	}
	sym, err := c.lvalue(name)
	if err != nil {
		return err
	}
	op := c.next()
	switch op.TokType() {
	case scanner.Assign:
		pos := c.tok.Pos()
		typ, err := c.expression()
		if err != nil {
			return err
		}
		if typ != sym.Type {
			return c.errorf(gobaci.TypeMismatch, pos, "cannot assign %s value to %s variable '%s'", typ, sym.Type, sym.Name)
		}
	case scanner.Inc, scanner.Dec:
		if sym.Type != program.Int {
			return c.errorf(gobaci.TypeMismatch, op.Pos(), "operator %s needs an int variable, '%s' is %s", op.Lexeme(), sym.Name, sym.Type)
		}
		if sym.Kind == program.ArraySym {
			c.emitOp(program.Dup)
			c.emitIndexed(program.LoadIdx, sym)
		} else {
			c.emitLoad(sym)
		}
		c.emitPush(1)
		if op.TokType() == scanner.Inc {
			c.emitOp(program.Add)
		} else {
			c.emitOp(program.Sub)
		}
	default:
		return c.errorf(gobaci.SyntaxError, op.Pos(), "expected '=', '++' or '--', found %s", scanner.TokenName(op.TokType()))
	}
	if sym.Kind == program.ArraySym {
		c.emitIndexed(program.StoreIdx, sym)
	} else {
		c.emitStore(sym)
	}
	return nil
}

// lvalue resolves an assignable variable. For array elements, the index
// is compiled and left on the operand stack.
func (c *compiler) lvalue(name gobaci.Token) (*program.Symbol, error) {
	sym, err := c.resolve(name)
	if err != nil {
		return nil, err
	}
	switch sym.Kind {
	case program.VarSym, program.ParamSym:
		return sym, nil
	case program.ArraySym:
		if err := c.index(sym); err != nil {
			return nil, err
		}
		return sym, nil
	}
	return nil, c.errorf(gobaci.SemanticError, name.Pos(), "cannot assign to %s '%s'", sym.Kind, sym.Name)
}

// index compiles "[" expr "]".
func (c *compiler) index(sym *program.Symbol) error {
	if _, err := c.expect(scanner.LBracket); err != nil {
		return err
	}
	pos := c.tok.Pos()
	typ, err := c.expression()
	if err != nil {
		return err
	}
	if typ != program.Int {
		return c.errorf(gobaci.TypeMismatch, pos, "index into '%s' must be int, is %s", sym.Name, typ)
	}
	_, err = c.expect(scanner.RBracket)
	return err
}

// callStatement compiles a call whose result, if any, is discarded. Calls of
// routines not declared yet are resolved at the end of compilation.
func (c *compiler) callStatement(name gobaci.Token) error {
	sym, _ := c.scopes.Current().ResolveSymbol(name.Lexeme())
	args, err := c.arguments()
	if err != nil {
		return err
	}
	if sym == nil {
		pc := c.emitCall(nil, len(args))
		c.forwards = append(c.forwards, forwardCall{
			pc:      pc,
			popPC:   c.emitOp(program.Nop),
			name:    name.Lexeme(),
			args:    args,
			pos:     name.Pos(),
			monitor: c.frame.monitor,
		})
		tracer().Debugf("forward reference to routine %s", name.Lexeme())
		return nil
	}
	if sym.Kind != program.RoutineSym {
		return c.errorf(gobaci.TypeMismatch, name.Pos(), "'%s' is a %s, not a routine", sym.Name, sym.Kind)
	}
	sym.Used = true
	if err := c.checkCall(sym, args, c.frame.monitor, name.Pos()); err != nil {
		return err
	}
	c.emitCall(sym, len(args))
	if sym.Type != program.Void {
		c.emitOp(program.Pop)
	}
	return nil
}

// arguments compiles an argument list and returns the argument types.
func (c *compiler) arguments() ([]program.Type, error) {
	if _, err := c.expect(scanner.LParen); err != nil {
		return nil, err
	}
	var types []program.Type
	if c.accept(scanner.RParen) {
		return types, nil
	}
	for {
		typ, err := c.expression()
		if err != nil {
			return nil, err
		}
		types = append(types, typ)
		if !c.accept(scanner.Comma) {
			break
		}
	}
	_, err := c.expect(scanner.RParen)
	return types, err
}

// checkCall checks a call of routine sym from within monitor (-1 if not
// called from a monitor routine).
func (c *compiler) checkCall(sym *program.Symbol, args []program.Type, monitor int, pos gobaci.Position) error {
	if sym.Monitor >= 0 && monitor >= 0 {
		return c.errorf(gobaci.SemanticError, pos, "monitor routine '%s' cannot be called from within a monitor", sym.Name)
	}
	if len(args) != len(sym.Params) {
		return c.errorf(gobaci.SemanticError, pos, "routine '%s' expects %d arguments, called with %d",
			sym.Name, len(sym.Params), len(args))
	}
	for i, typ := range args {
		if typ != sym.Params[i] {
			return c.errorf(gobaci.TypeMismatch, pos, "argument %d of '%s' must be %s, is %s", i+1, sym.Name, sym.Params[i], typ)
		}
	}
	return nil
}

// --- Synchronization -------------------------------------------------------------

// syncTarget parses "(" ident ")" and checks the arity of a synchronization
// statement.
func (c *compiler) syncTarget(kw gobaci.Token) (*program.Symbol, gobaci.Token, error) {
	if _, err := c.expect(scanner.LParen); err != nil {
		return nil, kw, err
	}
	name, err := c.expect(scanner.Ident)
	if err != nil {
		return nil, kw, err
	}
	if c.is(scanner.Comma) {
		return nil, kw, c.errorf(gobaci.SemanticError, c.tok.Pos(), "%s expects exactly one argument", kw.Lexeme())
	}
	if _, err := c.expect(scanner.RParen); err != nil {
		return nil, kw, err
	}
	sym, err := c.resolve(name)
	return sym, name, err
}

func (c *compiler) semaphoreStatement() error {
	kw := c.next()
	sym, name, err := c.syncTarget(kw)
	if err != nil {
		return err
	}
	if !sym.Kind.IsSemaphore() {
		return c.errorf(gobaci.TypeMismatch, name.Pos(), "%s needs a semaphore, '%s' is a %s", kw.Lexeme(), sym.Name, sym.Kind)
	}
	op := program.Wait
	if kw.TokType() == scanner.KwSignal {
		op = program.Signal
	}
	c.emitSync(op, sym.SyncID)
	_, err = c.expect(scanner.Semicolon)
	return err
}

func (c *compiler) initialsemStatement() error {
	kw := c.next()
	if _, err := c.expect(scanner.LParen); err != nil {
		return err
	}
	name, err := c.expect(scanner.Ident)
	if err != nil {
		return err
	}
	sym, err := c.resolve(name)
	if err != nil {
		return err
	}
	if !sym.Kind.IsSemaphore() {
		return c.errorf(gobaci.TypeMismatch, name.Pos(), "%s needs a semaphore, '%s' is a %s", kw.Lexeme(), sym.Name, sym.Kind)
	}
	if !c.accept(scanner.Comma) {
		return c.errorf(gobaci.SemanticError, c.tok.Pos(), "initialsem expects two arguments")
	}
	pos := c.tok.Pos()
	typ, err := c.expression()
	if err != nil {
		return err
	}
	if typ != program.Int {
		return c.errorf(gobaci.TypeMismatch, pos, "initial value of semaphore '%s' must be int", sym.Name)
	}
	if c.is(scanner.Comma) {
		return c.errorf(gobaci.SemanticError, c.tok.Pos(), "initialsem expects two arguments")
	}
	if _, err := c.expect(scanner.RParen); err != nil {
		return err
	}
	c.emitSync(program.InitSem, sym.SyncID)
	_, err = c.expect(scanner.Semicolon)
	return err
}

// conditionSymbol checks that sym is a condition of the monitor the current
// routine belongs to.
func (c *compiler) conditionSymbol(kw, name gobaci.Token, sym *program.Symbol) error {
	if sym.Kind != program.ConditionSym {
		return c.errorf(gobaci.TypeMismatch, name.Pos(), "%s needs a condition, '%s' is a %s", kw.Lexeme(), sym.Name, sym.Kind)
	}
	if c.frame == nil || !c.frame.isRoutine() || c.frame.monitor != sym.Monitor {
		return c.errorf(gobaci.SemanticError, kw.Pos(), "%s on '%s' outside of its monitor", kw.Lexeme(), sym.Name)
	}
	return nil
}

func (c *compiler) conditionStatement() error {
	kw := c.next()
	sym, name, err := c.syncTarget(kw)
	if err != nil {
		return err
	}
	if err := c.conditionSymbol(kw, name, sym); err != nil {
		return err
	}
	op := program.CondWait
	if kw.TokType() == scanner.KwSignalc {
		op = program.CondSignal
	}
	c.emitSync(op, sym.SyncID)
	_, err = c.expect(scanner.Semicolon)
	return err
}

// --- I/O and drawing --------------------------------------------------------------

func (c *compiler) writeStatement() error {
	kw := c.next()
	if _, err := c.expect(scanner.LParen); err != nil {
		return err
	}
	count := 0
	for !c.is(scanner.RParen) {
		if count > 0 {
			if _, err := c.expect(scanner.Comma); err != nil {
				return err
			}
		}
		if c.is(scanner.String) {
			str := c.next()
			text, _ := str.Value().(string)
			c.emit(program.Instruction{Op: program.WriteStr, Text: text})
		} else {
			typ, err := c.expression()
			if err != nil {
				return err
			}
			var format int64
			if typ == program.Bool {
				format = 1
			}
			c.emit(program.Instruction{Op: program.Write, Imm: format})
		}
		count++
	}
	c.next()
	if kw.TokType() == scanner.KwWrite && count == 0 {
		return c.errorf(gobaci.SemanticError, kw.Pos(), "write expects at least one argument")
	}
	if kw.TokType() == scanner.KwWriteln {
		c.emitOp(program.Writeln)
	}
	_, err := c.expect(scanner.Semicolon)
	return err
}

func (c *compiler) readStatement() error {
	c.next()
	if _, err := c.expect(scanner.LParen); err != nil {
		return err
	}
	name, err := c.expect(scanner.Ident)
	if err != nil {
		return err
	}
	sym, err := c.lvalue(name)
	if err != nil {
		return err
	}
	if sym.Type != program.Int {
		return c.errorf(gobaci.TypeMismatch, name.Pos(), "read needs an int variable, '%s' is %s", sym.Name, sym.Type)
	}
	if _, err := c.expect(scanner.RParen); err != nil {
		return err
	}
	c.emitOp(program.Read)
	if sym.Kind == program.ArraySym {
		c.emitIndexed(program.StoreIdx, sym)
	} else {
		c.emitStore(sym)
	}
	_, err = c.expect(scanner.Semicolon)
	return err
}

func (c *compiler) drawStatement() error {
	kw := c.next()
	var op program.Opcode
	var arity int
	switch kw.TokType() {
	case scanner.KwLine:
		op, arity = program.DrawLine, 4
	case scanner.KwSetcolor:
		op, arity = program.SetColor, 1
	default:
		op, arity = program.Clear, 0
	}
	pos := c.tok.Pos()
	args, err := c.arguments()
	if err != nil {
		return err
	}
	if len(args) != arity {
		return c.errorf(gobaci.SemanticError, pos, "%s expects %d arguments, called with %d", kw.Lexeme(), arity, len(args))
	}
	for i, typ := range args {
		if typ != program.Int {
			return c.errorf(gobaci.TypeMismatch, pos, "argument %d of %s must be int, is %s", i+1, kw.Lexeme(), typ)
		}
	}
	c.emitOp(op)
	_, err = c.expect(scanner.Semicolon)
	return err
}

package compiler

import (
	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/gobaci/program"
	"github.com/npillmayer/gobaci/scanner"
)

// Expressions are compiled by recursive descent, one function per level of
// precedence:
//
//    ||
//    &&
//    == !=
//    < <= > >=
//    + -
//    * / %
//    unary - !
//
// Both operands of && and || are always evaluated.

type binaryLevel struct {
	ops     map[gobaci.TokType]program.Opcode
	operand program.Type // required operand type, Void for "equal types"
	result  program.Type
}

var levels = []binaryLevel{
	{ops: map[gobaci.TokType]program.Opcode{scanner.OrOr: program.Or}, operand: program.Bool, result: program.Bool},
	{ops: map[gobaci.TokType]program.Opcode{scanner.AndAnd: program.And}, operand: program.Bool, result: program.Bool},
	{ops: map[gobaci.TokType]program.Opcode{scanner.Eq: program.Eq, scanner.Ne: program.Ne}, operand: program.Void, result: program.Bool},
	{ops: map[gobaci.TokType]program.Opcode{scanner.Lt: program.Lt, scanner.Le: program.Le,
		scanner.Gt: program.Gt, scanner.Ge: program.Ge}, operand: program.Int, result: program.Bool},
	{ops: map[gobaci.TokType]program.Opcode{scanner.Plus: program.Add, scanner.Minus: program.Sub}, operand: program.Int, result: program.Int},
	{ops: map[gobaci.TokType]program.Opcode{scanner.Star: program.Mul, scanner.Slash: program.Div,
		scanner.Percent: program.Mod}, operand: program.Int, result: program.Int},
}

// expression compiles an expression and returns its type.
func (c *compiler) expression() (program.Type, error) {
	return c.binary(0)
}

func (c *compiler) binary(level int) (program.Type, error) {
	if level == len(levels) {
		return c.unary()
	}
	lv := levels[level]
	left, err := c.binary(level + 1)
	if err != nil {
		return left, err
	}
	for {
		op, ok := lv.ops[c.tok.TokType()]
		if !ok {
			return left, nil
		}
		optok := c.next()
		right, err := c.binary(level + 1)
		if err != nil {
			return right, err
		}
		if lv.operand == program.Void {
			if left != right {
				return left, c.errorf(gobaci.TypeMismatch, optok.Pos(),
					"operator %s compares %s with %s", optok.Lexeme(), left, right)
			}
		} else if left != lv.operand || right != lv.operand {
			return left, c.errorf(gobaci.TypeMismatch, optok.Pos(),
				"operator %s needs %s operands, has %s and %s", optok.Lexeme(), lv.operand, left, right)
		}
		c.emitOp(op)
		left = lv.result
	}
}

func (c *compiler) unary() (program.Type, error) {
	switch c.tok.TokType() {
	case scanner.Minus, scanner.Not:
		optok := c.next()
		typ, err := c.unary()
		if err != nil {
			return typ, err
		}
		want, op := program.Int, program.Neg
		if optok.TokType() == scanner.Not {
			want, op = program.Bool, program.Not
		}
		if typ != want {
			return typ, c.errorf(gobaci.TypeMismatch, optok.Pos(), "operator %s needs a %s operand, has %s", optok.Lexeme(), want, typ)
		}
		c.emitOp(op)
		return want, nil
	}
	return c.primary()
}

func (c *compiler) primary() (program.Type, error) {
	switch c.tok.TokType() {
	case scanner.Number:
		tok := c.next()
		v, _ := tok.Value().(int64)
		c.emitPush(v)
		return program.Int, nil
	case scanner.KwTrue:
		c.next()
		c.emitPush(1)
		return program.Bool, nil
	case scanner.KwFalse:
		c.next()
		c.emitPush(0)
		return program.Bool, nil
	case scanner.LParen:
		c.next()
		typ, err := c.expression()
		if err != nil {
			return typ, err
		}
		_, err = c.expect(scanner.RParen)
		return typ, err
	case scanner.KwEmpty:
		kw := c.next()
		sym, name, err := c.syncTarget(kw)
		if err != nil {
			return program.Bool, err
		}
		if err := c.conditionSymbol(kw, name, sym); err != nil {
			return program.Bool, err
		}
		c.emitSync(program.CondEmpty, sym.SyncID)
		return program.Bool, nil
	case scanner.String:
		return program.Void, c.errorf(gobaci.TypeMismatch, c.tok.Pos(), "string literals are only allowed in write statements")
	case scanner.Ident:
		return c.variable()
	}
	return program.Void, c.unexpected("expression")
}

// variable compiles a reference to a constant, variable, array element or
// a call of a value returning routine.
func (c *compiler) variable() (program.Type, error) {
	name := c.next()
	if c.is(scanner.LParen) {
		return c.callExpression(name)
	}
	sym, err := c.resolve(name)
	if err != nil {
		return program.Void, err
	}
	switch sym.Kind {
	case program.ConstSym:
		c.emitPush(sym.Value)
	case program.VarSym, program.ParamSym:
		c.emitLoad(sym)
	case program.ArraySym:
		if !c.is(scanner.LBracket) {
			return program.Void, c.errorf(gobaci.TypeMismatch, name.Pos(), "array '%s' needs an index", sym.Name)
		}
		if err := c.index(sym); err != nil {
			return program.Void, err
		}
		c.emitIndexed(program.LoadIdx, sym)
	default:
		return program.Void, c.errorf(gobaci.TypeMismatch, name.Pos(), "%s '%s' cannot be used as a value", sym.Kind, sym.Name)
	}
	return sym.Type, nil
}

// callExpression compiles a call in expression position. The routine has
// to be declared (or prototyped) before.
func (c *compiler) callExpression(name gobaci.Token) (program.Type, error) {
	sym, err := c.resolve(name)
	if err != nil {
		return program.Void, err
	}
	if sym.Kind != program.RoutineSym {
		return program.Void, c.errorf(gobaci.TypeMismatch, name.Pos(), "'%s' is a %s, not a routine", sym.Name, sym.Kind)
	}
	if sym.Type == program.Void {
		return program.Void, c.errorf(gobaci.TypeMismatch, name.Pos(), "routine '%s' does not return a value", sym.Name)
	}
	args, err := c.arguments()
	if err != nil {
		return program.Void, err
	}
	monitor := c.monitor
	if c.frame != nil {
		monitor = c.frame.monitor
	}
	if err := c.checkCall(sym, args, monitor, name.Pos()); err != nil {
		return program.Void, err
	}
	c.emitCall(sym, len(args))
	return sym.Type, nil
}

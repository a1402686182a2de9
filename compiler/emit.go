package compiler

import (
	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/gobaci/program"
)

// emit appends an instruction and returns its index.
func (c *compiler) emit(instr program.Instruction) int {
	if instr.Line == 0 {
		instr.Line = c.line
	}
	c.code = append(c.code, instr)
	return len(c.code) - 1
}

func (c *compiler) emitOp(op program.Opcode) int {
	return c.emit(program.Instruction{Op: op})
}

func (c *compiler) emitPush(v int64) int {
	return c.emit(program.Instruction{Op: program.Push, Imm: v})
}

func (c *compiler) emitSync(op program.Opcode, id int) int {
	return c.emit(program.Instruction{Op: op, Imm: int64(id)})
}

// emitJump emits a jump with a placeholder target and returns its index,
// to be fixed by patchJump.
func (c *compiler) emitJump(op program.Opcode) int {
	return c.emit(program.Instruction{Op: op, Addr: program.CodeAddr(-1)})
}

// emitJumpTo emits a backward jump to a known target.
func (c *compiler) emitJumpTo(op program.Opcode, target int) int {
	return c.emit(program.Instruction{Op: op, Addr: program.CodeAddr(target)})
}

// patchJump makes the jump at index pc continue at the current end of code.
func (c *compiler) patchJump(pc int) {
	c.code[pc].Addr = program.CodeAddr(c.here())
}

// here returns the index of the next instruction to emit.
func (c *compiler) here() int {
	return len(c.code)
}

// emitCall emits a call with a placeholder target and frame size and
// registers it for patching.
func (c *compiler) emitCall(sym *program.Symbol, argc int) int {
	pc := c.emit(program.Instruction{Op: program.Call, Addr: program.CodeAddr(-1), Imm: int64(argc)})
	if sym != nil {
		c.calls = append(c.calls, callSite{pc: pc, sym: sym})
	}
	return pc
}

// emitLoad pushes the value of a scalar variable.
func (c *compiler) emitLoad(sym *program.Symbol) {
	c.emit(program.Instruction{Op: program.Load, Addr: sym.Addr})
}

// emitStore pops into a scalar variable.
func (c *compiler) emitStore(sym *program.Symbol) {
	c.emit(program.Instruction{Op: program.Store, Addr: sym.Addr})
}

// zero emits code clearing a local variable, cell by cell for arrays.
func (c *compiler) zero(sym *program.Symbol, length int) {
	if length == 0 {
		c.emitPush(0)
		c.emitStore(sym)
		return
	}
	for i := 0; i < length; i++ {
		c.emitPush(int64(i))
		c.emitPush(0)
		c.emitIndexed(program.StoreIdx, sym)
	}
}

// emitIndexed emits LoadIdx or StoreIdx for an array.
func (c *compiler) emitIndexed(op program.Opcode, sym *program.Symbol) {
	c.emit(program.Instruction{Op: op, Addr: sym.Addr, Len: sym.Length})
}

// emitTrap emits an instruction raising a runtime error when executed.
func (c *compiler) emitTrap(kind gobaci.ErrKind, msg string) int {
	return c.emit(program.Instruction{Op: program.Trap, Imm: int64(kind), Text: msg})
}

// --- Constant expressions ---------------------------------------------------

// constExpression compiles an expression into a scratch area and folds it.
// Expressions referring to anything but literals and constants are not
// constant.
func (c *compiler) constExpression() (int64, program.Type, error) {
	pos := c.tok.Pos()
	start, calls := c.here(), len(c.calls)
	typ, err := c.expression()
	if err != nil {
		return 0, typ, err
	}
	scratch := append([]program.Instruction(nil), c.code[start:]...)
	c.code = c.code[:start]
	c.calls = c.calls[:calls]
	v, err := fold(scratch)
	if err != nil {
		return 0, typ, c.errorf(gobaci.SemanticError, pos, "%v", err)
	}
	return v, typ, nil
}

type notConstant struct{}

func (notConstant) Error() string {
	return "constant expression expected"
}

// fold evaluates a sequence of instructions consisting of pushes and
// operators only.
func fold(code []program.Instruction) (int64, error) {
	var stack []int64
	for _, instr := range code {
		switch {
		case instr.Op == program.Push:
			stack = append(stack, instr.Imm)
		case instr.Op.IsUnary():
			top := len(stack) - 1
			v, err := program.Eval(instr.Op, stack[top], 0)
			if err != nil {
				return 0, err
			}
			stack[top] = v
		case instr.Op.IsOperator():
			top := len(stack) - 1
			v, err := program.Eval(instr.Op, stack[top-1], stack[top])
			if err != nil {
				return 0, err
			}
			stack = append(stack[:top-1], v)
		default:
			return 0, notConstant{}
		}
	}
	if len(stack) != 1 {
		return 0, notConstant{}
	}
	return stack[0], nil
}

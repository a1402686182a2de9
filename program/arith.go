package program

import (
	"errors"
	"fmt"
	"math"
)

// Errors raised by Eval.
var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrOverflow       = errors.New("arithmetic overflow")
)

// Eval applies an arithmetic, logical or comparison opcode to its operands.
// For unary opcodes (Neg, Not) y is ignored. The machine and the compiler's
// constant folding share this function, so folded constants behave exactly
// like computed values.
func Eval(op Opcode, x, y int64) (int64, error) {
	switch op {
	case Add:
		r := x + y
		if (x > 0 && y > 0 && r < 0) || (x < 0 && y < 0 && r >= 0) {
			return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, x, y)
		}
		return r, nil
	case Sub:
		r := x - y
		if (x >= 0 && y < 0 && r < 0) || (x < 0 && y > 0 && r >= 0) {
			return 0, fmt.Errorf("%w: %d - %d", ErrOverflow, x, y)
		}
		return r, nil
	case Mul:
		if x == 0 || y == 0 {
			return 0, nil
		}
		r := x * y
		if r/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
			return 0, fmt.Errorf("%w: %d * %d", ErrOverflow, x, y)
		}
		return r, nil
	case Div:
		if y == 0 {
			return 0, ErrDivisionByZero
		}
		if x == math.MinInt64 && y == -1 {
			return 0, fmt.Errorf("%w: %d / %d", ErrOverflow, x, y)
		}
		return x / y, nil
	case Mod:
		if y == 0 {
			return 0, ErrDivisionByZero
		}
		return x % y, nil
	case Neg:
		if x == math.MinInt64 {
			return 0, fmt.Errorf("%w: -(%d)", ErrOverflow, x)
		}
		return -x, nil
	case And:
		return truth(x != 0 && y != 0), nil
	case Or:
		return truth(x != 0 || y != 0), nil
	case Not:
		return truth(x == 0), nil
	case Eq:
		return truth(x == y), nil
	case Ne:
		return truth(x != y), nil
	case Lt:
		return truth(x < y), nil
	case Le:
		return truth(x <= y), nil
	case Gt:
		return truth(x > y), nil
	case Ge:
		return truth(x >= y), nil
	}
	return 0, fmt.Errorf("opcode %s is not an operator", op)
}

// IsUnary is a predicate: is op an operator with a single operand?
func (op Opcode) IsUnary() bool {
	return op == Neg || op == Not
}

// IsOperator is a predicate: can op be evaluated by Eval?
func (op Opcode) IsOperator() bool {
	return op >= Add && op <= Ge
}

func truth(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

package program

import "fmt"

// Opcode is the operation code of an instruction.
type Opcode uint8

// Instruction set of the BACI virtual machine. Values are int64 on an operand
// stack; booleans are 0 and 1.
const (
	Nop        Opcode = iota // no effect
	Push                     // push Imm
	Pop                      // discard TOS
	Dup                      // duplicate TOS
	Load                     // push value at Addr
	Store                    // pop into Addr
	LoadIdx                  // pop index, push Addr[index] (Len elements)
	StoreIdx                 // pop value, pop index, store into Addr[index]
	Add                      // arithmetic on the two topmost values
	Sub
	Mul
	Div
	Mod
	Neg                      // negate TOS
	And                      // boolean conjunction
	Or                       // boolean disjunction
	Not                      // boolean negation
	Eq                       // comparisons push 0 or 1
	Ne
	Lt
	Le
	Gt
	Ge
	Jump                     // pc := Addr
	JumpFalse                // pop; pc := Addr if value is 0
	Call                     // push frame of size Len for routine Text, move Imm arguments, pc := Addr
	Return                   // pop frame, continue at return pc
	Wait                     // semaphore P on semaphore Imm
	Signal                   // semaphore V on semaphore Imm
	InitSem                  // pop value, reset semaphore Imm
	Enter                    // enter monitor Imm
	Exit                     // leave monitor Imm
	CondWait                 // wait on condition Imm
	CondSignal               // signal condition Imm
	CondEmpty                // push 1 if condition Imm has no waiters
	Write                    // pop and write (Imm 0: int, 1: bool)
	WriteStr                 // write Text
	Writeln                  // write a newline
	Read                     // push an integer read from input
	DrawLine                 // pop y2, x2, y1, x1 and draw a line
	SetColor                 // pop color
	Clear                    // clear the drawing area
	Trap                     // raise runtime error of kind Imm with message Text
	Halt                     // terminate the thread
	opcodeCount
)

var opcodeNames = [...]string{
	"Nop", "Push", "Pop", "Dup", "Load", "Store", "LoadIdx", "StoreIdx",
	"Add", "Sub", "Mul", "Div", "Mod", "Neg", "And", "Or", "Not",
	"Eq", "Ne", "Lt", "Le", "Gt", "Ge", "Jump", "JumpFalse", "Call", "Return",
	"Wait", "Signal", "InitSem", "Enter", "Exit", "CondWait", "CondSignal",
	"CondEmpty", "Write", "WriteStr", "Writeln", "Read", "DrawLine", "SetColor",
	"Clear", "Trap", "Halt",
}

var opcodeByName map[string]Opcode

func init() {
	opcodeByName = make(map[string]Opcode, len(opcodeNames))
	for i, name := range opcodeNames {
		opcodeByName[name] = Opcode(i)
	}
}

func (op Opcode) String() string {
	if op < opcodeCount {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

// IsValid is a predicate: is op part of the instruction set?
func (op Opcode) IsValid() bool {
	return op < opcodeCount
}

// UsesSync is a predicate: does op address a synchronization object by Imm?
func (op Opcode) UsesSync() bool {
	return op >= Wait && op <= CondEmpty
}

// MarshalText encodes an opcode by its name.
func (op Opcode) MarshalText() ([]byte, error) {
	if !op.IsValid() {
		return nil, fmt.Errorf("cannot encode invalid opcode %d", uint8(op))
	}
	return []byte(op.String()), nil
}

// UnmarshalText decodes an opcode from its name.
func (op *Opcode) UnmarshalText(text []byte) error {
	o, ok := opcodeByName[string(text)]
	if !ok {
		return fmt.Errorf("unknown opcode %q", text)
	}
	*op = o
	return nil
}

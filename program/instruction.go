package program

import (
	"fmt"
	"strings"
)

// AddrKind discriminates the address spaces of the machine.
type AddrKind uint8

// Address spaces. Global addresses index the data image, frame addresses the
// slots of the current call frame, code addresses the instruction sequence.
const (
	NoAddr AddrKind = iota
	Global
	Frame
	Code
)

var addrKindNames = [...]string{"none", "global", "frame", "code"}

func (k AddrKind) String() string {
	if int(k) < len(addrKindNames) {
		return addrKindNames[k]
	}
	return fmt.Sprintf("AddrKind(%d)", uint8(k))
}

// MarshalText encodes an address kind by its name.
func (k AddrKind) MarshalText() ([]byte, error) {
	if int(k) >= len(addrKindNames) {
		return nil, fmt.Errorf("cannot encode invalid address kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes an address kind from its name.
func (k *AddrKind) UnmarshalText(text []byte) error {
	for i, name := range addrKindNames {
		if name == string(text) {
			*k = AddrKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown address kind %q", text)
}

// Address is an operand address.
type Address struct {
	Kind   AddrKind `json:"kind"`
	Offset int      `json:"offset"`
}

// GlobalAddr creates an address into the data image.
func GlobalAddr(offset int) Address {
	return Address{Kind: Global, Offset: offset}
}

// FrameAddr creates an address into the current call frame.
func FrameAddr(offset int) Address {
	return Address{Kind: Frame, Offset: offset}
}

// CodeAddr creates an instruction address.
func CodeAddr(offset int) Address {
	return Address{Kind: Code, Offset: offset}
}

// IsNone is a predicate: is this the empty address?
func (a Address) IsNone() bool {
	return a.Kind == NoAddr
}

func (a Address) String() string {
	switch a.Kind {
	case Global:
		return fmt.Sprintf("g[%d]", a.Offset)
	case Frame:
		return fmt.Sprintf("f[%d]", a.Offset)
	case Code:
		return fmt.Sprintf("@%d", a.Offset)
	}
	return "-"
}

// Instruction is a single machine instruction. Which of the operand fields
// are meaningful depends on Op. Line is the source line the instruction has
// been generated for (0 if unknown).
type Instruction struct {
	Op   Opcode  `json:"op"`
	Addr Address `json:"addr"`
	Imm  int64   `json:"imm,omitempty"`
	Len  int     `json:"len,omitempty"`
	Text string  `json:"text,omitempty"`
	Line int     `json:"line,omitempty"`
}

// Operands returns a printable representation of the operands of an
// instruction, as used for listings.
func (i Instruction) Operands() string {
	var b strings.Builder
	if !i.Addr.IsNone() {
		b.WriteString(i.Addr.String())
	}
	switch i.Op {
	case Push, Wait, Signal, InitSem, Enter, Exit, CondWait, CondSignal, CondEmpty, Write:
		fmt.Fprintf(&b, "%d", i.Imm)
	case Call:
		fmt.Fprintf(&b, " argc=%d frame=%d", i.Imm, i.Len)
	case LoadIdx, StoreIdx:
		fmt.Fprintf(&b, " len=%d", i.Len)
	case Trap:
		fmt.Fprintf(&b, "%d %q", i.Imm, i.Text)
	case WriteStr:
		fmt.Fprintf(&b, "%q", i.Text)
	}
	return b.String()
}

func (i Instruction) String() string {
	ops := i.Operands()
	if ops == "" {
		return i.Op.String()
	}
	return i.Op.String() + " " + ops
}

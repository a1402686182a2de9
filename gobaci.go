package gobaci

import "fmt"

// --- A general purpose interface for tokens --------------------------------

// TokType is a category type for a Token. Constants live in package scanner,
// as it is up to the scanner to define them.
type TokType int

// TokTypeStringer is a type to be provided by a scanner to be able
// to print out token categories.
type TokTypeStringer func(TokType) string

// Tokens represent input tokens. They are produced by the scanner and
// reflect terminals of the BACI language.
//
// An example would be a token for an integer literal:
//
//    TokType = Int         // identifier for this kind of tokens
//    Lexeme  = "100"       // lexeme how it appeared in the input stream
//    Value   = int64(100)  // converted by the scanner
//    Span    = 67…70       // occured from byte position 67 in the input stream
//    Pos     = 4:12        // line 4, column 12
//
type Token interface {
	TokType() TokType
	Lexeme() string
	Value() interface{}
	Span() Span
	Pos() Position
}

// --- Spans ------------------------------------------------------------

// Span is a small type for capturing a length of input token run. A span
// denotes a start position and the position just behind the end.
type Span [2]uint64 // (x…y)

// From returns the start value of a span.
func (s Span) From() uint64 {
	return s[0]
}

// To returns the end value of a span.
func (s Span) To() uint64 {
	return s[1]
}

// Len returns the length of (x…y)
func (s Span) Len() uint64 {
	return s[1] - s[0]
}

func (s Span) String() string {
	return fmt.Sprintf("(%d…%d)", s[0], s[1])
}

// --- Source positions -------------------------------------------------

// Position is a human readable source position. Lines and columns start at 1,
// a zero Position means "unknown".
type Position struct {
	Line   int
	Column int
}

// IsKnown is a predicate: does p point into the source?
func (p Position) IsKnown() bool {
	return p.Line > 0
}

func (p Position) String() string {
	if !p.IsKnown() {
		return "?:?"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

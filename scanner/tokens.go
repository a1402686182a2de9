package scanner

import (
	"fmt"
	"sync"

	"github.com/npillmayer/gobaci"
)

// Token categories of the BACI language.
const (
	EOF gobaci.TokType = iota - 1
	Error
	Ident
	Number
	String

	// keywords
	KwConst
	KwInt
	KwBool
	KwVoid
	KwSemaphore
	KwBinarysem
	KwCondition
	KwMonitor
	KwProcess
	KwMain
	KwIf
	KwElse
	KwWhile
	KwFor
	KwReturn
	KwHalt
	KwTrue
	KwFalse
	KwWait
	KwSignal
	KwWaitc
	KwSignalc
	KwEmpty
	KwInitialsem
	KwWrite
	KwWriteln
	KwRead
	KwLine
	KwSetcolor
	KwClear

	// operators and punctuation
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Semicolon
	Comma
	Assign
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
	Plus
	Minus
	Star
	Slash
	Percent
	Not
	AndAnd
	OrOr
	Inc
	Dec
)

// The keyword tokens
var keywords = []string{
	"const", "int", "bool", "void", "semaphore", "binarysem", "condition",
	"monitor", "process", "main", "if", "else", "while", "for", "return",
	"halt", "true", "false", "wait", "signal", "waitc", "signalc", "empty",
	"initialsem", "write", "writeln", "read", "line", "setcolor", "clear",
}

// The tokens representing literal operator lexemes
var literals = []string{
	"(", ")", "{", "}", "[", "]", ";", ",", "=", "==", "!=", "<", "<=",
	">", ">=", "+", "-", "*", "/", "%", "!", "&&", "||", "++", "--",
}

var keywordIds map[string]gobaci.TokType // keyword lexeme → token type
var literalIds map[string]gobaci.TokType // operator lexeme → token type
var tokenNames map[gobaci.TokType]string // token type → printable name

var initOnce sync.Once // monitors one-time initialization
func initTokens() {
	initOnce.Do(func() {
		keywordIds = make(map[string]gobaci.TokType, len(keywords))
		literalIds = make(map[string]gobaci.TokType, len(literals))
		tokenNames = map[gobaci.TokType]string{
			EOF:    "end of input",
			Error:  "illegal input",
			Ident:  "identifier",
			Number: "number",
			String: "string",
		}
		for i, kw := range keywords {
			t := KwConst + gobaci.TokType(i)
			keywordIds[kw] = t
			tokenNames[t] = kw
		}
		for i, lit := range literals {
			t := LParen + gobaci.TokType(i)
			literalIds[lit] = t
			tokenNames[t] = lit
		}
	})
}

// TokenName returns a printable name for a token type, suitable for
// diagnostics like "expected ';', found identifier".
func TokenName(t gobaci.TokType) string {
	initTokens()
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

var _ gobaci.TokTypeStringer = TokenName

// IsKeyword is a predicate: is t one of the reserved words?
func IsKeyword(t gobaci.TokType) bool {
	return t >= KwConst && t <= KwClear
}

// Keyword returns the token type for a reserved word.
func Keyword(word string) (gobaci.TokType, bool) {
	initTokens()
	t, ok := keywordIds[word]
	return t, ok
}

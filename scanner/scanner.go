package scanner

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/schuko/tracing"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

// tracer traces with key 'baci.scanner'.
func tracer() tracing.Trace {
	return tracing.Select("baci.scanner")
}

// Tokenizer is a scanner interface.
type Tokenizer interface {
	NextToken() gobaci.Token
	SetErrorHandler(func(error))
}

// Default error reporting function for scanners
func logError(e error) {
	tracer().Errorf("scanner error: " + e.Error())
}

// --- Tokens ----------------------------------------------------------------

// Token is the token type produced by the BACI scanner.
type Token struct {
	kind   gobaci.TokType
	lexeme string
	Val    interface{}
	span   gobaci.Span
	pos    gobaci.Position
}

var _ gobaci.Token = Token{}

// MakeToken creates a token. It is mainly useful for tests and for
// clients feeding the compiler from a different source than text.
func MakeToken(typ gobaci.TokType, lexeme string, val interface{}, span gobaci.Span, pos gobaci.Position) Token {
	return Token{
		kind:   typ,
		lexeme: lexeme,
		Val:    val,
		span:   span,
		pos:    pos,
	}
}

func (t Token) TokType() gobaci.TokType {
	return t.kind
}

func (t Token) Value() interface{} {
	return t.Val
}

func (t Token) Lexeme() string {
	return t.lexeme
}

func (t Token) Span() gobaci.Span {
	return t.span
}

func (t Token) Pos() gobaci.Position {
	return t.pos
}

func (t Token) String() string {
	return fmt.Sprintf("<%s %q @%s>", TokenName(t.kind), t.lexeme, t.pos)
}

// --- lexmachine adapter ----------------------------------------------------

// Lexer is a lexmachine adapter for the BACI language. The DFA is compiled
// once and shared; each input gets its own Scanner.
type Lexer struct {
	lexer *lexmachine.Lexer
}

var sharedLexer *Lexer
var sharedLexerErr error
var startOnce sync.Once // monitors one-time creation of the DFA

// NewLexer returns the BACI lexer. It will return an error if compiling the
// DFA failed.
func NewLexer() (*Lexer, error) {
	startOnce.Do(func() {
		initTokens()
		tracer().Infof("Creating lexer")
		sharedLexer, sharedLexerErr = newLexer()
	})
	return sharedLexer, sharedLexerErr
}

func newLexer() (*Lexer, error) {
	lexer := lexmachine.NewLexer()
	for _, lit := range literals {
		r := "\\" + strings.Join(strings.Split(lit, ""), "\\")
		lexer.Add([]byte(r), tokenAction(literalIds[lit]))
	}
	lexer.Add([]byte(`//[^\n]*`), Skip)
	lexer.Add([]byte(`/\*([^*]|\*+[^*/])*\*+/`), Skip)
	lexer.Add([]byte(`\"[^"\n]*\"`), stringAction)
	lexer.Add([]byte(`[0-9]+`), numberAction)
	lexer.Add([]byte(`([a-z]|[A-Z]|_)([a-z]|[A-Z]|[0-9]|_)*`), identAction)
	lexer.Add([]byte(`( |\t|\n|\r)+`), Skip)
	if err := lexer.Compile(); err != nil {
		tracer().Errorf("Error compiling DFA: %v", err)
		return nil, err
	}
	return &Lexer{lexer: lexer}, nil
}

// Scanner creates a scanner for a given input. The scanner will implement the
// Tokenizer interface.
func (lx *Lexer) Scanner(input string) (*Scanner, error) {
	s := &Scanner{lexer: lx, input: []byte(input), Error: logError}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// Scanner is a lazy token sequence over one input. Tokens are produced on
// demand by NextToken. After the end of input has been reached, NextToken
// keeps returning EOF. Characters which do not form a legal token are
// delivered as tokens of type Error, and scanning continues behind them.
type Scanner struct {
	lexer   *Lexer
	input   []byte
	scanner *lexmachine.Scanner
	Error   func(error) // error handler
	eof     *Token
	errcnt  int
}

var _ Tokenizer = (*Scanner)(nil)

// Reset restarts scanning from the beginning of the input.
func (s *Scanner) Reset() error {
	scan, err := s.lexer.lexer.Scanner(s.input)
	if err != nil {
		return err
	}
	s.scanner = scan
	s.eof = nil
	s.errcnt = 0
	return nil
}

// SetErrorHandler sets an error handler for the scanner.
func (s *Scanner) SetErrorHandler(h func(error)) {
	if h == nil {
		s.Error = logError
		return
	}
	s.Error = h
}

// ErrorCount returns the number of error tokens produced so far.
func (s *Scanner) ErrorCount() int {
	return s.errcnt
}

// NextToken is part of the Tokenizer interface.
func (s *Scanner) NextToken() gobaci.Token {
	if s.eof != nil {
		return *s.eof
	}
	tok, err, eof := s.scanner.Next()
	if err != nil {
		s.Error(err)
		return s.recover(err)
	}
	if eof {
		tracer().Debugf("scanner reached end of input")
		end := uint64(len(s.input))
		t := MakeToken(EOF, "", nil, gobaci.Span{end, end}, s.endPosition())
		s.eof = &t
		return t
	}
	token := tok.(*lexmachine.Token)
	return MakeToken(
		gobaci.TokType(token.Type),
		string(token.Lexeme),
		token.Value,
		gobaci.Span{uint64(token.TC), uint64(token.TC + len(token.Lexeme))},
		gobaci.Position{Line: token.StartLine, Column: token.StartColumn},
	)
}

// recover skips over unconsumed input and wraps it into an error token.
func (s *Scanner) recover(err error) gobaci.Token {
	s.errcnt++
	ui, is := err.(*machines.UnconsumedInput)
	if !is { // cannot continue behind an unknown error
		end := uint64(len(s.input))
		t := MakeToken(EOF, "", nil, gobaci.Span{end, end}, s.endPosition())
		s.eof = &t
		return MakeToken(Error, "", err.Error(), gobaci.Span{end, end}, s.endPosition())
	}
	next := ui.FailTC
	if next <= ui.StartTC {
		_, size := utf8.DecodeRune(s.input[ui.StartTC:])
		if size < 1 {
			size = 1
		}
		next = ui.StartTC + size
	}
	if next > len(s.input) {
		next = len(s.input)
	}
	s.scanner.TC = next
	lexeme := string(s.input[ui.StartTC:next])
	tracer().Debugf("error token %q at %d:%d", lexeme, ui.StartLine, ui.StartColumn)
	return MakeToken(Error, lexeme, fmt.Sprintf("illegal character sequence %q", lexeme),
		gobaci.Span{uint64(ui.StartTC), uint64(next)},
		gobaci.Position{Line: ui.StartLine, Column: ui.StartColumn})
}

func (s *Scanner) endPosition() gobaci.Position {
	line, col := 1, 1
	for _, r := range string(s.input) {
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return gobaci.Position{Line: line, Column: col}
}

// ---------------------------------------------------------------------------

// Skip is a pre-defined action which ignores the scanned match.
func Skip(*lexmachine.Scanner, *machines.Match) (interface{}, error) {
	return nil, nil
}

// tokenAction is an action which wraps a scanned match into a token of
// a fixed type.
func tokenAction(t gobaci.TokType) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(int(t), string(m.Bytes), m), nil
	}
}

// identAction separates keywords from identifiers.
func identAction(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
	lexeme := string(m.Bytes)
	if kw, ok := keywordIds[lexeme]; ok {
		return s.Token(int(kw), lexeme, m), nil
	}
	return s.Token(int(Ident), lexeme, m), nil
}

// numberAction converts integer literals. Literals exceeding the int64
// range become error tokens.
func numberAction(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
	n, err := strconv.ParseInt(string(m.Bytes), 10, 64)
	if err != nil {
		return s.Token(int(Error), fmt.Sprintf("integer literal out of range: %s", m.Bytes), m), nil
	}
	return s.Token(int(Number), n, m), nil
}

// stringAction strips the quotes from string literals.
func stringAction(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
	str := string(m.Bytes)
	return s.Token(int(String), str[1:len(str)-1], m), nil
}

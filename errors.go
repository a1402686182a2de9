package gobaci

import (
	"fmt"
)

// --- Error taxonomy -----------------------------------------------------------

// Severity classifies errors for presentation: which icon to show, whether to
// offer a restart, etc.
type Severity int8

// Severities. A Warning never stops anything, an Error stops the current
// operation (or thread), a Fatal error stops a whole run.
const (
	Warning Severity = iota
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	}
	return "unknown"
}

// ErrKind is a fine grained reason for an error.
type ErrKind int16

// Error kinds, grouped by the layer producing them.
const (
	Unknown ErrKind = iota

	// file layer
	EmptyPath
	InvalidPath
	InvalidExtension
	DirectoryNotFound
	FileNotFound
	NotARegularFile
	PermissionDenied
	OpenFailed
	ReadFailed
	WriteFailed
	CorruptProgram

	// compiler
	LexicalError
	SyntaxError
	SemanticError
	TypeMismatch
	UnusedDeclaration

	// runtime
	InvalidAddress
	InvalidJump
	DivisionByZero
	ArithmeticOverflow
	IndexOutOfRange
	SyncMisuse
	MissingReturn
	StackFault
	IOFault
	DrawFault
)

var errKindNames = map[ErrKind]string{
	Unknown:            "unknown",
	EmptyPath:          "empty path",
	InvalidPath:        "invalid path",
	InvalidExtension:   "invalid extension",
	DirectoryNotFound:  "directory not found",
	FileNotFound:       "file not found",
	NotARegularFile:    "not a regular file",
	PermissionDenied:   "permission denied",
	OpenFailed:         "open failed",
	ReadFailed:         "read failed",
	WriteFailed:        "write failed",
	CorruptProgram:     "corrupt program",
	LexicalError:       "lexical error",
	SyntaxError:        "syntax error",
	SemanticError:      "semantic error",
	TypeMismatch:       "type mismatch",
	UnusedDeclaration:  "unused declaration",
	InvalidAddress:     "invalid address",
	InvalidJump:        "invalid jump target",
	DivisionByZero:     "division by zero",
	ArithmeticOverflow: "arithmetic overflow",
	IndexOutOfRange:    "index out of range",
	SyncMisuse:         "synchronization misuse",
	MissingReturn:      "missing return",
	StackFault:         "stack fault",
	IOFault:            "i/o fault",
	DrawFault:          "drawing fault",
}

func (k ErrKind) String() string {
	if s, ok := errKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrKind(%d)", int(k))
}

// ErrorBase is implemented by every error the core hands to collaborators.
// An error dialog is expected to switch on Kind and Severity, never on
// the message text.
type ErrorBase interface {
	error
	Severity() Severity
	Kind() ErrKind
}

var _ ErrorBase = (*CompileError)(nil)
var _ ErrorBase = (*RuntimeError)(nil)
var _ ErrorBase = (*LoadError)(nil)
var _ ErrorBase = (*SaveError)(nil)

// --- Compile errors ---------------------------------------------------------

// CompileError is a lexical, syntactic or semantic error found during
// compilation. It always names the offending source position. The compiler
// uses the same type for non-fatal warnings, flagged by Warn.
type CompileError struct {
	Reason ErrKind
	Pos    Position
	Cause  string
	Warn   bool
}

// CompileErrorf creates a compile error at position pos.
func CompileErrorf(kind ErrKind, pos Position, format string, args ...interface{}) *CompileError {
	return &CompileError{
		Reason: kind,
		Pos:    pos,
		Cause:  fmt.Sprintf(format, args...),
	}
}

func (e *CompileError) Error() string {
	if e.Warn {
		return fmt.Sprintf("%s: warning: %s", e.Pos, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Reason, e.Cause)
}

// Severity is part of interface ErrorBase.
func (e *CompileError) Severity() Severity {
	if e.Warn {
		return Warning
	}
	return Error
}

// Kind is part of interface ErrorBase.
func (e *CompileError) Kind() ErrKind { return e.Reason }

// --- Runtime errors ---------------------------------------------------------

// RuntimeError is raised while executing an instruction. Thread is the ID of
// the thread executing it, PC the instruction index and Line the source line
// (0 if unknown). Fatal errors stop the whole run, others terminate the
// offending thread only.
type RuntimeError struct {
	Reason ErrKind
	Thread int
	PC     int
	Line   int
	Msg    string
	Fatal  bool
}

func (e *RuntimeError) Error() string {
	where := fmt.Sprintf("thread %d, pc %d", e.Thread, e.PC)
	if e.Line > 0 {
		where = fmt.Sprintf("%s, line %d", where, e.Line)
	}
	return fmt.Sprintf("%s (%s): %s", e.Reason, where, e.Msg)
}

// Severity is part of interface ErrorBase.
func (e *RuntimeError) Severity() Severity {
	if e.Fatal {
		return Fatal
	}
	return Error
}

// Kind is part of interface ErrorBase.
func (e *RuntimeError) Kind() ErrKind { return e.Reason }

// --- File errors ------------------------------------------------------------

// LoadError is reported by the file collaborator if a file cannot be loaded.
type LoadError struct {
	Reason ErrKind
	Path   string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot load %q: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot load %q: %s", e.Path, e.Reason)
}

// Unwrap returns the underlying I/O error, if any.
func (e *LoadError) Unwrap() error { return e.Err }

// Severity is part of interface ErrorBase.
func (e *LoadError) Severity() Severity { return Error }

// Kind is part of interface ErrorBase.
func (e *LoadError) Kind() ErrKind { return e.Reason }

// SaveError is reported by the file collaborator if a file cannot be saved.
type SaveError struct {
	Reason ErrKind
	Path   string
	Err    error
}

func (e *SaveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot save %q: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot save %q: %s", e.Path, e.Reason)
}

// Unwrap returns the underlying I/O error, if any.
func (e *SaveError) Unwrap() error { return e.Err }

// Severity is part of interface ErrorBase.
func (e *SaveError) Severity() Severity { return Error }

// Kind is part of interface ErrorBase.
func (e *SaveError) Kind() ErrKind { return e.Reason }

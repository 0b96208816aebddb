package vm

import "fmt"

// ErrorKind classifies VM errors. Language-level Error values carry a kind
// too, so hosts can tell a recoverable Error result from a VM fault.
type ErrorKind uint8

const (
	TypeError ErrorKind = iota
	UnknownVariable
	UnknownFunction
	CastError
	BorrowConflict
	RuntimeError
	UserRaised
	ParseError
)

var errorKindNames = map[ErrorKind]string{
	TypeError:       "TypeError",
	UnknownVariable: "UnknownVariable",
	UnknownFunction: "UnknownFunction",
	CastError:       "CastError",
	BorrowConflict:  "BorrowConflict",
	RuntimeError:    "RuntimeError",
	UserRaised:      "UserRaised",
	ParseError:      "ParseError",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// VMError is the single error type crossing VM boundaries. Payload is only
// set for UserRaised errors, which carry an arbitrary language value.
type VMError struct {
	Kind    ErrorKind
	Message string
	Payload *Value
	Line    int
	Column  int
}

func (e *VMError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s at %d:%d", e.Kind, e.Message, e.Line, e.Column)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Value wraps the error as a language-level Error value, the form operators
// and try/catch see.
func (e *VMError) Value() Value {
	return ErrorValue(e)
}

// Errorf builds a VMError of the given kind. Native modules and hosts use
// it to produce errors the engine and try/catch understand.
func Errorf(kind ErrorKind, format string, args ...any) *VMError {
	return &VMError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func newError(kind ErrorKind, format string, args ...any) *VMError {
	return &VMError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func typeErrorf(format string, args ...any) *VMError {
	return newError(TypeError, format, args...)
}

func runtimeErrorf(format string, args ...any) *VMError {
	return newError(RuntimeError, format, args...)
}

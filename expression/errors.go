package expression

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ParseErrorKind classifies syntax errors.
type ParseErrorKind string

const (
	UnexpectedToken    ParseErrorKind = "UnexpectedToken"
	UnterminatedString ParseErrorKind = "UnterminatedString"
	UnbalancedParens   ParseErrorKind = "UnbalancedParens"
	NestingTooDeep     ParseErrorKind = "NestingTooDeep"
)

// ParseError reports malformed source. Offset is a byte offset.
type ParseError struct {
	Kind    ParseErrorKind
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Offset, e.Message)
}

// EvalErrorKind classifies evaluation failures.
type EvalErrorKind string

const (
	UnknownVariable EvalErrorKind = "UnknownVariable"
	TypeError       EvalErrorKind = "TypeError"
	ArgumentError   EvalErrorKind = "ArgumentError"
	ArithmeticError EvalErrorKind = "ArithmeticError"
	UnknownFunction EvalErrorKind = "UnknownFunction"
	DepthExceeded   EvalErrorKind = "DepthExceeded"
)

// EvalError is raised while evaluating against a concrete context.
// Name holds the variable or function involved, if any.
type EvalError struct {
	Kind    EvalErrorKind
	Name    string
	Offset  int
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func evalErrorf(kind EvalErrorKind, offset int, format string, args ...any) *EvalError {
	return &EvalError{Kind: kind, Offset: offset, Message: fmt.Sprintf(format, args...)}
}

// EvalErrorKindOf returns the kind of the first EvalError in err's chain.
func EvalErrorKindOf(err error) (EvalErrorKind, bool) {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Kind, true
	}
	return "", false
}

// IsUnknownVariable reports whether err is an UnknownVariable evaluation error.
func IsUnknownVariable(err error) bool {
	kind, ok := EvalErrorKindOf(err)
	return ok && kind == UnknownVariable
}

// IsParseError reports whether err is a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

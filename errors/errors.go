package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/wippyai/cffi"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseOp       Phase = "op"       // operation semantics
	PhaseBoundary Phase = "boundary" // marshalling across the ABI
	PhaseMemory   Phase = "memory"   // linear memory access and allocation
	PhaseHost     Phase = "host"     // wasm host module
	PhaseHarness  Phase = "harness"  // guest harness
	PhaseConfig   Phase = "config"   // configuration loading
	PhaseInvoke   Phase = "invoke"   // high-level invocation
)

// Kind categorizes the error
type Kind string

const (
	KindNullPointer    Kind = "null_pointer"
	KindInvalidUTF8    Kind = "invalid_utf8"
	KindBufferTooSmall Kind = "buffer_too_small"
	KindParse          Kind = "parse"
	KindDivisionByZero Kind = "division_by_zero"
	KindEmptyInput     Kind = "empty_input"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindAllocation     Kind = "allocation"
	KindPanic          Kind = "panic"
	KindOverflow       Kind = "overflow"
	KindNotFound       Kind = "not_found"
	KindInvalidInput   Kind = "invalid_input"
	KindTypeMismatch   Kind = "type_mismatch"
	KindRegistration   Kind = "registration"
	KindInstantiation  Kind = "instantiation"
	KindTrap           Kind = "trap"
)

var kindCodes = map[Kind]cffi.ErrorCode{
	KindNullPointer:    cffi.NullPointer,
	KindInvalidUTF8:    cffi.InvalidUtf8,
	KindBufferTooSmall: cffi.BufferTooSmall,
	KindParse:          cffi.ParseError,
	KindOverflow:       cffi.ParseError,
	KindDivisionByZero: cffi.DivisionByZero,
	KindEmptyInput:     cffi.EmptyInput,
	KindOutOfBounds:    cffi.MemoryFault,
	KindAllocation:     cffi.MemoryFault,
}

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Code returns the boundary error code for this error's kind.
func (e *Error) Code() cffi.ErrorCode {
	if c, ok := kindCodes[e.Kind]; ok {
		return c
	}
	return cffi.Internal
}

// Code maps any error to the code reported across the boundary.
// A nil error is Success; errors without a structured kind are Internal.
func Code(err error) cffi.ErrorCode {
	if err == nil {
		return cffi.Success
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code()
	}
	return cffi.Internal
}

// HasKind reports whether err is a structured error of the given kind.
func HasKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the name of the boundary operation
func (b *Builder) Op(name string) *Builder {
	b.err.Op = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// NullPointer creates a null pointer error for the named argument
func NullPointer(phase Phase, op, arg string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNullPointer,
		Op:     op,
		Detail: fmt.Sprintf("%s is null", arg),
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, op string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Op:     op,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// BufferTooSmall creates a capacity error
func BufferTooSmall(phase Phase, op string, need, have int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBufferTooSmall,
		Op:     op,
		Detail: fmt.Sprintf("need %d bytes, have %d", need, have),
		Value:  need,
	}
}

// ParseFailed creates a parse error for text that is not an integer
func ParseFailed(phase Phase, op, text string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindParse,
		Op:     op,
		Detail: fmt.Sprintf("parse %q", text),
		Cause:  cause,
	}
}

// DivisionByZero creates a division by zero error
func DivisionByZero(phase Phase, op string, dividend float64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDivisionByZero,
		Op:     op,
		Detail: fmt.Sprintf("%g / 0", dividend),
		Value:  dividend,
	}
}

// EmptyInput creates an empty aggregate error
func EmptyInput(phase Phase, op string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindEmptyInput,
		Op:     op,
		Detail: "empty input",
	}
}

// OutOfBounds creates a linear memory bounds error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("offset=%d, length=%d", offset, length),
		Value:  offset,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, op string, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Op:     op,
		Detail: fmt.Sprintf("value %v overflows %s", value, target),
		Value:  value,
	}
}

// Panic wraps a value recovered at a boundary
func Panic(phase Phase, op string, recovered any) *Error {
	err := &Error{
		Phase:  phase,
		Kind:   KindPanic,
		Op:     op,
		Detail: fmt.Sprintf("recovered: %v", recovered),
		Value:  recovered,
	}
	if cause, ok := recovered.(error); ok {
		err.Cause = cause
	}
	return err
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// TypeMismatch creates an error for a Go value that does not fit a parameter
func TypeMismatch(phase Phase, op, param string, got any, want string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Op:     op,
		Detail: fmt.Sprintf("%s: got %T, want %s", param, got, want),
		Value:  got,
	}
}

// Registration creates a host function registration error
func Registration(module, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s#%s", module, name),
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(phase Phase, what string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInstantiation,
		Detail: fmt.Sprintf("instantiate %s", what),
		Cause:  cause,
	}
}

// Trap creates an error for a wasm call that trapped
func Trap(phase Phase, op string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTrap,
		Op:     op,
		Detail: "call trapped",
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

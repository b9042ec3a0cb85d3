package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/wippyai/cffi"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseBoundary,
				Kind:   KindBufferTooSmall,
				Op:     "copy_string",
				Detail: "need 17 bytes, have 5",
			},
			contains: []string{"[boundary]", "buffer_too_small", "in copy_string", "need 17 bytes"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseMemory,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[memory]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseMemory,
				Kind:   KindAllocation,
				Detail: "arena full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[memory]", "allocation", "arena full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseOp,
		Kind:  KindParse,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseOp,
		Kind:  KindInvalidUTF8,
		Op:    "greet",
	}

	if !err.Is(&Error{Phase: PhaseOp, Kind: KindInvalidUTF8}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseBoundary, Kind: KindInvalidUTF8}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseOp, Kind: KindParse}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseOp, Kind: KindInvalidUTF8}
	if !errors.Is(fmt.Errorf("wrapped: %w", err), target) {
		t.Error("errors.Is should match through wrapping")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseBoundary, KindNullPointer).
		Op("parse_int").
		Value(0).
		Cause(cause).
		Detail("%s is null", "output").
		Build()

	if err.Phase != PhaseBoundary {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseBoundary)
	}
	if err.Kind != KindNullPointer {
		t.Errorf("Kind = %v, want %v", err.Kind, KindNullPointer)
	}
	if err.Op != "parse_int" {
		t.Errorf("Op = %q, want parse_int", err.Op)
	}
	if err.Detail != "output is null" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if !errors.Is(err, cause) {
		t.Error("builder cause not reachable")
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want cffi.ErrorCode
	}{
		{nil, "nil", cffi.Success},
		{NullPointer(PhaseBoundary, "greet", "name"), "null", cffi.NullPointer},
		{InvalidUTF8(PhaseOp, "greet", []byte{0xff}), "utf8", cffi.InvalidUtf8},
		{BufferTooSmall(PhaseOp, "copy_string", 6, 5), "capacity", cffi.BufferTooSmall},
		{ParseFailed(PhaseOp, "parse_int", "abc", nil), "parse", cffi.ParseError},
		{Overflow(PhaseOp, "parse_int", "99999999999", "s32"), "overflow", cffi.ParseError},
		{DivisionByZero(PhaseOp, "divide", 1), "div", cffi.DivisionByZero},
		{EmptyInput(PhaseOp, "max_array"), "empty", cffi.EmptyInput},
		{OutOfBounds(PhaseMemory, 1<<20, 4), "bounds", cffi.MemoryFault},
		{AllocationFailed(PhaseMemory, 8, 1, nil), "alloc", cffi.MemoryFault},
		{Panic(PhaseBoundary, "sort_array", "boom"), "panic", cffi.Internal},
		{errors.New("plain"), "plain", cffi.Internal},
		{fmt.Errorf("wrap: %w", EmptyInput(PhaseOp, "max_array")), "wrapped", cffi.EmptyInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPanicKeepsErrorCause(t *testing.T) {
	cause := errors.New("index out of range")
	err := Panic(PhaseBoundary, "sum_array", cause)
	if !errors.Is(err, cause) {
		t.Error("panic value of type error should be the cause")
	}
	if !HasKind(err, KindPanic) {
		t.Error("HasKind should report panic")
	}
	if HasKind(errors.New("x"), KindPanic) {
		t.Error("HasKind should reject unstructured errors")
	}
}

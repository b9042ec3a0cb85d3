package cffi

import (
	"fmt"
	"strconv"
)

// ErrorCode is the closed set of status codes returned across the boundary.
// New codes are appended with fresh values; existing values are never reused.
type ErrorCode int32

const (
	Success        ErrorCode = 0
	NullPointer    ErrorCode = -1
	InvalidUtf8    ErrorCode = -2
	BufferTooSmall ErrorCode = -3
	ParseError     ErrorCode = -4
	DivisionByZero ErrorCode = -5
	EmptyInput     ErrorCode = -6
	MemoryFault    ErrorCode = -7
	Internal       ErrorCode = -8
)

var codeNames = map[ErrorCode]string{
	Success:        "Success",
	NullPointer:    "NullPointer",
	InvalidUtf8:    "InvalidUtf8",
	BufferTooSmall: "BufferTooSmall",
	ParseError:     "ParseError",
	DivisionByZero: "DivisionByZero",
	EmptyInput:     "EmptyInput",
	MemoryFault:    "MemoryFault",
	Internal:       "Internal",
}

// ErrorCodes returns every defined code, ordered by descending value.
func ErrorCodes() []ErrorCode {
	return []ErrorCode{
		Success, NullPointer, InvalidUtf8, BufferTooSmall, ParseError,
		DivisionByZero, EmptyInput, MemoryFault, Internal,
	}
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "ErrorCode(" + strconv.Itoa(int(c)) + ")"
}

// Point is a 2D coordinate passed by value across the boundary.
// Layout: x at 0, y at 8, 16 bytes, 8-byte aligned.
type Point struct {
	X float64
	Y float64
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// OperationResult carries the outcome of a fallible numeric operation.
// Value is meaningful only when Success is true, ErrorCode only when it is
// false. Layout: success at 0, value at 8, error_code at 16, 24 bytes.
type OperationResult struct {
	Success   bool
	Value     float64
	ErrorCode ErrorCode
}

func (r OperationResult) String() string {
	if r.Success {
		return fmt.Sprintf("ok(%g)", r.Value)
	}
	return "err(" + r.ErrorCode.String() + ")"
}

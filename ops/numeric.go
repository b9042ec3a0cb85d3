package ops

import (
	"github.com/wippyai/cffi"
	"github.com/wippyai/cffi/errors"
)

// Add returns a+b, wrapping on overflow.
func Add(a, b int32) int32 {
	return a + b
}

// Multiply returns a*b, wrapping on overflow.
func Multiply(a, b int32) int32 {
	return a * b
}

// Divide returns a/b. A divisor of exactly zero (either sign) fails with
// DivisionByZero and a zero value.
func Divide(a, b float64) cffi.OperationResult {
	if b == 0 {
		return cffi.OperationResult{ErrorCode: cffi.DivisionByZero}
	}
	return cffi.OperationResult{Success: true, Value: a / b, ErrorCode: cffi.Success}
}

// Quotient is Divide for Go callers.
func Quotient(a, b float64) (float64, error) {
	if b == 0 {
		return 0, errors.DivisionByZero(errors.PhaseOp, "divide", a)
	}
	return a / b, nil
}

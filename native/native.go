// Package native implements the exports over raw process pointers. It backs
// the C shared library: pointers are trusted exactly as a C callee trusts
// them, so lengths are not validated and an invalid address crashes the
// process rather than returning an error.
//
// Every function recovers panics raised by the library itself and converts
// them to the function's failure value.
package native

import (
	"math"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/cffi"
	"github.com/wippyai/cffi/errors"
	"github.com/wippyai/cffi/ops"
)

// MaxStringSize bounds the scan for a string terminator.
const MaxStringSize = 1 << 30

// Allocator owns the buffers of strings handed to a caller.
type Allocator interface {
	// Alloc returns size bytes, or nil when memory is exhausted.
	Alloc(size uintptr) unsafe.Pointer
	Free(p unsafe.Pointer)
}

func guard(op string, fallback func()) {
	if r := recover(); r != nil {
		Logger().Error("recovered panic at boundary",
			zap.String("op", op),
			zap.Error(errors.Panic(errors.PhaseBoundary, op, r)),
			zap.Stack("stack"))
		if fallback != nil {
			fallback()
		}
	}
}

// cString borrows the NUL-terminated bytes at p without copying them.
func cString(p unsafe.Pointer) ([]byte, bool) {
	for n := 0; n < MaxStringSize; n++ {
		if *(*byte)(unsafe.Add(p, n)) == 0 {
			return unsafe.Slice((*byte)(p), n), true
		}
	}
	return nil, false
}

func Add(a, b int32) int32 {
	return ops.Add(a, b)
}

func Multiply(a, b int32) int32 {
	return ops.Multiply(a, b)
}

func Divide(a, b float64) (r cffi.OperationResult) {
	defer guard("divide", func() { r = cffi.OperationResult{ErrorCode: cffi.Internal} })
	return ops.Divide(a, b)
}

// Greet returns an owned greeting for name, or nil.
func Greet(alloc Allocator, name unsafe.Pointer) (out unsafe.Pointer) {
	defer guard("greet", func() { out = nil })
	return produce(alloc, name, ops.Greet)
}

// ToUppercase returns an owned uppercase copy of input, or nil.
func ToUppercase(alloc Allocator, input unsafe.Pointer) (out unsafe.Pointer) {
	defer guard("to_uppercase", func() { out = nil })
	return produce(alloc, input, ops.ToUpper)
}

func produce(alloc Allocator, p unsafe.Pointer, fn func([]byte) (string, error)) unsafe.Pointer {
	if p == nil {
		return nil
	}
	raw, ok := cString(p)
	if !ok {
		return nil
	}
	s, err := fn(raw)
	if err != nil {
		return nil
	}
	return newCString(alloc, s)
}

func newCString(alloc Allocator, s string) unsafe.Pointer {
	out := alloc.Alloc(uintptr(len(s)) + 1)
	if out == nil {
		Logger().Error("allocate owned string", zap.Int("size", len(s)+1))
		return nil
	}
	buf := unsafe.Slice((*byte)(out), len(s)+1)
	copy(buf, s)
	buf[len(s)] = 0
	return out
}

// StringLength returns the byte length of input, or -1.
func StringLength(input unsafe.Pointer) (n int32) {
	defer guard("string_length", func() { n = -1 })
	if input == nil {
		return -1
	}
	raw, ok := cString(input)
	if !ok {
		return -1
	}
	n, err := ops.StringLength(raw)
	if err != nil {
		return -1
	}
	return n
}

// FreeString releases a string returned by Greet or ToUppercase.
func FreeString(alloc Allocator, p unsafe.Pointer) {
	defer guard("free_string", nil)
	if p == nil {
		return
	}
	alloc.Free(p)
}

func ints(arr *int32, n uintptr) []int32 {
	if arr == nil || n == 0 {
		return nil
	}
	return unsafe.Slice(arr, n)
}

func SumArray(arr *int32, n uintptr) (sum int32) {
	defer guard("sum_array", func() { sum = 0 })
	return ops.Sum(ints(arr, n))
}

// MaxArray returns math.MinInt32 for a nil or empty array.
func MaxArray(arr *int32, n uintptr) (m int32) {
	defer guard("max_array", func() { m = math.MinInt32 })
	m, err := ops.Max(ints(arr, n))
	if err != nil {
		return math.MinInt32
	}
	return m
}

func SortArray(arr *int32, n uintptr) {
	defer guard("sort_array", nil)
	ops.Sort(ints(arr, n))
}

func PointNew(x, y float64) cffi.Point {
	return ops.NewPoint(x, y)
}

func PointDistance(p1, p2 cffi.Point) float64 {
	return ops.Distance(p1, p2)
}

func PointMidpoint(p1, p2 cffi.Point) cffi.Point {
	return ops.Midpoint(p1, p2)
}

func PointTranslate(p *cffi.Point, dx, dy float64) {
	defer guard("point_translate", nil)
	ops.Translate(p, dx, dy)
}

// ParseInt parses input into *out. out is written only on Success.
func ParseInt(input unsafe.Pointer, out *int32) (code cffi.ErrorCode) {
	defer guard("parse_int", func() { code = cffi.Internal })
	if input == nil || out == nil {
		return cffi.NullPointer
	}
	raw, ok := cString(input)
	if !ok {
		return cffi.Internal
	}
	v, err := ops.ParseInt(raw)
	if err != nil {
		return errors.Code(err)
	}
	*out = v
	return cffi.Success
}

// CopyString copies src and its terminator into the destLen bytes at dest.
func CopyString(src, dest unsafe.Pointer, destLen uintptr) (code cffi.ErrorCode) {
	defer guard("copy_string", func() { code = cffi.Internal })
	if src == nil || dest == nil {
		return cffi.NullPointer
	}
	raw, ok := cString(src)
	if !ok {
		return cffi.Internal
	}
	return errors.Code(ops.CopyString(raw, unsafe.Slice((*byte)(dest), destLen)))
}

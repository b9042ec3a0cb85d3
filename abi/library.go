package abi

import (
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/cffi"
	"github.com/wippyai/cffi/errors"
	"github.com/wippyai/cffi/ops"
)

// Library implements every export over a linear memory. Pointers are offsets
// into mem, and owned strings are allocated with alloc.
//
// A Library is not safe for concurrent use.
type Library struct {
	mem   cffi.Memory
	alloc cffi.Allocator
	log   *zap.Logger
}

// NewLibrary creates a Library over mem. alloc may be nil, in which case the
// string producers return Null.
func NewLibrary(mem cffi.Memory, alloc cffi.Allocator) *Library {
	return &Library{mem: mem, alloc: alloc, log: Logger()}
}

// Memory returns the memory the library operates on.
func (l *Library) Memory() cffi.Memory {
	return l.mem
}

// guard recovers a panic raised inside a boundary call and runs fallback so
// the call returns its failure value instead of unwinding.
func (l *Library) guard(op string, fallback func()) {
	if r := recover(); r != nil {
		l.log.Error("recovered panic at boundary",
			zap.String("op", op),
			zap.Error(errors.Panic(errors.PhaseBoundary, op, r)),
			zap.Stack("stack"))
		if fallback != nil {
			fallback()
		}
	}
}

func (l *Library) fault(op string, err error) {
	l.log.Warn("memory fault", zap.String("op", op), zap.Error(err))
}

func (l *Library) Add(a, b int32) int32 {
	return ops.Add(a, b)
}

func (l *Library) Multiply(a, b int32) int32 {
	return ops.Multiply(a, b)
}

// Divide writes the OperationResult of a/b to the return area at ret.
func (l *Library) Divide(ret uint32, a, b float64) {
	defer l.guard("divide", nil)
	if ret == cffi.Null {
		l.fault("divide", errors.NullPointer(errors.PhaseBoundary, "divide", "return area"))
		return
	}
	if err := WriteOperationResult(l.mem, ret, ops.Divide(a, b)); err != nil {
		l.fault("divide", err)
	}
}

// Greet returns an owned greeting for the string at name, or Null if name is
// null, not UTF-8, or cannot be read.
func (l *Library) Greet(name uint32) (out uint32) {
	defer l.guard("greet", func() { out = cffi.Null })
	return l.produce("greet", name, ops.Greet)
}

// ToUppercase returns an owned uppercase copy of the string at input, or Null.
func (l *Library) ToUppercase(input uint32) (out uint32) {
	defer l.guard("to_uppercase", func() { out = cffi.Null })
	return l.produce("to_uppercase", input, ops.ToUpper)
}

func (l *Library) produce(op string, ptr uint32, fn func([]byte) (string, error)) uint32 {
	if ptr == cffi.Null {
		return cffi.Null
	}
	raw, err := ReadCString(l.mem, ptr)
	if err != nil {
		l.fault(op, err)
		return cffi.Null
	}
	s, err := fn(raw)
	if err != nil {
		l.log.Debug("rejected input", zap.String("op", op), zap.Error(err))
		return cffi.Null
	}
	if l.alloc == nil {
		l.log.Error("no allocator for owned string", zap.String("op", op))
		return cffi.Null
	}
	out, err := WriteCString(l.mem, l.alloc, s)
	if err != nil {
		l.log.Error("allocate owned string", zap.String("op", op), zap.Error(err))
		return cffi.Null
	}
	return out
}

// StringLength returns the byte length of the string at input, or -1 when
// input is null, not UTF-8, or cannot be read.
func (l *Library) StringLength(input uint32) (n int32) {
	defer l.guard("string_length", func() { n = -1 })
	if input == cffi.Null {
		return -1
	}
	raw, err := ReadCString(l.mem, input)
	if err != nil {
		l.fault("string_length", err)
		return -1
	}
	n, err = ops.StringLength(raw)
	if err != nil {
		return -1
	}
	return n
}

// FreeString releases a string returned by Greet or ToUppercase. Null is a
// no-op. The allocation size is recovered from the terminator, so a string
// whose bytes were overwritten by the caller cannot be released correctly.
func (l *Library) FreeString(ptr uint32) {
	defer l.guard("free_string", nil)
	if ptr == cffi.Null {
		return
	}
	if l.alloc == nil {
		l.log.Error("no allocator to release string", zap.Uint32("ptr", ptr))
		return
	}
	raw, err := ReadCString(l.mem, ptr)
	if err != nil {
		l.fault("free_string", err)
		return
	}
	l.alloc.Free(ptr, uint32(len(raw))+1, 1)
}

// SumArray returns the wrapping sum of n int32 values at ptr. Null or an
// empty array sums to 0.
func (l *Library) SumArray(ptr, n uint32) (sum int32) {
	defer l.guard("sum_array", func() { sum = 0 })
	if ptr == cffi.Null || n == 0 {
		return 0
	}
	xs, err := ReadI32s(l.mem, ptr, n)
	if err != nil {
		l.fault("sum_array", err)
		return 0
	}
	return ops.Sum(xs)
}

// MaxArray returns the largest of n int32 values at ptr, or math.MinInt32
// for a null or empty array.
func (l *Library) MaxArray(ptr, n uint32) (m int32) {
	defer l.guard("max_array", func() { m = math.MinInt32 })
	if ptr == cffi.Null || n == 0 {
		return math.MinInt32
	}
	xs, err := ReadI32s(l.mem, ptr, n)
	if err != nil {
		l.fault("max_array", err)
		return math.MinInt32
	}
	m, err = ops.Max(xs)
	if err != nil {
		return math.MinInt32
	}
	return m
}

// SortArray sorts n int32 values at ptr ascending in place.
func (l *Library) SortArray(ptr, n uint32) {
	defer l.guard("sort_array", nil)
	if ptr == cffi.Null || n == 0 {
		return
	}
	xs, err := ReadI32s(l.mem, ptr, n)
	if err != nil {
		l.fault("sort_array", err)
		return
	}
	ops.Sort(xs)
	if err := WriteI32s(l.mem, ptr, xs); err != nil {
		l.fault("sort_array", err)
	}
}

// PointNew writes Point{x, y} to the return area at ret.
func (l *Library) PointNew(ret uint32, x, y float64) {
	defer l.guard("point_new", nil)
	if ret == cffi.Null {
		l.fault("point_new", errors.NullPointer(errors.PhaseBoundary, "point_new", "return area"))
		return
	}
	if err := WritePoint(l.mem, ret, ops.NewPoint(x, y)); err != nil {
		l.fault("point_new", err)
	}
}

// PointDistance returns the distance between the points at p1 and p2, or NaN
// if either cannot be read.
func (l *Library) PointDistance(p1, p2 uint32) (d float64) {
	defer l.guard("point_distance", func() { d = math.NaN() })
	a, b, err := l.readPoints("point_distance", p1, p2)
	if err != nil {
		return math.NaN()
	}
	return ops.Distance(a, b)
}

// PointMidpoint writes the midpoint of the points at p1 and p2 to the
// return area at ret.
func (l *Library) PointMidpoint(ret, p1, p2 uint32) {
	defer l.guard("point_midpoint", nil)
	if ret == cffi.Null {
		l.fault("point_midpoint", errors.NullPointer(errors.PhaseBoundary, "point_midpoint", "return area"))
		return
	}
	a, b, err := l.readPoints("point_midpoint", p1, p2)
	if err != nil {
		return
	}
	if err := WritePoint(l.mem, ret, ops.Midpoint(a, b)); err != nil {
		l.fault("point_midpoint", err)
	}
}

func (l *Library) readPoints(op string, p1, p2 uint32) (cffi.Point, cffi.Point, error) {
	for i, p := range []uint32{p1, p2} {
		if p == cffi.Null {
			err := errors.NullPointer(errors.PhaseBoundary, op, []string{"p1", "p2"}[i])
			l.fault(op, err)
			return cffi.Point{}, cffi.Point{}, err
		}
	}
	a, err := ReadPoint(l.mem, p1)
	if err != nil {
		l.fault(op, err)
		return cffi.Point{}, cffi.Point{}, err
	}
	b, err := ReadPoint(l.mem, p2)
	if err != nil {
		l.fault(op, err)
		return cffi.Point{}, cffi.Point{}, err
	}
	return a, b, nil
}

// PointTranslate moves the point at ptr by (dx, dy). Null is a no-op.
func (l *Library) PointTranslate(ptr uint32, dx, dy float64) {
	defer l.guard("point_translate", nil)
	if ptr == cffi.Null {
		return
	}
	p, err := ReadPoint(l.mem, ptr)
	if err != nil {
		l.fault("point_translate", err)
		return
	}
	ops.Translate(&p, dx, dy)
	if err := WritePoint(l.mem, ptr, p); err != nil {
		l.fault("point_translate", err)
	}
}

// ParseInt parses the string at input and stores the value at output. The
// output slot is written only on Success.
func (l *Library) ParseInt(input, output uint32) (code cffi.ErrorCode) {
	defer l.guard("parse_int", func() { code = cffi.Internal })
	if input == cffi.Null || output == cffi.Null {
		return cffi.NullPointer
	}
	raw, err := ReadCString(l.mem, input)
	if err != nil {
		l.fault("parse_int", err)
		return errors.Code(err)
	}
	v, err := ops.ParseInt(raw)
	if err != nil {
		return errors.Code(err)
	}
	if err := l.mem.WriteU32(output, uint32(v)); err != nil {
		l.fault("parse_int", err)
		return errors.Code(err)
	}
	return cffi.Success
}

// CopyString copies the string at src and its terminator into the destLen
// bytes at dest. dest is untouched on failure.
func (l *Library) CopyString(src, dest, destLen uint32) (code cffi.ErrorCode) {
	defer l.guard("copy_string", func() { code = cffi.Internal })
	if src == cffi.Null || dest == cffi.Null {
		return cffi.NullPointer
	}
	raw, err := ReadCString(l.mem, src)
	if err != nil {
		l.fault("copy_string", err)
		return errors.Code(err)
	}
	// Validate against a scratch buffer so a failure leaves dest untouched,
	// then write only the bytes actually produced.
	need := uint32(len(raw)) + 1
	scratch := make([]byte, min(need, destLen))
	if err := ops.CopyString(raw, scratch); err != nil {
		return errors.Code(err)
	}
	if err := l.mem.Write(dest, scratch[:need]); err != nil {
		l.fault("copy_string", err)
		return errors.Code(err)
	}
	return cffi.Success
}

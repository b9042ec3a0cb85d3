package abi

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/wippyai/cffi"
	"github.com/wippyai/cffi/errors"
	"github.com/wippyai/cffi/layout"
)

const (
	MaxStringSize = 1 << 30 // longest string scanned for a terminator
	MaxListLength = 1 << 27 // longest i32 array read in one call
)

// ReadCString copies the NUL-terminated string at ptr out of mem.
func ReadCString(mem cffi.Memory, ptr uint32) ([]byte, error) {
	sizer, ok := mem.(cffi.MemorySizer)
	if !ok {
		return readCStringBytewise(mem, ptr)
	}

	size := sizer.Size()
	if ptr >= size {
		return nil, errors.OutOfBounds(errors.PhaseBoundary, ptr, 1)
	}
	n := size - ptr
	if n > MaxStringSize {
		n = MaxStringSize
	}
	view, err := mem.Read(ptr, n)
	if err != nil {
		return nil, err
	}
	end := bytes.IndexByte(view, 0)
	if end < 0 {
		return nil, errors.New(errors.PhaseBoundary, errors.KindOutOfBounds).
			Detail("unterminated string at %d", ptr).
			Value(ptr).
			Build()
	}
	return bytes.Clone(view[:end]), nil
}

func readCStringBytewise(mem cffi.Memory, ptr uint32) ([]byte, error) {
	var out []byte
	for off := uint64(ptr); off <= math.MaxUint32; off++ {
		b, err := mem.ReadU8(uint32(off))
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return out, nil
		}
		if len(out) == MaxStringSize {
			break
		}
		out = append(out, b)
	}
	return nil, errors.New(errors.PhaseBoundary, errors.KindOutOfBounds).
		Detail("unterminated string at %d", ptr).
		Value(ptr).
		Build()
}

// WriteCString allocates len(s)+1 bytes with alloc and stores s with its
// terminator. The caller owns the returned buffer.
func WriteCString(mem cffi.Memory, alloc cffi.Allocator, s string) (uint32, error) {
	size := uint32(len(s)) + 1
	ptr, err := alloc.Alloc(size, 1)
	if err != nil {
		return cffi.Null, errors.AllocationFailed(errors.PhaseBoundary, size, 1, err)
	}
	buf := make([]byte, size)
	copy(buf, s)
	if err := mem.Write(ptr, buf); err != nil {
		alloc.Free(ptr, size, 1)
		return cffi.Null, err
	}
	return ptr, nil
}

// ReadI32s copies n little-endian int32 values starting at ptr.
func ReadI32s(mem cffi.Memory, ptr, n uint32) ([]int32, error) {
	if n > MaxListLength {
		return nil, errors.OutOfBounds(errors.PhaseBoundary, ptr, n)
	}
	raw, err := mem.Read(ptr, n*4)
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

// WriteI32s stores xs as little-endian int32 values starting at ptr.
func WriteI32s(mem cffi.Memory, ptr uint32, xs []int32) error {
	buf := make([]byte, len(xs)*4)
	for i, x := range xs {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(x))
	}
	return mem.Write(ptr, buf)
}

// ReadPoint decodes a point record at ptr.
func ReadPoint(mem cffi.Memory, ptr uint32) (cffi.Point, error) {
	x, err := mem.ReadU64(ptr + layout.Point.Offset(layout.FieldX))
	if err != nil {
		return cffi.Point{}, err
	}
	y, err := mem.ReadU64(ptr + layout.Point.Offset(layout.FieldY))
	if err != nil {
		return cffi.Point{}, err
	}
	return cffi.Point{X: math.Float64frombits(x), Y: math.Float64frombits(y)}, nil
}

// WritePoint encodes p as a point record at ptr.
func WritePoint(mem cffi.Memory, ptr uint32, p cffi.Point) error {
	buf := make([]byte, layout.Point.Size)
	binary.LittleEndian.PutUint64(buf[layout.Point.Offset(layout.FieldX):], math.Float64bits(p.X))
	binary.LittleEndian.PutUint64(buf[layout.Point.Offset(layout.FieldY):], math.Float64bits(p.Y))
	return mem.Write(ptr, buf)
}

// ReadOperationResult decodes an operation-result record at ptr.
func ReadOperationResult(mem cffi.Memory, ptr uint32) (cffi.OperationResult, error) {
	raw, err := mem.Read(ptr, layout.OperationResult.Size)
	if err != nil {
		return cffi.OperationResult{}, err
	}
	value := binary.LittleEndian.Uint64(raw[layout.OperationResult.Offset(layout.FieldValue):])
	code := binary.LittleEndian.Uint32(raw[layout.OperationResult.Offset(layout.FieldErrorCode):])
	return cffi.OperationResult{
		Success:   raw[layout.OperationResult.Offset(layout.FieldSuccess)] != 0,
		Value:     math.Float64frombits(value),
		ErrorCode: cffi.ErrorCode(int32(code)),
	}, nil
}

// WriteOperationResult encodes r as an operation-result record at ptr.
// Padding bytes are written as zero.
func WriteOperationResult(mem cffi.Memory, ptr uint32, r cffi.OperationResult) error {
	buf := make([]byte, layout.OperationResult.Size)
	if r.Success {
		buf[layout.OperationResult.Offset(layout.FieldSuccess)] = 1
	}
	binary.LittleEndian.PutUint64(buf[layout.OperationResult.Offset(layout.FieldValue):], math.Float64bits(r.Value))
	binary.LittleEndian.PutUint32(buf[layout.OperationResult.Offset(layout.FieldErrorCode):], uint32(int32(r.ErrorCode)))
	return mem.Write(ptr, buf)
}

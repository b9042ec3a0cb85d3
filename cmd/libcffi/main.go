//go:build cgo

// Command libcffi is built as a C shared library:
//
//	go build -buildmode=c-shared -o libcffi.so ./cmd/libcffi
//
// The matching header is produced by `cffi header`. Setting CFFI_LOG to a
// zap level name sends boundary diagnostics to stderr.
package main

/*
#include <stdbool.h>
#include <stddef.h>
#include <stdint.h>
#include <stdlib.h>

typedef int32_t ErrorCode;

typedef struct Point {
	double x;
	double y;
} Point;

typedef struct OperationResult {
	bool success;
	double value;
	int32_t error_code;
} OperationResult;
*/
import "C"

import (
	"os"
	"unsafe"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/cffi"
	"github.com/wippyai/cffi/native"
)

// cHeap backs owned strings with the C allocator. Callers release them with
// free_string only; free(3) on a returned string is not supported.
type cHeap struct{}

func (cHeap) Alloc(size uintptr) unsafe.Pointer {
	return C.malloc(C.size_t(size))
}

func (cHeap) Free(p unsafe.Pointer) {
	C.free(p)
}

var heap native.Allocator = cHeap{}

func init() {
	level, ok := os.LookupEnv("CFFI_LOG")
	if !ok {
		return
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	if l, err := zc.Build(); err == nil {
		native.SetLogger(l.Named("libcffi"))
	}
}

func goPoint(p C.Point) cffi.Point {
	return *(*cffi.Point)(unsafe.Pointer(&p))
}

func cPoint(p cffi.Point) C.Point {
	return *(*C.Point)(unsafe.Pointer(&p))
}

//export add
func add(a, b C.int32_t) C.int32_t {
	return C.int32_t(native.Add(int32(a), int32(b)))
}

//export multiply
func multiply(a, b C.int32_t) C.int32_t {
	return C.int32_t(native.Multiply(int32(a), int32(b)))
}

//export divide
func divide(a, b C.double) C.OperationResult {
	r := native.Divide(float64(a), float64(b))
	return C.OperationResult{
		success:    C.bool(r.Success),
		value:      C.double(r.Value),
		error_code: C.int32_t(r.ErrorCode),
	}
}

//export greet
func greet(name *C.char) *C.char {
	return (*C.char)(native.Greet(heap, unsafe.Pointer(name)))
}

//export to_uppercase
func to_uppercase(input *C.char) *C.char {
	return (*C.char)(native.ToUppercase(heap, unsafe.Pointer(input)))
}

//export string_length
func string_length(input *C.char) C.int32_t {
	return C.int32_t(native.StringLength(unsafe.Pointer(input)))
}

//export free_string
func free_string(s *C.char) {
	native.FreeString(heap, unsafe.Pointer(s))
}

//export free_rust_string
func free_rust_string(s *C.char) {
	native.FreeString(heap, unsafe.Pointer(s))
}

//export sum_array
func sum_array(arr *C.int32_t, n C.size_t) C.int32_t {
	return C.int32_t(native.SumArray((*int32)(unsafe.Pointer(arr)), uintptr(n)))
}

//export max_array
func max_array(arr *C.int32_t, n C.size_t) C.int32_t {
	return C.int32_t(native.MaxArray((*int32)(unsafe.Pointer(arr)), uintptr(n)))
}

//export sort_array
func sort_array(arr *C.int32_t, n C.size_t) {
	native.SortArray((*int32)(unsafe.Pointer(arr)), uintptr(n))
}

//export point_new
func point_new(x, y C.double) C.Point {
	return cPoint(native.PointNew(float64(x), float64(y)))
}

//export point_distance
func point_distance(p1, p2 C.Point) C.double {
	return C.double(native.PointDistance(goPoint(p1), goPoint(p2)))
}

//export point_midpoint
func point_midpoint(p1, p2 C.Point) C.Point {
	return cPoint(native.PointMidpoint(goPoint(p1), goPoint(p2)))
}

//export point_translate
func point_translate(p *C.Point, dx, dy C.double) {
	native.PointTranslate((*cffi.Point)(unsafe.Pointer(p)), float64(dx), float64(dy))
}

//export parse_int
func parse_int(input *C.char, output *C.int32_t) C.ErrorCode {
	return C.ErrorCode(native.ParseInt(unsafe.Pointer(input), (*int32)(unsafe.Pointer(output))))
}

//export copy_string
func copy_string(src *C.char, dest *C.char, destLen C.size_t) C.ErrorCode {
	return C.ErrorCode(native.CopyString(unsafe.Pointer(src), unsafe.Pointer(dest), uintptr(destLen)))
}

func main() {}

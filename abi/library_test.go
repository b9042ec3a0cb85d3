package abi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/cffi"
	"github.com/wippyai/cffi/memory"
)

func newDirect(t *testing.T) *Direct {
	t.Helper()
	d, err := NewDirect(memory.DefaultArenaConfig())
	require.NoError(t, err)
	return d
}

func putString(t *testing.T, d *Direct, s string) uint32 {
	t.Helper()
	ptr, err := WriteCString(d.Memory(), d.Arena(), s)
	require.NoError(t, err)
	return ptr
}

func putBytes(t *testing.T, d *Direct, b []byte) uint32 {
	t.Helper()
	ptr, err := d.Arena().Alloc(uint32(len(b))+1, 1)
	require.NoError(t, err)
	require.NoError(t, d.Memory().Write(ptr, append(append([]byte{}, b...), 0)))
	return ptr
}

func putInts(t *testing.T, d *Direct, xs []int32) uint32 {
	t.Helper()
	ptr, err := d.Arena().Alloc(uint32(len(xs))*4, 4)
	require.NoError(t, err)
	require.NoError(t, WriteI32s(d.Memory(), ptr, xs))
	return ptr
}

func putPoint(t *testing.T, d *Direct, p cffi.Point) uint32 {
	t.Helper()
	ptr, err := d.Arena().Alloc(16, 8)
	require.NoError(t, err)
	require.NoError(t, WritePoint(d.Memory(), ptr, p))
	return ptr
}

func readString(t *testing.T, d *Direct, ptr uint32) string {
	t.Helper()
	raw, err := ReadCString(d.Memory(), ptr)
	require.NoError(t, err)
	return string(raw)
}

func TestLibraryGreet(t *testing.T) {
	d := newDirect(t)
	lib := d.Library()

	name := putString(t, d, "Alice")
	before := d.Arena().InUse()

	out := lib.Greet(name)
	require.NotEqual(t, cffi.Null, out)
	assert.Equal(t, "Hello, Alice! Welcome from Go.", readString(t, d, out))
	assert.Greater(t, d.Arena().InUse(), before)

	lib.FreeString(out)
	assert.Equal(t, before, d.Arena().InUse())
}

func TestLibraryStringProducersRejectBadInput(t *testing.T) {
	d := newDirect(t)
	lib := d.Library()
	bad := putBytes(t, d, []byte{0xff, 0xfe})
	before := d.Arena().InUse()

	assert.Equal(t, cffi.Null, lib.Greet(cffi.Null))
	assert.Equal(t, cffi.Null, lib.Greet(bad))
	assert.Equal(t, cffi.Null, lib.ToUppercase(cffi.Null))
	assert.Equal(t, cffi.Null, lib.ToUppercase(bad))
	assert.Equal(t, before, d.Arena().InUse(), "rejected input must not allocate")
}

func TestLibraryToUppercase(t *testing.T) {
	d := newDirect(t)
	lib := d.Library()

	out := lib.ToUppercase(putString(t, d, "hello world"))
	require.NotEqual(t, cffi.Null, out)
	assert.Equal(t, "HELLO WORLD", readString(t, d, out))
	lib.FreeString(out)
}

func TestLibraryNoAllocator(t *testing.T) {
	d := newDirect(t)
	lib := NewLibrary(d.Memory(), nil)

	assert.Equal(t, cffi.Null, lib.Greet(putString(t, d, "x")))
	lib.FreeString(putString(t, d, "y"))
}

func TestLibraryStringLength(t *testing.T) {
	d := newDirect(t)
	lib := d.Library()

	assert.Equal(t, int32(4), lib.StringLength(putString(t, d, "Rust")))
	assert.Equal(t, int32(0), lib.StringLength(putString(t, d, "")))
	assert.Equal(t, int32(6), lib.StringLength(putString(t, d, "héllo")))
	assert.Equal(t, int32(-1), lib.StringLength(cffi.Null))
	assert.Equal(t, int32(-1), lib.StringLength(putBytes(t, d, []byte{0xc3})))
}

func TestLibraryStringLengthUnterminated(t *testing.T) {
	d := newDirect(t)
	lib := d.Library()
	size := d.Arena().Memory().Size()

	require.NoError(t, d.Memory().Write(size-3, []byte("abc")))
	assert.Equal(t, int32(-1), lib.StringLength(size-3))
	assert.Equal(t, int32(-1), lib.StringLength(size+100))
}

func TestLibraryFreeNull(t *testing.T) {
	d := newDirect(t)
	d.Library().FreeString(cffi.Null)
	assert.Zero(t, d.Arena().InUse())
}

func TestLibraryArrays(t *testing.T) {
	d := newDirect(t)
	lib := d.Library()

	arr := putInts(t, d, []int32{5, 2, 8, 1, 9})
	assert.Equal(t, int32(25), lib.SumArray(arr, 5))
	assert.Equal(t, int32(9), lib.MaxArray(arr, 5))
	assert.Equal(t, int32(7), lib.SumArray(arr, 2))

	lib.SortArray(arr, 5)
	got, err := ReadI32s(d.Memory(), arr, 5)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 5, 8, 9}, got)
}

func TestLibraryArraySentinels(t *testing.T) {
	d := newDirect(t)
	lib := d.Library()
	arr := putInts(t, d, []int32{3})
	far := d.Arena().Memory().Size() - 2

	assert.Equal(t, int32(0), lib.SumArray(cffi.Null, 3))
	assert.Equal(t, int32(0), lib.SumArray(arr, 0))
	assert.Equal(t, int32(0), lib.SumArray(far, 1))
	assert.Equal(t, int32(math.MinInt32), lib.MaxArray(cffi.Null, 3))
	assert.Equal(t, int32(math.MinInt32), lib.MaxArray(arr, 0))
	assert.Equal(t, int32(math.MinInt32), lib.MaxArray(far, 1))
	lib.SortArray(cffi.Null, 3)
	lib.SortArray(far, 4)
}

func TestLibrarySumWraps(t *testing.T) {
	d := newDirect(t)
	arr := putInts(t, d, []int32{math.MaxInt32, 1})
	assert.Equal(t, int32(math.MinInt32), d.Library().SumArray(arr, 2))
}

func TestLibraryDivide(t *testing.T) {
	d := newDirect(t)
	lib := d.Library()
	ret, err := d.Arena().Alloc(24, 8)
	require.NoError(t, err)

	lib.Divide(ret, 10, 2)
	r, err := ReadOperationResult(d.Memory(), ret)
	require.NoError(t, err)
	assert.Equal(t, cffi.OperationResult{Success: true, Value: 5, ErrorCode: cffi.Success}, r)

	lib.Divide(ret, 10, 0)
	r, err = ReadOperationResult(d.Memory(), ret)
	require.NoError(t, err)
	assert.Equal(t, cffi.OperationResult{ErrorCode: cffi.DivisionByZero}, r)

	lib.Divide(cffi.Null, 1, 1)
}

func TestLibraryGeometry(t *testing.T) {
	d := newDirect(t)
	lib := d.Library()
	ret, err := d.Arena().Alloc(16, 8)
	require.NoError(t, err)

	lib.PointNew(ret, 3, 4)
	p, err := ReadPoint(d.Memory(), ret)
	require.NoError(t, err)
	assert.Equal(t, cffi.Point{X: 3, Y: 4}, p)

	origin := putPoint(t, d, cffi.Point{})
	assert.InDelta(t, 5.0, lib.PointDistance(origin, ret), 1e-12)
	assert.True(t, math.IsNaN(lib.PointDistance(cffi.Null, ret)))

	mid, err := d.Arena().Alloc(16, 8)
	require.NoError(t, err)
	lib.PointMidpoint(mid, origin, ret)
	p, err = ReadPoint(d.Memory(), mid)
	require.NoError(t, err)
	assert.Equal(t, cffi.Point{X: 1.5, Y: 2}, p)

	moved := putPoint(t, d, cffi.Point{X: 10, Y: 20})
	lib.PointTranslate(moved, 5, -3)
	p, err = ReadPoint(d.Memory(), moved)
	require.NoError(t, err)
	assert.Equal(t, cffi.Point{X: 15, Y: 17}, p)

	lib.PointTranslate(cffi.Null, 1, 1)
}

func TestLibraryParseInt(t *testing.T) {
	d := newDirect(t)
	lib := d.Library()
	out, err := d.Arena().Alloc(4, 4)
	require.NoError(t, err)

	tests := []struct {
		name  string
		input uint32
		code  cffi.ErrorCode
		value int32
	}{
		{"positive", putString(t, d, "42"), cffi.Success, 42},
		{"negative", putString(t, d, "-17"), cffi.Success, -17},
		{"not a number", putString(t, d, "not a number"), cffi.ParseError, 0x7777},
		{"overflow", putString(t, d, "2147483648"), cffi.ParseError, 0x7777},
		{"invalid utf8", putBytes(t, d, []byte{'4', 0xff}), cffi.InvalidUtf8, 0x7777},
		{"null", cffi.Null, cffi.NullPointer, 0x7777},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, d.Memory().WriteU32(out, 0x7777))
			assert.Equal(t, tt.code, lib.ParseInt(tt.input, out))
			v, err := d.Memory().ReadU32(out)
			require.NoError(t, err)
			assert.Equal(t, tt.value, int32(v))
		})
	}

	assert.Equal(t, cffi.NullPointer, lib.ParseInt(putString(t, d, "1"), cffi.Null))
}

func TestLibraryCopyString(t *testing.T) {
	d := newDirect(t)
	lib := d.Library()
	dest, err := d.Arena().Alloc(50, 1)
	require.NoError(t, err)

	fill := func() {
		buf := make([]byte, 50)
		for i := range buf {
			buf[i] = 0xaa
		}
		require.NoError(t, d.Memory().Write(dest, buf))
	}
	untouched := func() {
		buf, err := d.Memory().Read(dest, 50)
		require.NoError(t, err)
		for i, b := range buf {
			require.Equal(t, byte(0xaa), b, "byte %d written", i)
		}
	}

	fill()
	assert.Equal(t, cffi.Success, lib.CopyString(putString(t, d, "Hello, C!"), dest, 50))
	assert.Equal(t, "Hello, C!", readString(t, d, dest))
	tail, err := d.Memory().ReadU8(dest + 10)
	require.NoError(t, err)
	assert.Equal(t, byte(0xaa), tail, "bytes past the terminator stay untouched")

	long := putString(t, d, "This is too long")
	fill()
	assert.Equal(t, cffi.BufferTooSmall, lib.CopyString(long, dest, 5))
	untouched()
	assert.Equal(t, cffi.BufferTooSmall, lib.CopyString(long, dest, 16))
	untouched()
	assert.Equal(t, cffi.BufferTooSmall, lib.CopyString(long, dest, 0))
	untouched()
	assert.Equal(t, cffi.InvalidUtf8, lib.CopyString(putBytes(t, d, []byte{0xff}), dest, 50))
	untouched()
	assert.Equal(t, cffi.NullPointer, lib.CopyString(cffi.Null, dest, 50))
	assert.Equal(t, cffi.NullPointer, lib.CopyString(long, cffi.Null, 50))
	untouched()

	assert.Equal(t, cffi.Success, lib.CopyString(long, dest, 17))
	assert.Equal(t, "This is too long", readString(t, d, dest))
}

type panicMemory struct {
	cffi.Memory
}

func (panicMemory) ReadU8(uint32) (uint8, error) {
	panic("memory unavailable")
}

func (panicMemory) Read(uint32, uint32) ([]byte, error) {
	panic("memory unavailable")
}

func TestLibraryRecoversPanics(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	lib := NewLibrary(panicMemory{}, nil)

	assert.Equal(t, cffi.Null, lib.Greet(8))
	assert.Equal(t, int32(-1), lib.StringLength(8))
	assert.Equal(t, cffi.Internal, lib.ParseInt(8, 16))
	assert.Equal(t, cffi.Internal, lib.CopyString(8, 16, 4))
	assert.Equal(t, int32(0), lib.SumArray(8, 2))
	assert.Equal(t, int32(math.MinInt32), lib.MaxArray(8, 2))
	assert.True(t, math.IsNaN(lib.PointDistance(8, 24)))
	assert.NotPanics(t, func() { lib.SortArray(8, 2) })
	assert.NotPanics(t, func() { lib.FreeString(8) })

	entries := logs.FilterMessage("recovered panic at boundary").All()
	require.Len(t, entries, 8)
	assert.Equal(t, "greet", entries[0].ContextMap()["op"])
}

package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/cffi"
	"github.com/wippyai/cffi/memory"
)

// unsized hides Size so string reads fall back to byte-wise scanning.
type unsized struct {
	cffi.Memory
}

func TestReadCString(t *testing.T) {
	mem := memory.NewLinear(1, 1)
	require.NoError(t, mem.Write(100, []byte("hello\x00world")))

	for name, m := range map[string]cffi.Memory{"sized": mem, "unsized": unsized{mem}} {
		t.Run(name, func(t *testing.T) {
			got, err := ReadCString(m, 100)
			require.NoError(t, err)
			assert.Equal(t, "hello", string(got))

			got, err = ReadCString(m, 105)
			require.NoError(t, err)
			assert.Empty(t, got)

			_, err = ReadCString(m, mem.Size())
			assert.Error(t, err)
		})
	}
}

func TestReadCStringCopies(t *testing.T) {
	mem := memory.NewLinear(1, 1)
	require.NoError(t, mem.Write(8, []byte("abc\x00")))

	got, err := ReadCString(mem, 8)
	require.NoError(t, err)
	require.NoError(t, mem.WriteU8(8, 'z'))
	assert.Equal(t, "abc", string(got))
}

func TestOperationResultEncoding(t *testing.T) {
	mem := memory.NewLinear(1, 1)
	require.NoError(t, mem.Write(64, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}))

	require.NoError(t, WriteOperationResult(mem, 64, cffi.OperationResult{Success: true, Value: 2.5}))
	raw, err := mem.Read(64, 24)
	require.NoError(t, err)
	assert.Equal(t, byte(1), raw[0])
	assert.Equal(t, make([]byte, 7), raw[1:8], "padding is zeroed")

	require.NoError(t, WriteOperationResult(mem, 64, cffi.OperationResult{ErrorCode: cffi.DivisionByZero}))
	code, err := mem.ReadU32(64 + 16)
	require.NoError(t, err)
	assert.Equal(t, int32(cffi.DivisionByZero), int32(code))

	r, err := ReadOperationResult(mem, 64)
	require.NoError(t, err)
	assert.Equal(t, cffi.OperationResult{ErrorCode: cffi.DivisionByZero}, r)
}

func TestI32sBounds(t *testing.T) {
	mem := memory.NewLinear(1, 1)
	_, err := ReadI32s(mem, mem.Size()-4, 2)
	assert.Error(t, err)
	_, err = ReadI32s(mem, 8, MaxListLength+1)
	assert.Error(t, err)
}

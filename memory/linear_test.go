package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/cffi"
	"github.com/wippyai/cffi/errors"
)

var (
	_ cffi.Memory      = (*Linear)(nil)
	_ cffi.MemorySizer = (*Linear)(nil)
	_ cffi.Allocator   = (*Arena)(nil)
)

func TestLinearReadWrite(t *testing.T) {
	m := NewLinear(1, 1)
	require.Equal(t, uint32(PageSize), m.Size())

	require.NoError(t, m.WriteU8(0, 0xab))
	require.NoError(t, m.WriteU32(4, 0xdeadbeef))
	require.NoError(t, m.WriteU64(8, 0x0102030405060708))
	require.NoError(t, m.Write(100, []byte("hello")))

	u8, err := m.ReadU8(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xab), u8)

	u32, err := m.ReadU32(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), u32)

	raw, err := m.Read(4, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xef, 0xbe, 0xad, 0xde}, raw, "little endian")

	u64, err := m.ReadU64(8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), u64)

	data, err := m.Read(100, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLinearBounds(t *testing.T) {
	m := NewLinear(1, 1)
	end := m.Size()

	_, err := m.Read(end-2, 4)
	assert.Equal(t, cffi.MemoryFault, errors.Code(err))

	_, err = m.ReadU64(end - 4)
	assert.True(t, errors.HasKind(err, errors.KindOutOfBounds))

	assert.Error(t, m.WriteU32(end, 1))
	assert.Error(t, m.Write(^uint32(0), []byte{1, 2}), "offset+length must not wrap")

	_, err = m.Read(end, 0)
	assert.NoError(t, err, "empty read at the end is in bounds")
}

func TestLinearGrow(t *testing.T) {
	m := NewLinear(1, 3)
	require.NoError(t, m.WriteU32(16, 7))

	prev, ok := m.Grow(2)
	require.True(t, ok)
	assert.Equal(t, uint32(1), prev)
	assert.Equal(t, uint32(3), m.Pages())

	v, err := m.ReadU32(16)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v, "contents survive growth")

	_, ok = m.Grow(1)
	assert.False(t, ok)
	assert.Equal(t, uint32(3), m.Pages())
}

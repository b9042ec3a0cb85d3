package host

import (
	"context"
	"fmt"
	"reflect"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/cffi"
	"github.com/wippyai/cffi/errors"
)

// WrapMemory adapts a wazero memory to cffi.Memory. It returns nil for a
// nil memory, including the typed nil wazero reports for a module that
// declares none.
func WrapMemory(mem api.Memory) *Memory {
	if mem == nil || reflect.ValueOf(mem).IsNil() {
		return nil
	}
	return &Memory{mem: mem}
}

// Memory is a cffi.Memory over a guest's linear memory. Slices returned by
// Read alias guest memory and are invalidated when the memory grows.
type Memory struct {
	mem api.Memory
}

var (
	_ cffi.Memory      = (*Memory)(nil)
	_ cffi.MemorySizer = (*Memory)(nil)
)

// Size returns the current memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseMemory, offset, length)
	}
	return data, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseMemory, offset, uint32(len(data)))
	}
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, offset, 1)
	}
	return v, nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, offset, 4)
	}
	return v, nil
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, offset, 8)
	}
	return v, nil
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return errors.OutOfBounds(errors.PhaseMemory, offset, 1)
	}
	return nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseMemory, offset, 4)
	}
	return nil
}

func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseMemory, offset, 8)
	}
	return nil
}

// MaxAlign is the strongest alignment a guest malloc is expected to honour.
const MaxAlign = 8

// WrapAllocator adapts a guest's malloc(size) -> ptr and free(ptr) exports
// to cffi.Allocator. It returns nil if either function is nil.
func WrapAllocator(ctx context.Context, malloc, free api.Function) *Allocator {
	if malloc == nil || free == nil {
		return nil
	}
	return &Allocator{ctx: ctx, malloc: malloc, free: free}
}

// Allocator allocates through the guest's own heap.
type Allocator struct {
	ctx    context.Context
	malloc api.Function
	free   api.Function
}

var _ cffi.Allocator = (*Allocator)(nil)

// Alloc calls the guest's malloc. Alignments above MaxAlign are rejected.
func (a *Allocator) Alloc(size, align uint32) (uint32, error) {
	if align > MaxAlign {
		return cffi.Null, errors.AllocationFailed(errors.PhaseHost, size, align,
			fmt.Errorf("guest malloc aligns to at most %d", MaxAlign))
	}
	results, err := a.malloc.Call(a.ctx, api.EncodeU32(size))
	if err != nil {
		return cffi.Null, errors.AllocationFailed(errors.PhaseHost, size, align, err)
	}
	if len(results) == 0 {
		return cffi.Null, errors.AllocationFailed(errors.PhaseHost, size, align,
			fmt.Errorf("malloc returned no result"))
	}
	ptr := api.DecodeU32(results[0])
	if ptr == cffi.Null {
		return cffi.Null, errors.AllocationFailed(errors.PhaseHost, size, align,
			fmt.Errorf("malloc returned NULL"))
	}
	return ptr, nil
}

// Free calls the guest's free.
func (a *Allocator) Free(ptr, _, _ uint32) {
	if ptr == cffi.Null {
		return
	}
	if _, err := a.free.Call(a.ctx, api.EncodeU32(ptr)); err != nil {
		Logger().Warn("guest free failed", zap.Uint32("ptr", ptr), zap.Error(err))
	}
}

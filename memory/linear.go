package memory

import (
	"encoding/binary"

	"github.com/wippyai/cffi/errors"
)

// PageSize is the growth unit of a linear memory.
const PageSize = 65536

// Linear is a growable little-endian address space. Slices returned by Read
// alias the memory and are valid until the next Grow.
type Linear struct {
	buf      []byte
	maxPages uint32
}

// NewLinear creates a memory of pages pages that may grow to maxPages.
func NewLinear(pages, maxPages uint32) *Linear {
	if maxPages < pages {
		maxPages = pages
	}
	return &Linear{
		buf:      make([]byte, int(pages)*PageSize),
		maxPages: maxPages,
	}
}

// Size returns the current size in bytes.
func (m *Linear) Size() uint32 {
	return uint32(len(m.buf))
}

// Pages returns the current size in pages.
func (m *Linear) Pages() uint32 {
	return uint32(len(m.buf) / PageSize)
}

// Grow adds delta pages and returns the previous page count.
func (m *Linear) Grow(delta uint32) (uint32, bool) {
	prev := m.Pages()
	if uint64(prev)+uint64(delta) > uint64(m.maxPages) {
		return prev, false
	}
	if delta == 0 {
		return prev, true
	}
	grown := make([]byte, int(prev+delta)*PageSize)
	copy(grown, m.buf)
	m.buf = grown
	return prev, true
}

func (m *Linear) check(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.buf)) {
		return errors.OutOfBounds(errors.PhaseMemory, offset, length)
	}
	return nil
}

// Read returns a view of length bytes at offset.
func (m *Linear) Read(offset uint32, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	return m.buf[offset : offset+length : offset+length], nil
}

// Write copies data to offset.
func (m *Linear) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.buf[offset:], data)
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *Linear) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.buf[offset], nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *Linear) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.buf[offset:]), nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Linear) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.buf[offset:]), nil
}

// WriteU8 writes an unsigned 8-bit value.
func (m *Linear) WriteU8(offset uint32, value uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.buf[offset] = value
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *Linear) WriteU32(offset uint32, value uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.buf[offset:], value)
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Linear) WriteU64(offset uint32, value uint64) error {
	if err := m.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.buf[offset:], value)
	return nil
}

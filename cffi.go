package cffi

// Null is the address a boundary uses for a null pointer. Allocators never
// hand it out.
const Null uint32 = 0

// Memory represents a linear address space shared with a caller
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of a linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory inside a linear address space. Buffers handed
// to a caller are released through the same allocator that produced them.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

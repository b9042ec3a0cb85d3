// Package memory provides a Go-managed linear memory and the boundary arena
// that allocates inside it.
//
// Linear mirrors a WebAssembly linear memory: a single little-endian byte
// address space that grows in 64 KiB pages and never shrinks. Arena is the
// allocator for every buffer the library hands to an in-process caller.
// Address 0 is never allocated so it can stand for a null pointer.
package memory

// Package abi implements the library's boundary over a linear memory.
//
// Every C function is described once in the export table. Each Export carries
// its high-level signature as WIT types, from which the wasm32 lowering
// (WasmParams, WasmResults) and the C prototype (CDecl) are derived:
//
//	s32, u32, error codes  -> i32
//	f64                    -> f64
//	string                 -> i32 pointer to a NUL-terminated string
//	list<s32>              -> i32 pointer, i32 length
//	point parameter        -> i32 pointer (passed by value in C)
//	record result          -> leading i32 return-area pointer (returned by value in C)
//	out slot               -> i32 pointer
//	destination buffer     -> i32 pointer, i32 capacity
//
// Library runs the exports against any cffi.Memory and cffi.Allocator. It is
// shared by the in-process Direct target and the wazero host module. Invoke
// marshals Go values through any Target and releases every temporary and
// owned string it creates.
package abi

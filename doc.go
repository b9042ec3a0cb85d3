// Package cffi provides a small numeric, string, array and geometry library
// exposed through a C-compatible boundary.
//
// The same operations are reachable three ways: as a C shared library built
// from cmd/libcffi, as a wazero host module callable from WebAssembly guests,
// and in-process over a Go-managed linear memory. All three share the pure
// semantics in ops and the error-code convention defined here.
//
// # Architecture Overview
//
//	cffi/              Root package with ErrorCode, Point, OperationResult, Memory and Allocator
//	├── ops/           Operation semantics on Go values
//	├── errors/        Structured error types and the Kind to ErrorCode mapping
//	├── layout/        Fixed record layouts described as WIT records
//	├── memory/        Go-side linear memory and the boundary arena allocator
//	├── abi/           Export table, linear-memory Library, Invoke, C header generation
//	├── native/        Raw-pointer boundary used by the C shared library
//	├── host/          wazero host module exposing the export table
//	├── guest/         Synthesised harness guest driving the host module
//	├── selftest/      Scenario and property suite for any target
//	├── config/        YAML configuration for the CLI
//	└── cmd/           libcffi (c-shared build) and the cffi CLI
//
// # Quick Start
//
// Call the library in-process:
//
//	target, err := abi.NewDirect(memory.DefaultArenaConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := abi.Invoke(ctx, target, "greet", "World")
//	fmt.Println(out[0]) // "Hello, World! Welcome from Go."
//
// Build the C library:
//
//	go build -buildmode=c-shared -o libcffi.so ./cmd/libcffi
//
// # Ownership
//
// Strings returned by greet and to_uppercase are owned by the caller and must
// be released exactly once with free_string (free_rust_string is kept as an
// alias). Input strings and arrays are borrowed for the duration of a call and
// never retained. sort_array and point_translate mutate caller memory in place.
//
// # Error Signalling
//
// Nothing panics or unwinds across the boundary. Failures are reported
// through a null pointer, a sentinel value, or an ErrorCode, as documented per
// function. Panics inside the library are recovered at the boundary and
// reported as Internal.
//
// # Thread Safety
//
// The operations hold no process-wide state. A Library, Direct target or
// Harness owns one linear memory and is NOT safe for concurrent use.
// Concurrent calls that alias the same mutable caller buffer are a caller-side
// data race.
package cffi

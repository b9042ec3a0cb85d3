// Package errors defines the structured error used across the library and
// its mapping to the codes reported over the C boundary.
//
// An Error records the Phase it arose in (operation semantics, boundary
// marshalling, memory, host, harness, configuration) and its Kind. Kinds
// that a caller can observe map to a cffi.ErrorCode through Code; every
// other failure surfaces as cffi.Internal.
//
//	err := errors.New(errors.PhaseBoundary, errors.KindNullPointer).
//		Op("parse_int").
//		Detail("output is null").
//		Build()
//	errors.Code(err) // cffi.NullPointer
//
// Errors match with errors.Is on phase and kind, and unwrap to their cause.
package errors

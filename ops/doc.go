// Package ops implements the library's operations on plain Go values.
//
// Nothing here touches raw memory. The boundaries in abi and native decode
// caller buffers into Go values, call these functions, and encode the result
// or map the returned error to a cffi.ErrorCode.
//
// Integer arithmetic wraps on overflow (two's complement), matching native
// fixed-width arithmetic. Functions are safe for concurrent use; Sort and
// Translate mutate only the value passed to them.
package ops

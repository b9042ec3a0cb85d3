// Package layout describes the records that cross the boundary as WIT
// records and computes their C-compatible size, alignment and field offsets.
//
// Fields are placed in declaration order, each aligned to its natural
// alignment, and the record size is rounded up to the largest field
// alignment. These are the same rules the canonical ABI and C use for the
// primitive types involved, so a layout computed here is the layout the C
// header declares and the layout wasm32 guests read.
package layout

package layout

import (
	"go.bytecodealliance.org/wit"
)

// Info is the size, alignment and, for records, field offsets of a type as
// it sits in memory.
type Info struct {
	FieldOffs map[string]uint32
	Size      uint32
	Align     uint32
}

// Offset returns the offset of a record field. It panics on an unknown
// field, which is a programming error in a fixed record definition.
func (i Info) Offset(field string) uint32 {
	off, ok := i.FieldOffs[field]
	if !ok {
		panic("layout: unknown field " + field)
	}
	return off
}

// Calculator computes layouts and remembers them per named type.
type Calculator struct {
	cache map[*wit.TypeDef]Info
}

func NewCalculator() *Calculator {
	return &Calculator{cache: make(map[*wit.TypeDef]Info)}
}

// Calculate returns the layout of t. Types with no boundary representation
// have size 0 and alignment 1.
func (c *Calculator) Calculate(t wit.Type) Info {
	if td, ok := t.(*wit.TypeDef); ok {
		return c.typeDef(td)
	}
	if n := scalarSize(t); n > 0 {
		return Info{Size: n, Align: n}
	}
	return Info{Align: 1}
}

// scalarSize is the size of a primitive, which is also its alignment. A
// string crosses as a 32-bit pointer to its first byte.
func scalarSize(t wit.Type) uint32 {
	switch t.(type) {
	case wit.Bool, wit.U8, wit.S8:
		return 1
	case wit.U16, wit.S16:
		return 2
	case wit.U32, wit.S32, wit.F32, wit.Char, wit.String:
		return 4
	case wit.U64, wit.S64, wit.F64:
		return 8
	}
	return 0
}

func (c *Calculator) typeDef(td *wit.TypeDef) Info {
	if info, ok := c.cache[td]; ok {
		return info
	}

	var info Info
	switch kind := td.Kind.(type) {
	case *wit.Record:
		info = c.record(kind.Fields)
	case *wit.List:
		// pointer and element count, both 32-bit
		info = Info{Size: 8, Align: 4}
	case wit.Type:
		info = c.Calculate(kind)
	default:
		info = Info{Align: 1}
	}
	c.cache[td] = info
	return info
}

// record lays fields out in order at their natural alignment and pads the
// total to the widest alignment.
func (c *Calculator) record(fields []wit.Field) Info {
	info := Info{Align: 1}
	if len(fields) == 0 {
		return info
	}

	info.FieldOffs = make(map[string]uint32, len(fields))
	for _, f := range fields {
		fi := c.Calculate(f.Type)
		info.Size = AlignTo(info.Size, fi.Align)
		info.FieldOffs[f.Name] = info.Size
		info.Size += fi.Size
		info.Align = max(info.Align, fi.Align)
	}
	info.Size = AlignTo(info.Size, info.Align)
	return info
}

// AlignTo rounds offset up to a multiple of align, which must be a power of
// two. An align of 0 leaves offset unchanged.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

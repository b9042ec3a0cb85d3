package layout

import (
	"go.bytecodealliance.org/wit"
)

// Field names of the boundary records, in declaration order.
const (
	FieldX         = "x"
	FieldY         = "y"
	FieldSuccess   = "success"
	FieldValue     = "value"
	FieldErrorCode = "error-code"
)

var (
	// PointType is the WIT form of cffi.Point.
	PointType = &wit.TypeDef{
		Name: name("point"),
		Kind: &wit.Record{
			Fields: []wit.Field{
				{Name: FieldX, Type: wit.F64{}},
				{Name: FieldY, Type: wit.F64{}},
			},
		},
	}

	// OperationResultType is the WIT form of cffi.OperationResult.
	OperationResultType = &wit.TypeDef{
		Name: name("operation-result"),
		Kind: &wit.Record{
			Fields: []wit.Field{
				{Name: FieldSuccess, Type: wit.Bool{}},
				{Name: FieldValue, Type: wit.F64{}},
				{Name: FieldErrorCode, Type: wit.S32{}},
			},
		},
	}

	// I32ListType is a borrowed array of signed 32-bit integers.
	I32ListType = &wit.TypeDef{
		Name: name("i32-array"),
		Kind: &wit.List{Type: wit.S32{}},
	}
)

var (
	// Point is the computed layout of PointType.
	Point Info
	// OperationResult is the computed layout of OperationResultType.
	OperationResult Info
)

func init() {
	c := NewCalculator()
	Point = c.Calculate(PointType)
	OperationResult = c.Calculate(OperationResultType)
}

// Records returns the boundary records in the order a header declares them.
func Records() []*wit.TypeDef {
	return []*wit.TypeDef{PointType, OperationResultType}
}

func name(s string) *string {
	return &s
}

package abi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/cffi/layout"
)

// ParamMode describes how a parameter crosses the boundary.
type ParamMode uint8

const (
	// ModeValue passes a scalar by value, or borrows a string, array or
	// record for the duration of the call.
	ModeValue ParamMode = iota
	// ModeInPlace borrows caller memory that the call mutates.
	ModeInPlace
	// ModeOut is a caller-provided slot written on success.
	ModeOut
	// ModeBuffer is a caller-provided destination buffer and its capacity.
	ModeBuffer
	// ModeOwned hands a previously returned string back to the library.
	ModeOwned
)

// ResultMode describes how a result crosses the boundary.
type ResultMode uint8

const (
	ResultNone ResultMode = iota
	// ResultValue returns a scalar.
	ResultValue
	// ResultRetArea writes a record to a caller-provided return area passed
	// as a leading pointer argument.
	ResultRetArea
	// ResultOwned returns a string the caller releases with free_string.
	ResultOwned
	// ResultCode returns an ErrorCode.
	ResultCode
)

// Param is one parameter of an export.
type Param struct {
	Type wit.Type
	Name string
	Mode ParamMode
}

// Export is one C function of the library.
type Export struct {
	Result     wit.Type
	call       func(l *Library, stack []uint64)
	Name       string
	Doc        string
	Params     []Param
	ResultMode ResultMode
}

// Call runs the export against l using the lowered calling convention:
// stack holds the wasm parameters on entry and the results on return.
// It must be at least max(len(WasmParams()), len(WasmResults())) long.
func (e *Export) Call(l *Library, stack []uint64) {
	e.call(l, stack)
}

// Inputs returns the parameters a high-level caller supplies a value for.
func (e *Export) Inputs() []Param {
	var in []Param
	for _, p := range e.Params {
		if p.Mode != ModeOut {
			in = append(in, p)
		}
	}
	return in
}

// WasmParams returns the wasm32 lowering of the parameters.
func (e *Export) WasmParams() []api.ValueType {
	var out []api.ValueType
	if e.ResultMode == ResultRetArea {
		out = append(out, api.ValueTypeI32)
	}
	for _, p := range e.Params {
		out = append(out, lowerParam(p)...)
	}
	return out
}

// WasmResults returns the wasm32 lowering of the result.
func (e *Export) WasmResults() []api.ValueType {
	switch e.ResultMode {
	case ResultValue:
		return []api.ValueType{lowerScalar(e.Result)}
	case ResultOwned, ResultCode:
		return []api.ValueType{api.ValueTypeI32}
	default:
		return nil
	}
}

// WasmParamNames returns a name for each lowered parameter.
func (e *Export) WasmParamNames() []string {
	var out []string
	if e.ResultMode == ResultRetArea {
		out = append(out, "ret")
	}
	for _, p := range e.Params {
		switch {
		case isList(p.Type):
			out = append(out, p.Name, "len")
		case p.Mode == ModeBuffer:
			out = append(out, p.Name, p.Name+"_len")
		default:
			out = append(out, p.Name)
		}
	}
	return out
}

func lowerParam(p Param) []api.ValueType {
	switch {
	case isList(p.Type), p.Mode == ModeBuffer:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	case p.Mode == ModeOut, p.Mode == ModeOwned:
		return []api.ValueType{api.ValueTypeI32}
	default:
		return []api.ValueType{lowerScalar(p.Type)}
	}
}

// lowerScalar maps a type passed in a single slot. Strings and records travel
// as pointers.
func lowerScalar(t wit.Type) api.ValueType {
	switch t.(type) {
	case wit.F64:
		return api.ValueTypeF64
	case wit.F32:
		return api.ValueTypeF32
	case wit.S64, wit.U64:
		return api.ValueTypeI64
	default:
		return api.ValueTypeI32
	}
}

func isList(t wit.Type) bool {
	if td, ok := t.(*wit.TypeDef); ok {
		_, ok := td.Kind.(*wit.List)
		return ok
	}
	return false
}

// CDecl returns the C prototype of the export, without a trailing semicolon.
func (e *Export) CDecl() string {
	params := make([]string, 0, len(e.Params))
	for _, p := range e.Params {
		params = append(params, cParam(p))
	}
	if len(params) == 0 {
		params = append(params, "void")
	}
	return fmt.Sprintf("%s %s(%s)", e.cResult(), e.Name, strings.Join(params, ", "))
}

func (e *Export) cResult() string {
	switch e.ResultMode {
	case ResultNone:
		return "void"
	case ResultOwned:
		return "char*"
	case ResultCode:
		return "ErrorCode"
	default:
		return cType(e.Result)
	}
}

func cParam(p Param) string {
	switch {
	case isList(p.Type):
		if p.Mode == ModeInPlace {
			return fmt.Sprintf("int32_t* %s, size_t len", p.Name)
		}
		return fmt.Sprintf("const int32_t* %s, size_t len", p.Name)
	case p.Mode == ModeBuffer:
		return fmt.Sprintf("char* %s, size_t %s_len", p.Name, p.Name)
	case p.Mode == ModeOwned:
		return "char* " + p.Name
	case p.Mode == ModeOut, p.Mode == ModeInPlace:
		return fmt.Sprintf("%s* %s", cType(p.Type), p.Name)
	case isString(p.Type):
		return "const char* " + p.Name
	default:
		return cType(p.Type) + " " + p.Name
	}
}

func isString(t wit.Type) bool {
	_, ok := t.(wit.String)
	return ok
}

// cType names a value type in C.
func cType(t wit.Type) string {
	switch typ := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.S8:
		return "int8_t"
	case wit.U8:
		return "uint8_t"
	case wit.S16:
		return "int16_t"
	case wit.U16:
		return "uint16_t"
	case wit.S32:
		return "int32_t"
	case wit.U32:
		return "uint32_t"
	case wit.S64:
		return "int64_t"
	case wit.U64:
		return "uint64_t"
	case wit.F32:
		return "float"
	case wit.F64:
		return "double"
	case wit.String:
		return "char*"
	case *wit.TypeDef:
		if typ.Name != nil {
			return cTypeName(*typ.Name)
		}
	}
	return "void*"
}

// cTypeName converts a kebab-case WIT name to the C typedef name.
func cTypeName(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "-") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

var (
	exports = []*Export{
		{
			Name:       "add",
			Doc:        "Adds two 32-bit integers, wrapping on overflow.",
			Params:     []Param{{Name: "a", Type: wit.S32{}}, {Name: "b", Type: wit.S32{}}},
			Result:     wit.S32{},
			ResultMode: ResultValue,
			call: func(l *Library, s []uint64) {
				s[0] = api.EncodeI32(l.Add(api.DecodeI32(s[0]), api.DecodeI32(s[1])))
			},
		},
		{
			Name:       "multiply",
			Doc:        "Multiplies two 32-bit integers, wrapping on overflow.",
			Params:     []Param{{Name: "a", Type: wit.S32{}}, {Name: "b", Type: wit.S32{}}},
			Result:     wit.S32{},
			ResultMode: ResultValue,
			call: func(l *Library, s []uint64) {
				s[0] = api.EncodeI32(l.Multiply(api.DecodeI32(s[0]), api.DecodeI32(s[1])))
			},
		},
		{
			Name:       "divide",
			Doc:        "Divides a by b; fails with DivisionByZero when b is zero.",
			Params:     []Param{{Name: "a", Type: wit.F64{}}, {Name: "b", Type: wit.F64{}}},
			Result:     layout.OperationResultType,
			ResultMode: ResultRetArea,
			call: func(l *Library, s []uint64) {
				l.Divide(api.DecodeU32(s[0]), api.DecodeF64(s[1]), api.DecodeF64(s[2]))
			},
		},
		{
			Name:       "greet",
			Doc:        "Returns an owned greeting for name, or NULL on invalid input.",
			Params:     []Param{{Name: "name", Type: wit.String{}}},
			Result:     wit.String{},
			ResultMode: ResultOwned,
			call: func(l *Library, s []uint64) {
				s[0] = api.EncodeU32(l.Greet(api.DecodeU32(s[0])))
			},
		},
		{
			Name:       "to_uppercase",
			Doc:        "Returns an owned uppercase copy of input, or NULL on invalid input.",
			Params:     []Param{{Name: "input", Type: wit.String{}}},
			Result:     wit.String{},
			ResultMode: ResultOwned,
			call: func(l *Library, s []uint64) {
				s[0] = api.EncodeU32(l.ToUppercase(api.DecodeU32(s[0])))
			},
		},
		{
			Name:       "string_length",
			Doc:        "Returns the UTF-8 byte length of input, or -1 on invalid input.",
			Params:     []Param{{Name: "input", Type: wit.String{}}},
			Result:     wit.S32{},
			ResultMode: ResultValue,
			call: func(l *Library, s []uint64) {
				s[0] = api.EncodeI32(l.StringLength(api.DecodeU32(s[0])))
			},
		},
		{
			Name:   "free_string",
			Doc:    "Releases a string returned by greet or to_uppercase. NULL is a no-op.",
			Params: []Param{{Name: "s", Type: wit.String{}, Mode: ModeOwned}},
			call: func(l *Library, s []uint64) {
				l.FreeString(api.DecodeU32(s[0]))
			},
		},
		{
			Name:   "free_rust_string",
			Doc:    "Alias of free_string.",
			Params: []Param{{Name: "s", Type: wit.String{}, Mode: ModeOwned}},
			call: func(l *Library, s []uint64) {
				l.FreeString(api.DecodeU32(s[0]))
			},
		},
		{
			Name:       "sum_array",
			Doc:        "Returns the wrapping sum of arr; 0 for NULL or empty input.",
			Params:     []Param{{Name: "arr", Type: layout.I32ListType}},
			Result:     wit.S32{},
			ResultMode: ResultValue,
			call: func(l *Library, s []uint64) {
				s[0] = api.EncodeI32(l.SumArray(api.DecodeU32(s[0]), api.DecodeU32(s[1])))
			},
		},
		{
			Name:       "max_array",
			Doc:        "Returns the maximum of arr; INT32_MIN for NULL or empty input.",
			Params:     []Param{{Name: "arr", Type: layout.I32ListType}},
			Result:     wit.S32{},
			ResultMode: ResultValue,
			call: func(l *Library, s []uint64) {
				s[0] = api.EncodeI32(l.MaxArray(api.DecodeU32(s[0]), api.DecodeU32(s[1])))
			},
		},
		{
			Name:   "sort_array",
			Doc:    "Sorts arr ascending in place.",
			Params: []Param{{Name: "arr", Type: layout.I32ListType, Mode: ModeInPlace}},
			call: func(l *Library, s []uint64) {
				l.SortArray(api.DecodeU32(s[0]), api.DecodeU32(s[1]))
			},
		},
		{
			Name:       "point_new",
			Doc:        "Constructs a Point.",
			Params:     []Param{{Name: "x", Type: wit.F64{}}, {Name: "y", Type: wit.F64{}}},
			Result:     layout.PointType,
			ResultMode: ResultRetArea,
			call: func(l *Library, s []uint64) {
				l.PointNew(api.DecodeU32(s[0]), api.DecodeF64(s[1]), api.DecodeF64(s[2]))
			},
		},
		{
			Name:       "point_distance",
			Doc:        "Returns the Euclidean distance between p1 and p2.",
			Params:     []Param{{Name: "p1", Type: layout.PointType}, {Name: "p2", Type: layout.PointType}},
			Result:     wit.F64{},
			ResultMode: ResultValue,
			call: func(l *Library, s []uint64) {
				s[0] = api.EncodeF64(l.PointDistance(api.DecodeU32(s[0]), api.DecodeU32(s[1])))
			},
		},
		{
			Name:       "point_midpoint",
			Doc:        "Returns the midpoint of p1 and p2.",
			Params:     []Param{{Name: "p1", Type: layout.PointType}, {Name: "p2", Type: layout.PointType}},
			Result:     layout.PointType,
			ResultMode: ResultRetArea,
			call: func(l *Library, s []uint64) {
				l.PointMidpoint(api.DecodeU32(s[0]), api.DecodeU32(s[1]), api.DecodeU32(s[2]))
			},
		},
		{
			Name: "point_translate",
			Doc:  "Moves the point by (dx, dy) in place. NULL is a no-op.",
			Params: []Param{
				{Name: "p", Type: layout.PointType, Mode: ModeInPlace},
				{Name: "dx", Type: wit.F64{}},
				{Name: "dy", Type: wit.F64{}},
			},
			call: func(l *Library, s []uint64) {
				l.PointTranslate(api.DecodeU32(s[0]), api.DecodeF64(s[1]), api.DecodeF64(s[2]))
			},
		},
		{
			Name: "parse_int",
			Doc:  "Parses a decimal 32-bit integer into *output.",
			Params: []Param{
				{Name: "input", Type: wit.String{}},
				{Name: "output", Type: wit.S32{}, Mode: ModeOut},
			},
			Result:     wit.S32{},
			ResultMode: ResultCode,
			call: func(l *Library, s []uint64) {
				s[0] = api.EncodeI32(int32(l.ParseInt(api.DecodeU32(s[0]), api.DecodeU32(s[1]))))
			},
		},
		{
			Name: "copy_string",
			Doc:  "Copies src and its terminator into dest.",
			Params: []Param{
				{Name: "src", Type: wit.String{}},
				{Name: "dest", Type: wit.String{}, Mode: ModeBuffer},
			},
			Result:     wit.S32{},
			ResultMode: ResultCode,
			call: func(l *Library, s []uint64) {
				s[0] = api.EncodeI32(int32(l.CopyString(api.DecodeU32(s[0]), api.DecodeU32(s[1]), api.DecodeU32(s[2]))))
			},
		},
	}

	exportIndex = func() map[string]*Export {
		m := make(map[string]*Export, len(exports))
		for _, e := range exports {
			m[e.Name] = e
		}
		return m
	}()
)

// Exports returns every export in declaration order.
func Exports() []*Export {
	return exports
}

// Lookup finds an export by its C name.
func Lookup(name string) (*Export, bool) {
	e, ok := exportIndex[name]
	return e, ok
}

// Names returns the export names sorted alphabetically.
func Names() []string {
	names := make([]string, 0, len(exports))
	for _, e := range exports {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

package abi

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
	"go.uber.org/multierr"

	"github.com/wippyai/cffi"
	"github.com/wippyai/cffi/errors"
	"github.com/wippyai/cffi/layout"
)

type scratch struct {
	ptr, size, align uint32
}

// readback records a parameter whose memory is read after the call.
type readback struct {
	param Param
	ptr   uint32
	n     uint32
}

// invocation lowers one high-level call into a target's memory.
type invocation struct {
	ctx    context.Context
	target Target
	export *Export
	temps  []scratch
	reads  []readback
	stack  []uint64
}

// Invoke calls the named export on target with Go values: int32, float64,
// string, []int32 and cffi.Point for the corresponding inputs, and a
// capacity (uint32 or int) for destination buffers. It returns the result
// first, if the export has one, followed by every in-place, out and buffer
// parameter as read back after the call. Temporaries and owned strings are
// released before Invoke returns.
func Invoke(ctx context.Context, target Target, name string, args ...any) ([]any, error) {
	e, ok := Lookup(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseInvoke, "export", name)
	}
	for _, p := range e.Params {
		if p.Mode == ModeOwned {
			return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
				Op(name).
				Detail("owned strings are released by Invoke itself").
				Build()
		}
	}
	inputs := e.Inputs()
	if len(args) != len(inputs) {
		return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Op(name).
			Detail("got %d arguments, want %d", len(args), len(inputs)).
			Build()
	}

	inv := &invocation{ctx: ctx, target: target, export: e}
	defer inv.release()

	if e.ResultMode == ResultRetArea {
		info := layout.NewCalculator().Calculate(e.Result)
		ptr, err := inv.alloc(info.Size, info.Align)
		if err != nil {
			return nil, err
		}
		inv.stack = append(inv.stack, api.EncodeU32(ptr))
	}

	next := 0
	for _, p := range e.Params {
		if p.Mode == ModeOut {
			if err := inv.lowerOut(p); err != nil {
				return nil, err
			}
			continue
		}
		if err := inv.lower(p, args[next]); err != nil {
			return nil, err
		}
		next++
	}

	results, err := target.Call(ctx, name, inv.stack...)
	if err != nil {
		return nil, err
	}
	return inv.lift(results)
}

func (inv *invocation) alloc(size, align uint32) (uint32, error) {
	ptr, err := inv.target.Alloc(inv.ctx, size, align)
	if err != nil {
		return cffi.Null, err
	}
	inv.temps = append(inv.temps, scratch{ptr: ptr, size: size, align: align})
	return ptr, nil
}

func (inv *invocation) release() {
	for i := len(inv.temps) - 1; i >= 0; i-- {
		t := inv.temps[i]
		inv.target.Free(inv.ctx, t.ptr, t.size, t.align)
	}
	inv.temps = nil
}

func (inv *invocation) mismatch(p Param, got any, want string) error {
	return errors.TypeMismatch(errors.PhaseInvoke, inv.export.Name, p.Name, got, want)
}

func (inv *invocation) lower(p Param, arg any) error {
	mem := inv.target.Memory()

	if p.Mode == ModeBuffer {
		capacity, ok := toU32(arg)
		if !ok {
			return inv.mismatch(p, arg, "buffer capacity")
		}
		ptr, err := inv.alloc(max(capacity, 1), 1)
		if err != nil {
			return err
		}
		inv.stack = append(inv.stack, api.EncodeU32(ptr), api.EncodeU32(capacity))
		inv.reads = append(inv.reads, readback{param: p, ptr: ptr, n: capacity})
		return nil
	}

	switch t := p.Type.(type) {
	case wit.S32:
		v, ok := toI32(arg)
		if !ok {
			return inv.mismatch(p, arg, "int32")
		}
		inv.stack = append(inv.stack, api.EncodeI32(v))
	case wit.F64:
		v, ok := toF64(arg)
		if !ok {
			return inv.mismatch(p, arg, "float64")
		}
		inv.stack = append(inv.stack, api.EncodeF64(v))
	case wit.String:
		s, ok := arg.(string)
		if !ok {
			return inv.mismatch(p, arg, "string")
		}
		if i := strings.IndexByte(s, 0); i >= 0 {
			return errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
				Op(inv.export.Name).
				Value(s).
				Detail("%s: string has a NUL byte at %d", p.Name, i).
				Build()
		}
		size := uint32(len(s)) + 1
		ptr, err := inv.alloc(size, 1)
		if err != nil {
			return err
		}
		buf := make([]byte, size)
		copy(buf, s)
		if err := mem.Write(ptr, buf); err != nil {
			return err
		}
		inv.stack = append(inv.stack, api.EncodeU32(ptr))
	case *wit.TypeDef:
		switch t {
		case layout.I32ListType:
			xs, ok := arg.([]int32)
			if !ok {
				return inv.mismatch(p, arg, "[]int32")
			}
			n := uint32(len(xs))
			ptr, err := inv.alloc(max(n*4, 1), 4)
			if err != nil {
				return err
			}
			if err := WriteI32s(mem, ptr, xs); err != nil {
				return err
			}
			inv.stack = append(inv.stack, api.EncodeU32(ptr), api.EncodeU32(n))
			if p.Mode == ModeInPlace {
				inv.reads = append(inv.reads, readback{param: p, ptr: ptr, n: n})
			}
		case layout.PointType:
			pt, ok := arg.(cffi.Point)
			if !ok {
				return inv.mismatch(p, arg, "cffi.Point")
			}
			ptr, err := inv.alloc(layout.Point.Size, layout.Point.Align)
			if err != nil {
				return err
			}
			if err := WritePoint(mem, ptr, pt); err != nil {
				return err
			}
			inv.stack = append(inv.stack, api.EncodeU32(ptr))
			if p.Mode == ModeInPlace {
				inv.reads = append(inv.reads, readback{param: p, ptr: ptr})
			}
		default:
			return inv.mismatch(p, arg, "supported record")
		}
	default:
		return inv.mismatch(p, arg, "supported type")
	}
	return nil
}

func (inv *invocation) lowerOut(p Param) error {
	ptr, err := inv.alloc(4, 4)
	if err != nil {
		return err
	}
	if err := inv.target.Memory().WriteU32(ptr, 0); err != nil {
		return err
	}
	inv.stack = append(inv.stack, api.EncodeU32(ptr))
	inv.reads = append(inv.reads, readback{param: p, ptr: ptr})
	return nil
}

func (inv *invocation) lift(results []uint64) ([]any, error) {
	e := inv.export
	mem := inv.target.Memory()
	var out []any

	if want := len(e.WasmResults()); len(results) != want {
		return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Op(e.Name).
			Detail("got %d results, want %d", len(results), want).
			Build()
	}

	code := cffi.Success
	switch e.ResultMode {
	case ResultValue:
		if _, ok := e.Result.(wit.F64); ok {
			out = append(out, api.DecodeF64(results[0]))
		} else {
			out = append(out, api.DecodeI32(results[0]))
		}
	case ResultCode:
		code = cffi.ErrorCode(api.DecodeI32(results[0]))
		out = append(out, code)
	case ResultOwned:
		s, err := inv.takeOwned(api.DecodeU32(results[0]))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	case ResultRetArea:
		ret := api.DecodeU32(inv.stack[0])
		switch e.Result {
		case layout.PointType:
			p, err := ReadPoint(mem, ret)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		case layout.OperationResultType:
			r, err := ReadOperationResult(mem, ret)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
	}

	for _, rb := range inv.reads {
		switch {
		case rb.param.Mode == ModeBuffer:
			if code != cffi.Success {
				out = append(out, "")
				continue
			}
			raw, err := ReadCString(mem, rb.ptr)
			if err != nil {
				return nil, err
			}
			out = append(out, string(raw))
		case rb.param.Mode == ModeOut:
			v, err := mem.ReadU32(rb.ptr)
			if err != nil {
				return nil, err
			}
			out = append(out, int32(v))
		case rb.param.Type == layout.I32ListType:
			xs, err := ReadI32s(mem, rb.ptr, rb.n)
			if err != nil {
				return nil, err
			}
			out = append(out, xs)
		case rb.param.Type == layout.PointType:
			p, err := ReadPoint(mem, rb.ptr)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	}
	return out, nil
}

// takeOwned copies an owned string out of memory and hands it back to
// free_string. A null result lifts to nil.
func (inv *invocation) takeOwned(ptr uint32) (any, error) {
	if ptr == cffi.Null {
		return nil, nil
	}
	raw, readErr := ReadCString(inv.target.Memory(), ptr)
	_, freeErr := inv.target.Call(inv.ctx, "free_string", api.EncodeU32(ptr))
	if err := multierr.Combine(readErr, freeErr); err != nil {
		return nil, err
	}
	return string(raw), nil
}

func toI32(v any) (int32, bool) {
	switch x := v.(type) {
	case int32:
		return x, true
	case int:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return 0, false
		}
		return int32(x), true
	}
	return 0, false
}

func toU32(v any) (uint32, bool) {
	switch x := v.(type) {
	case uint32:
		return x, true
	case int:
		if x < 0 || uint64(x) > math.MaxUint32 {
			return 0, false
		}
		return uint32(x), true
	}
	return 0, false
}

func toF64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	}
	return 0, false
}

// ParseArgs converts textual arguments to the Go values Invoke expects for
// e's inputs. Arrays are comma separated, optionally bracketed ("[5,2,8]");
// points are "x,y".
func ParseArgs(e *Export, args []string) ([]any, error) {
	inputs := e.Inputs()
	if len(args) != len(inputs) {
		return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Op(e.Name).
			Detail("got %d arguments, want %d (%s)", len(args), len(inputs), Usage(e)).
			Build()
	}

	out := make([]any, 0, len(args))
	for i, p := range inputs {
		v, err := parseArg(p, args[i])
		if err != nil {
			return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
				Op(e.Name).
				Detail("argument %s: %q", p.Name, args[i]).
				Cause(err).
				Build()
		}
		out = append(out, v)
	}
	return out, nil
}

func parseArg(p Param, s string) (any, error) {
	if p.Mode == ModeBuffer {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, err
		}
		return uint32(n), nil
	}
	switch p.Type {
	case layout.I32ListType:
		return parseI32s(s)
	case layout.PointType:
		parts := strings.Split(strings.Trim(s, "()"), ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("want x,y")
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, err
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, err
		}
		return cffi.Point{X: x, Y: y}, nil
	}
	switch p.Type.(type) {
	case wit.S32:
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, err
		}
		return int32(v), nil
	case wit.F64:
		return strconv.ParseFloat(s, 64)
	case wit.String:
		return s, nil
	}
	return nil, fmt.Errorf("unsupported parameter type %s", cType(p.Type))
}

func parseI32s(s string) ([]int32, error) {
	s = strings.TrimSpace(strings.Trim(s, "[]"))
	if s == "" {
		return []int32{}, nil
	}
	fields := strings.Split(s, ",")
	out := make([]int32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseInt(strings.TrimSpace(f), 10, 32)
		if err != nil {
			return nil, err
		}
		out = append(out, int32(v))
	}
	return out, nil
}

// Usage returns a one-line argument synopsis for e.
func Usage(e *Export) string {
	parts := make([]string, 0, len(e.Params))
	for _, p := range e.Inputs() {
		switch {
		case p.Mode == ModeBuffer:
			parts = append(parts, "<"+p.Name+"_len>")
		case p.Type == layout.I32ListType:
			parts = append(parts, "<"+p.Name+":n,n,...>")
		case p.Type == layout.PointType:
			parts = append(parts, "<"+p.Name+":x,y>")
		default:
			parts = append(parts, "<"+p.Name+">")
		}
	}
	return strings.TrimSpace(e.Name + " " + strings.Join(parts, " "))
}

// FormatValue renders a value returned by Invoke.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return strconv.Quote(x)
	case []int32:
		parts := make([]string, len(x))
		for i, n := range x {
			parts[i] = strconv.FormatInt(int64(n), 10)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

package abi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/cffi"
	"github.com/wippyai/cffi/errors"
)

func TestInvoke(t *testing.T) {
	tests := []struct {
		name string
		fn   string
		args []any
		want []any
	}{
		{"add", "add", []any{int32(5), int32(3)}, []any{int32(8)}},
		{"add wraps", "add", []any{int32(math.MaxInt32), 1}, []any{int32(math.MinInt32)}},
		{"multiply", "multiply", []any{6, 7}, []any{int32(42)}},
		{"divide", "divide", []any{10.0, 2.0}, []any{cffi.OperationResult{Success: true, Value: 5}}},
		{"divide by zero", "divide", []any{10.0, 0.0}, []any{cffi.OperationResult{ErrorCode: cffi.DivisionByZero}}},
		{"greet", "greet", []any{"Alice"}, []any{"Hello, Alice! Welcome from Go."}},
		{"to_uppercase", "to_uppercase", []any{"hello world"}, []any{"HELLO WORLD"}},
		{"string_length", "string_length", []any{"Rust"}, []any{int32(4)}},
		{"sum_array", "sum_array", []any{[]int32{1, 2, 3, 4, 5}}, []any{int32(15)}},
		{"max_array", "max_array", []any{[]int32{1, 2, 3, 4, 5}}, []any{int32(5)}},
		{"max_array empty", "max_array", []any{[]int32{}}, []any{int32(math.MinInt32)}},
		{"sort_array", "sort_array", []any{[]int32{5, 2, 8, 1, 9}}, []any{[]int32{1, 2, 5, 8, 9}}},
		{"point_new", "point_new", []any{3.0, 4.0}, []any{cffi.Point{X: 3, Y: 4}}},
		{"point_distance", "point_distance", []any{cffi.Point{}, cffi.Point{X: 3, Y: 4}}, []any{5.0}},
		{"point_midpoint", "point_midpoint", []any{cffi.Point{}, cffi.Point{X: 3, Y: 4}}, []any{cffi.Point{X: 1.5, Y: 2}}},
		{"point_translate", "point_translate", []any{cffi.Point{X: 10, Y: 20}, 5.0, -3.0}, []any{cffi.Point{X: 15, Y: 17}}},
		{"parse_int", "parse_int", []any{"42"}, []any{cffi.Success, int32(42)}},
		{"parse_int fails", "parse_int", []any{"not a number"}, []any{cffi.ParseError, int32(0)}},
		{"copy_string", "copy_string", []any{"Hello, C!", 50}, []any{cffi.Success, "Hello, C!"}},
		{"copy_string too small", "copy_string", []any{"This is too long", uint32(5)}, []any{cffi.BufferTooSmall, ""}},
		{"copy_string zero capacity", "copy_string", []any{"x", 0}, []any{cffi.BufferTooSmall, ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDirect(t)
			got, err := Invoke(t.Context(), d, tt.fn, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Zero(t, d.Arena().InUse(), "temporaries leaked")
		})
	}
}

func TestInvokeNullResult(t *testing.T) {
	d := newDirect(t)
	got, err := Invoke(t.Context(), d, "greet", string([]byte{0xff}))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0])
	assert.Zero(t, d.Arena().InUse())
}

func TestInvokeErrors(t *testing.T) {
	d := newDirect(t)

	tests := []struct {
		name string
		fn   string
		args []any
		kind errors.Kind
	}{
		{"unknown export", "nope", nil, errors.KindNotFound},
		{"arity", "add", []any{int32(1)}, errors.KindInvalidInput},
		{"owned string", "free_string", []any{"x"}, errors.KindInvalidInput},
		{"wrong scalar", "add", []any{"1", int32(2)}, errors.KindTypeMismatch},
		{"int out of range", "add", []any{math.MaxInt32 + 1, 0}, errors.KindTypeMismatch},
		{"wrong array", "sum_array", []any{[]int{1}}, errors.KindTypeMismatch},
		{"wrong point", "point_distance", []any{cffi.Point{}, "0,0"}, errors.KindTypeMismatch},
		{"negative capacity", "copy_string", []any{"x", -1}, errors.KindTypeMismatch},
		{"interior NUL", "greet", []any{"Ada\x00Lovelace"}, errors.KindInvalidInput},
		{"interior NUL in src", "copy_string", []any{"ab\x00", 8}, errors.KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Invoke(t.Context(), d, tt.fn, tt.args...)
			require.Error(t, err)
			assert.True(t, errors.HasKind(err, tt.kind), "got %v", err)
			assert.Zero(t, d.Arena().InUse(), "temporaries leaked on error")
		})
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		fn   string
		args []string
		want []any
	}{
		{"add", []string{"5", "-3"}, []any{int32(5), int32(-3)}},
		{"divide", []string{"1.5", "0"}, []any{1.5, 0.0}},
		{"greet", []string{"Bob"}, []any{"Bob"}},
		{"sort_array", []string{"[5, 2,8]"}, []any{[]int32{5, 2, 8}}},
		{"sum_array", []string{""}, []any{[]int32{}}},
		{"point_distance", []string{"0,0", "(3,4)"}, []any{cffi.Point{}, cffi.Point{X: 3, Y: 4}}},
		{"parse_int", []string{"42"}, []any{"42"}},
		{"copy_string", []string{"hi", "10"}, []any{"hi", uint32(10)}},
	}

	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			e, ok := Lookup(tt.fn)
			require.True(t, ok)
			got, err := ParseArgs(e, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArgsErrors(t *testing.T) {
	add, _ := Lookup("add")
	_, err := ParseArgs(add, []string{"1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "add <a> <b>")

	_, err = ParseArgs(add, []string{"1", "x"})
	assert.True(t, errors.HasKind(err, errors.KindInvalidInput))

	pd, _ := Lookup("point_distance")
	_, err = ParseArgs(pd, []string{"1", "2,3"})
	assert.Error(t, err)
}

func TestUsage(t *testing.T) {
	for fn, want := range map[string]string{
		"add":             "add <a> <b>",
		"sort_array":      "sort_array <arr:n,n,...>",
		"point_translate": "point_translate <p:x,y> <dx> <dy>",
		"parse_int":       "parse_int <input>",
		"copy_string":     "copy_string <src> <dest_len>",
	} {
		e, ok := Lookup(fn)
		require.True(t, ok)
		assert.Equal(t, want, Usage(e))
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NULL", FormatValue(nil))
	assert.Equal(t, `"hi"`, FormatValue("hi"))
	assert.Equal(t, "[1, 2, 5]", FormatValue([]int32{1, 2, 5}))
	assert.Equal(t, "5", FormatValue(5.0))
	assert.Equal(t, "42", FormatValue(int32(42)))
	assert.Equal(t, "BufferTooSmall", FormatValue(cffi.BufferTooSmall))
	assert.Equal(t, "(1.5, 2)", FormatValue(cffi.Point{X: 1.5, Y: 2}))
}

package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"
)

func TestExportsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, e := range Exports() {
		assert.False(t, seen[e.Name], "duplicate export %s", e.Name)
		seen[e.Name] = true
		assert.NotNil(t, e.call, "%s has no implementation", e.Name)
		assert.NotEmpty(t, e.Doc, "%s has no doc", e.Name)

		got, ok := Lookup(e.Name)
		require.True(t, ok)
		assert.Same(t, e, got)
	}
	assert.Len(t, Names(), len(Exports()))

	_, ok := Lookup("missing")
	assert.False(t, ok)
}

func TestExportLowering(t *testing.T) {
	i32, f64 := api.ValueTypeI32, api.ValueTypeF64

	tests := []struct {
		name    string
		params  []api.ValueType
		results []api.ValueType
	}{
		{"add", []api.ValueType{i32, i32}, []api.ValueType{i32}},
		{"divide", []api.ValueType{i32, f64, f64}, nil},
		{"greet", []api.ValueType{i32}, []api.ValueType{i32}},
		{"string_length", []api.ValueType{i32}, []api.ValueType{i32}},
		{"free_string", []api.ValueType{i32}, nil},
		{"sum_array", []api.ValueType{i32, i32}, []api.ValueType{i32}},
		{"sort_array", []api.ValueType{i32, i32}, nil},
		{"point_new", []api.ValueType{i32, f64, f64}, nil},
		{"point_distance", []api.ValueType{i32, i32}, []api.ValueType{f64}},
		{"point_midpoint", []api.ValueType{i32, i32, i32}, nil},
		{"point_translate", []api.ValueType{i32, f64, f64}, nil},
		{"parse_int", []api.ValueType{i32, i32}, []api.ValueType{i32}},
		{"copy_string", []api.ValueType{i32, i32, i32}, []api.ValueType{i32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := Lookup(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.params, e.WasmParams())
			assert.Equal(t, tt.results, e.WasmResults())
			assert.Len(t, e.WasmParamNames(), len(tt.params))
		})
	}
}

func TestExportCDecl(t *testing.T) {
	tests := map[string]string{
		"add":              "int32_t add(int32_t a, int32_t b)",
		"multiply":         "int32_t multiply(int32_t a, int32_t b)",
		"divide":           "OperationResult divide(double a, double b)",
		"greet":            "char* greet(const char* name)",
		"to_uppercase":     "char* to_uppercase(const char* input)",
		"string_length":    "int32_t string_length(const char* input)",
		"free_string":      "void free_string(char* s)",
		"free_rust_string": "void free_rust_string(char* s)",
		"sum_array":        "int32_t sum_array(const int32_t* arr, size_t len)",
		"max_array":        "int32_t max_array(const int32_t* arr, size_t len)",
		"sort_array":       "void sort_array(int32_t* arr, size_t len)",
		"point_new":        "Point point_new(double x, double y)",
		"point_distance":   "double point_distance(Point p1, Point p2)",
		"point_midpoint":   "Point point_midpoint(Point p1, Point p2)",
		"point_translate":  "void point_translate(Point* p, double dx, double dy)",
		"parse_int":        "ErrorCode parse_int(const char* input, int32_t* output)",
		"copy_string":      "ErrorCode copy_string(const char* src, char* dest, size_t dest_len)",
	}

	require.Len(t, tests, len(Exports()))
	for name, want := range tests {
		e, ok := Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, want, e.CDecl())
	}
}

// Every export must tolerate an all-zero argument list, which is null for
// every pointer.
func TestExportsTolerateNullArguments(t *testing.T) {
	d := newDirect(t)
	for _, e := range Exports() {
		t.Run(e.Name, func(t *testing.T) {
			params := make([]uint64, len(e.WasmParams()))
			assert.NotPanics(t, func() {
				_, err := d.Call(t.Context(), e.Name, params...)
				require.NoError(t, err)
			})
		})
	}
	assert.Zero(t, d.Arena().InUse())
}

func TestDirectCallErrors(t *testing.T) {
	d := newDirect(t)

	_, err := d.Call(t.Context(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_found")

	_, err = d.Call(t.Context(), "add", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 1 params, want 2")

	res, err := d.Call(t.Context(), "add", api.EncodeI32(-2), api.EncodeI32(7))
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, int32(5), api.DecodeI32(res[0]))
}

package host_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/cffi"
	"github.com/wippyai/cffi/abi"
	cfferrors "github.com/wippyai/cffi/errors"
	"github.com/wippyai/cffi/guest"
	"github.com/wippyai/cffi/host"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, host.DefaultConfig().Validate())
	assert.Error(t, host.Config{Malloc: "m", Free: "f"}.Validate())
	assert.Error(t, host.Config{Module: "env", Free: "f"}.Validate())
	assert.Error(t, host.Config{Module: "env", Malloc: "m"}.Validate())
}

func TestInstantiateRegistersEveryExport(t *testing.T) {
	ctx := t.Context()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	mod, err := host.Instantiate(ctx, r, host.DefaultConfig())
	require.NoError(t, err)

	defs := mod.ExportedFunctionDefinitions()
	require.Len(t, defs, len(abi.Exports()))
	for _, e := range abi.Exports() {
		def, ok := defs[e.Name]
		require.True(t, ok, e.Name)
		assert.Equal(t, e.WasmParams(), def.ParamTypes())
		assert.Equal(t, e.WasmResults(), def.ResultTypes())
		assert.Equal(t, e.WasmParamNames(), def.ParamNames())
	}

	_, err = host.Instantiate(ctx, r, host.DefaultConfig())
	assert.Error(t, err, "module name already registered")
}

// A guest whose allocator exports do not match the host's names gets NULL
// for every owned string.
func TestMissingAllocatorReturnsNull(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	abi.SetLogger(zap.New(core))
	defer abi.SetLogger(zap.NewNop())

	ctx := t.Context()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	_, err := host.Instantiate(ctx, r, host.DefaultConfig())
	require.NoError(t, err)

	cfg := guest.DefaultConfig()
	cfg.Host.Malloc = "other_malloc"
	cfg.Host.Free = "other_free"
	bin, err := guest.Build(cfg)
	require.NoError(t, err)
	mod, err := r.Instantiate(ctx, bin)
	require.NoError(t, err)

	alloc := host.WrapAllocator(ctx, mod.ExportedFunction("other_malloc"), mod.ExportedFunction("other_free"))
	require.NotNil(t, alloc)
	name, err := abi.WriteCString(host.WrapMemory(mod.Memory()), alloc, "Alice")
	require.NoError(t, err)

	res, err := mod.ExportedFunction("greet").Call(ctx, api.EncodeU32(name))
	require.NoError(t, err)
	assert.Equal(t, cffi.Null, api.DecodeU32(res[0]))
	assert.Equal(t, 1, logs.FilterMessage("no allocator for owned string").Len())

	res, err = mod.ExportedFunction("string_length").Call(ctx, api.EncodeU32(name))
	require.NoError(t, err)
	assert.Equal(t, int32(5), api.DecodeI32(res[0]), "non-allocating exports still work")
}

// memorylessGuest imports env.<name> with the given i32 arity and
// re-exports it without declaring a memory.
func memorylessGuest(name string, params, results int) []byte {
	vec := func(items ...[]byte) []byte {
		out := guest.EncodeULEB128(uint32(len(items)))
		for _, it := range items {
			out = append(out, it...)
		}
		return out
	}
	str := func(s string) []byte {
		return append(guest.EncodeULEB128(uint32(len(s))), s...)
	}
	sect := func(id byte, body []byte) []byte {
		return append(append([]byte{id}, guest.EncodeULEB128(uint32(len(body)))...), body...)
	}
	i32s := func(n int) []byte {
		out := guest.EncodeULEB128(uint32(n))
		for range n {
			out = append(out, byte(api.ValueTypeI32))
		}
		return out
	}

	fnType := append(append([]byte{0x60}, i32s(params)...), i32s(results)...)
	var body []byte
	body = append(body, 0x00) // no locals
	for i := range params {
		body = append(body, 0x20, byte(i)) // local.get i
	}
	body = append(body, 0x10, 0x00, 0x0b) // call 0; end

	wasm := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	wasm = append(wasm, sect(1, vec(fnType))...)
	wasm = append(wasm, sect(2, vec(append(append(str("env"), str(name)...), 0x00, 0x00)))...)
	wasm = append(wasm, sect(3, vec([]byte{0x00}))...)
	wasm = append(wasm, sect(7, vec(append(str(name), 0x00, 0x01)))...)
	wasm = append(wasm, sect(10, vec(append(guest.EncodeULEB128(uint32(len(body))), body...)))...)
	return wasm
}

func TestMissingMemoryTraps(t *testing.T) {
	tests := []struct {
		name    string
		params  []uint64
		results int
	}{
		{"add", []uint64{api.EncodeI32(1), api.EncodeI32(2)}, 1},
		{"string_length", []uint64{api.EncodeU32(0)}, 1},
		{"free_string", []uint64{api.EncodeU32(8)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := t.Context()
			r := wazero.NewRuntime(ctx)
			defer r.Close(ctx)

			_, err := host.Instantiate(ctx, r, host.DefaultConfig())
			require.NoError(t, err)
			mod, err := r.Instantiate(ctx, memorylessGuest(tt.name, len(tt.params), tt.results))
			require.NoError(t, err)

			_, err = mod.ExportedFunction(tt.name).Call(ctx, tt.params...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "has no memory")
		})
	}
}

func TestWrapMemoryRejectsMissingMemory(t *testing.T) {
	assert.Nil(t, host.WrapMemory(nil))

	ctx := t.Context()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	_, err := host.Instantiate(ctx, r, host.DefaultConfig())
	require.NoError(t, err)
	mod, err := r.Instantiate(ctx, memorylessGuest("add", 2, 1))
	require.NoError(t, err)

	assert.Nil(t, host.WrapMemory(mod.Memory()), "a module without memory reports a typed nil")
}

func TestMemoryBounds(t *testing.T) {
	h, err := guest.New(t.Context(), guest.DefaultConfig())
	require.NoError(t, err)
	defer h.Close(t.Context())

	mem := h.Memory()
	size := mem.(cffi.MemorySizer).Size()

	require.NoError(t, mem.WriteU64(size-8, 0x0102030405060708))
	v, err := mem.ReadU64(size - 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), v)

	_, err = mem.ReadU32(size - 2)
	assert.Error(t, err)
	assert.Error(t, mem.WriteU8(size, 1))
	_, err = mem.Read(size-1, 2)
	assert.Error(t, err)
	assert.Equal(t, cffi.MemoryFault, cfferrors.Code(err))
}

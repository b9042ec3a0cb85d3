package abi

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/cffi"
	"github.com/wippyai/cffi/errors"
	"github.com/wippyai/cffi/memory"
)

// Target is anything that can run the lowered exports: params and results
// use the wasm32 calling convention of Export.WasmParams and
// Export.WasmResults, and pointers are offsets into Memory.
type Target interface {
	Call(ctx context.Context, name string, params ...uint64) ([]uint64, error)
	Memory() cffi.Memory
	Alloc(ctx context.Context, size, align uint32) (uint32, error)
	Free(ctx context.Context, ptr, size, align uint32)
}

// Direct runs the exports in-process over an Arena-managed memory.
type Direct struct {
	arena *memory.Arena
	lib   *Library
}

// NewDirect creates an in-process target sized by cfg.
func NewDirect(cfg memory.ArenaConfig) (*Direct, error) {
	arena, err := memory.NewArena(cfg)
	if err != nil {
		return nil, err
	}
	return &Direct{
		arena: arena,
		lib:   NewLibrary(arena.Memory(), arena),
	}, nil
}

// Arena returns the allocator that owns the target's memory.
func (d *Direct) Arena() *memory.Arena {
	return d.arena
}

// Library returns the library bound to the target's memory.
func (d *Direct) Library() *Library {
	return d.lib
}

// Memory implements Target.
func (d *Direct) Memory() cffi.Memory {
	return d.arena.Memory()
}

// Alloc implements Target.
func (d *Direct) Alloc(_ context.Context, size, align uint32) (uint32, error) {
	return d.arena.Alloc(size, align)
}

// Free implements Target.
func (d *Direct) Free(_ context.Context, ptr, size, align uint32) {
	d.arena.Free(ptr, size, align)
}

// Call implements Target.
func (d *Direct) Call(_ context.Context, name string, params ...uint64) ([]uint64, error) {
	e, ok := Lookup(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseInvoke, "export", name)
	}
	nparams, nresults := len(e.WasmParams()), len(e.WasmResults())
	if len(params) != nparams {
		return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Op(name).
			Detail("got %d params, want %d", len(params), nparams).
			Build()
	}

	Logger().Debug("call", zap.String("export", name), zap.Uint64s("params", params))

	stack := make([]uint64, max(nparams, nresults))
	copy(stack, params)
	e.Call(d.lib, stack)
	return stack[:nresults], nil
}

// String describes the target.
func (d *Direct) String() string {
	return fmt.Sprintf("direct(%d pages)", d.arena.Memory().Pages())
}

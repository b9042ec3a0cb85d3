// Package guest drives the host module through a real WebAssembly boundary.
//
// Build synthesises a small guest module that imports every export from the
// host module and re-exports it under the same name, together with a memory
// and a bump allocator. Harness instantiates both in a wazero runtime and
// implements abi.Target, so Invoke and the self-test run unchanged against
// the wasm path.
package guest

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/cffi"
	"github.com/wippyai/cffi/abi"
	"github.com/wippyai/cffi/errors"
	"github.com/wippyai/cffi/host"
)

// ModuleName is the instance name of the harness module.
const ModuleName = "harness"

// NewRuntime creates a wazero runtime honouring cfg's memory limit.
func NewRuntime(ctx context.Context, cfg Config) wazero.Runtime {
	rc := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return wazero.NewRuntimeWithConfig(ctx, rc)
}

// Harness is an abi.Target backed by the synthesised guest. It owns its
// runtime and is not safe for concurrent use.
type Harness struct {
	runtime wazero.Runtime
	host    api.Module
	mod     api.Module
	mem     *host.Memory
	malloc  api.Function
	free    api.Function
	heapTop api.Global
}

var _ abi.Target = (*Harness)(nil)

// New creates a runtime, registers the host module and instantiates the
// harness against it.
func New(ctx context.Context, cfg Config) (*Harness, error) {
	bin, err := Build(cfg)
	if err != nil {
		return nil, err
	}

	r := NewRuntime(ctx, cfg)
	hostMod, err := host.Instantiate(ctx, r, cfg.Host)
	if err != nil {
		return nil, multierr.Append(err, r.Close(ctx))
	}

	mod, err := r.InstantiateWithConfig(ctx, bin, wazero.NewModuleConfig().WithName(ModuleName))
	if err != nil {
		return nil, multierr.Append(errors.Instantiation(errors.PhaseHarness, ModuleName, err), r.Close(ctx))
	}

	h := &Harness{
		runtime: r,
		host:    hostMod,
		mod:     mod,
		mem:     host.WrapMemory(mod.Memory()),
		malloc:  mod.ExportedFunction(cfg.Host.Malloc),
		free:    mod.ExportedFunction(cfg.Host.Free),
		heapTop: mod.ExportedGlobal(HeapTopExport),
	}
	Logger().Debug("harness ready",
		zap.String("host", cfg.Host.Module),
		zap.Uint32("memory_pages", cfg.MemoryPages),
		zap.Uint32("heap_base", cfg.HeapBase))
	return h, nil
}

// Runtime returns the wazero runtime the harness lives in.
func (h *Harness) Runtime() wazero.Runtime {
	return h.runtime
}

// Module returns the harness module instance.
func (h *Harness) Module() api.Module {
	return h.mod
}

// HeapTop returns the next address malloc will consider.
func (h *Harness) HeapTop() uint32 {
	return api.DecodeU32(h.heapTop.Get())
}

// Memory implements abi.Target.
func (h *Harness) Memory() cffi.Memory {
	return h.mem
}

// Alloc implements abi.Target through the harness's malloc.
func (h *Harness) Alloc(ctx context.Context, size, align uint32) (uint32, error) {
	return host.WrapAllocator(ctx, h.malloc, h.free).Alloc(size, align)
}

// Free implements abi.Target. The harness free is a no-op; memory is
// reclaimed when the harness is closed.
func (h *Harness) Free(ctx context.Context, ptr, size, align uint32) {
	host.WrapAllocator(ctx, h.malloc, h.free).Free(ptr, size, align)
}

// Call implements abi.Target by calling the trampoline for name.
func (h *Harness) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := h.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseHarness, "export", name)
	}
	results, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, errors.Trap(errors.PhaseHarness, name, err)
	}
	return results, nil
}

// Close releases the harness, the host module and the runtime.
func (h *Harness) Close(ctx context.Context) error {
	return multierr.Combine(
		h.mod.Close(ctx),
		h.host.Close(ctx),
		h.runtime.Close(ctx),
	)
}

func (h *Harness) String() string {
	return fmt.Sprintf("wasm(%s, %d pages)", ModuleName, h.mem.Size()/65536)
}

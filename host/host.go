// Package host exposes the library to WebAssembly guests as a wazero host
// module.
//
// Every export of package abi becomes a host function with its wasm32
// lowering. Pointers are offsets into the calling module's memory, and owned
// strings are allocated through the caller's malloc and released through its
// free, so a guest frees them with the same free_string call it would use
// against the C library.
package host

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/cffi/abi"
	"github.com/wippyai/cffi/errors"
)

// Config names the host module and the guest allocator exports.
type Config struct {
	Module string `yaml:"module"`
	Malloc string `yaml:"malloc"`
	Free   string `yaml:"free"`
}

// DefaultConfig returns the conventional C names: functions are imported
// from "env" and guests export malloc and free.
func DefaultConfig() Config {
	return Config{Module: "env", Malloc: "malloc", Free: "free"}
}

// Validate reports an empty name.
func (c Config) Validate() error {
	switch {
	case c.Module == "":
		return errors.InvalidInput(errors.PhaseConfig, "host module name is empty")
	case c.Malloc == "":
		return errors.InvalidInput(errors.PhaseConfig, "host malloc export name is empty")
	case c.Free == "":
		return errors.InvalidInput(errors.PhaseConfig, "host free export name is empty")
	}
	return nil
}

// Instantiate registers the host module in r.
func Instantiate(ctx context.Context, r wazero.Runtime, cfg Config) (api.Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	builder := r.NewHostModuleBuilder(cfg.Module)
	for _, e := range abi.Exports() {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(handler(cfg, e), e.WasmParams(), e.WasmResults()).
			WithParameterNames(e.WasmParamNames()...).
			Export(e.Name)
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Instantiation(errors.PhaseHost, "host module "+cfg.Module, err)
	}
	Logger().Debug("host module instantiated",
		zap.String("module", cfg.Module),
		zap.Int("functions", len(abi.Exports())))
	return mod, nil
}

// handler binds e to the memory and allocator of whichever module calls it.
func handler(cfg Config, e *abi.Export) api.GoModuleFunc {
	return func(ctx context.Context, caller api.Module, stack []uint64) {
		mem := WrapMemory(caller.Memory())
		if mem == nil {
			panic(errors.New(errors.PhaseHost, errors.KindNotFound).
				Op(e.Name).
				Detail("module %q has no memory", caller.Name()).
				Build())
		}

		// A nil *Allocator must not reach the interface.
		lib := abi.NewLibrary(mem, nil)
		if alloc := WrapAllocator(ctx, caller.ExportedFunction(cfg.Malloc), caller.ExportedFunction(cfg.Free)); alloc != nil {
			lib = abi.NewLibrary(mem, alloc)
		}

		if ce := Logger().Check(zap.DebugLevel, "host call"); ce != nil {
			ce.Write(zap.String("module", caller.Name()), zap.String("export", e.Name))
		}
		e.Call(lib, stack)
	}
}

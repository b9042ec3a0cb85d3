package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/cffi/guest"
	"github.com/wippyai/cffi/host"
)

func (a *app) runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a wasm module that imports the library",
		ArgsUsage: "<module.wasm> [args...]",
		Description: "The module may import the library from the configured host module\n" +
			"and WASI preview1. Without --func its _start runs with args as argv;\n" +
			"with --func the named export is called with args as numbers.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "func",
				Aliases: []string{"f"},
				Usage:   "Export to call instead of _start",
			},
		},
		Action: a.runAction,
	}
}

func (a *app) runAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: cffi run [--func name] <module.wasm> [args...]")
	}
	path := cmd.Args().First()
	bin, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}

	r := guest.NewRuntime(ctx, a.cfg.Harness)
	defer r.Close(ctx)

	if err := instantiateWASI(ctx, r); err != nil {
		return err
	}
	if _, err := host.Instantiate(ctx, r, a.cfg.Host); err != nil {
		return err
	}

	compiled, err := r.CompileModule(ctx, bin)
	if err != nil {
		return fmt.Errorf("compile %s: %w", path, err)
	}

	fnName := cmd.String("func")
	mc := wazero.NewModuleConfig().
		WithName(path).
		WithStdin(os.Stdin).
		WithStdout(os.Stdout).
		WithStderr(os.Stderr)
	if fnName == "" {
		mc = mc.WithArgs(append([]string{path}, cmd.Args().Tail()...)...)
	} else {
		mc = mc.WithStartFunctions()
	}

	a.log.Debug("instantiate module", zap.String("path", path), zap.String("func", fnName))
	mod, err := r.InstantiateModule(ctx, compiled, mc)
	if fnName == "" {
		return exitErr(err)
	}
	if err != nil {
		return fmt.Errorf("instantiate %s: %w", path, err)
	}
	defer mod.Close(ctx)

	fn := mod.ExportedFunction(fnName)
	if fn == nil {
		return fmt.Errorf("%s has no export %q", path, fnName)
	}
	params, err := parseWasmArgs(fn.Definition().ParamTypes(), cmd.Args().Tail())
	if err != nil {
		return err
	}
	results, err := fn.Call(ctx, params...)
	if err != nil {
		return exitErr(err)
	}
	for i, t := range fn.Definition().ResultTypes() {
		fmt.Println(formatWasmValue(t, results[i]))
	}
	return nil
}

// instantiateWASI registers WASI preview1 unless r already has it.
func instantiateWASI(ctx context.Context, r wazero.Runtime) error {
	if r.Module(wasi_snapshot_preview1.ModuleName) != nil {
		return nil
	}
	builder := r.NewHostModuleBuilder(wasi_snapshot_preview1.ModuleName)
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("instantiate WASI: %w", err)
	}
	return nil
}

// exitErr treats a zero WASI exit code as success.
func exitErr(err error) error {
	var exit *sys.ExitError
	if stderrors.As(err, &exit) {
		if exit.ExitCode() == 0 {
			return nil
		}
		return multierr.Append(fmt.Errorf("exit code %d", exit.ExitCode()), err)
	}
	return err
}

func parseWasmArgs(types []api.ValueType, args []string) ([]uint64, error) {
	if len(args) != len(types) {
		return nil, fmt.Errorf("got %d args, want %d", len(args), len(types))
	}
	out := make([]uint64, len(args))
	for i, t := range types {
		var err error
		switch t {
		case api.ValueTypeI32:
			var v int64
			if v, err = strconv.ParseInt(args[i], 0, 32); err == nil {
				out[i] = api.EncodeI32(int32(v))
			}
		case api.ValueTypeI64:
			var v int64
			if v, err = strconv.ParseInt(args[i], 0, 64); err == nil {
				out[i] = api.EncodeI64(v)
			}
		case api.ValueTypeF32:
			var v float64
			if v, err = strconv.ParseFloat(args[i], 32); err == nil {
				out[i] = api.EncodeF32(float32(v))
			}
		case api.ValueTypeF64:
			var v float64
			if v, err = strconv.ParseFloat(args[i], 64); err == nil {
				out[i] = api.EncodeF64(v)
			}
		default:
			err = fmt.Errorf("unsupported type %s", api.ValueTypeName(t))
		}
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
	}
	return out, nil
}

func formatWasmValue(t api.ValueType, v uint64) string {
	switch t {
	case api.ValueTypeI32:
		return strconv.FormatInt(int64(api.DecodeI32(v)), 10)
	case api.ValueTypeI64:
		return strconv.FormatInt(int64(v), 10)
	case api.ValueTypeF32:
		return strconv.FormatFloat(float64(api.DecodeF32(v)), 'g', -1, 32)
	case api.ValueTypeF64:
		return strconv.FormatFloat(api.DecodeF64(v), 'g', -1, 64)
	}
	return fmt.Sprintf("%#x", v)
}

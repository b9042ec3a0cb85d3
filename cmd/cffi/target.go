package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wippyai/cffi/abi"
	"github.com/wippyai/cffi/guest"
	"github.com/wippyai/cffi/selftest"
)

const (
	targetDirect = "direct"
	targetWasm   = "wasm"
	targetAll    = "all"
)

func targetFlag(value string, all bool) *cli.StringFlag {
	usage := "Target to call: direct or wasm"
	if all {
		usage = "Target to check: direct, wasm or all"
	}
	return &cli.StringFlag{
		Name:    "target",
		Aliases: []string{"t"},
		Usage:   usage,
		Value:   value,
		Validator: func(s string) error {
			switch s {
			case targetDirect, targetWasm:
				return nil
			case targetAll:
				if all {
					return nil
				}
			}
			return fmt.Errorf("unknown target %q", s)
		},
	}
}

// openTarget creates the named target. The returned closer is never nil.
func (a *app) openTarget(ctx context.Context, name string) (abi.Target, func(), error) {
	switch name {
	case targetDirect:
		d, err := abi.NewDirect(a.cfg.Arena)
		if err != nil {
			return nil, func() {}, err
		}
		return d, func() {}, nil
	case targetWasm:
		h, err := guest.New(ctx, a.cfg.Harness)
		if err != nil {
			return nil, func() {}, err
		}
		return h, func() {
			if err := h.Close(ctx); err != nil {
				a.log.Warn("close harness", zap.Error(err))
			}
		}, nil
	}
	return nil, func() {}, fmt.Errorf("unknown target %q", name)
}

// openTargets resolves "all" to every target.
func (a *app) openTargets(ctx context.Context, name string) ([]selftest.Named, func(), error) {
	names := []string{name}
	if name == targetAll {
		names = []string{targetDirect, targetWasm}
	}

	var (
		out     []selftest.Named
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	for _, n := range names {
		t, closer, err := a.openTarget(ctx, n)
		closers = append(closers, closer)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		out = append(out, selftest.Named{Name: n, Target: t})
	}
	return out, closeAll, nil
}

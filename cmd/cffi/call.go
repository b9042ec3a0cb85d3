package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wippyai/cffi/abi"
)

func (a *app) callCommand() *cli.Command {
	return &cli.Command{
		Name:      "call",
		Usage:     "Call one export and print its results",
		ArgsUsage: "<function> [args...]",
		Description: "Arrays are written as 5,2,8 or [5,2,8] and points as x,y.\n" +
			"Buffer parameters take a capacity in bytes.",
		Flags:  []cli.Flag{targetFlag(targetDirect, false)},
		Action: a.callAction,
	}
}

func (a *app) callAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: cffi call <function> [args...]; functions: %s", strings.Join(abi.Names(), ", "))
	}
	name := cmd.Args().First()
	e, ok := abi.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown function %q; functions: %s", name, strings.Join(abi.Names(), ", "))
	}
	args, err := abi.ParseArgs(e, cmd.Args().Tail())
	if err != nil {
		return err
	}

	target, closeTarget, err := a.openTarget(ctx, cmd.String("target"))
	if err != nil {
		return err
	}
	defer closeTarget()

	out, err := abi.Invoke(ctx, target, name, args...)
	if err != nil {
		return err
	}
	fmt.Println(formatResults(out))
	return nil
}

func formatResults(vs []any) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = abi.FormatValue(v)
	}
	return strings.Join(parts, " ")
}

package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"

	"github.com/wippyai/cffi/selftest"
)

func (a *app) selftestCommand() *cli.Command {
	def := selftest.DefaultSuite()
	return &cli.Command{
		Name:  "selftest",
		Usage: "Check targets against the reference scenarios and properties",
		Flags: []cli.Flag{
			targetFlag(targetAll, true),
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Seed for the property generators",
				Value: def.Seed,
			},
			&cli.IntFlag{
				Name:    "iterations",
				Aliases: []string{"n"},
				Usage:   "Random cases per property",
				Value:   def.Iterations,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Print passing checks too",
			},
		},
		Action: a.selftestAction,
	}
}

func (a *app) selftestAction(ctx context.Context, cmd *cli.Command) error {
	targets, closeTargets, err := a.openTargets(ctx, cmd.String("target"))
	if err != nil {
		return err
	}
	defer closeTargets()

	suite := selftest.Suite{Seed: cmd.Uint64("seed"), Iterations: int(cmd.Int("iterations"))}
	reports, err := suite.RunAll(ctx, targets)
	if err != nil {
		return err
	}

	var failed error
	for _, r := range reports {
		fmt.Println(a.styles.title.Render(r.Target))
		for _, res := range r.Results {
			switch {
			case !res.Passed:
				fmt.Printf("  %s %s: %s\n", a.styles.fail.Render("FAIL"), res.Name, res.Detail)
			case cmd.Bool("verbose"):
				fmt.Printf("  %s %s\n", a.styles.pass.Render("PASS"), res.Name)
			}
		}
		fmt.Printf("  %d/%d passed\n\n", len(r.Results)-len(r.Failed()), len(r.Results))
		failed = multierr.Append(failed, r.Err())
	}
	if n := len(multierr.Errors(failed)); n > 0 {
		return fmt.Errorf("%d checks failed", n)
	}
	return nil
}

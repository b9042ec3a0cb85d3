// Command cffi exercises the library from the command line: it calls
// exports, checks targets against the reference scenarios, prints the C
// header and hosts wasm modules that import the library.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/cffi/abi"
	"github.com/wippyai/cffi/config"
	"github.com/wippyai/cffi/guest"
	"github.com/wippyai/cffi/host"
	"github.com/wippyai/cffi/native"
)

var version = "dev"

func main() {
	if err := newApp().Command().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what the global flags resolve to.
type app struct {
	cfg    config.Config
	log    *zap.Logger
	styles styles
}

func newApp() *app {
	return &app{cfg: config.Default(), log: zap.NewNop(), styles: newStyles(false)}
}

func (a *app) Command() *cli.Command {
	return &cli.Command{
		Name:    "cffi",
		Usage:   "Call and verify the cffi library",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				Sources: cli.EnvVars("CFFI_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override log.level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:    "no-color",
				Aliases: []string{"C"},
				Usage:   "Disable ANSI color output",
			},
		},
		Before: a.before,
		After:  a.after,
		Commands: []*cli.Command{
			a.callCommand(),
			a.selftestCommand(),
			a.exportsCommand(),
			a.headerCommand(),
			a.runCommand(),
			a.interactiveCommand(),
			a.configCommand(),
		},
	}
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, err
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	color := !cmd.Bool("no-color") && os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stdout.Fd()))
	if !color {
		cfg.Log.NoColor = true
	}
	if err := cfg.Validate(); err != nil {
		return ctx, err
	}

	log, err := cfg.Logger()
	if err != nil {
		return ctx, err
	}
	abi.SetLogger(log.Named("abi"))
	host.SetLogger(log.Named("host"))
	guest.SetLogger(log.Named("guest"))
	native.SetLogger(log.Named("native"))

	a.cfg = cfg
	a.log = log
	a.styles = newStyles(color)
	return ctx, nil
}

func (a *app) after(context.Context, *cli.Command) error {
	// Sync fails on stderr for most terminals; nothing useful to report.
	_ = a.log.Sync()
	return nil
}

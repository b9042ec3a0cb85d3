package main

import (
	"context"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"

	"github.com/wippyai/cffi/abi"
)

func (a *app) exportsCommand() *cli.Command {
	return &cli.Command{
		Name:  "exports",
		Usage: "List the exported functions",
		Action: func(_ context.Context, _ *cli.Command) error {
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("FUNCTION", "C SIGNATURE", "DESCRIPTION").
				StyleFunc(func(row, col int) lipgloss.Style {
					switch {
					case row == table.HeaderRow:
						return a.styles.title
					case col == 0:
						return a.styles.fn
					case col == 1:
						return a.styles.typ
					}
					return lipgloss.NewStyle()
				})
			for _, e := range abi.Exports() {
				t.Row(e.Name, e.CDecl(), e.Doc)
			}
			_, err := os.Stdout.WriteString(t.Render() + "\n")
			return err
		},
	}
}

func (a *app) headerCommand() *cli.Command {
	return &cli.Command{
		Name:  "header",
		Usage: "Write the C header for the shared library",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			path := cmd.String("output")
			if path == "" {
				return abi.WriteHeader(os.Stdout)
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := abi.WriteHeader(f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
}

func (a *app) configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Print the effective configuration",
		Action: func(_ context.Context, _ *cli.Command) error {
			return a.cfg.Write(os.Stdout)
		},
	}
}

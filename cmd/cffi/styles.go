package main

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title    lipgloss.Style
	fn       lipgloss.Style
	typ      lipgloss.Style
	selected lipgloss.Style
	pass     lipgloss.Style
	fail     lipgloss.Style
	result   lipgloss.Style
	err      lipgloss.Style
	help     lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{
			title: plain, fn: plain, typ: plain, selected: plain.Reverse(true),
			pass: plain, fail: plain, result: plain, err: plain, help: plain,
		}
	}
	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		fn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98")),
		typ: lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")),
		selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")),
		pass:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#90EE90")),
		fail:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
		result: lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90")),
		err:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		help:   lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
	}
}

package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	primaryColor = lipgloss.Color("#7D56F4")
	successColor = lipgloss.Color("#04B575")
	warningColor = lipgloss.Color("#FFA500")
	mutedColor   = lipgloss.Color("#666666")

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	okStyle      = lipgloss.NewStyle().Foreground(successColor)
	warnStyle    = lipgloss.NewStyle().Foreground(warningColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
)

// applyColor drops styling when --no-color is set; otherwise lipgloss
// detects what stdout supports.
func applyColor() {
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

func heading(s string) string { return headingStyle.Render(s) }

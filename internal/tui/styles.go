package tui

import "github.com/charmbracelet/lipgloss"

// Styles degrade to plain text when stdout is not a color terminal.
var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	ruleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// OK renders a success line prefixed with a check mark.
func OK(s string) string { return okStyle.Render("✓ " + s) }

// Fail renders a failure line prefixed with a cross.
func Fail(s string) string { return failStyle.Render("✗ " + s) }

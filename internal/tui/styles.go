package tui

import "github.com/charmbracelet/lipgloss"

// Theme holds the styles of the summary grid.
type Theme struct {
	Title    lipgloss.Style
	Header   lipgloss.Style
	Row      lipgloss.Style
	SubRow   lipgloss.Style
	Cursor   lipgloss.Style
	Column   lipgloss.Style
	Footer   lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style
	Divider  lipgloss.Style
	Negative lipgloss.Style
}

// DefaultTheme is the default theme.
var DefaultTheme = Theme{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7c3aed")),
	Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fafafa")),
	Row:      lipgloss.NewStyle().Foreground(lipgloss.Color("#e5e5e5")),
	SubRow:   lipgloss.NewStyle().Foreground(lipgloss.Color("#a3a3a3")),
	Cursor:   lipgloss.NewStyle().Reverse(true),
	Column:   lipgloss.NewStyle().Underline(true),
	Footer:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10b981")),
	Status:   lipgloss.NewStyle().Foreground(lipgloss.Color("#737373")),
	Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")),
	Divider:  lipgloss.NewStyle().Foreground(lipgloss.Color("#404040")),
	Negative: lipgloss.NewStyle().Foreground(lipgloss.Color("#f59e0b")),
}

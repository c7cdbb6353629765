package main

import "github.com/charmbracelet/lipgloss"

// theme is a narrow slice of the Tokyo Night palette: just enough
// to color a read-only occupancy dashboard.
var theme = struct {
	border  lipgloss.Color
	accent  lipgloss.Color
	success lipgloss.Color
	errClr  lipgloss.Color
	dim     lipgloss.Color
}{
	border:  lipgloss.Color("#414868"),
	accent:  lipgloss.Color("#7aa2f7"),
	success: lipgloss.Color("#9ece6a"),
	errClr:  lipgloss.Color("#f7768e"),
	dim:     lipgloss.Color("#565f89"),
}

var (
	titleStyle = lipgloss.NewStyle().Foreground(theme.accent).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(theme.dim)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#c0caf5")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(theme.errClr).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(theme.success)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.border).
			Padding(1, 2)
)

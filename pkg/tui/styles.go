package tui

import (
	"github.com/DrSkyle/commitraider/pkg/engine/patterns"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorNeonGreen  = lipgloss.Color("#00FF99") // Success
	colorNeonPurple = lipgloss.Color("#874BFD") // Header / Border
	colorTextMain   = lipgloss.Color("#E2E8F0")
	colorTextSub    = lipgloss.Color("#64748B")
	colorDanger     = lipgloss.Color("#FF0055")
	colorWarning    = lipgloss.Color("#F59E0B")
	colorInfo       = lipgloss.Color("#00BFFF")

	subtle    = lipgloss.NewStyle().Foreground(colorTextSub)
	dimStyle  = lipgloss.NewStyle().Foreground(colorTextSub)
	highlight = lipgloss.NewStyle().Foreground(colorNeonPurple).Bold(true)
	special   = lipgloss.NewStyle().Foreground(colorNeonGreen).Bold(true)
	danger    = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	warning   = lipgloss.NewStyle().Foreground(colorWarning)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorNeonPurple).
			Bold(true).
			Padding(0, 1)

	hudStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorNeonPurple).
			Padding(0, 1).
			Foreground(colorTextMain)

	hudLabelStyle = lipgloss.NewStyle().
			Foreground(colorTextSub).
			Bold(true).
			MarginRight(1)

	hudValueStyle = lipgloss.NewStyle().
			Foreground(colorNeonGreen).
			Bold(true)

	listSelectedStyle = lipgloss.NewStyle().
				Foreground(colorTextMain).
				Background(lipgloss.Color("#331832")).
				Bold(true)

	listNormalStyle = lipgloss.NewStyle().
			Foreground(colorTextSub)

	iconCritical = lipgloss.NewStyle().Foreground(colorDanger).SetString("[CRITICAL]")
	iconWarn     = lipgloss.NewStyle().Foreground(colorWarning).SetString("[WARN]")
	iconSafe     = lipgloss.NewStyle().Foreground(colorNeonGreen).SetString("[SAFE]")

	detailsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorNeonGreen).
			Padding(1, 2).
			MarginTop(1)

	detailsHeaderStyle = lipgloss.NewStyle().
				Foreground(colorNeonPurple).
				Bold(true).
				Underline(true).
				MarginBottom(1)
)

// severityStyle colors a severity label.
func severityStyle(s patterns.Severity) lipgloss.Style {
	switch s {
	case patterns.Critical:
		return danger
	case patterns.High:
		return lipgloss.NewStyle().Foreground(colorDanger)
	case patterns.Medium:
		return warning
	case patterns.Low:
		return lipgloss.NewStyle().Foreground(colorInfo)
	}
	return subtle
}

func helpStyle(s string) string {
	return subtle.Render(s)
}

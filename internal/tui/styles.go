package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorInk    = lipgloss.AdaptiveColor{Light: "#0F172A", Dark: "#E2E8F0"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#64748B", Dark: "#94A3B8"}
	colorAccent = lipgloss.Color("#06B6D4")
	colorWarn   = lipgloss.Color("#F59E0B")
	colorBorder = lipgloss.AdaptiveColor{Light: "#CBD5E1", Dark: "#334155"}
	colorSelect = lipgloss.AdaptiveColor{Light: "#DBEAFE", Dark: "#1E3A8A"}

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorInk)
	headerStyle  = lipgloss.NewStyle().Foreground(colorInk).Padding(0, 1).Border(lipgloss.Border{Bottom: "─"}, false, false, true, false).BorderForeground(colorBorder)
	footerStyle  = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 1)
	overlayStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent).Padding(1, 2)
	accentStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarn)
	rowStyle     = lipgloss.NewStyle().Background(colorSelect).Foreground(colorInk)
)

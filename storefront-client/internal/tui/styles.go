package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#6C63FF")
	muted  = lipgloss.Color("#888888")
	danger = lipgloss.Color("#E5484D")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(accent)
	greetingStyle = lipgloss.NewStyle().Foreground(accent)
	helpStyle     = lipgloss.NewStyle().Foreground(muted)
	errorStyle    = lipgloss.NewStyle().Foreground(danger)
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#2EB67D"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1).
			Width(56)
	selectedCardStyle = cardStyle.BorderForeground(accent)
	priceStyle        = lipgloss.NewStyle().Bold(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(accent).
			Padding(1, 2)
)

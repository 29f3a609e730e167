package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("33")
	colorMuted  = lipgloss.Color("245")
	colorBorder = lipgloss.Color("24")
	colorText   = lipgloss.Color("255")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	hintStyle  = lipgloss.NewStyle().Foreground(colorMuted)

	headerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(colorBorder).
			Padding(0, 1)

	userBubbleStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorAccent).
			Padding(0, 1)

	assistantBubbleStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorBorder).
				Padding(0, 1)

	linkStyle = lipgloss.NewStyle().Underline(true).Foreground(colorAccent)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)

	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(colorBorder).
			Padding(0, 1)
)

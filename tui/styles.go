package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98")).
			Underline(true)

	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#3C3C3C")).
			Padding(0, 2)

	buttonFocusedStyle = buttonStyle.
				Background(lipgloss.Color("#7D56F4"))

	buttonDisabledStyle = buttonStyle.
				Foreground(lipgloss.Color("#666666")).
				Background(lipgloss.Color("#262626"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

package tui

import "github.com/charmbracelet/lipgloss"

// Styles for the chat screen.
type Styles struct {
	Title   lipgloss.Style
	Dim     lipgloss.Style
	Error   lipgloss.Style
	Warn    lipgloss.Style
	Success lipgloss.Style
	Panel   lipgloss.Style
	Label   lipgloss.Style
	Code    lipgloss.Style
}

func DefaultStyles() Styles {
	border := lipgloss.RoundedBorder()
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Panel:   lipgloss.NewStyle().Border(border).BorderForeground(lipgloss.Color("8")).Padding(0, 1),
		Label:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Code:    lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
	}
}

package session

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title     lipgloss.Style
	header    lipgloss.Style
	status    lipgloss.Style
	detail    lipgloss.Style
	warning   lipgloss.Style
	success   lipgloss.Style
	section   lipgloss.Style
	empty     lipgloss.Style
	key       lipgloss.Style
	stepDone  lipgloss.Style
	stepNow   lipgloss.Style
	stepTodo  lipgloss.Style
	stepFail  lipgloss.Style
	separator lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true),
		header:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		status:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		detail:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		success:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114")),
		section:   lipgloss.NewStyle().MarginTop(1),
		empty:     lipgloss.NewStyle().Faint(true),
		key:       lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		stepDone:  lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		stepNow:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226")),
		stepTodo:  lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		stepFail:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		separator: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

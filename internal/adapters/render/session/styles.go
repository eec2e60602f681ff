package session

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title        lipgloss.Style
	header       lipgloss.Style
	connected    lipgloss.Style
	connecting   lipgloss.Style
	disconnected lipgloss.Style
	demand       lipgloss.Style
	demandKey    lipgloss.Style
	detail       lipgloss.Style
	countdown    lipgloss.Style
	warning      lipgloss.Style
	confirmed    lipgloss.Style
	pending      lipgloss.Style
	failed       lipgloss.Style
	amount       lipgloss.Style
	meta         lipgloss.Style
	section      lipgloss.Style
	empty        lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:        lipgloss.NewStyle().Bold(true),
		header:       lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		connected:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78")),
		connecting:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220")),
		disconnected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244")),
		demand:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		demandKey:    lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		detail:       lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		countdown:    lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		warning:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		confirmed:    lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		pending:      lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		failed:       lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		amount:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		meta:         lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		section:      lipgloss.NewStyle().MarginTop(1),
		empty:        lipgloss.NewStyle().Faint(true),
	}
}

package tui

import "github.com/charmbracelet/lipgloss"

// Styles contains the lipgloss styles of the picker.
type Styles struct {
	App lipgloss.Style

	Title lipgloss.Style

	Item         lipgloss.Style
	ItemSelected lipgloss.Style
	Signal       lipgloss.Style

	StatusBar   lipgloss.Style
	StatusKey   lipgloss.Style
	StatusValue lipgloss.Style
	Online      lipgloss.Style
	Offline     lipgloss.Style

	Banner      lipgloss.Style
	BannerTitle lipgloss.Style

	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style

	Help lipgloss.Style
}

// DefaultStyles returns the default colour scheme.
func DefaultStyles() Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special := lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	muted := lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	text := lipgloss.AdaptiveColor{Light: "#343433", Dark: "#C1C6B2"}
	alert := lipgloss.Color("#FF6B6B")

	return Styles{
		App: lipgloss.NewStyle().
			Padding(1, 2),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(highlight).
			Padding(0, 1),

		Item: lipgloss.NewStyle(),

		ItemSelected: lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true),

		Signal: lipgloss.NewStyle().
			Foreground(muted),

		StatusBar: lipgloss.NewStyle().
			Foreground(text).
			Background(subtle).
			Padding(0, 1).
			MarginTop(1),

		StatusKey: lipgloss.NewStyle().
			Foreground(muted).
			Width(12),

		StatusValue: lipgloss.NewStyle().
			Foreground(text),

		Online: lipgloss.NewStyle().
			Foreground(special).
			Bold(true),

		Offline: lipgloss.NewStyle().
			Foreground(alert).
			Bold(true),

		Banner: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(alert).
			Padding(0, 1).
			MarginBottom(1),

		BannerTitle: lipgloss.NewStyle().
			Foreground(alert).
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(muted),

		Success: lipgloss.NewStyle().
			Foreground(special),

		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFCC00")),

		Help: lipgloss.NewStyle().
			Foreground(muted).
			MarginTop(1),
	}
}

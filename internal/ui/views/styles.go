package views

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles contains all the style definitions for the UI
type Styles struct {
	Title       lipgloss.Style
	Section     lipgloss.Style
	Dim         lipgloss.Style
	Status      lipgloss.Style
	Help        lipgloss.Style
	Main        lipgloss.Style
	Pane        lipgloss.Style
	PaneFocused lipgloss.Style
	PaneTitle   lipgloss.Style
	Label       lipgloss.Style
	Value       lipgloss.Style
	Highlight   lipgloss.Style
	Error       lipgloss.Style
	Loading     lipgloss.Style
	Success     lipgloss.Style
	Bar         lipgloss.Style
	BarEmpty    lipgloss.Style
}

// NewStyles creates a new Styles instance with default values
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginBottom(1),
		Section: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")),
		Dim: lipgloss.NewStyle().Faint(true),
		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Help: lipgloss.NewStyle().Faint(true),
		Main: lipgloss.NewStyle().
			Padding(1, 2),
		Pane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("241")).
			Padding(0, 1),
		PaneFocused: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 1),
		PaneTitle: lipgloss.NewStyle().Bold(true),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Value:     lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true),
		Highlight: lipgloss.NewStyle().Background(lipgloss.Color("238")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("203")), // red
		Loading:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")), // gray
		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color("78")),  // green
		Bar:       lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		BarEmpty:  lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
	}
}

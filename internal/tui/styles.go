package tui

import (
	"github.com/charmbracelet/lipgloss"

	"duck/internal/events"
)

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFD23F"}
	colorTeal   = lipgloss.AdaptiveColor{Light: "#00796B", Dark: "#3DDBD9"}
	colorFg     = lipgloss.AdaptiveColor{Light: "#1A1A2E", Dark: "#FFFDF5"}
	colorDimFg  = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#7A7A7A"}
	colorBorder = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#3A3A3A"}
)

// stateColors tints everything that reports the connection state: the
// header pill, the status card and notifications.
var stateColors = map[string]lipgloss.AdaptiveColor{
	events.StateConnected:    {Light: "#2E8B57", Dark: "#3CCB7F"},
	events.StateConnecting:   {Light: "#D2691E", Dark: "#FFB347"},
	events.StateDisconnected: {Light: "#C0392B", Dark: "#FF6B6B"},
}

func stateColor(state string) lipgloss.AdaptiveColor {
	if c, ok := stateColors[state]; ok {
		return c
	}
	return stateColors[events.StateDisconnected]
}

func statePill(state string) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#101010")).
		Background(stateColor(state)).
		Padding(0, 1)
}

// stateText renders s in the colour of state.
func stateText(state, s string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(stateColor(state)).Render(s)
}

var (
	accentStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDimFg)
	ruleStyle   = lipgloss.NewStyle().Foreground(colorBorder)

	logoStyle        = accentStyle.PaddingRight(2)
	titleStyle       = accentStyle.MarginBottom(1)
	activeTabStyle   = accentStyle.Underline(true).Padding(0, 2)
	inactiveTabStyle = dimStyle.Padding(0, 2)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)
	labelStyle = dimStyle.Width(14)
	valueStyle = lipgloss.NewStyle().Foreground(colorFg)

	spinnerStyle = lipgloss.NewStyle().Foreground(colorTeal)
)

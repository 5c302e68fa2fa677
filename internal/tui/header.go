package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"duck/internal/events"
)

var tabNames = []string{"Status", "Proxies", "Settings"}

// renderHeader draws the logo, the connection pill and the tab bar. The
// pill follows the last connection state seen on the bus.
func renderHeader(activeTab int, state, modeLabel string, width int) string {
	logo := logoStyle.Render("DUCK")

	label := " DISCONNECTED "
	switch state {
	case events.StateConnecting:
		label = " CONNECTING "
	case events.StateConnected:
		label = fmt.Sprintf(" CONNECTED · %s ", modeLabel)
	}
	pill := statePill(state).Render(label)

	var tabs []string
	for i, name := range tabNames {
		if i == activeTab {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	tabBar := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	// Logo left, pill right.
	pillWidth := lipgloss.Width(pill)
	logoWidth := lipgloss.Width(logo)
	gap := width - logoWidth - pillWidth
	if gap < 1 {
		gap = 1
	}
	topRow := logo + strings.Repeat(" ", gap) + pill

	return lipgloss.JoinVertical(lipgloss.Left, topRow, tabBar, rule(width))
}

func rule(width int) string {
	return ruleStyle.Render(strings.Repeat("─", max(width, 0)))
}

func renderFooter(helpText string, width int) string {
	return lipgloss.JoinVertical(lipgloss.Left, rule(width), dimStyle.Padding(0, 1).Render(helpText))
}

func renderHelpBar(showFull bool) string {
	if showFull {
		return renderFullHelp()
	}
	return renderShortHelp()
}

func renderShortHelp() string {
	bindings := keys.ShortHelp()
	var parts []string
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		parts = append(parts, helpEntry(b))
	}
	return strings.Join(parts, ruleStyle.Render(" | "))
}

func renderFullHelp() string {
	groups := keys.FullHelp()
	var lines []string
	for _, group := range groups {
		var parts []string
		for _, b := range group {
			if !b.Enabled() {
				continue
			}
			parts = append(parts, helpEntry(b))
		}
		lines = append(lines, strings.Join(parts, "  "))
	}
	return strings.Join(lines, "\n")
}

func helpEntry(b key.Binding) string {
	return accentStyle.Render(b.Help().Key) + " " + dimStyle.Render(b.Help().Desc)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

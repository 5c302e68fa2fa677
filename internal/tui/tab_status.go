package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"duck/internal/events"
	"duck/internal/mode"
)

type statusModel struct {
	width  int
	height int

	// stateChangedAt is the time of the last state event, zero until one
	// arrives.
	stateChangedAt time.Time
}

func newStatusModel() statusModel {
	return statusModel{}
}

func (sm *statusModel) setSize(w, h int) {
	sm.width = w
	sm.height = h
}

func (sm *statusModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	return nil
}

func (sm *statusModel) View(root *Model) string {
	cfg := root.settingsTab.current

	connRows := []string{
		sm.row("State", sm.renderState(root.state)),
		sm.row("Mode", root.mode.String()),
		sm.row("Routes", describeRoutes(root.mode)),
	}
	if !sm.stateChangedAt.IsZero() {
		connRows = append(connRows,
			sm.row("Since", sm.stateChangedAt.Format("15:04:05")),
			sm.row("Elapsed", formatDuration(time.Since(sm.stateChangedAt))),
		)
	}
	if sel := root.proxiesTab.selector; sel != nil {
		connRows = append(connRows, sm.row("Proxy", fmt.Sprintf("%s / %s", sel.Name, sel.CurrentProxy)))
	}

	connCard := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{titleStyle.Render("Connection")}, connRows...)...,
	)

	flagRows := []string{
		sm.row("System proxy", renderFlag(cfg.EnableSystemProxy)),
		sm.row("TUN", renderFlag(cfg.EnableTunMode)),
		sm.row("Mixed port", fmt.Sprintf("%d", cfg.MixedPort)),
		sm.row("Controller", cfg.ControllerAddr),
	}
	flagCard := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{titleStyle.Render("Flags")}, flagRows...)...,
	)

	w := sm.width - 6
	if w < 30 {
		w = 30
	}

	var content string
	if sm.width > 80 {
		halfW := (w - 4) / 2
		left := cardStyle.Width(halfW).Render(connCard)
		right := cardStyle.Width(halfW).Render(flagCard)
		content = lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
	} else {
		content = lipgloss.JoinVertical(lipgloss.Left,
			cardStyle.Width(w).Render(connCard),
			cardStyle.Width(w).Render(flagCard),
		)
	}
	if root.state == events.StateDisconnected {
		content = lipgloss.JoinVertical(lipgloss.Left, content,
			dimStyle.Render("Press space to connect, m to change mode"))
	}
	return forceHeight(content, sm.width, sm.height)
}

func (sm *statusModel) renderState(state string) string {
	switch state {
	case events.StateConnected:
		return stateText(state, "Connected")
	case events.StateConnecting:
		return stateText(state, "Connecting")
	default:
		return stateText(events.StateDisconnected, "Disconnected")
	}
}

func (sm *statusModel) row(label, value string) string {
	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

func describeRoutes(m mode.ConnectionMode) string {
	switch {
	case m.UsesTun() && m.UsesSystemProxy():
		return "system proxy + TUN"
	case m.UsesTun():
		return "TUN"
	default:
		return "system proxy"
	}
}

func renderFlag(b *bool) string {
	if b != nil && *b {
		return stateText(events.StateConnected, "on")
	}
	return dimStyle.Render("off")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

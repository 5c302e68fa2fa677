package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"duck/internal/latency"
	"duck/internal/settings"
)

// loadSelector fetches the current selector group.
func loadSelector(sel Selector) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return selectorLoadedMsg{selector: sel.GetSelector(ctx)}
	}
}

// loadSettings snapshots the shared configuration.
func loadSettings(store *settings.Store) tea.Cmd {
	return func() tea.Msg {
		return settingsLoadedMsg{settings: store.Latest()}
	}
}

// toggle runs a toggle and waits for it off the UI goroutine. State changes
// arrive separately as bus events.
func toggle(t Toggler) tea.Cmd {
	return func() tea.Msg {
		err := t.Toggle(context.Background()).Wait()
		return taskDoneMsg{op: "toggle", err: err}
	}
}

func disconnect(t Toggler) tea.Cmd {
	return func() tea.Msg {
		err := t.Disconnect(context.Background()).Wait()
		return taskDoneMsg{op: "disconnect", err: err}
	}
}

// applyMode moves a live connection onto the current mode.
func applyMode(t Toggler) tea.Cmd {
	return func() tea.Msg {
		err := t.Apply(context.Background()).Wait()
		return taskDoneMsg{op: "apply", err: err}
	}
}

func setMode(modes ModeStore, raw string) tea.Cmd {
	return func() tea.Msg {
		m, err := modes.Set(raw)
		return modeSetMsg{mode: m, err: err}
	}
}

func selectProxy(sel Selector, group, proxy string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return proxySelectedMsg{proxy: proxy, err: sel.SetCurrentProxy(ctx, group, proxy)}
	}
}

// testBatchLatency tests every proxy with progress reporting via program.Send.
func testBatchLatency(tester LatencyTester, proxies []string, p *tea.Program) tea.Cmd {
	return func() tea.Msg {
		progress := func(result *latency.TestResult, current, total int) {
			if p != nil {
				p.Send(latencyTestProgressMsg{result: result, current: current, total: total})
			}
		}
		batch := tester.TestBatch(context.Background(), proxies, progress)
		return latencyTestDoneMsg{batch: batch}
	}
}

// saveSetting validates and stores a single setting.
func saveSetting(store *settings.Store, key, value string) tea.Cmd {
	return func() tea.Msg {
		err := store.Set(context.Background(), key, value)
		return settingSavedMsg{key: key, err: err}
	}
}

// clearNotification returns a command that fires after a delay.
func clearNotification(d time.Duration, version int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearNotificationMsg{version: version}
	})
}

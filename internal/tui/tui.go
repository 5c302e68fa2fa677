package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"duck/internal/connection"
	"duck/internal/events"
	"duck/internal/latency"
	"duck/internal/mode"
	"duck/internal/settings"
)

// Tab indices.
const (
	tabStatus   = 0
	tabProxies  = 1
	tabSettings = 2
	tabCount    = 3
)

// ModeStore reads and writes the persisted connection mode.
type ModeStore interface {
	Get() mode.ConnectionMode
	Set(raw string) (mode.ConnectionMode, error)
}

// Toggler runs connection transitions.
type Toggler interface {
	Toggle(ctx context.Context) *connection.Task
	Disconnect(ctx context.Context) *connection.Task
	Apply(ctx context.Context) *connection.Task
}

// Selector reads and switches the selector group.
type Selector interface {
	GetSelector(ctx context.Context) *connection.ProxySelector
	SetCurrentProxy(ctx context.Context, group, proxy string) error
}

// LatencyTester tests a batch of proxies.
type LatencyTester interface {
	TestBatch(ctx context.Context, proxies []string, progress latency.ProgressFunc) *latency.BatchResult
}

// Deps holds all dependencies injected into the TUI. Bus may be nil, in
// which case the header only reflects the state read at startup.
type Deps struct {
	Modes        ModeStore
	Toggler      Toggler
	Selector     Selector
	Connectivity connection.Connectivity
	Settings     *settings.Store
	Tester       LatencyTester
	Bus          *events.Bus
}

// Model is the root BubbleTea model.
type Model struct {
	deps    Deps
	program *tea.Program

	width  int
	height int

	activeTab int
	showHelp  bool

	// Last values seen on the bus.
	state string
	mode  mode.ConnectionMode
	busy  bool

	statusTab   statusModel
	proxiesTab  proxiesModel
	settingsTab settingsModel

	notification    string
	notificationErr bool
	notifVersion    int

	spinner spinner.Model
}

// NewModel creates a new root Model.
func NewModel(deps Deps) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	state := events.StateDisconnected
	if deps.Connectivity != nil && deps.Connectivity.IsConnected() {
		state = events.StateConnected
	}

	return &Model{
		deps:        deps,
		activeTab:   tabStatus,
		state:       state,
		mode:        deps.Modes.Get(),
		spinner:     s,
		statusTab:   newStatusModel(),
		proxiesTab:  newProxiesModel(),
		settingsTab: newSettingsModel(),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		loadSelector(m.deps.Selector),
		loadSettings(m.deps.Settings),
		m.spinner.Tick,
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	prevNotifVersion := m.notifVersion

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		ch := m.contentHeight()
		m.statusTab.setSize(msg.Width, ch)
		m.proxiesTab.setSize(msg.Width, ch)
		m.settingsTab.setSize(msg.Width, ch)
		return m, nil

	case tea.KeyMsg:
		if cmd := m.handleGlobalKey(msg); cmd != nil {
			return m, cmd
		}

	case busEventMsg:
		cmds = append(cmds, m.handleEvent(msg.event))

	// Data loading.
	case selectorLoadedMsg:
		m.proxiesTab.setSelector(msg.selector)
	case settingsLoadedMsg:
		m.settingsTab.setSettings(msg.settings)

	// Transitions.
	case taskDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("%s failed: %v", msg.op, msg.err), true)
		}
		cmds = append(cmds, loadSettings(m.deps.Settings))
	case modeSetMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Mode change failed: %v", msg.err), true)
		} else {
			m.mode = msg.mode
		}
	case proxySelectedMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Select failed: %v", msg.err), true)
		} else {
			m.setNotification(fmt.Sprintf("Switched to %s", msg.proxy), false)
		}

	// Latency.
	case latencyTestProgressMsg:
		m.proxiesTab.updateProgress(msg)
	case latencyTestDoneMsg:
		m.proxiesTab.setResults(msg.batch)
		m.setNotification(
			fmt.Sprintf("Tested %d: %d ok, %d failed",
				msg.batch.Tested, msg.batch.Succeeded, msg.batch.Failed), false)

	// Settings.
	case settingSavedMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Save failed: %v", msg.err), true)
		} else {
			m.setNotification(fmt.Sprintf("Saved %s", msg.key), false)
		}
		cmds = append(cmds, loadSettings(m.deps.Settings))

	case clearNotificationMsg:
		if msg.version == m.notifVersion {
			m.notification = ""
			m.notificationErr = false
		}
	}

	if m.busy || m.proxiesTab.testing {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Schedule notification auto-clear when a new notification was set.
	if m.notifVersion > prevNotifVersion && m.notification != "" {
		cmds = append(cmds, clearNotification(4*time.Second, m.notifVersion))
	}

	switch m.activeTab {
	case tabStatus:
		cmds = append(cmds, m.statusTab.Update(msg, m))
	case tabProxies:
		cmds = append(cmds, m.proxiesTab.Update(msg, m))
	case tabSettings:
		cmds = append(cmds, m.settingsTab.Update(msg, m))
	}

	return m, tea.Batch(cmds...)
}

// handleEvent applies a bus notification to the model.
func (m *Model) handleEvent(ev events.Event) tea.Cmd {
	switch ev.Name {
	case events.ConnectionStateChanged:
		var payload events.ConnectionState
		if err := ev.Decode(&payload); err != nil {
			return nil
		}
		m.state = payload.State
		m.statusTab.stateChangedAt = ev.Time
	case events.ConnectionModeChanged:
		m.mode = m.deps.Modes.Get()
	case events.ProxyChanged:
		var payload events.ProxyChange
		if err := ev.Decode(&payload); err != nil {
			return nil
		}
		m.proxiesTab.setCurrent(payload.Proxy)
		return loadSelector(m.deps.Selector)
	}
	return nil
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := renderHeader(m.activeTab, m.state, m.mode.Lower(), m.width)

	var content string
	switch m.activeTab {
	case tabStatus:
		content = m.statusTab.View(m)
	case tabProxies:
		content = m.proxiesTab.View(m.spinner)
	case tabSettings:
		content = m.settingsTab.View()
	}

	var notif string
	if m.notification != "" {
		if m.notificationErr {
			notif = stateText(events.StateDisconnected, " ! "+m.notification)
		} else {
			notif = stateText(events.StateConnected, " * "+m.notification)
		}
	}

	helpText := renderHelpBar(m.showHelp)
	footer := renderFooter(helpText, m.width)

	parts := []string{header}
	if notif != "" {
		parts = append(parts, notif)
	}
	parts = append(parts, content, footer)
	output := lipgloss.JoinVertical(lipgloss.Left, parts...)

	// Force exactly m.height lines to prevent BubbleTea rendering drift.
	return forceHeight(output, m.width, m.height)
}

// forceHeight ensures the string has exactly `height` lines, each padded to `width`.
// This prevents BubbleTea from leaving ghost lines when switching tabs.
func forceHeight(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	blank := strings.Repeat(" ", width)
	for len(lines) < height {
		lines = append(lines, blank)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) contentHeight() int {
	overhead := 5
	if m.showHelp {
		overhead += 3
	}
	h := m.height - overhead
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) handleGlobalKey(msg tea.KeyMsg) tea.Cmd {
	if m.activeTab == tabSettings && m.settingsTab.editing {
		return nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		return nil

	case key.Matches(msg, keys.TabNext):
		m.activeTab = (m.activeTab + 1) % tabCount
		return nil

	case key.Matches(msg, keys.TabPrev):
		m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		return nil

	case key.Matches(msg, keys.Toggle):
		if m.busy {
			return nil
		}
		m.busy = true
		return toggle(m.deps.Toggler)

	case key.Matches(msg, keys.Disconnect):
		if m.busy || m.state == events.StateDisconnected {
			return nil
		}
		m.busy = true
		return disconnect(m.deps.Toggler)

	case key.Matches(msg, keys.Mode):
		return setMode(m.deps.Modes, m.mode.Next().Lower())

	case key.Matches(msg, keys.Apply):
		if m.busy || m.state != events.StateConnected {
			return nil
		}
		m.busy = true
		return applyMode(m.deps.Toggler)

	case key.Matches(msg, keys.Refresh):
		return tea.Batch(
			loadSelector(m.deps.Selector),
			loadSettings(m.deps.Settings),
		)
	}

	return nil
}

func (m *Model) setNotification(text string, isErr bool) {
	m.notification = text
	m.notificationErr = isErr
	m.notifVersion++
}

// eventBuffer bounds how many bus events may queue before the program
// drains them.
const eventBuffer = 64

// NewProgram creates a bubbletea program with alt screen. The returned stop
// function detaches the model from the bus and must be called once the
// program exits.
func NewProgram(deps Deps) (*tea.Program, func()) {
	m := NewModel(deps)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.program = p

	if deps.Bus == nil {
		return p, func() {}
	}

	ch := make(chan events.Event, eventBuffer)
	unsubscribe := deps.Bus.Subscribe(events.ChannelSink(ch))
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case ev := <-ch:
				p.Send(busEventMsg{event: ev})
			}
		}
	}()

	return p, func() {
		unsubscribe()
		close(done)
	}
}

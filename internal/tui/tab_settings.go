package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"duck/internal/settings"
)

// settingKind distinguishes free-text settings from choice-based settings.
type settingKind int

const (
	settingText     settingKind = iota // Free-text input.
	settingChoice                      // Cycle through predefined options.
	settingReadOnly                    // Owned by the connection orchestrator.
)

// settingDef defines a setting's display metadata.
type settingDef struct {
	key         string
	label       string
	description string
	kind        settingKind
	choices     []string // Only for settingChoice.
}

var settingDefs = []settingDef{
	{key: settings.KeyEnableSystemProxy, label: "System Proxy", description: "Set by toggle and disconnect", kind: settingReadOnly},
	{key: settings.KeyEnableTunMode, label: "TUN", description: "Set by toggle and disconnect", kind: settingReadOnly},
	{key: settings.KeyMixedPort, label: "Mixed Port", description: "Engine mixed HTTP/SOCKS port", kind: settingText},
	{key: settings.KeyControllerAddr, label: "Controller", description: "Engine controller address", kind: settingText},
	{key: settings.KeyControllerSecret, label: "Secret", description: "Engine controller secret", kind: settingText},
	{key: settings.KeyProxyBypass, label: "Proxy Bypass", description: "Comma separated hosts skipping the system proxy", kind: settingText},
	{key: settings.KeyTunBypass, label: "TUN Bypass", description: "Comma separated IPs routed outside the TUN device", kind: settingText},
	{key: settings.KeyLatencyTestURL, label: "Test URL", description: "URL fetched by delay tests", kind: settingText},
	{key: settings.KeyLatencyTestTimeout, label: "Test Timeout", description: "Delay test timeout (ms)", kind: settingText},
	{key: settings.KeyLatencyTestWorkers, label: "Test Workers", description: "Concurrent delay tests", kind: settingText},
	{key: settings.KeyTrayRefreshInterval, label: "Tray Refresh", description: "Menu refresh interval (s)", kind: settingText},
	{key: settings.KeyAPIAddr, label: "API Address", description: "Loopback address of the control API", kind: settingText},
	{key: settings.KeyAPISecret, label: "API Token", description: "Bearer token required by the control API", kind: settingText},
	{key: settings.KeyAPIAllowedOrigins, label: "API Origins", description: "Comma separated browser origins allowed to call the API", kind: settingText},
	{key: settings.KeyLogLevel, label: "Log Level", description: "Logging verbosity", kind: settingChoice, choices: []string{"debug", "info", "warn", "error"}},
}

type settingsModel struct {
	current settings.Settings
	values  map[string]string
	cursor  int
	editing bool
	input   textinput.Model
	width   int
	height  int
}

func newSettingsModel() settingsModel {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorAccent)
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorFg)

	return settingsModel{
		current: settings.Defaults(),
		values:  settings.Defaults().Values(),
		input:   ti,
	}
}

func (sm *settingsModel) setSize(w, h int) {
	sm.width = w
	sm.height = h
	sm.input.Width = w / 2
}

func (sm *settingsModel) setSettings(s settings.Settings) {
	sm.current = s
	sm.values = s.Values()
}

func (sm *settingsModel) currentDef() settingDef {
	if sm.cursor >= 0 && sm.cursor < len(settingDefs) {
		return settingDefs[sm.cursor]
	}
	return settingDefs[0]
}

func (sm *settingsModel) currentValue() string {
	return sm.values[sm.currentDef().key]
}

// choiceIndex returns the current index in the choices slice for a choice setting.
func (sm *settingsModel) choiceIndex(def settingDef) int {
	val := sm.currentValue()
	for i, c := range def.choices {
		if c == val {
			return i
		}
	}
	return 0
}

func (sm *settingsModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	if sm.editing {
		return sm.updateEditing(msg, root)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		def := sm.currentDef()

		switch msg.String() {
		case "up", "k":
			if sm.cursor > 0 {
				sm.cursor--
			}
		case "down", "j":
			if sm.cursor < len(settingDefs)-1 {
				sm.cursor++
			}
		case "enter":
			switch def.kind {
			case settingChoice:
				return sm.cycleChoice(root, 1)
			case settingText:
				sm.editing = true
				sm.input.SetValue(sm.currentValue())
				sm.input.Focus()
				return textinput.Blink
			}
		case "left", "h":
			if def.kind == settingChoice {
				return sm.cycleChoice(root, -1)
			}
		case "right", "l":
			if def.kind == settingChoice {
				return sm.cycleChoice(root, 1)
			}
		}
	}
	return nil
}

// cycleChoice moves to the next/prev choice and saves it.
func (sm *settingsModel) cycleChoice(root *Model, dir int) tea.Cmd {
	def := sm.currentDef()
	idx := sm.choiceIndex(def)
	idx = (idx + dir + len(def.choices)) % len(def.choices)
	val := def.choices[idx]
	sm.values[def.key] = val
	return saveSetting(root.deps.Settings, def.key, val)
}

func (sm *settingsModel) updateEditing(msg tea.Msg, root *Model) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Back):
			sm.editing = false
			sm.input.Blur()
			return nil
		case msg.String() == "enter":
			sm.editing = false
			sm.input.Blur()
			def := sm.currentDef()
			val := sm.input.Value()
			sm.values[def.key] = val
			return saveSetting(root.deps.Settings, def.key, val)
		}
	}

	var cmd tea.Cmd
	sm.input, cmd = sm.input.Update(msg)
	return cmd
}

func (sm *settingsModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n\n")

	for i, def := range settingDefs {
		isSelected := i == sm.cursor
		val := sm.values[def.key]
		if settings.IsSecret(def.key) && val != "" {
			val = strings.Repeat("*", 8)
		}

		var line string
		if isSelected {
			label := lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Width(18).Render("> " + def.label)
			switch {
			case sm.editing:
				line = label + sm.input.View()
			case def.kind == settingChoice:
				line = label + sm.renderChoices(def, val)
			default:
				line = label + lipgloss.NewStyle().Foreground(colorFg).Render(val)
			}
		} else {
			label := lipgloss.NewStyle().Foreground(colorFg).Width(18).Render("  " + def.label)
			line = label + lipgloss.NewStyle().Foreground(colorDimFg).Render(val)
		}

		b.WriteString(line + "\n")

		if isSelected && !sm.editing {
			hint := def.description
			switch def.kind {
			case settingChoice:
				hint += "  (enter/arrows to change)"
			case settingText:
				hint += "  (enter to edit)"
			}
			b.WriteString(lipgloss.NewStyle().
				Foreground(colorDimFg).
				PaddingLeft(2).
				Render("  "+hint) + "\n")
		}
	}

	return forceHeight(b.String(), sm.width, sm.height)
}

// renderChoices renders the choice selector with the active choice highlighted.
func (sm *settingsModel) renderChoices(def settingDef, current string) string {
	var parts []string
	for _, c := range def.choices {
		if c == current {
			parts = append(parts, lipgloss.NewStyle().
				Bold(true).
				Foreground(colorAccent).
				Render("["+c+"]"))
		} else {
			parts = append(parts, lipgloss.NewStyle().
				Foreground(colorDimFg).
				Render(" "+c+" "))
		}
	}
	return strings.Join(parts, " ")
}

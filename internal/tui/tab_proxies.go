package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"duck/internal/connection"
	"duck/internal/latency"
)

type proxiesModel struct {
	table    table.Model
	selector *connection.ProxySelector
	delays   map[string]*latency.TestResult
	width    int
	height   int

	testing       bool
	batchProgress progress.Model
	batchCurrent  int
	batchTotal    int
}

func proxyColumns(nameWidth int) []table.Column {
	return []table.Column{
		{Title: " ", Width: 2},
		{Title: "Proxy", Width: nameWidth},
		{Title: "Delay", Width: 10},
	}
}

func newProxiesModel() proxiesModel {
	t := table.New(
		table.WithColumns(proxyColumns(40)),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(colorAccent)
	s.Selected = s.Selected.
		Foreground(colorFg).
		Background(lipgloss.AdaptiveColor{Light: "#FFF4CC", Dark: "#3A3212"}).
		Bold(true)
	t.SetStyles(s)

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithoutPercentage(),
	)

	return proxiesModel{
		table:         t,
		delays:        make(map[string]*latency.TestResult),
		batchProgress: p,
	}
}

func (pm *proxiesModel) setSize(w, h int) {
	pm.width = w
	pm.height = h
	pm.adjustTableHeight()
	if w > 40 {
		pm.table.SetColumns(proxyColumns(w - 20))
	}
	pm.batchProgress.Width = w - 4
}

// adjustTableHeight leaves room for the group line and, while testing, the
// progress line.
func (pm *proxiesModel) adjustTableHeight() {
	overhead := 1
	if pm.testing {
		overhead++
	}
	th := pm.height - overhead
	if th < 1 {
		th = 1
	}
	pm.table.SetHeight(th)
}

func (pm *proxiesModel) setSelector(sel *connection.ProxySelector) {
	pm.selector = sel
	pm.refreshRows()
}

// setCurrent marks proxy as selected before the reload lands.
func (pm *proxiesModel) setCurrent(proxy string) {
	if pm.selector == nil {
		return
	}
	pm.selector.CurrentProxy = proxy
	pm.refreshRows()
}

func (pm *proxiesModel) refreshRows() {
	if pm.selector == nil {
		pm.table.SetRows(nil)
		return
	}
	rows := make([]table.Row, len(pm.selector.Proxies))
	for i, name := range pm.selector.Proxies {
		marker := ""
		if name == pm.selector.CurrentProxy {
			marker = "*"
		}
		rows[i] = table.Row{marker, truncate(name, 60), pm.delayText(name)}
	}
	pm.table.SetRows(rows)
}

func (pm *proxiesModel) delayText(name string) string {
	r, ok := pm.delays[name]
	switch {
	case !ok:
		return "-"
	case !r.Success:
		return "fail"
	default:
		return fmt.Sprintf("%dms", r.LatencyMS)
	}
}

func (pm *proxiesModel) selectedProxy() string {
	if pm.selector == nil {
		return ""
	}
	idx := pm.table.Cursor()
	if idx >= 0 && idx < len(pm.selector.Proxies) {
		return pm.selector.Proxies[idx]
	}
	return ""
}

func (pm *proxiesModel) updateProgress(msg latencyTestProgressMsg) {
	pm.batchCurrent = msg.current
	pm.batchTotal = msg.total
	if msg.result != nil {
		pm.delays[msg.result.Proxy] = msg.result
	}
}

func (pm *proxiesModel) setResults(batch *latency.BatchResult) {
	pm.testing = false
	for _, r := range batch.Results {
		pm.delays[r.Proxy] = r
	}
	pm.adjustTableHeight()
	pm.refreshRows()
}

func (pm *proxiesModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Enter):
			name := pm.selectedProxy()
			if name != "" && name != pm.selector.CurrentProxy {
				return selectProxy(root.deps.Selector, pm.selector.Name, name)
			}
			return nil

		case key.Matches(msg, keys.Test):
			if pm.selector == nil || len(pm.selector.Proxies) == 0 || pm.testing || root.deps.Tester == nil {
				return nil
			}
			pm.testing = true
			pm.batchCurrent = 0
			pm.batchTotal = len(pm.selector.Proxies)
			pm.adjustTableHeight()
			return testBatchLatency(root.deps.Tester, pm.selector.Proxies, root.program)
		}
	}

	var cmd tea.Cmd
	pm.table, cmd = pm.table.Update(msg)
	return cmd
}

func (pm *proxiesModel) View(s spinner.Model) string {
	var b strings.Builder

	if pm.selector == nil {
		b.WriteString(dimStyle.Render("Engine not running or no selector group"))
		return forceHeight(b.String(), pm.width, pm.height)
	}

	b.WriteString(dimStyle.Render(fmt.Sprintf("Group: %s  Current: %s", pm.selector.Name, pm.selector.CurrentProxy)))
	b.WriteString("\n")

	if pm.testing {
		pct := 0.0
		if pm.batchTotal > 0 {
			pct = float64(pm.batchCurrent) / float64(pm.batchTotal)
		}
		b.WriteString(fmt.Sprintf("%s Testing %d/%d ", s.View(), pm.batchCurrent, pm.batchTotal))
		b.WriteString(pm.batchProgress.ViewAs(pct))
		b.WriteString("\n")
	}

	b.WriteString(pm.table.View())

	return forceHeight(b.String(), pm.width, pm.height)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-1] + "~"
}

// Package tray keeps the tray menu model in sync with connection state.
package tray

import (
	"context"
	"sync"
	"time"

	"duck/internal/connection"
	"duck/internal/events"
	"duck/internal/mode"
)

// Item is a menu entry.
type Item struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Checked bool   `json:"checked,omitempty"`
}

// Model is the full menu as rendered by a tray host.
type Model struct {
	State    string                    `json:"state"`
	Modes    []Item                    `json:"modes"`
	Selector *connection.ProxySelector `json:"selector,omitempty"`
	Proxies  []Item                    `json:"proxies,omitempty"`
	Updated  time.Time                 `json:"updated"`
}

// SelectorSource loads the current selector group, or nil.
type SelectorSource interface {
	GetSelector(ctx context.Context) *connection.ProxySelector
}

// EngineSelector reads the selector group straight from an engine.
type EngineSelector struct {
	Engine connection.Engine
}

func (s EngineSelector) GetSelector(ctx context.Context) *connection.ProxySelector {
	return connection.LoadSelector(ctx, s.Engine)
}

// Menu builds Models and hands them to observers.
type Menu struct {
	modes    connection.ModeReader
	conn     connection.Connectivity
	selector SelectorSource

	mu        sync.RWMutex
	current   Model
	observers []observer
	nextID    int
}

type observer struct {
	id int
	fn func(Model)
}

// NewMenu returns a Menu. selector may be nil, in which case no proxies are
// listed.
func NewMenu(modes connection.ModeReader, conn connection.Connectivity, selector SelectorSource) *Menu {
	return &Menu{modes: modes, conn: conn, selector: selector}
}

// Observe registers fn to receive every rebuilt model. The returned func
// removes it again.
func (m *Menu) Observe(fn func(Model)) (remove func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.observers = append(m.observers, observer{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, o := range m.observers {
			if o.id == id {
				m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

// Current returns the last built model.
func (m *Menu) Current() Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// UpdateMenu rebuilds the model and notifies observers.
func (m *Menu) UpdateMenu() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	model := m.build(ctx)

	m.mu.Lock()
	m.current = model
	observers := append([]observer(nil), m.observers...)
	m.mu.Unlock()

	for _, o := range observers {
		o.fn(model)
	}
	return nil
}

// OnEvent is a bus handler rebuilding the menu when the mode changes.
// State and proxy changes already refresh through the orchestrators.
func (m *Menu) OnEvent(ev events.Event) error {
	if ev.Name != events.ConnectionModeChanged {
		return nil
	}
	return m.UpdateMenu()
}

func (m *Menu) build(ctx context.Context) Model {
	model := Model{State: events.StateDisconnected, Updated: time.Now()}
	if m.conn.IsConnected() {
		model.State = events.StateConnected
	}

	current := m.modes.Get()
	for _, cm := range mode.Modes {
		model.Modes = append(model.Modes, Item{
			ID:      "mode:" + cm.Lower(),
			Label:   cm.String(),
			Checked: cm == current,
		})
	}

	if m.selector == nil {
		return model
	}
	sel := m.selector.GetSelector(ctx)
	if sel == nil {
		return model
	}
	model.Selector = sel
	for _, name := range sel.Proxies {
		model.Proxies = append(model.Proxies, Item{
			ID:      "proxy:" + name,
			Label:   name,
			Checked: name == sel.CurrentProxy,
		})
	}
	return model
}

package connection

import (
	"context"
	"errors"
	"sync"

	"duck/internal/connectivity"
	"duck/internal/engine"
	"duck/internal/events"
	"duck/internal/mode"
	"duck/internal/settings"
	apperrors "duck/pkg/errors"
)

type fixedMode struct{ m mode.ConnectionMode }

func (f fixedMode) Get() mode.ConnectionMode { return f.m }

type recordedEvent struct {
	name    string
	payload any
}

type recordingBus struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBus) Emit(name string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{name, payload})
}

// states returns the connection states emitted so far.
func (b *recordingBus) states() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, ev := range b.events {
		if st, ok := ev.payload.(events.ConnectionState); ok && ev.name == events.ConnectionStateChanged {
			out = append(out, st.State)
		}
	}
	return out
}

func (b *recordingBus) named(name string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedEvent
	for _, ev := range b.events {
		if ev.name == name {
			out = append(out, ev)
		}
	}
	return out
}

type fakeGate struct {
	mu      sync.Mutex
	calls   []mode.ConnectionMode
	err     error
	release chan struct{}
}

func (g *fakeGate) EnsureAvailableFor(_ context.Context, m mode.ConnectionMode) error {
	g.mu.Lock()
	g.calls = append(g.calls, m)
	release := g.release
	g.mu.Unlock()

	if release != nil {
		<-release
	}
	if !m.UsesTun() {
		return nil
	}
	return g.err
}

func (g *fakeGate) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// storePatcher commits patches straight to the settings store.
type storePatcher struct {
	store   *settings.Store
	err     error
	patches int
	mu      sync.Mutex
}

func (p *storePatcher) Patch(ctx context.Context, patch settings.Patch, persist bool) error {
	p.mu.Lock()
	p.patches++
	p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	return p.store.Apply(ctx, patch, persist)
}

type fakeEngine struct {
	mu         sync.Mutex
	down       bool
	providers  *engine.ProvidersResponse
	setErr     error
	closeCalls int
	setCalls   [][2]string
}

func (e *fakeEngine) IsRunning(context.Context) error {
	if e.down {
		return errors.New("connection refused")
	}
	return nil
}

func (e *fakeEngine) CloseAllConnections(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeCalls++
	return nil
}

func (e *fakeEngine) SetProxy(_ context.Context, encodedGroup, proxy string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.setErr != nil {
		return e.setErr
	}
	e.setCalls = append(e.setCalls, [2]string{encodedGroup, proxy})
	return nil
}

func (e *fakeEngine) GetProvidersProxies(context.Context) (*engine.ProvidersResponse, error) {
	if e.providers == nil {
		return nil, errors.New("no providers")
	}
	return e.providers, nil
}

func (e *fakeEngine) closes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeCalls
}

type countingTray struct {
	mu      sync.Mutex
	updates int
}

func (c *countingTray) UpdateMenu() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates++
	return nil
}

type harness struct {
	store   *settings.Store
	gate    *fakeGate
	patcher *storePatcher
	engine  *fakeEngine
	bus     *recordingBus
	tray    *countingTray
	orch    *Orchestrator
}

func newHarness(m mode.ConnectionMode, initial settings.Patch) *harness {
	store := settings.NewStore(settings.Defaults(), nil)
	store.Apply(context.Background(), initial, false)

	h := &harness{
		store:   store,
		gate:    &fakeGate{},
		patcher: &storePatcher{store: store},
		engine:  &fakeEngine{},
		bus:     &recordingBus{},
		tray:    &countingTray{},
	}
	h.orch = NewOrchestrator(Deps{
		Modes:        fixedMode{m},
		Connectivity: connectivity.New(store),
		Gate:         h.gate,
		Patcher:      h.patcher,
		Engine:       h.engine,
		Bus:          h.bus,
		Tray:         h.tray,
	})
	return h
}

func (h *harness) flags() (tun, proxy bool) {
	cfg := h.store.Latest()
	return cfg.EnableTunMode != nil && *cfg.EnableTunMode,
		cfg.EnableSystemProxy != nil && *cfg.EnableSystemProxy
}

var errInstall = &apperrors.ServiceError{Mode: "tun", Err: apperrors.ErrServiceInstallFailed}

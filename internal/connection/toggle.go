package connection

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"duck/internal/core"
	"duck/internal/events"
	"duck/internal/settings"
)

// Orchestrator switches the connectivity flags on and off according to the
// persisted mode.
type Orchestrator struct {
	modes   ModeReader
	conn    Connectivity
	gate    ServiceGate
	patcher core.Patcher
	engine  Engine
	bus     events.Emitter
	tray    MenuRefresher

	// sem admits one transition at a time. Queued transitions re-read mode
	// and connectivity once they run.
	sem *semaphore.Weighted
}

// Deps are the collaborators of an Orchestrator. Tray may be nil.
type Deps struct {
	Modes        ModeReader
	Connectivity Connectivity
	Gate         ServiceGate
	Patcher      core.Patcher
	Engine       Engine
	Bus          events.Emitter
	Tray         MenuRefresher
}

// NewOrchestrator returns an Orchestrator wired to d.
func NewOrchestrator(d Deps) *Orchestrator {
	return &Orchestrator{
		modes:   d.Modes,
		conn:    d.Connectivity,
		gate:    d.Gate,
		patcher: d.Patcher,
		engine:  d.Engine,
		bus:     d.Bus,
		tray:    d.Tray,
		sem:     semaphore.NewWeighted(1),
	}
}

// Toggle connects when disconnected and disconnects when connected. When
// connecting, "connecting" is emitted before Toggle returns.
func (o *Orchestrator) Toggle(ctx context.Context) *Task {
	if !o.conn.IsConnected() {
		o.emitState(events.StateConnecting)
	}
	ctx = context.WithoutCancel(ctx)
	return spawn(func() error {
		return o.exclusive(ctx, func() error { return o.toggle(ctx) })
	})
}

// Disconnect turns both flags off whatever the current state.
func (o *Orchestrator) Disconnect(ctx context.Context) *Task {
	o.emitState(events.StateConnecting)
	ctx = context.WithoutCancel(ctx)
	return spawn(func() error {
		return o.exclusive(ctx, func() error { return o.disconnect(ctx) })
	})
}

// Apply re-applies the flags of the current mode to a live connection, so a
// mode change takes effect without a disconnect. It does nothing when
// disconnected. On failure the previous flags stay in force.
func (o *Orchestrator) Apply(ctx context.Context) *Task {
	ctx = context.WithoutCancel(ctx)
	return spawn(func() error {
		return o.exclusive(ctx, func() error { return o.apply(ctx) })
	})
}

func (o *Orchestrator) exclusive(ctx context.Context, fn func() error) error {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer o.sem.Release(1)
	return fn()
}

func (o *Orchestrator) toggle(ctx context.Context) error {
	m := o.modes.Get()
	wasConnected := o.conn.IsConnected()
	logger := log.WithField("mode", m.Lower()).WithField("was_connected", wasConnected)

	if !wasConnected {
		if err := o.gate.EnsureAvailableFor(ctx, m); err != nil {
			logger.WithError(err).Error("helper service unavailable")
			return err
		}
	}

	patch := settings.Patch{
		EnableTunMode:     settings.Bool(!wasConnected && m.UsesTun()),
		EnableSystemProxy: settings.Bool(!wasConnected && m.UsesSystemProxy()),
	}
	if err := o.patcher.Patch(ctx, patch, true); err != nil {
		logger.WithError(err).Error("failed to apply connection flags")
		return fmt.Errorf("toggle: %w", err)
	}

	if wasConnected {
		closeConnections(ctx, o.engine)
	}
	refreshMenu(o.tray)

	if wasConnected {
		o.emitState(events.StateDisconnected)
	} else {
		o.emitState(events.StateConnected)
	}
	logger.Info("connection toggled")
	return nil
}

func (o *Orchestrator) disconnect(ctx context.Context) error {
	patch := settings.Patch{
		EnableTunMode:     settings.Bool(false),
		EnableSystemProxy: settings.Bool(false),
	}
	if err := o.patcher.Patch(ctx, patch, true); err != nil {
		log.WithError(err).Error("failed to clear connection flags")
		return fmt.Errorf("disconnect: %w", err)
	}

	closeConnections(ctx, o.engine)
	refreshMenu(o.tray)
	o.emitState(events.StateDisconnected)
	log.Info("disconnected")
	return nil
}

func (o *Orchestrator) apply(ctx context.Context) error {
	if !o.conn.IsConnected() {
		return nil
	}
	m := o.modes.Get()
	logger := log.WithField("mode", m.Lower())

	if err := o.gate.EnsureAvailableFor(ctx, m); err != nil {
		logger.WithError(err).Error("helper service unavailable")
		return err
	}
	patch := settings.Patch{
		EnableTunMode:     settings.Bool(m.UsesTun()),
		EnableSystemProxy: settings.Bool(m.UsesSystemProxy()),
	}
	if err := o.patcher.Patch(ctx, patch, true); err != nil {
		logger.WithError(err).Error("failed to re-apply connection flags")
		return fmt.Errorf("apply: %w", err)
	}

	closeConnections(ctx, o.engine)
	refreshMenu(o.tray)
	o.emitState(events.StateConnected)
	logger.Info("connection mode applied")
	return nil
}

func (o *Orchestrator) emitState(state string) {
	o.bus.Emit(events.ConnectionStateChanged, events.ConnectionState{State: state})
}

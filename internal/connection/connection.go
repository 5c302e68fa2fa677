// Package connection drives connect/disconnect transitions and proxy
// selection against the engine.
package connection

import (
	"context"

	"github.com/sirupsen/logrus"

	"duck/internal/engine"
	"duck/internal/mode"
)

var log = logrus.WithField("component", "connection")

// ModeReader returns the persisted connection mode.
type ModeReader interface {
	Get() mode.ConnectionMode
}

// Connectivity reports whether either connectivity flag is on.
type Connectivity interface {
	IsConnected() bool
}

// ServiceGate makes sure the privileged helper is available for a mode.
type ServiceGate interface {
	EnsureAvailableFor(ctx context.Context, m mode.ConnectionMode) error
}

// Engine is the subset of the engine controller the orchestrators use.
type Engine interface {
	IsRunning(ctx context.Context) error
	CloseAllConnections(ctx context.Context) error
	SetProxy(ctx context.Context, encodedGroup, proxy string) error
	GetProvidersProxies(ctx context.Context) (*engine.ProvidersResponse, error)
}

// MenuRefresher rebuilds the tray menu after state changes.
type MenuRefresher interface {
	UpdateMenu() error
}

func refreshMenu(tray MenuRefresher) {
	if tray == nil {
		return
	}
	if err := tray.UpdateMenu(); err != nil {
		log.WithError(err).Warn("failed to refresh tray menu")
	}
}

func closeConnections(ctx context.Context, eng Engine) {
	if err := eng.CloseAllConnections(ctx); err != nil {
		log.WithError(err).Warn("failed to close engine connections")
	}
}

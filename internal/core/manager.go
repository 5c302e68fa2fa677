package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"duck/internal/settings"
	apperrors "duck/pkg/errors"
)

var log = logrus.WithField("component", "core")

// Manager applies patches one at a time.
type Manager struct {
	store *settings.Store
	tun   Applier
	proxy Applier
	mu    sync.Mutex
}

// NewManager returns a Manager using the real TUN and system proxy appliers.
func NewManager(store *settings.Store) *Manager {
	return NewManagerWith(store, TunApplier{}, SystemProxyApplier{})
}

// NewManagerWith returns a Manager using the given appliers.
func NewManagerWith(store *settings.Store, tun, proxy Applier) *Manager {
	return &Manager{store: store, tun: tun, proxy: proxy}
}

type step struct {
	field   string
	applier Applier
	want    *bool
	current bool
}

// Patch applies every flag in p that differs from the current value, then
// commits p. The current value is the committed flag, or true when the
// applier reports its state as still engaged. If a flag fails, it and the
// flags already applied by this call are reverted and nothing is committed.
func (m *Manager) Patch(ctx context.Context, p settings.Patch, persist bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := m.store.Latest()
	steps := []step{
		{settings.KeyEnableTunMode, m.tun, p.EnableTunMode, current(m.tun, cfg.EnableTunMode)},
		{settings.KeyEnableSystemProxy, m.proxy, p.EnableSystemProxy, current(m.proxy, cfg.EnableSystemProxy)},
	}

	var applied []step
	for _, s := range steps {
		if s.want == nil || *s.want == s.current {
			continue
		}
		if err := apply(ctx, s.applier, *s.want, cfg); err != nil {
			// A failed step may have left partial state behind.
			m.revert(ctx, append(applied, s), cfg)
			return &apperrors.PatchError{Field: s.field, Err: fmt.Errorf("%w: %v", apperrors.ErrPatchFailed, err)}
		}
		log.WithFields(logrus.Fields{"field": s.field, "value": *s.want}).Debug("flag applied")
		applied = append(applied, s)
	}

	if err := m.store.Apply(ctx, p, persist); err != nil {
		m.revert(ctx, applied, cfg)
		return &apperrors.PatchError{Field: "settings", Err: err}
	}
	return nil
}

func (m *Manager) revert(ctx context.Context, applied []step, cfg settings.Settings) {
	for i := len(applied) - 1; i >= 0; i-- {
		s := applied[i]
		if err := apply(ctx, s.applier, s.current, cfg); err != nil {
			log.WithError(err).WithField("field", s.field).Warn("failed to revert flag")
		}
	}
}

func apply(ctx context.Context, a Applier, enable bool, cfg settings.Settings) error {
	if enable {
		return a.Enable(ctx, cfg)
	}
	return a.Disable(ctx)
}

func current(a Applier, flag *bool) bool {
	if isSet(flag) {
		return true
	}
	e, ok := a.(Engager)
	return ok && e.Engaged()
}

func isSet(b *bool) bool { return b != nil && *b }

// Package helper manages the privileged helper daemon that owns the TUN
// device, and gates TUN-capable modes on its availability.
package helper

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"duck/internal/mode"
	apperrors "duck/pkg/errors"
)

var log = logrus.WithField("component", "helper")

// Manager checks for and installs the privileged helper.
type Manager interface {
	IsAvailable(ctx context.Context) error
	Install(ctx context.Context) error
}

// Gate makes sure the helper is running before a mode that needs it.
type Gate struct {
	manager Manager
}

// NewGate returns a Gate backed by m.
func NewGate(m Manager) *Gate {
	return &Gate{manager: m}
}

// EnsureAvailableFor returns nil for System. For Tun and Combine it checks
// the helper and, if it is not available, installs it once.
func (g *Gate) EnsureAvailableFor(ctx context.Context, m mode.ConnectionMode) error {
	if !m.UsesTun() {
		return nil
	}

	err := g.manager.IsAvailable(ctx)
	if err == nil {
		return nil
	}
	log.WithError(err).WithField("mode", m.Lower()).Info("helper not available, installing")

	if err := g.manager.Install(ctx); err != nil {
		return &apperrors.ServiceError{
			Mode: m.Lower(),
			Err:  fmt.Errorf("%w: %v", apperrors.ErrServiceInstallFailed, err),
		}
	}
	return nil
}

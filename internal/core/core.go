// Package core applies the connectivity flags to the host: the TUN device
// through the privileged helper and the OS system proxy.
package core

import (
	"context"

	"duck/internal/core/sysproxy"
	"duck/internal/core/tun"
	"duck/internal/settings"
)

// Applier turns one connectivity flag into system state. Both methods must
// be safe to call when the state is already as requested.
type Applier interface {
	Enable(ctx context.Context, cfg settings.Settings) error
	Disable(ctx context.Context) error
}

// Engager is implemented by appliers that can observe the system state they
// drive, so a disable still runs when the committed flag is already off.
type Engager interface {
	Engaged() bool
}

// Patcher applies a settings patch to the system and commits it.
type Patcher interface {
	Patch(ctx context.Context, p settings.Patch, persist bool) error
}

// TunApplier drives the TUN device owned by the helper daemon.
type TunApplier struct{}

func (TunApplier) Enable(ctx context.Context, cfg settings.Settings) error {
	return tun.Enable(ctx, cfg.MixedPort, cfg.TunBypass)
}

func (TunApplier) Disable(ctx context.Context) error {
	return tun.Disable(ctx)
}

// Engaged reports whether the device is up or an enable request is pending.
func (TunApplier) Engaged() bool {
	return tun.Active() || tun.Requested()
}

// SystemProxyApplier drives the OS system proxy.
type SystemProxyApplier struct{}

func (SystemProxyApplier) Enable(_ context.Context, cfg settings.Settings) error {
	return sysproxy.Enable(cfg.MixedPort, cfg.ProxyBypass)
}

func (SystemProxyApplier) Disable(context.Context) error {
	return sysproxy.Disable()
}

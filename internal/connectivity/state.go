package connectivity

import "duck/internal/settings"

// FlagSource exposes the live connectivity flags.
type FlagSource interface {
	Latest() settings.Settings
}

// State derives "is traffic currently routed" from the shared flags.
type State struct {
	source FlagSource
}

// New creates a State reading from source.
func New(source FlagSource) *State {
	return &State{source: source}
}

// IsConnected reports whether the system proxy or the TUN device is enabled.
// Missing flags count as disabled.
func (s *State) IsConnected() bool {
	return Connected(s.source.Latest())
}

// Connected reports whether either flag in cfg is set.
func Connected(cfg settings.Settings) bool {
	proxy := cfg.EnableSystemProxy != nil && *cfg.EnableSystemProxy
	tun := cfg.EnableTunMode != nil && *cfg.EnableTunMode
	return proxy || tun
}

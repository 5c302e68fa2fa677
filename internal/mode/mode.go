package mode

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConnectionMode is the user's declared routing intent.
type ConnectionMode int

const (
	System ConnectionMode = iota
	Tun
	Combine
)

// Default is the mode used when nothing has been persisted.
const Default = System

// Modes lists every mode in display order.
var Modes = []ConnectionMode{System, Tun, Combine}

// String returns the canonical form used in duck.yaml.
func (m ConnectionMode) String() string {
	switch m {
	case Tun:
		return "Tun"
	case Combine:
		return "Combine"
	default:
		return "System"
	}
}

// Lower returns the form exchanged with UIs and the CLI.
func (m ConnectionMode) Lower() string {
	return strings.ToLower(m.String())
}

// UsesTun reports whether the mode needs the TUN device.
func (m ConnectionMode) UsesTun() bool {
	return m == Tun || m == Combine
}

// UsesSystemProxy reports whether the mode needs the OS system proxy.
func (m ConnectionMode) UsesSystemProxy() bool {
	return m == System || m == Combine
}

// Parse maps raw UI input to a mode. Only the exact strings "system", "tun"
// and "combine" are recognised; anything else falls back to System.
func Parse(raw string) ConnectionMode {
	switch raw {
	case "tun":
		return Tun
	case "combine":
		return Combine
	default:
		return System
	}
}

// Next cycles through Modes.
func (m ConnectionMode) Next() ConnectionMode {
	return Modes[(int(m)+1)%len(Modes)]
}

// MarshalYAML writes the canonical form.
func (m ConnectionMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// UnmarshalYAML accepts only the canonical form.
func (m *ConnectionMode) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch raw {
	case "System":
		*m = System
	case "Tun":
		*m = Tun
	case "Combine":
		*m = Combine
	default:
		return fmt.Errorf("unknown connection mode %q", raw)
	}
	return nil
}

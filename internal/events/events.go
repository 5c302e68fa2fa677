package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event names consumed by UIs.
const (
	ConnectionStateChanged = "duck:change_connection_state"
	ConnectionModeChanged  = "duck:change_connection_mode"
	ProxyChanged           = "duck:change_proxy"
)

// Connection states carried by ConnectionStateChanged.
const (
	StateConnecting   = "connecting"
	StateConnected    = "connected"
	StateDisconnected = "disconnected"
)

// ConnectionState is the ConnectionStateChanged payload.
type ConnectionState struct {
	State string `json:"state"`
}

// ProxyChange is the ProxyChanged payload.
type ProxyChange struct {
	Group string `json:"group"`
	Proxy string `json:"proxy"`
}

// Event is a single emitted notification.
type Event struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Time    time.Time       `json:"time"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

func newEvent(name string, payload any) (Event, error) {
	ev := Event{
		ID:   uuid.NewString(),
		Name: name,
		Time: time.Now(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return ev, err
		}
		ev.Payload = raw
	}
	return ev, nil
}

package engine

// ProvidersResponse is the body of GET /providers/proxies.
type ProvidersResponse struct {
	Providers map[string]Provider `json:"providers"`
}

// Provider is a named collection of proxies and proxy groups.
type Provider struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	VehicleType string  `json:"vehicleType"`
	Proxies     []Proxy `json:"proxies"`
}

// Proxy is a single proxy or a proxy group. Groups carry Now and All.
type Proxy struct {
	Name    string         `json:"name"`
	Type    string         `json:"type"`
	Now     string         `json:"now,omitempty"`
	All     []string       `json:"all,omitempty"`
	History []DelayHistory `json:"history,omitempty"`
}

// DelayHistory is one recorded delay measurement.
type DelayHistory struct {
	Time  string `json:"time"`
	Delay int    `json:"delay"`
}

// Group types reported by the engine.
const (
	TypeSelector = "Selector"
	TypeURLTest  = "URLTest"
	TypeFallback = "Fallback"
)

type versionResponse struct {
	Version string `json:"version"`
	Meta    bool   `json:"meta"`
}

type delayResponse struct {
	Delay int `json:"delay"`
}

type errorResponse struct {
	Message string `json:"message"`
}

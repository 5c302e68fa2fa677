// Package settings holds the shared application configuration: the two
// connectivity flags plus the ports and addresses the other components need.
// It is loaded from the settings table and patched in place under a mutex.
package settings

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"duck/internal/storage"
	apperrors "duck/pkg/errors"
)

// Setting keys as stored in the settings table.
const (
	KeyEnableSystemProxy   = "enable_system_proxy"
	KeyEnableTunMode       = "enable_tun_mode"
	KeyMixedPort           = "mixed_port"
	KeyControllerAddr      = "controller_addr"
	KeyControllerSecret    = "controller_secret"
	KeyProxyBypass         = "proxy_bypass"
	KeyTunBypass           = "tun_bypass"
	KeyLatencyTestURL      = "latency_test_url"
	KeyLatencyTestTimeout  = "latency_test_timeout"
	KeyLatencyTestWorkers  = "latency_test_workers"
	KeyTrayRefreshInterval = "tray_refresh_interval"
	KeyAPIAddr             = "api_addr"
	KeyAPISecret           = "api_secret"
	KeyAPIAllowedOrigins   = "api_allowed_origins"
	KeyLogLevel            = "log_level"
)

// Keys lists every setting in display order.
var Keys = []string{
	KeyEnableSystemProxy,
	KeyEnableTunMode,
	KeyMixedPort,
	KeyControllerAddr,
	KeyControllerSecret,
	KeyProxyBypass,
	KeyTunBypass,
	KeyLatencyTestURL,
	KeyLatencyTestTimeout,
	KeyLatencyTestWorkers,
	KeyTrayRefreshInterval,
	KeyAPIAddr,
	KeyAPISecret,
	KeyAPIAllowedOrigins,
	KeyLogLevel,
}

// IsKnown reports whether key is a recognised setting.
func IsKnown(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// IsSecret reports whether key holds a credential that must be masked on
// display.
func IsSecret(key string) bool {
	return key == KeyControllerSecret || key == KeyAPISecret
}

// Settings is a snapshot of the application configuration.
type Settings struct {
	EnableSystemProxy *bool
	EnableTunMode     *bool

	MixedPort        int
	ControllerAddr   string
	ControllerSecret string
	ProxyBypass      []string
	TunBypass        []string

	LatencyTestURL     string
	LatencyTestTimeout time.Duration
	LatencyTestWorkers int64

	TrayRefreshInterval time.Duration
	APIAddr             string
	APISecret           string
	APIAllowedOrigins   []string
	LogLevel            string
}

// Patch carries the connectivity flags to change. Nil fields are left alone.
type Patch struct {
	EnableSystemProxy *bool
	EnableTunMode     *bool
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Defaults returns the configuration used when a key is missing.
func Defaults() Settings {
	return Settings{
		MixedPort:           7890,
		ControllerAddr:      "127.0.0.1:9090",
		ProxyBypass:         []string{"localhost", "127.0.0.1", "::1", "*.local"},
		LatencyTestURL:      "https://www.gstatic.com/generate_204",
		LatencyTestTimeout:  5 * time.Second,
		LatencyTestWorkers:  10,
		TrayRefreshInterval: 30 * time.Second,
		APIAddr:             "127.0.0.1:9097",
		LogLevel:            "info",
	}
}

// Parse builds Settings from raw key/value pairs. Unknown keys are ignored.
func Parse(raw map[string]string) (Settings, error) {
	s := Defaults()
	for key, value := range raw {
		if err := s.set(key, value); err != nil {
			return Settings{}, err
		}
	}
	return s, nil
}

func (s *Settings) set(key, value string) error {
	invalid := func(err error) error {
		return &apperrors.SettingError{Key: key, Err: fmt.Errorf("%w: %v", apperrors.ErrSettingInvalid, err)}
	}

	switch key {
	case KeyEnableSystemProxy, KeyEnableTunMode:
		var flag *bool
		if value != "" {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return invalid(err)
			}
			flag = &b
		}
		if key == KeyEnableSystemProxy {
			s.EnableSystemProxy = flag
		} else {
			s.EnableTunMode = flag
		}
	case KeyMixedPort:
		port, err := strconv.Atoi(value)
		if err != nil {
			return invalid(err)
		}
		if port <= 0 || port > 65535 {
			return invalid(fmt.Errorf("port %d out of range", port))
		}
		s.MixedPort = port
	case KeyControllerAddr:
		s.ControllerAddr = strings.TrimSpace(value)
	case KeyControllerSecret:
		s.ControllerSecret = value
	case KeyProxyBypass:
		s.ProxyBypass = splitList(value)
	case KeyTunBypass:
		addrs := splitList(value)
		for _, addr := range addrs {
			if net.ParseIP(addr) == nil {
				return invalid(fmt.Errorf("%q is not an IP address", addr))
			}
		}
		s.TunBypass = addrs
	case KeyLatencyTestURL:
		s.LatencyTestURL = value
	case KeyLatencyTestTimeout:
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return invalid(err)
		}
		s.LatencyTestTimeout = time.Duration(ms) * time.Millisecond
	case KeyLatencyTestWorkers:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return invalid(err)
		}
		s.LatencyTestWorkers = n
	case KeyTrayRefreshInterval:
		secs, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return invalid(err)
		}
		s.TrayRefreshInterval = time.Duration(secs) * time.Second
	case KeyAPIAddr:
		s.APIAddr = strings.TrimSpace(value)
	case KeyAPISecret:
		s.APISecret = strings.TrimSpace(value)
	case KeyAPIAllowedOrigins:
		s.APIAllowedOrigins = splitList(value)
	case KeyLogLevel:
		s.LogLevel = value
	}
	return nil
}

// Values renders s back into raw key/value form.
func (s Settings) Values() map[string]string {
	return map[string]string{
		KeyEnableSystemProxy:   formatFlag(s.EnableSystemProxy),
		KeyEnableTunMode:       formatFlag(s.EnableTunMode),
		KeyMixedPort:           strconv.Itoa(s.MixedPort),
		KeyControllerAddr:      s.ControllerAddr,
		KeyControllerSecret:    s.ControllerSecret,
		KeyProxyBypass:         strings.Join(s.ProxyBypass, ","),
		KeyTunBypass:           strings.Join(s.TunBypass, ","),
		KeyLatencyTestURL:      s.LatencyTestURL,
		KeyLatencyTestTimeout:  strconv.FormatInt(s.LatencyTestTimeout.Milliseconds(), 10),
		KeyLatencyTestWorkers:  strconv.FormatInt(s.LatencyTestWorkers, 10),
		KeyTrayRefreshInterval: strconv.FormatInt(int64(s.TrayRefreshInterval/time.Second), 10),
		KeyAPIAddr:             s.APIAddr,
		KeyAPISecret:           s.APISecret,
		KeyAPIAllowedOrigins:   strings.Join(s.APIAllowedOrigins, ","),
		KeyLogLevel:            s.LogLevel,
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func formatFlag(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

// Store guards the live configuration. Reads return copies; writes go
// through Apply or Set so the database and memory never disagree.
type Store struct {
	mu      sync.RWMutex
	current Settings
	storage storage.Storage
}

// Load reads every setting from storage.
func Load(ctx context.Context, store storage.Storage) (*Store, error) {
	raw, err := store.GetAllSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	current, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return &Store{current: current, storage: store}, nil
}

// NewStore returns a Store seeded with s and backed by store. A nil storage
// keeps everything in memory.
func NewStore(s Settings, store storage.Storage) *Store {
	return &Store{current: s, storage: store}
}

// Latest returns a copy of the current configuration.
func (s *Store) Latest() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.current
	out.ProxyBypass = append([]string(nil), s.current.ProxyBypass...)
	out.TunBypass = append([]string(nil), s.current.TunBypass...)
	out.APIAllowedOrigins = append([]string(nil), s.current.APIAllowedOrigins...)
	if s.current.EnableSystemProxy != nil {
		out.EnableSystemProxy = Bool(*s.current.EnableSystemProxy)
	}
	if s.current.EnableTunMode != nil {
		out.EnableTunMode = Bool(*s.current.EnableTunMode)
	}
	return out
}

// Apply commits the flags in p. With persist the flags are written to
// storage first and memory is only updated once the write succeeded.
func (s *Store) Apply(ctx context.Context, p Patch, persist bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if persist && s.storage != nil {
		values := make(map[string]string, 2)
		if p.EnableSystemProxy != nil {
			values[KeyEnableSystemProxy] = formatFlag(p.EnableSystemProxy)
		}
		if p.EnableTunMode != nil {
			values[KeyEnableTunMode] = formatFlag(p.EnableTunMode)
		}
		if len(values) > 0 {
			if err := s.storage.SetSettings(ctx, values); err != nil {
				return fmt.Errorf("failed to save flags: %w", err)
			}
		}
	}

	if p.EnableSystemProxy != nil {
		s.current.EnableSystemProxy = Bool(*p.EnableSystemProxy)
	}
	if p.EnableTunMode != nil {
		s.current.EnableTunMode = Bool(*p.EnableTunMode)
	}
	return nil
}

// Set validates and stores a single raw setting.
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !IsKnown(key) {
		return &apperrors.SettingError{Key: key, Err: apperrors.ErrSettingNotFound}
	}
	next := s.current
	if err := next.set(key, value); err != nil {
		return err
	}
	if s.storage != nil {
		if err := s.storage.SetSetting(ctx, key, value); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}
	}
	s.current = next
	return nil
}

// EnsureAPISecret returns the API token, storing one from generate first
// when none is set.
func (s *Store) EnsureAPISecret(ctx context.Context, generate func() string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.APISecret != "" {
		return s.current.APISecret, nil
	}
	secret := generate()
	if s.storage != nil {
		if err := s.storage.SetSetting(ctx, KeyAPISecret, secret); err != nil {
			return "", fmt.Errorf("failed to save %s: %w", KeyAPISecret, err)
		}
	}
	s.current.APISecret = secret
	return secret, nil
}

// Reload re-reads storage, picking up writes made by other processes. The
// lock is held across the read so a concurrent Apply or Set cannot be
// overwritten by an older snapshot.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.storage == nil {
		return nil
	}
	raw, err := s.storage.GetAllSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	next, err := Parse(raw)
	if err != nil {
		return err
	}
	s.current = next
	return nil
}

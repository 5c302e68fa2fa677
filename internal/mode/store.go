package mode

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"duck/internal/events"
	"duck/internal/paths"
	apperrors "duck/pkg/errors"
)

// FileName is the name of the persisted mode file.
const FileName = "duck.yaml"

const fileHeader = "# Duck Config\n"

var log = logrus.WithField("component", "mode")

// DuckConfig is the on-disk form of the store.
type DuckConfig struct {
	ConnectionMode ConnectionMode `yaml:"connection_mode"`
}

func template() DuckConfig {
	return DuckConfig{ConnectionMode: Default}
}

// Store persists the selected ConnectionMode in duck.yaml.
type Store struct {
	path     string
	notifier events.Emitter

	mu   sync.Mutex
	last ConnectionMode
	seen bool
}

// NewStore creates a store for dir/duck.yaml. A nil notifier persists silently.
func NewStore(dir string, notifier events.Emitter) *Store {
	return &Store{
		path:     filepath.Join(dir, FileName),
		notifier: notifier,
	}
}

// Path returns the location of duck.yaml.
func (s *Store) Path() string {
	return s.path
}

// Get returns the persisted mode. Read or parse failures yield the default.
func (s *Store) Get() ConnectionMode {
	return s.read().ConnectionMode
}

// Set parses raw, persists the result and returns it. Unrecognised input is
// stored as System. Only write failures are reported.
func (s *Store) Set(raw string) (ConnectionMode, error) {
	m := Parse(raw)

	s.mu.Lock()
	cfg := s.read()
	cfg.ConnectionMode = m
	if err := s.write(cfg); err != nil {
		s.mu.Unlock()
		return m, fmt.Errorf("%w: %v", apperrors.ErrModeWriteFailed, err)
	}
	s.last, s.seen = m, true
	s.mu.Unlock()

	log.WithField("mode", m).Info("connection mode updated")
	if s.notifier != nil {
		s.notifier.Emit(events.ConnectionModeChanged, nil)
	}
	return m, nil
}

func (s *Store) read() DuckConfig {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("failed to read mode file, using defaults")
		}
		return template()
	}

	cfg := template()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.WithError(err).Warn("failed to parse mode file, using defaults")
		return template()
	}
	return cfg
}

// write replaces duck.yaml atomically via a temp file in the same directory.
func (s *Store) write(cfg DuckConfig) error {
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".duck-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(fileHeader); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	paths.ChownToRealUser(s.path)
	return nil
}

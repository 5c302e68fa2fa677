package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"duck/internal/connection"
	"duck/internal/connectivity"
	"duck/internal/core"
	"duck/internal/engine"
	"duck/internal/events"
	"duck/internal/helper"
	"duck/internal/latency"
	"duck/internal/mode"
	"duck/internal/paths"
	"duck/internal/settings"
	"duck/internal/storage"
	"duck/internal/storage/sqlite"
	"duck/internal/tray"
)

// App represents the application context
type App struct {
	Storage      storage.Storage
	Settings     *settings.Store
	Bus          *events.Bus
	Modes        *mode.Store
	Engine       *engine.Client
	Connectivity *connectivity.State
	Core         *core.Manager
	Helper       *helper.Daemon
	Gate         *helper.Gate
	Menu         *tray.Menu
	Selector     *connection.Selector
	Orchestrator *connection.Orchestrator
	Tester       *latency.Tester
	Config       *Config
}

// Config holds command-line overrides. Empty fields fall back to the
// stored settings.
type Config struct {
	DBPath         string
	ConfigDir      string
	ControllerAddr string
	LogLevel       string
}

// New creates a new application instance
func New(cfg Config) (*App, error) {
	if cfg.ConfigDir == "" {
		dir, err := paths.ConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		cfg.ConfigDir = dir
	}
	if cfg.DBPath == "" {
		dataDir, err := paths.DataDir()
		if err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		cfg.DBPath = filepath.Join(dataDir, "duck.db")
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a, err := build(context.Background(), cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

// build wires every component on top of store.
func build(ctx context.Context, cfg Config, store storage.Storage) (*App, error) {
	cfgStore, err := settings.Load(ctx, store)
	if err != nil {
		return nil, err
	}
	current := cfgStore.Latest()

	level := cfg.LogLevel
	if level == "" {
		level = current.LogLevel
	}
	if err := configureLogging(level); err != nil {
		return nil, err
	}

	bus := events.NewBus()
	bus.Subscribe(events.LogSink(logrus.WithField("component", "events")))

	addr := cfg.ControllerAddr
	if addr == "" {
		addr = current.ControllerAddr
	}
	eng := engine.New(addr, engine.WithSecret(current.ControllerSecret))

	modes := mode.NewStore(cfg.ConfigDir, bus)
	conn := connectivity.New(cfgStore)
	mgr := core.NewManager(cfgStore)
	daemon := &helper.Daemon{}
	gate := helper.NewGate(daemon)

	menu := tray.NewMenu(modes, conn, tray.EngineSelector{Engine: eng})
	bus.Subscribe(menu.OnEvent)

	selector := connection.NewSelector(eng, conn, bus, menu)
	orchestrator := connection.NewOrchestrator(connection.Deps{
		Modes:        modes,
		Connectivity: conn,
		Gate:         gate,
		Patcher:      mgr,
		Engine:       eng,
		Bus:          bus,
		Tray:         menu,
	})

	tester := latency.NewTester(latency.TesterConfig{
		Workers: current.LatencyTestWorkers,
		Timeout: current.LatencyTestTimeout,
		Strategy: &latency.EngineStrategy{
			Engine:  eng,
			URL:     current.LatencyTestURL,
			Timeout: current.LatencyTestTimeout,
		},
	})

	return &App{
		Storage:      store,
		Settings:     cfgStore,
		Bus:          bus,
		Modes:        modes,
		Engine:       eng,
		Connectivity: conn,
		Core:         mgr,
		Helper:       daemon,
		Gate:         gate,
		Menu:         menu,
		Selector:     selector,
		Orchestrator: orchestrator,
		Tester:       tester,
		Config:       &cfg,
	}, nil
}

// configureLogging sets the global logrus level and formatter.
func configureLogging(level string) error {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// Close closes the application and releases resources
func (a *App) Close() error {
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}

package tray

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "tray")

// Scheduler refreshes the menu periodically so engine-side changes show up
// without a user action.
type Scheduler struct {
	scheduler gocron.Scheduler
	menu      *Menu
	interval  time.Duration
	reload    []func(context.Context) error
	running   bool
}

// NewScheduler creates a scheduler refreshing menu every interval. Each
// reload func runs before a refresh so state written by other processes is
// picked up.
func NewScheduler(menu *Menu, interval time.Duration, reload ...func(context.Context) error) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid refresh interval %s", interval)
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{scheduler: scheduler, menu: menu, interval: interval, reload: reload}, nil
}

// Start schedules the refresh job and runs one refresh immediately.
func (s *Scheduler) Start() error {
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.refresh),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh job: %w", err)
	}

	s.scheduler.Start()
	s.running = true
	return nil
}

// Stop shuts the scheduler down.
func (s *Scheduler) Stop() error {
	if !s.running {
		return fmt.Errorf("scheduler is not running")
	}
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	s.running = false
	return nil
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	return s.running
}

func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, fn := range s.reload {
		if err := fn(ctx); err != nil {
			log.WithError(err).Warn("reload before refresh failed")
		}
	}
	if err := s.menu.UpdateMenu(); err != nil {
		log.WithError(err).Warn("tray refresh failed")
	}
}

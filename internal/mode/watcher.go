package mode

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"duck/internal/events"
)

// Watch emits a mode-changed event whenever duck.yaml is rewritten by
// someone else (another duck process, an editor) with a different mode.
// It returns once the watcher is running and stops when ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory: atomic replaces swap the inode under a file watch.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	s.mu.Lock()
	if !s.seen {
		s.last, s.seen = s.read().ConnectionMode, true
	}
	s.mu.Unlock()

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				s.refresh()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("mode file watcher error")
			}
		}
	}()

	return nil
}

// refresh compares the file against the last known mode.
func (s *Store) refresh() {
	s.mu.Lock()
	current := s.read().ConnectionMode
	changed := current != s.last
	s.last = current
	s.mu.Unlock()

	if !changed {
		return
	}
	log.WithField("mode", current).Info("connection mode changed on disk")
	if s.notifier != nil {
		s.notifier.Emit(events.ConnectionModeChanged, nil)
	}
}

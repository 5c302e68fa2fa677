package mode

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) Emit(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

func TestStore_GetFreshInstallReturnsSystem(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	if got := store.Get(); got != System {
		t.Fatalf("Get() = %v, want System", got)
	}
}

func TestStore_SetRoundTrip(t *testing.T) {
	tests := []struct {
		raw  string
		want ConnectionMode
	}{
		{"system", System},
		{"tun", Tun},
		{"combine", Combine},
		{"bogus", System},
		{"Tun", System},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rec := &recorder{}
			store := NewStore(t.TempDir(), rec)

			got, err := store.Set(tt.raw)
			if err != nil {
				t.Fatalf("Set(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Set(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			if persisted := store.Get(); persisted != tt.want {
				t.Errorf("Get() after Set(%q) = %v, want %v", tt.raw, persisted, tt.want)
			}
			if rec.count() != 1 || rec.names[0] != "duck:change_connection_mode" {
				t.Errorf("notifications = %v, want one mode change", rec.names)
			}
		})
	}
}

func TestStore_FileFormat(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	if _, err := store.Set("combine"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "# Duck Config\n") {
		t.Errorf("missing header comment:\n%s", text)
	}
	if !strings.Contains(text, "connection_mode: Combine") {
		t.Errorf("missing canonical mode:\n%s", text)
	}
}

func TestStore_CorruptFileFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("connection_mode: [nope"), 0644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(dir, nil)
	if got := store.Get(); got != System {
		t.Fatalf("Get() = %v, want System", got)
	}

	if _, err := store.Set("tun"); err != nil {
		t.Fatalf("Set over corrupt file: %v", err)
	}
	if got := store.Get(); got != Tun {
		t.Fatalf("Get() = %v, want Tun", got)
	}
}

func TestStore_WriteFailurePropagates(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	store := NewStore(blocker, rec)
	if _, err := store.Set("tun"); err == nil {
		t.Fatal("expected write failure")
	}
	if rec.count() != 0 {
		t.Fatalf("failed write must not notify, got %v", rec.names)
	}
}

func TestStore_WatchEmitsOnExternalChange(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	store := NewStore(dir, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := store.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// Another process writes the file.
	other := NewStore(dir, nil)
	if _, err := other.Set("tun"); err != nil {
		t.Fatalf("external Set: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if rec.count() != 1 {
		t.Fatalf("notifications = %d, want 1", rec.count())
	}
}

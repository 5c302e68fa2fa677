package connection

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"duck/internal/events"
	"duck/internal/mode"
	"duck/internal/settings"
	apperrors "duck/pkg/errors"
)

var (
	connectedTun   = settings.Patch{EnableTunMode: settings.Bool(true)}
	connectedProxy = settings.Patch{EnableSystemProxy: settings.Bool(true)}
	connectedBoth  = settings.Patch{EnableTunMode: settings.Bool(true), EnableSystemProxy: settings.Bool(true)}
)

func TestToggleFromDisconnected(t *testing.T) {
	tests := []struct {
		mode      mode.ConnectionMode
		wantTun   bool
		wantProxy bool
	}{
		{mode.System, false, true},
		{mode.Tun, true, false},
		{mode.Combine, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode.Lower(), func(t *testing.T) {
			h := newHarness(tt.mode, settings.Patch{})

			if err := h.orch.Toggle(context.Background()).Wait(); err != nil {
				t.Fatalf("Toggle: %v", err)
			}

			tun, proxy := h.flags()
			if tun != tt.wantTun || proxy != tt.wantProxy {
				t.Errorf("flags tun=%v proxy=%v, want tun=%v proxy=%v", tun, proxy, tt.wantTun, tt.wantProxy)
			}
			if got := h.bus.states(); !slices.Equal(got, []string{"connecting", "connected"}) {
				t.Errorf("states = %v", got)
			}
			if h.engine.closes() != 0 {
				t.Errorf("connections closed %d times while connecting", h.engine.closes())
			}
			if h.tray.updates != 1 {
				t.Errorf("tray refreshed %d times, want 1", h.tray.updates)
			}
		})
	}
}

func TestToggleCombineTwice(t *testing.T) {
	h := newHarness(mode.Combine, settings.Patch{})
	ctx := context.Background()

	if err := h.orch.Toggle(ctx).Wait(); err != nil {
		t.Fatalf("first Toggle: %v", err)
	}
	if tun, proxy := h.flags(); !tun || !proxy {
		t.Fatalf("after first toggle tun=%v proxy=%v, want both on", tun, proxy)
	}

	if err := h.orch.Toggle(ctx).Wait(); err != nil {
		t.Fatalf("second Toggle: %v", err)
	}
	if tun, proxy := h.flags(); tun || proxy {
		t.Errorf("after second toggle tun=%v proxy=%v, want both off", tun, proxy)
	}
	if got := h.bus.states(); !slices.Equal(got, []string{"connecting", "connected", "disconnected"}) {
		t.Errorf("states = %v", got)
	}
	if h.engine.closes() != 1 {
		t.Errorf("connections closed %d times, want 1", h.engine.closes())
	}
}

func TestToggleFromConnectedIgnoresMode(t *testing.T) {
	for _, m := range mode.Modes {
		for name, initial := range map[string]settings.Patch{
			"tun":   connectedTun,
			"proxy": connectedProxy,
			"both":  connectedBoth,
		} {
			t.Run(m.Lower()+"/"+name, func(t *testing.T) {
				h := newHarness(m, initial)

				if err := h.orch.Toggle(context.Background()).Wait(); err != nil {
					t.Fatalf("Toggle: %v", err)
				}
				if tun, proxy := h.flags(); tun || proxy {
					t.Errorf("tun=%v proxy=%v, want both off", tun, proxy)
				}
				if h.engine.closes() != 1 {
					t.Errorf("connections closed %d times, want 1", h.engine.closes())
				}
				if h.gate.callCount() != 0 {
					t.Error("service gate consulted while disconnecting")
				}
				if got := h.bus.states(); !slices.Equal(got, []string{"disconnected"}) {
					t.Errorf("states = %v, want only disconnected", got)
				}
			})
		}
	}
}

func TestToggleServiceFailure(t *testing.T) {
	for _, m := range []mode.ConnectionMode{mode.Tun, mode.Combine} {
		t.Run(m.Lower(), func(t *testing.T) {
			h := newHarness(m, settings.Patch{})
			h.gate.err = errInstall

			err := h.orch.Toggle(context.Background()).Wait()

			var svcErr *apperrors.ServiceError
			if !errors.As(err, &svcErr) {
				t.Fatalf("err = %v, want *ServiceError", err)
			}
			if tun, proxy := h.flags(); tun || proxy {
				t.Errorf("flags changed: tun=%v proxy=%v", tun, proxy)
			}
			if h.patcher.patches != 0 {
				t.Errorf("patcher called %d times", h.patcher.patches)
			}
			if got := h.bus.states(); !slices.Equal(got, []string{"connecting"}) {
				t.Errorf("states = %v, want only connecting", got)
			}
		})
	}
}

func TestTogglePatchFailure(t *testing.T) {
	h := newHarness(mode.System, settings.Patch{})
	h.patcher.err = errors.New("gsettings: not found")

	if err := h.orch.Toggle(context.Background()).Wait(); err == nil {
		t.Fatal("expected error")
	}
	if got := h.bus.states(); !slices.Equal(got, []string{"connecting"}) {
		t.Errorf("states = %v, want only connecting", got)
	}
	if h.tray.updates != 0 {
		t.Error("tray refreshed after failed patch")
	}
}

func TestToggleEmitsConnectingBeforeReturning(t *testing.T) {
	h := newHarness(mode.Tun, settings.Patch{})
	h.gate.release = make(chan struct{})

	task := h.orch.Toggle(context.Background())

	if got := h.bus.states(); !slices.Equal(got, []string{"connecting"}) {
		t.Errorf("states right after Toggle = %v, want [connecting]", got)
	}
	select {
	case <-task.Done():
		t.Fatal("task finished while the gate was blocked")
	default:
	}

	close(h.gate.release)
	if err := task.Wait(); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if got := h.bus.states(); !slices.Equal(got, []string{"connecting", "connected"}) {
		t.Errorf("states = %v", got)
	}
}

func TestToggleCallerCancellationDoesNotAbort(t *testing.T) {
	h := newHarness(mode.System, settings.Patch{})
	ctx, cancel := context.WithCancel(context.Background())
	task := h.orch.Toggle(ctx)
	cancel()

	if err := task.Wait(); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if _, proxy := h.flags(); !proxy {
		t.Error("system proxy not enabled")
	}
}

func TestConcurrentTogglesAreSerialized(t *testing.T) {
	h := newHarness(mode.Combine, settings.Patch{})
	h.gate.release = make(chan struct{})
	ctx := context.Background()

	first := h.orch.Toggle(ctx)
	second := h.orch.Toggle(ctx)

	// Give the second task time to queue behind the first.
	time.Sleep(20 * time.Millisecond)
	close(h.gate.release)

	if err := first.Wait(); err != nil {
		t.Fatalf("first Toggle: %v", err)
	}
	if err := second.Wait(); err != nil {
		t.Fatalf("second Toggle: %v", err)
	}

	if tun, proxy := h.flags(); tun || proxy {
		t.Errorf("tun=%v proxy=%v, want both off after two toggles", tun, proxy)
	}
	want := []string{"connecting", "connecting", "connected", "disconnected"}
	if got := h.bus.states(); !slices.Equal(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
	if h.engine.closes() != 1 {
		t.Errorf("connections closed %d times, want 1", h.engine.closes())
	}
}

func TestDisconnect(t *testing.T) {
	for name, initial := range map[string]settings.Patch{
		"already disconnected": {},
		"tun":                  connectedTun,
		"proxy":                connectedProxy,
		"both":                 connectedBoth,
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(mode.Combine, initial)

			if err := h.orch.Disconnect(context.Background()).Wait(); err != nil {
				t.Fatalf("Disconnect: %v", err)
			}
			if tun, proxy := h.flags(); tun || proxy {
				t.Errorf("tun=%v proxy=%v, want both off", tun, proxy)
			}
			if got := h.bus.states(); !slices.Equal(got, []string{"connecting", "disconnected"}) {
				t.Errorf("states = %v", got)
			}
			if h.patcher.patches != 1 {
				t.Errorf("patcher called %d times, want 1", h.patcher.patches)
			}
			if h.engine.closes() != 1 {
				t.Errorf("connections closed %d times, want 1", h.engine.closes())
			}
		})
	}
}

func TestDisconnectTwiceEmitsTwice(t *testing.T) {
	h := newHarness(mode.System, connectedProxy)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := h.orch.Disconnect(ctx).Wait(); err != nil {
			t.Fatalf("Disconnect %d: %v", i, err)
		}
	}
	disconnected := 0
	for _, ev := range h.bus.named(events.ConnectionStateChanged) {
		if ev.payload.(events.ConnectionState).State == events.StateDisconnected {
			disconnected++
		}
	}
	if disconnected != 2 {
		t.Errorf("disconnected emitted %d times, want 2", disconnected)
	}
}

func TestApplySwitchesLiveConnection(t *testing.T) {
	tests := []struct {
		name      string
		mode      mode.ConnectionMode
		initial   settings.Patch
		wantTun   bool
		wantProxy bool
	}{
		{"system to tun", mode.Tun, connectedProxy, true, false},
		{"tun to system", mode.System, connectedTun, false, true},
		{"system to combine", mode.Combine, connectedProxy, true, true},
		{"combine to system", mode.System, connectedBoth, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.mode, tt.initial)

			if err := h.orch.Apply(context.Background()).Wait(); err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if tun, proxy := h.flags(); tun != tt.wantTun || proxy != tt.wantProxy {
				t.Errorf("flags tun=%v proxy=%v, want tun=%v proxy=%v", tun, proxy, tt.wantTun, tt.wantProxy)
			}
			if h.gate.callCount() != 1 {
				t.Errorf("gate consulted %d times, want 1", h.gate.callCount())
			}
			if h.engine.closes() != 1 {
				t.Errorf("connections closed %d times, want 1", h.engine.closes())
			}
			if got := h.bus.states(); !slices.Equal(got, []string{"connected"}) {
				t.Errorf("states = %v, want only connected", got)
			}
		})
	}
}

func TestApplyWhileDisconnectedIsNoop(t *testing.T) {
	h := newHarness(mode.Combine, settings.Patch{})

	if err := h.orch.Apply(context.Background()).Wait(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if tun, proxy := h.flags(); tun || proxy {
		t.Errorf("flags tun=%v proxy=%v, want both off", tun, proxy)
	}
	if h.patcher.patches != 0 || h.gate.callCount() != 0 || len(h.bus.states()) != 0 {
		t.Errorf("patches=%d gate=%d states=%v, want nothing", h.patcher.patches, h.gate.callCount(), h.bus.states())
	}
}

func TestApplyServiceFailureKeepsFlags(t *testing.T) {
	h := newHarness(mode.Tun, connectedProxy)
	h.gate.err = errInstall

	err := h.orch.Apply(context.Background()).Wait()

	var svcErr *apperrors.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("err = %v, want *ServiceError", err)
	}
	if tun, proxy := h.flags(); tun || !proxy {
		t.Errorf("flags tun=%v proxy=%v, want the system proxy left on", tun, proxy)
	}
	if len(h.bus.states()) != 0 {
		t.Errorf("states = %v, want none", h.bus.states())
	}
}

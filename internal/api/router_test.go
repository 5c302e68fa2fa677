package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"duck/internal/connection"
	"duck/internal/connectivity"
	"duck/internal/core"
	"duck/internal/engine"
	"duck/internal/events"
	"duck/internal/latency"
	"duck/internal/mode"
	"duck/internal/settings"
	"duck/internal/tray"
	apperrors "duck/pkg/errors"
)

const testToken = "s3cret-token"

type memModes struct{ m mode.ConnectionMode }

func (s *memModes) Get() mode.ConnectionMode { return s.m }

func (s *memModes) Set(raw string) (mode.ConnectionMode, error) {
	s.m = mode.Parse(raw)
	return s.m, nil
}

type fakeSelector struct {
	sel       *connection.ProxySelector
	lookupErr error
	setErr    error
	group     string
	proxy     string
}

func (f *fakeSelector) Lookup(context.Context) (*connection.ProxySelector, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if f.sel == nil {
		return nil, apperrors.ErrSelectorNotFound
	}
	return f.sel, nil
}

func (f *fakeSelector) SetCurrentProxy(_ context.Context, group, proxy string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.group, f.proxy = group, proxy
	return nil
}

type okGate struct{}

func (okGate) EnsureAvailableFor(context.Context, mode.ConnectionMode) error { return nil }

type nopEngine struct{}

func (nopEngine) IsRunning(context.Context) error                { return nil }
func (nopEngine) CloseAllConnections(context.Context) error      { return nil }
func (nopEngine) SetProxy(context.Context, string, string) error { return nil }
func (nopEngine) GetProvidersProxies(context.Context) (*engine.ProvidersResponse, error) {
	return nil, errors.New("not running")
}

type nopApplier struct{}

func (nopApplier) Enable(context.Context, settings.Settings) error { return nil }
func (nopApplier) Disable(context.Context) error                   { return nil }

type fixedTester struct{}

func (fixedTester) TestBatch(_ context.Context, proxies []string, _ latency.ProgressFunc) *latency.BatchResult {
	batch := &latency.BatchResult{Tested: len(proxies)}
	for i, p := range proxies {
		batch.Results = append(batch.Results, &latency.TestResult{Proxy: p, Success: true, LatencyMS: 10 * (i + 1)})
	}
	return batch
}

type testEnv struct {
	handler  http.Handler
	store    *settings.Store
	modes    *memModes
	selector *fakeSelector
	bus      *events.Bus
	menu     *tray.Menu
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := settings.NewStore(settings.Defaults(), nil)
	conn := connectivity.New(store)
	bus := events.NewBus()
	modes := &memModes{m: mode.System}
	sel := &fakeSelector{sel: &connection.ProxySelector{Name: "Main", CurrentProxy: "hk-1", Proxies: []string{"hk-1", "jp-1"}}}

	orch := connection.NewOrchestrator(connection.Deps{
		Modes:        modes,
		Connectivity: conn,
		Gate:         okGate{},
		Patcher:      core.NewManagerWith(store, nopApplier{}, nopApplier{}),
		Engine:       nopEngine{},
		Bus:          bus,
	})

	menu := tray.NewMenu(modes, conn, nil)

	return &testEnv{
		handler: NewRouter(Deps{
			Modes:          modes,
			Toggler:        orch,
			Selector:       sel,
			Connectivity:   conn,
			Bus:            bus,
			Tester:         fixedTester{},
			Menu:           menu,
			Secret:         testToken,
			AllowedOrigins: []string{"http://localhost:5173"},
		}),
		store:    store,
		modes:    modes,
		selector: sel,
		bus:      bus,
		menu:     menu,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || decode(t, w)["status"] != "ok" {
		t.Fatalf("GET /health = %d %s", w.Code, w.Body.String())
	}
}

func TestModeRoutes(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		body string
		want string
	}{
		{`{"mode":"combine"}`, "combine"},
		{`{"mode":"tun"}`, "tun"},
		{`{"mode":"Tun"}`, "system"},
	}
	for _, tt := range tests {
		w := env.do(t, http.MethodPut, "/mode", tt.body)
		if w.Code != http.StatusOK {
			t.Fatalf("PUT /mode %s = %d %s", tt.body, w.Code, w.Body.String())
		}
		if got := decode(t, w)["mode"]; got != tt.want {
			t.Errorf("PUT /mode %s -> %v, want %s", tt.body, got, tt.want)
		}
		if got := decode(t, env.do(t, http.MethodGet, "/mode", ""))["mode"]; got != tt.want {
			t.Errorf("GET /mode = %v, want %s", got, tt.want)
		}
	}

	if w := env.do(t, http.MethodPut, "/mode", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("PUT /mode without mode = %d, want 400", w.Code)
	}
}

func TestToggleAndDisconnectWait(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/connection/toggle?wait=true", "")
	if w.Code != http.StatusOK || decode(t, w)["connected"] != true {
		t.Fatalf("toggle = %d %s", w.Code, w.Body.String())
	}
	if cfg := env.store.Latest(); cfg.EnableSystemProxy == nil || !*cfg.EnableSystemProxy {
		t.Error("system proxy flag not set after toggle")
	}

	w = env.do(t, http.MethodPost, "/connection/disconnect?wait=true", "")
	if w.Code != http.StatusOK || decode(t, w)["connected"] != false {
		t.Fatalf("disconnect = %d %s", w.Code, w.Body.String())
	}
}

func TestToggleWithoutWaitIsAccepted(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/connection/toggle", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("toggle = %d, want 202", w.Code)
	}
}

func TestSelectorRoutes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/selector", "")
	if w.Code != http.StatusOK || decode(t, w)["name"] != "Main" {
		t.Fatalf("GET /selector = %d %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPut, "/selector/proxy", `{"group":"Main","proxy":"jp-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /selector/proxy = %d %s", w.Code, w.Body.String())
	}
	if env.selector.group != "Main" || env.selector.proxy != "jp-1" {
		t.Errorf("selector got %q/%q", env.selector.group, env.selector.proxy)
	}

	env.selector.setErr = &engine.APIError{Status: http.StatusBadRequest, Message: "Selector update error: not found"}
	w = env.do(t, http.MethodPut, "/selector/proxy", `{"group":"Main","proxy":"nope"}`)
	if w.Code != http.StatusBadGateway || decode(t, w)["error"] != "Selector update error: not found" {
		t.Errorf("engine error = %d %s", w.Code, w.Body.String())
	}

	env.selector.sel = nil
	if w := env.do(t, http.MethodGet, "/selector", ""); w.Code != http.StatusNotFound {
		t.Errorf("GET /selector without selector = %d, want 404", w.Code)
	}

	env.selector.lookupErr = fmt.Errorf("%w: connection refused", apperrors.ErrEngineNotRunning)
	for _, path := range []string{"/selector", "/selector/test"} {
		method := http.MethodGet
		if path == "/selector/test" {
			method = http.MethodPost
		}
		if w := env.do(t, method, path, ""); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s with engine down = %d, want 503", method, path, w.Code)
		}
	}
}

func TestSelectorTest(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/selector/test", "")
	if w.Code != http.StatusOK {
		t.Fatalf("POST /selector/test = %d %s", w.Code, w.Body.String())
	}
	batch := decode(t, w)["batch"].(map[string]any)
	if batch["tested"] != float64(2) {
		t.Errorf("tested = %v, want 2", batch["tested"])
	}
}

func TestOriginAndTokenChecks(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		origin string
		auth   string
		want   int
	}{
		{"health is public", http.MethodGet, "/health", "", "", http.StatusOK},
		{"missing token", http.MethodGet, "/mode", "", "", http.StatusUnauthorized},
		{"wrong token", http.MethodPost, "/connection/toggle", "", "Bearer nope", http.StatusUnauthorized},
		{"token without scheme", http.MethodGet, "/mode", "", testToken, http.StatusUnauthorized},
		{"valid token", http.MethodGet, "/mode", "", "Bearer " + testToken, http.StatusOK},
		{"foreign origin with token", http.MethodPost, "/connection/toggle", "http://evil.example", "Bearer " + testToken, http.StatusForbidden},
		{"foreign origin preflight", http.MethodOptions, "/connection/toggle", "http://evil.example", "", http.StatusForbidden},
		{"allowed origin preflight", http.MethodOptions, "/connection/toggle", "http://localhost:5173", "", http.StatusNoContent},
		{"allowed origin with token", http.MethodGet, "/mode", "http://localhost:5173", "Bearer " + testToken, http.StatusOK},
		{"query token only on the stream", http.MethodGet, "/mode?token=" + testToken, "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("%s %s = %d, want %d", tt.method, tt.path, w.Code, tt.want)
			}
			acao := w.Header().Get("Access-Control-Allow-Origin")
			if tt.want == http.StatusForbidden && acao != "" {
				t.Errorf("Access-Control-Allow-Origin = %q on a rejected origin", acao)
			}
			if tt.origin == "http://localhost:5173" && acao != tt.origin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", acao, tt.origin)
			}
		})
	}
}

func TestEmptySecretLocksTheAPI(t *testing.T) {
	h := NewRouter(Deps{Modes: &memModes{m: mode.System}})
	req := httptest.NewRequest(http.MethodGet, "/mode", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("GET /mode without a configured secret = %d, want 401", w.Code)
	}
}

func TestSetModeApply(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodPost, "/connection/toggle?wait=true", ""); w.Code != http.StatusOK {
		t.Fatalf("toggle = %d %s", w.Code, w.Body.String())
	}

	w := env.do(t, http.MethodPut, "/mode?apply=true", `{"mode":"tun"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /mode?apply=true = %d %s", w.Code, w.Body.String())
	}
	cfg := env.store.Latest()
	if cfg.EnableTunMode == nil || !*cfg.EnableTunMode {
		t.Error("tun flag not applied")
	}
	if cfg.EnableSystemProxy == nil || *cfg.EnableSystemProxy {
		t.Error("system proxy flag still on after switching to tun")
	}

	// Without apply the flags stay as they are.
	if w := env.do(t, http.MethodPut, "/mode", `{"mode":"system"}`); w.Code != http.StatusOK {
		t.Fatalf("PUT /mode = %d", w.Code)
	}
	if cfg := env.store.Latest(); !*cfg.EnableTunMode {
		t.Error("flags changed without apply")
	}
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?token="+testToken, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q", ct)
	}

	// The subscription is registered before headers are flushed.
	env.bus.Emit(events.ProxyChanged, events.ProxyChange{Group: "Main", Proxy: "jp-1"})

	scanner := bufio.NewScanner(resp.Body)
	var sawEvent, sawData bool
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event:"+events.ProxyChanged {
			sawEvent = true
		}
		if sawEvent && strings.HasPrefix(line, "data:") {
			var ev events.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &ev); err != nil {
				t.Fatalf("decode data: %v", err)
			}
			var change events.ProxyChange
			if err := ev.Decode(&change); err != nil || change.Proxy != "jp-1" {
				t.Errorf("payload = %+v, %v", change, err)
			}
			sawData = true
			break
		}
	}
	if !sawEvent || !sawData {
		t.Fatalf("event not streamed (event=%v data=%v, err=%v)", sawEvent, sawData, scanner.Err())
	}
}

func TestTrayStream(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/tray/stream", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /tray/stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /tray/stream = %d", resp.StatusCode)
	}

	env.modes.m = mode.Combine
	env.menu.UpdateMenu()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var m tray.Model
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &m); err != nil {
			t.Fatalf("decode menu: %v", err)
		}
		if len(m.Modes) == 3 && m.Modes[2].Checked {
			return
		}
	}
	t.Fatalf("rebuilt menu not streamed: %v", scanner.Err())
}

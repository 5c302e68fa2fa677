package connection

import (
	"context"
	"fmt"
	"net/url"

	"duck/internal/engine"
	"duck/internal/events"
	apperrors "duck/pkg/errors"
)

// ProviderName is the engine provider that holds the user's groups.
const ProviderName = "PROXY"

// ProxySelector is the first Selector group of the PROXY provider.
type ProxySelector struct {
	Name         string   `json:"name"`
	CurrentProxy string   `json:"current_proxy"`
	Proxies      []string `json:"proxies"`
}

// FindSelector queries eng for its first Selector group. It fails with
// ErrEngineNotRunning when the engine is down and ErrSelectorNotFound when
// it has no such group.
func FindSelector(ctx context.Context, eng Engine) (*ProxySelector, error) {
	if err := eng.IsRunning(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrEngineNotRunning, err)
	}
	resp, err := eng.GetProvidersProxies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query engine providers: %w", err)
	}
	sel := findSelector(resp)
	if sel == nil {
		return nil, apperrors.ErrSelectorNotFound
	}
	return sel, nil
}

// LoadSelector is FindSelector for callers that only need to know whether
// a group is there. Failures are logged and yield nil.
func LoadSelector(ctx context.Context, eng Engine) *ProxySelector {
	sel, err := FindSelector(ctx, eng)
	if err != nil {
		log.WithError(err).Debug("no selector group")
		return nil
	}
	return sel
}

func findSelector(resp *engine.ProvidersResponse) *ProxySelector {
	if resp == nil {
		return nil
	}
	provider, ok := resp.Providers[ProviderName]
	if !ok {
		return nil
	}
	for _, p := range provider.Proxies {
		if p.Type != engine.TypeSelector {
			continue
		}
		return &ProxySelector{
			Name:         p.Name,
			CurrentProxy: p.Now,
			Proxies:      append([]string{}, p.All...),
		}
	}
	return nil
}

// Selector changes the active proxy of a selector group.
type Selector struct {
	engine Engine
	conn   Connectivity
	bus    events.Emitter
	tray   MenuRefresher
}

// NewSelector returns a Selector. tray may be nil.
func NewSelector(eng Engine, conn Connectivity, bus events.Emitter, tray MenuRefresher) *Selector {
	return &Selector{engine: eng, conn: conn, bus: bus, tray: tray}
}

// GetSelector returns the current selector group, or nil.
func (s *Selector) GetSelector(ctx context.Context) *ProxySelector {
	return LoadSelector(ctx, s.engine)
}

// Lookup is GetSelector with the reason a group is missing.
func (s *Selector) Lookup(ctx context.Context) (*ProxySelector, error) {
	return FindSelector(ctx, s.engine)
}

// SetCurrentProxy selects proxy in group. Engine errors are returned as is
// and nothing else happens. On success the tray is refreshed, a proxy
// change is emitted and, when connected, open connections are dropped so
// traffic moves to the new proxy.
func (s *Selector) SetCurrentProxy(ctx context.Context, group, proxy string) error {
	if err := s.engine.SetProxy(ctx, url.PathEscape(group), proxy); err != nil {
		return err
	}

	refreshMenu(s.tray)
	s.bus.Emit(events.ProxyChanged, events.ProxyChange{Group: group, Proxy: proxy})
	if s.conn.IsConnected() {
		closeConnections(ctx, s.engine)
	}
	log.WithField("group", group).WithField("proxy", proxy).Info("proxy selected")
	return nil
}

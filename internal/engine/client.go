// Package engine talks to the proxy engine's Clash-compatible external
// controller.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx reply. Error returns the engine's message verbatim
// so callers can surface it unchanged.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

// Client is an engine controller client.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSecret sets the bearer secret expected by the controller.
func WithSecret(secret string) Option {
	return func(c *Client) { c.secret = secret }
}

// New creates a client for addr, either "host:port" or a full URL.
func New(addr string, opts ...Option) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	c := &Client{
		baseURL: base,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsRunning returns nil when the controller answers.
func (c *Client) IsRunning(ctx context.Context) error {
	var v versionResponse
	if err := c.do(ctx, http.MethodGet, "/version", nil, &v); err != nil {
		return err
	}
	return nil
}

// Version returns the engine version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var v versionResponse
	if err := c.do(ctx, http.MethodGet, "/version", nil, &v); err != nil {
		return "", err
	}
	return v.Version, nil
}

// CloseAllConnections drops every live connection held by the engine.
func (c *Client) CloseAllConnections(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/connections", nil, nil)
}

// SetProxy selects proxy inside group. encodedGroup must already be
// path-escaped; it is used as-is in the request path.
func (c *Client) SetProxy(ctx context.Context, encodedGroup, proxy string) error {
	body := map[string]string{"name": proxy}
	return c.do(ctx, http.MethodPut, "/proxies/"+encodedGroup, body, nil)
}

// GetProvidersProxies lists proxy providers and their proxies in engine order.
func (c *Client) GetProvidersProxies(ctx context.Context) (*ProvidersResponse, error) {
	var resp ProvidersResponse
	if err := c.do(ctx, http.MethodGet, "/providers/proxies", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProxyDelay asks the engine to measure the delay of a proxy against testURL.
func (c *Client) ProxyDelay(ctx context.Context, name, testURL string, timeout time.Duration) (int, error) {
	q := url.Values{}
	q.Set("url", testURL)
	q.Set("timeout", strconv.FormatInt(timeout.Milliseconds(), 10))

	var resp delayResponse
	path := "/proxies/" + url.PathEscape(name) + "/delay?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Delay, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e errorResponse
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil {
			if json.Unmarshal(data, &e) == nil && e.Message != "" {
				apiErr.Message = e.Message
			} else {
				apiErr.Message = strings.TrimSpace(string(data))
			}
		}
		return apiErr
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

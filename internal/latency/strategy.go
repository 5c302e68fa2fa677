package latency

import (
	"context"
	"fmt"
	"time"
)

// Strategy measures the round trip through a single proxy.
type Strategy interface {
	// Name returns the strategy identifier.
	Name() string
	// Test returns the delay through proxy in milliseconds.
	Test(ctx context.Context, proxy string) (latencyMS int, err error)
}

// DelaySource is the engine call behind EngineStrategy.
type DelaySource interface {
	ProxyDelay(ctx context.Context, name, testURL string, timeout time.Duration) (int, error)
}

// EngineStrategy asks the engine to fetch URL through the proxy and report
// the delay. It validates the whole proxy chain.
type EngineStrategy struct {
	Engine  DelaySource
	URL     string
	Timeout time.Duration
}

func (s *EngineStrategy) Name() string { return "engine" }

func (s *EngineStrategy) Test(ctx context.Context, proxy string) (int, error) {
	delay, err := s.Engine.ProxyDelay(ctx, proxy, s.URL, s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("delay test failed: %w", err)
	}
	if delay <= 0 {
		return 0, fmt.Errorf("delay test failed: proxy %s timed out", proxy)
	}
	return delay, nil
}

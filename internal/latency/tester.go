// Package latency measures proxy delays through the engine with a bounded
// worker pool.
package latency

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// TestResult holds the outcome for a single proxy.
type TestResult struct {
	Proxy     string    `json:"proxy"`
	Success   bool      `json:"success"`
	LatencyMS int       `json:"latency_ms,omitempty"`
	Error     string    `json:"error,omitempty"`
	TestedAt  time.Time `json:"tested_at"`
}

// BatchResult holds the outcome of testing multiple proxies.
type BatchResult struct {
	Results   []*TestResult `json:"results"`
	Tested    int           `json:"tested"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// ProgressFunc is called each time a single test completes during batch testing.
type ProgressFunc func(result *TestResult, current, total int)

// TesterConfig holds configuration for the Tester.
type TesterConfig struct {
	Workers  int64
	Timeout  time.Duration
	Strategy Strategy
}

// Tester orchestrates latency testing.
type Tester struct {
	config TesterConfig
}

// NewTester creates a new Tester.
func NewTester(cfg TesterConfig) *Tester {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Tester{config: cfg}
}

// TestSingle tests one proxy.
func (t *Tester) TestSingle(ctx context.Context, proxy string) *TestResult {
	testCtx, cancel := context.WithTimeout(ctx, t.config.Timeout+time.Second)
	defer cancel()

	result := &TestResult{Proxy: proxy, TestedAt: time.Now()}
	latencyMS, err := t.config.Strategy.Test(testCtx, proxy)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Success = true
	result.LatencyMS = latencyMS
	return result
}

// TestBatch tests every proxy concurrently, at most Workers at a time.
// Results are sorted fastest first with failures last.
func (t *Tester) TestBatch(ctx context.Context, proxies []string, progress ProgressFunc) *BatchResult {
	startTime := time.Now()

	batch := &BatchResult{}
	results := make([]*TestResult, len(proxies))
	var mu sync.Mutex
	var completed int

	sem := semaphore.NewWeighted(t.config.Workers)
	var wg sync.WaitGroup

	for i, proxy := range proxies {
		wg.Add(1)
		go func(idx int, name string) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			result := t.TestSingle(ctx, name)
			results[idx] = result

			mu.Lock()
			completed++
			current := completed
			if result.Success {
				batch.Succeeded++
			} else {
				batch.Failed++
			}
			mu.Unlock()

			if progress != nil {
				progress(result, current, len(proxies))
			}
		}(i, proxy)
	}

	wg.Wait()

	for _, r := range results {
		if r != nil {
			batch.Results = append(batch.Results, r)
			batch.Tested++
		}
	}

	sort.SliceStable(batch.Results, func(i, j int) bool {
		ri, rj := batch.Results[i], batch.Results[j]
		if ri.Success != rj.Success {
			return ri.Success
		}
		return ri.Success && ri.LatencyMS < rj.LatencyMS
	})

	batch.Duration = time.Since(startTime)
	return batch
}

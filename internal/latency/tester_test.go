package latency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeStrategy struct {
	delays   map[string]int
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (f *fakeStrategy) Name() string { return "fake" }

func (f *fakeStrategy) Test(ctx context.Context, proxy string) (int, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	d, ok := f.delays[proxy]
	if !ok {
		return 0, errors.New("timeout")
	}
	return d, nil
}

func TestTestBatchSortsAndCounts(t *testing.T) {
	strategy := &fakeStrategy{delays: map[string]int{"hk-1": 120, "jp-1": 45, "us-1": 300}}
	tester := NewTester(TesterConfig{Workers: 2, Strategy: strategy})

	var mu sync.Mutex
	var calls int
	batch := tester.TestBatch(context.Background(), []string{"us-1", "dead", "hk-1", "jp-1"}, func(_ *TestResult, current, total int) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if total != 4 || current < 1 || current > 4 {
			t.Errorf("progress(%d, %d)", current, total)
		}
	})

	if batch.Tested != 4 || batch.Succeeded != 3 || batch.Failed != 1 {
		t.Errorf("tested=%d succeeded=%d failed=%d", batch.Tested, batch.Succeeded, batch.Failed)
	}
	if calls != 4 {
		t.Errorf("progress called %d times, want 4", calls)
	}

	want := []string{"jp-1", "hk-1", "us-1", "dead"}
	for i, r := range batch.Results {
		if r.Proxy != want[i] {
			t.Errorf("result[%d] = %s, want %s", i, r.Proxy, want[i])
		}
	}
	if last := batch.Results[3]; last.Success || last.Error == "" {
		t.Errorf("failed result = %+v", last)
	}
	if peak := strategy.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency %d exceeds 2 workers", peak)
	}
}

type fakeDelays struct{ delay int }

func (f fakeDelays) ProxyDelay(context.Context, string, string, time.Duration) (int, error) {
	return f.delay, nil
}

func TestEngineStrategyZeroDelayIsFailure(t *testing.T) {
	s := &EngineStrategy{Engine: fakeDelays{delay: 0}, URL: "https://example.com", Timeout: time.Second}
	if _, err := s.Test(context.Background(), "hk-1"); err == nil {
		t.Fatal("expected error for zero delay")
	}

	s.Engine = fakeDelays{delay: 88}
	got, err := s.Test(context.Background(), "hk-1")
	if err != nil || got != 88 {
		t.Fatalf("Test = %d, %v", got, err)
	}
}

package backfill

import (
	"context"
	"testing"
	"time"

	"github.com/sawpanic/marketintel/internal/providers/mock"
	"github.com/sawpanic/marketintel/internal/ratelimit"
	"github.com/sawpanic/marketintel/internal/store"
)

func TestManager_StartCompletesRun(t *testing.T) {
	limiter := ratelimit.NewScheduler()
	limiter.AddProvider("mock", 1000, 1000)
	st := store.NewMemory()
	m := NewManager(limiter, st)

	p := mock.New("BTC-USD")
	req := Request{
		Symbol:       "BTC-USD",
		Interval:     "1h",
		From:         time.Now().Add(-2 * time.Hour),
		To:           time.Now(),
		ChunkCandles: 60,
	}

	id := m.Start(context.Background(), p, req)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state, ok := m.Get(id)
		if ok && state.Status != StatusRunning {
			if state.Status != StatusCompleted {
				t.Fatalf("expected run to complete, got %s (err=%s)", state.Status, state.Err)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run did not complete within deadline")
}

func TestManager_CancelStopsRun(t *testing.T) {
	limiter := ratelimit.NewScheduler()
	limiter.AddProvider("mock", 1000, 1000)
	st := store.NewMemory()
	m := NewManager(limiter, st)

	ctx, cancel := context.WithCancel(context.Background())
	p := mock.New("BTC-USD")
	req := Request{
		Symbol:       "BTC-USD",
		Interval:     "1m",
		From:         time.Now().Add(-48 * time.Hour),
		To:           time.Now(),
		ChunkCandles: 1,
	}

	id := m.Start(ctx, p, req)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state, ok := m.Get(id)
		if ok && state.Status != StatusRunning {
			if state.Status != StatusCancelled && state.Status != StatusCompleted {
				t.Fatalf("expected cancelled or completed, got %s", state.Status)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run did not stop within deadline")
}

func TestManager_ListIncludesStartedRuns(t *testing.T) {
	limiter := ratelimit.NewScheduler()
	limiter.AddProvider("mock", 1000, 1000)
	st := store.NewMemory()
	m := NewManager(limiter, st)

	p := mock.New("BTC-USD")
	req := Request{Symbol: "BTC-USD", Interval: "1h", From: time.Now().Add(-time.Hour), To: time.Now(), ChunkCandles: 60}
	m.Start(context.Background(), p, req)

	time.Sleep(50 * time.Millisecond)
	if len(m.List()) != 1 {
		t.Fatalf("expected 1 tracked run")
	}
}

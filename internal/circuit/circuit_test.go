package circuit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig(name string) Config {
	return Config{
		Name:              name,
		DegradedThreshold: 3,
		DownThreshold:     5,
		OpenTimeout:       50 * time.Millisecond,
		RequestTimeout:    time.Second,
	}
}

func TestBreaker_InitialStateIsUp(t *testing.T) {
	b := NewBreaker(testConfig("kraken"))
	if got := b.Health(); got != Up {
		t.Fatalf("expected UP before any call (no events have occurred), got %s", got)
	}
}

func TestBreaker_UpOnSuccess(t *testing.T) {
	b := NewBreaker(testConfig("kraken"))
	err := b.Call(context.Background(), func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := b.Health(); got != Up {
		t.Fatalf("expected UP after a success, got %s", got)
	}
}

func TestBreaker_DegradedAfterThreeFailures(t *testing.T) {
	b := NewBreaker(testConfig("kraken"))
	failing := errors.New("boom")
	for i := 0; i < 3; i++ {
		_ = b.Call(context.Background(), func(ctx context.Context) error { return failing })
	}
	if got := b.Health(); got != Degraded {
		t.Fatalf("expected DEGRADED after 3 consecutive failures, got %s", got)
	}
}

func TestBreaker_DownAfterFiveFailures(t *testing.T) {
	b := NewBreaker(testConfig("kraken"))
	failing := errors.New("boom")
	for i := 0; i < 5; i++ {
		_ = b.Call(context.Background(), func(ctx context.Context) error { return failing })
	}
	if got := b.Health(); got != Down {
		t.Fatalf("expected DOWN after 5 consecutive failures, got %s", got)
	}
}

func TestBreaker_RecoversAfterOpenTimeout(t *testing.T) {
	cfg := testConfig("kraken")
	b := NewBreaker(cfg)
	failing := errors.New("boom")
	for i := 0; i < 5; i++ {
		_ = b.Call(context.Background(), func(ctx context.Context) error { return failing })
	}
	if got := b.Health(); got != Down {
		t.Fatalf("expected DOWN, got %s", got)
	}

	time.Sleep(cfg.OpenTimeout + 10*time.Millisecond)

	err := b.Call(context.Background(), func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("expected probe call to succeed, got %v", err)
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := NewBreaker(testConfig("kraken"))
	failing := errors.New("boom")
	for i := 0; i < 5; i++ {
		_ = b.Call(context.Background(), func(ctx context.Context) error { return failing })
	}
	b.Reset()
	if got := b.Health(); got != Up {
		t.Fatalf("expected UP after reset, got %s", got)
	}
}

func TestBreaker_Stats(t *testing.T) {
	b := NewBreaker(testConfig("kraken"))
	_ = b.Call(context.Background(), func(ctx context.Context) error { return nil })
	_ = b.Call(context.Background(), func(ctx context.Context) error { return errors.New("boom") })

	stats := b.Stats()
	if stats.Requests == 0 {
		t.Fatalf("expected non-zero request count, got %+v", stats)
	}
}

func TestManager_AddProviderAndCall(t *testing.T) {
	m := NewManager()
	m.AddProvider(testConfig("kraken"))

	err := m.Call(context.Background(), "kraken", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestManager_CallFallsThroughWithoutBreaker(t *testing.T) {
	m := NewManager()
	called := false
	err := m.Call(context.Background(), "unregistered", func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatalf("expected fn to be called when no breaker is registered")
	}
}

func TestManager_UnhealthyProviders(t *testing.T) {
	m := NewManager()
	m.AddProvider(testConfig("kraken"))
	m.AddProvider(testConfig("mock"))

	failing := errors.New("boom")
	for i := 0; i < 5; i++ {
		_ = m.Call(context.Background(), "kraken", func(ctx context.Context) error { return failing })
	}

	down := m.UnhealthyProviders()
	if len(down) != 1 || down[0] != "kraken" {
		t.Fatalf("expected [kraken] to be unhealthy, got %v", down)
	}
}

func TestManager_Reset(t *testing.T) {
	m := NewManager()
	m.AddProvider(testConfig("kraken"))

	failing := errors.New("boom")
	for i := 0; i < 5; i++ {
		_ = m.Call(context.Background(), "kraken", func(ctx context.Context) error { return failing })
	}

	if err := m.Reset("kraken"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := m.GetBreaker("kraken")
	if got := b.Health(); got != Up {
		t.Fatalf("expected UP after reset, got %s", got)
	}

	if err := m.Reset("nonexistent"); err == nil {
		t.Fatalf("expected error resetting unregistered provider")
	}
}

package collector

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/marketintel/internal/cache"
	"github.com/sawpanic/marketintel/internal/provider"
	"github.com/sawpanic/marketintel/internal/providers/mock"
	"github.com/sawpanic/marketintel/internal/resolver"
	"github.com/sawpanic/marketintel/internal/store"
	"github.com/sawpanic/marketintel/internal/symbol"
)

func TestCollector_RunAppendsObservations(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(mock.New("BTC-USD", "ETH-USD"), 100)

	res := resolver.New(reg, cache.NewMemory(), time.Minute)
	st := store.NewMemory()

	c := New(Config{
		SymbolConcurrency: 2,
		MinProvidersOK:    1,
		CandleInterval:    "1h",
		CandleLookback:    60,
	}, res, st, zerolog.Nop())

	result, err := c.Run(context.Background(), []symbol.Symbol{"BTC-USD", "ETH-USD"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Succeeded != 2 {
		t.Fatalf("expected 2 successful collections, got %d (errors=%v)", result.Succeeded, result.Errors)
	}

	obs, ok, err := st.Latest(context.Background(), "BTC-USD")
	if err != nil || !ok {
		t.Fatalf("expected stored observation, err=%v ok=%v", err, ok)
	}
	if obs.SourceMeta.ProviderID != "mock" {
		t.Fatalf("expected mock provider as source, got %s", obs.SourceMeta.ProviderID)
	}
	if obs.Regime == "" {
		t.Fatalf("expected a classified regime to be attached to the observation")
	}
	if !obs.Aggregates.Valid {
		t.Fatalf("expected valid aggregates to be attached to the observation")
	}
}

func TestCollector_RunRejectsOverlap(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(mock.New("BTC-USD"), 100)
	res := resolver.New(reg, cache.NewMemory(), time.Minute)
	st := store.NewMemory()
	c := New(Config{SymbolConcurrency: 1, MinProvidersOK: 1, CandleInterval: "1h", CandleLookback: 60}, res, st, zerolog.Nop())

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	_, err := c.Run(context.Background(), []symbol.Symbol{"BTC-USD"})
	if err == nil {
		t.Fatalf("expected error when a pass is already running")
	}
}

package provider

import (
	"context"
	"testing"

	"github.com/sawpanic/marketintel/internal/circuit"
	"github.com/sawpanic/marketintel/internal/symbol"
)

type stubProvider struct {
	id     string
	health circuit.Health
}

func (s *stubProvider) ID() string                { return s.id }
func (s *stubProvider) Health() circuit.Health     { return s.health }
func (s *stubProvider) Capabilities() Capabilities { return Capabilities{} }
func (s *stubProvider) ListSymbols(ctx context.Context) ([]symbol.Symbol, error) {
	return nil, nil
}
func (s *stubProvider) GetCandles(ctx context.Context, sym symbol.Symbol, interval string, limit int) ([]Candle, error) {
	return nil, nil
}
func (s *stubProvider) GetOrderBook(ctx context.Context, sym symbol.Symbol, depth int) (OrderBook, error) {
	return OrderBook{}, nil
}
func (s *stubProvider) GetTrades(ctx context.Context, sym symbol.Symbol, limit int) ([]Trade, error) {
	return nil, nil
}
func (s *stubProvider) GetOpenInterest(ctx context.Context, sym symbol.Symbol) (OpenInterest, error) {
	return OpenInterest{}, nil
}
func (s *stubProvider) GetFunding(ctx context.Context, sym symbol.Symbol) (Funding, error) {
	return Funding{}, nil
}

func TestRegistry_RankedOrdersByPriority(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{id: "mock", health: circuit.Up}, 1)
	r.Register(&stubProvider{id: "kraken", health: circuit.Up}, 10)

	ranked := r.Ranked()
	if len(ranked) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(ranked))
	}
	if ranked[0].Provider.ID() != "kraken" {
		t.Fatalf("expected higher-priority kraken first, got %s", ranked[0].Provider.ID())
	}
}

func TestRegistry_DisabledExcludedFromRanked(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{id: "kraken", health: circuit.Up}, 10)
	if err := r.Enable("kraken", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Ranked()) != 0 {
		t.Fatalf("expected disabled provider to be excluded from ranked list")
	}
}

func TestRegistry_RankedHealthySkipsDown(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{id: "kraken", health: circuit.Down}, 10)
	r.Register(&stubProvider{id: "mock", health: circuit.Up}, 100)

	healthy := r.RankedHealthy()
	if len(healthy) != 1 || healthy[0].Provider.ID() != "mock" {
		t.Fatalf("expected only mock to be healthy, got %+v", healthy)
	}
}

func TestRegistry_EnableUnknownProvider(t *testing.T) {
	r := NewRegistry()
	if err := r.Enable("nonexistent", true); err == nil {
		t.Fatalf("expected error enabling unregistered provider")
	}
}

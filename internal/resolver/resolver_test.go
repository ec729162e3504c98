package resolver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sawpanic/marketintel/internal/cache"
	"github.com/sawpanic/marketintel/internal/circuit"
	"github.com/sawpanic/marketintel/internal/provider"
	"github.com/sawpanic/marketintel/internal/symbol"
)

type fakeProvider struct {
	id      string
	health  circuit.Health
	symbols []symbol.Symbol
}

func (f *fakeProvider) ID() string                { return f.id }
func (f *fakeProvider) Health() circuit.Health     { return f.health }
func (f *fakeProvider) Capabilities() provider.Capabilities { return provider.Capabilities{} }
func (f *fakeProvider) ListSymbols(ctx context.Context) ([]symbol.Symbol, error) {
	return f.symbols, nil
}
func (f *fakeProvider) GetCandles(ctx context.Context, sym symbol.Symbol, interval string, limit int) ([]provider.Candle, error) {
	return nil, nil
}
func (f *fakeProvider) GetOrderBook(ctx context.Context, sym symbol.Symbol, depth int) (provider.OrderBook, error) {
	return provider.OrderBook{}, nil
}
func (f *fakeProvider) GetTrades(ctx context.Context, sym symbol.Symbol, limit int) ([]provider.Trade, error) {
	return nil, nil
}
func (f *fakeProvider) GetOpenInterest(ctx context.Context, sym symbol.Symbol) (provider.OpenInterest, error) {
	return provider.OpenInterest{}, nil
}
func (f *fakeProvider) GetFunding(ctx context.Context, sym symbol.Symbol) (provider.Funding, error) {
	return provider.Funding{}, nil
}

func TestResolver_PicksHighestPriorityServingSymbol(t *testing.T) {
	reg := provider.NewRegistry()
	kraken := &fakeProvider{id: "kraken", health: circuit.Up, symbols: []symbol.Symbol{"BTC-USD"}}
	mock := &fakeProvider{id: "mock", health: circuit.Up, symbols: []symbol.Symbol{"BTC-USD", "ETH-USD"}}
	reg.Register(kraken, 10)
	reg.Register(mock, 1)

	r := New(reg, cache.NewMemory(), time.Minute)
	p, err := r.Resolve(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID() != "kraken" {
		t.Fatalf("expected kraken to serve BTC-USD, got %s", p.ID())
	}
}

func TestResolver_FallsBackToMockForUnlistedCommonSymbol(t *testing.T) {
	reg := provider.NewRegistry()
	kraken := &fakeProvider{id: "kraken", health: circuit.Up, symbols: []symbol.Symbol{"BTC-USD"}}
	mock := &fakeProvider{id: "mock", health: circuit.Up, symbols: []symbol.Symbol{"ETH-USD"}}
	reg.Register(kraken, 10)
	reg.Register(mock, 1)

	r := New(reg, cache.NewMemory(), time.Minute)
	p, err := r.Resolve(context.Background(), "ETH-USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID() != "mock" {
		t.Fatalf("expected mock to serve ETH-USD, got %s", p.ID())
	}
}

func TestResolver_NoHealthyProviders(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&fakeProvider{id: "kraken", health: circuit.Down}, 10)

	r := New(reg, cache.NewMemory(), time.Minute)
	if _, err := r.Resolve(context.Background(), "BTC-USD"); err == nil {
		t.Fatalf("expected error when no providers are healthy")
	}
}

// TestResolver_MixedHealthFallsThroughToMock exercises spec scenario S2: a
// registry with {A priority 10, B priority 5, mock priority 1}. A is DOWN;
// B's catalog contains ETHUSDT so resolve(ETHUSDT) returns B. B's catalog
// does not contain FOOBAR and A is DOWN, so resolve(FOOBAR) returns mock.
func TestResolver_MixedHealthFallsThroughToMock(t *testing.T) {
	reg := provider.NewRegistry()
	a := &fakeProvider{id: "A", health: circuit.Down, symbols: []symbol.Symbol{"ETHUSDT", "FOOBAR"}}
	b := &fakeProvider{id: "B", health: circuit.Up, symbols: []symbol.Symbol{"ETHUSDT"}}
	mock := &fakeProvider{id: "mock", health: circuit.Up, symbols: []symbol.Symbol{"ETHUSDT", "FOOBAR"}}
	reg.Register(a, 10)
	reg.Register(b, 5)
	reg.Register(mock, 1)

	r := New(reg, cache.NewMemory(), time.Minute)

	p, err := r.Resolve(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID() != "B" {
		t.Fatalf("expected B to serve ETHUSDT with A down, got %s", p.ID())
	}

	p, err = r.Resolve(context.Background(), "FOOBAR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID() != "mock" {
		t.Fatalf("expected mock to serve FOOBAR when no healthy provider lists it, got %s", p.ID())
	}
}

// TestResolver_SkipsMockForCommonSymbolWhenRealProviderPresent exercises the
// mock-skip rule directly: even though mock's catalog lists a common-set
// symbol, a real provider that also lists it must win.
func TestResolver_SkipsMockForCommonSymbolWhenRealProviderPresent(t *testing.T) {
	reg := provider.NewRegistry()
	kraken := &fakeProvider{id: "kraken", health: circuit.Up, symbols: []symbol.Symbol{"BTC-USD"}}
	mock := &fakeProvider{id: "mock", health: circuit.Up, symbols: []symbol.Symbol{"BTC-USD"}}
	reg.Register(mock, 1000) // even registered above kraken, mock must still be skipped
	reg.Register(kraken, 10)

	r := New(reg, cache.NewMemory(), time.Minute)
	p, err := r.Resolve(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID() != "kraken" {
		t.Fatalf("expected mock to be skipped for a common symbol while kraken is present, got %s", p.ID())
	}
}

// TestResolver_OptimisticFallbackOnCatalogFetchError exercises the "fetch
// fails but symbol is in the common set" optimistic-return rule: a
// non-mock provider whose ListSymbols call errors is still returned for a
// common-set symbol rather than skipped.
func TestResolver_OptimisticFallbackOnCatalogFetchError(t *testing.T) {
	reg := provider.NewRegistry()
	kraken := &erroringProvider{id: "kraken", health: circuit.Up}
	mock := &fakeProvider{id: "mock", health: circuit.Up, symbols: []symbol.Symbol{"BTC-USD"}}
	reg.Register(kraken, 10)
	reg.Register(mock, 1)

	r := New(reg, cache.NewMemory(), time.Minute)
	p, err := r.Resolve(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID() != "kraken" {
		t.Fatalf("expected optimistic fallback to kraken for a common symbol on catalog fetch error, got %s", p.ID())
	}
}

type erroringProvider struct {
	id     string
	health circuit.Health
}

func (e *erroringProvider) ID() string                { return e.id }
func (e *erroringProvider) Health() circuit.Health     { return e.health }
func (e *erroringProvider) Capabilities() provider.Capabilities { return provider.Capabilities{} }
func (e *erroringProvider) ListSymbols(ctx context.Context) ([]symbol.Symbol, error) {
	return nil, fmt.Errorf("catalog unavailable")
}
func (e *erroringProvider) GetCandles(ctx context.Context, sym symbol.Symbol, interval string, limit int) ([]provider.Candle, error) {
	return nil, nil
}
func (e *erroringProvider) GetOrderBook(ctx context.Context, sym symbol.Symbol, depth int) (provider.OrderBook, error) {
	return provider.OrderBook{}, nil
}
func (e *erroringProvider) GetTrades(ctx context.Context, sym symbol.Symbol, limit int) ([]provider.Trade, error) {
	return nil, nil
}
func (e *erroringProvider) GetOpenInterest(ctx context.Context, sym symbol.Symbol) (provider.OpenInterest, error) {
	return provider.OpenInterest{}, nil
}
func (e *erroringProvider) GetFunding(ctx context.Context, sym symbol.Symbol) (provider.Funding, error) {
	return provider.Funding{}, nil
}

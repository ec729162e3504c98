package mock

import (
	"context"
	"testing"

	"github.com/sawpanic/marketintel/internal/circuit"
	"github.com/sawpanic/marketintel/internal/symbol"
)

func TestProvider_ListSymbolsDefaults(t *testing.T) {
	p := New()
	symbols, err := p.ListSymbols(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(symbols) != 3 {
		t.Fatalf("expected 3 default symbols, got %d", len(symbols))
	}
}

func TestProvider_GetCandlesDeterministicCount(t *testing.T) {
	p := New(symbol.Symbol("BTC-USD"))
	candles, err := p.GetCandles(context.Background(), "BTC-USD", "1h", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 10 {
		t.Fatalf("expected 10 candles, got %d", len(candles))
	}
}

func TestProvider_GetOrderBookSpread(t *testing.T) {
	p := New()
	book, err := p.GetOrderBook(context.Background(), "BTC-USD", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if book.SpreadBps() <= 0 {
		t.Fatalf("expected positive synthetic spread, got %f", book.SpreadBps())
	}
}

func TestProvider_Health(t *testing.T) {
	p := New()
	if p.Health() != circuit.Up {
		t.Fatalf("expected mock provider to always report UP")
	}
}

// Package mock implements a synthetic provider that is always registered at
// the lowest priority, so the platform can run end-to-end without any live
// exchange credentials and so tests have a deterministic data source.
package mock

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sawpanic/marketintel/internal/circuit"
	"github.com/sawpanic/marketintel/internal/provider"
	"github.com/sawpanic/marketintel/internal/symbol"
)

// Provider generates deterministic synthetic market data seeded by symbol.
type Provider struct {
	mu      sync.Mutex
	symbols []symbol.Symbol
}

// New returns a mock provider serving the given universe of symbols. If none
// are given it defaults to a small fixed set.
func New(symbols ...symbol.Symbol) *Provider {
	if len(symbols) == 0 {
		symbols = []symbol.Symbol{"BTC-USD", "ETH-USD", "SOL-USD"}
	}
	return &Provider{symbols: symbols}
}

func (p *Provider) ID() string { return "mock" }

func (p *Provider) Health() circuit.Health { return circuit.Up }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Candles:      true,
		OrderBook:    true,
		Trades:       true,
		OpenInterest: true,
		Funding:      true,
	}
}

func (p *Provider) ListSymbols(ctx context.Context) ([]symbol.Symbol, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]symbol.Symbol, len(p.symbols))
	copy(out, p.symbols)
	return out, nil
}

// basePrice derives a stable synthetic price from the symbol's base asset so
// repeated calls for the same symbol are self-consistent.
func basePrice(sym symbol.Symbol) float64 {
	var sum float64
	for _, r := range sym.Base() {
		sum += float64(r)
	}
	return 100 + sum*3.7
}

func (p *Provider) GetCandles(ctx context.Context, sym symbol.Symbol, interval string, limit int) ([]provider.Candle, error) {
	if limit <= 0 {
		limit = 1
	}
	price := basePrice(sym)
	now := time.Now().UTC()
	step := intervalDuration(interval)

	out := make([]provider.Candle, 0, limit)
	for i := limit - 1; i >= 0; i-- {
		ts := now.Add(-time.Duration(i) * step)
		wobble := math.Sin(float64(ts.Unix())/3600) * price * 0.01
		open := price + wobble
		high := open + price*0.002
		low := open - price*0.002
		close := open + price*0.0005
		out = append(out, provider.Candle{
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    1000 + wobble*10,
		})
	}
	return out, nil
}

func intervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "1h":
		return time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

func (p *Provider) GetOrderBook(ctx context.Context, sym symbol.Symbol, depth int) (provider.OrderBook, error) {
	if depth <= 0 {
		depth = 5
	}
	price := basePrice(sym)
	book := provider.OrderBook{Symbol: sym, Timestamp: time.Now().UTC()}
	for i := 0; i < depth; i++ {
		step := float64(i+1) * price * 0.0005
		book.Bids = append(book.Bids, provider.OrderBookLevel{Price: price - step, Size: 10 - float64(i)})
		book.Asks = append(book.Asks, provider.OrderBookLevel{Price: price + step, Size: 10 - float64(i)})
	}
	return book, nil
}

func (p *Provider) GetTrades(ctx context.Context, sym symbol.Symbol, limit int) ([]provider.Trade, error) {
	if limit <= 0 {
		limit = 1
	}
	price := basePrice(sym)
	now := time.Now().UTC()
	out := make([]provider.Trade, 0, limit)
	for i := 0; i < limit; i++ {
		side := "buy"
		if i%2 == 1 {
			side = "sell"
		}
		out = append(out, provider.Trade{
			Timestamp: now.Add(-time.Duration(i) * time.Second),
			Price:     price,
			Size:      0.1 * float64(i+1),
			Side:      side,
		})
	}
	return out, nil
}

func (p *Provider) GetOpenInterest(ctx context.Context, sym symbol.Symbol) (provider.OpenInterest, error) {
	return provider.OpenInterest{Timestamp: time.Now().UTC(), Value: basePrice(sym) * 1000}, nil
}

func (p *Provider) GetFunding(ctx context.Context, sym symbol.Symbol) (provider.Funding, error) {
	return provider.Funding{
		Timestamp: time.Now().UTC(),
		Rate:      0.0001,
		NextTime:  time.Now().UTC().Add(8 * time.Hour),
	}, nil
}

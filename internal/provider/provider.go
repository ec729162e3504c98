// Package provider defines the normalized, read-only contract every market
// data source implements, and a Registry that ranks and selects among them.
package provider

import (
	"context"
	"time"

	"github.com/sawpanic/marketintel/internal/circuit"
	"github.com/sawpanic/marketintel/internal/symbol"
)

// Candle is a single OHLCV bar.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// OrderBookLevel is one price/size rung of an order book side.
type OrderBookLevel struct {
	Price float64
	Size  float64
}

// OrderBook is a normalized top-of-book/depth snapshot.
type OrderBook struct {
	Symbol    symbol.Symbol
	Timestamp time.Time
	Bids      []OrderBookLevel
	Asks      []OrderBookLevel
}

// BestBid returns the highest bid level, if any.
func (b OrderBook) BestBid() (OrderBookLevel, bool) {
	if len(b.Bids) == 0 {
		return OrderBookLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask level, if any.
func (b OrderBook) BestAsk() (OrderBookLevel, bool) {
	if len(b.Asks) == 0 {
		return OrderBookLevel{}, false
	}
	return b.Asks[0], true
}

// SpreadBps returns the best bid/ask spread in basis points, or 0 if either
// side of the book is empty.
func (b OrderBook) SpreadBps() float64 {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk || ask.Price == 0 {
		return 0
	}
	mid := (bid.Price + ask.Price) / 2
	if mid == 0 {
		return 0
	}
	return (ask.Price - bid.Price) / mid * 10000
}

// Trade is a single executed trade print.
type Trade struct {
	Timestamp time.Time
	Price     float64
	Size      float64
	Side      string // "buy" or "sell"
}

// OpenInterest is a point-in-time open interest reading for derivatives
// instruments.
type OpenInterest struct {
	Timestamp time.Time
	Value     float64
}

// Funding is a point-in-time funding rate reading for perpetual instruments.
type Funding struct {
	Timestamp time.Time
	Rate      float64
	NextTime  time.Time
}

// Capabilities describes which optional endpoints a provider implements,
// since not every venue exposes open interest or funding for every symbol.
type Capabilities struct {
	Candles      bool
	OrderBook    bool
	Trades       bool
	OpenInterest bool
	Funding      bool
}

// Provider is the normalized read-only contract every market data source
// implements. Implementations must be safe for concurrent use.
type Provider interface {
	// ID is the stable identifier used as the registry key, e.g. "kraken".
	ID() string

	// Health reports the provider's current circuit health.
	Health() circuit.Health

	// ListSymbols returns the instruments this provider can serve.
	ListSymbols(ctx context.Context) ([]symbol.Symbol, error)

	GetCandles(ctx context.Context, sym symbol.Symbol, interval string, limit int) ([]Candle, error)
	GetOrderBook(ctx context.Context, sym symbol.Symbol, depth int) (OrderBook, error)
	GetTrades(ctx context.Context, sym symbol.Symbol, limit int) ([]Trade, error)
	GetOpenInterest(ctx context.Context, sym symbol.Symbol) (OpenInterest, error)
	GetFunding(ctx context.Context, sym symbol.Symbol) (Funding, error)

	Capabilities() Capabilities
}

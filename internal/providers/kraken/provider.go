package kraken

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sawpanic/marketintel/internal/circuit"
	"github.com/sawpanic/marketintel/internal/provider"
	"github.com/sawpanic/marketintel/internal/ratelimit"
	"github.com/sawpanic/marketintel/internal/symbol"
)

// Provider adapts Kraken's public REST API (and, optionally, its WebSocket
// order-book feed) to the platform's normalized Provider contract.
type Provider struct {
	cfg        Config
	cl         *client
	breaker    *circuit.Manager
	pairIndex  map[symbol.Symbol]string // canonical symbol -> kraken wire pair
}

// New builds a Kraken provider. limiter and breaker must already have an
// entry registered under the name "kraken" (see internal/config defaults);
// this keeps scheduling policy centralized rather than duplicated per
// provider.
func New(cfg Config, limiter *ratelimit.Scheduler, breaker *circuit.Manager) *Provider {
	return &Provider{
		cfg:       cfg,
		cl:        newClient(cfg, limiter, breaker, "kraken"),
		breaker:   breaker,
		pairIndex: make(map[symbol.Symbol]string),
	}
}

func (p *Provider) ID() string { return "kraken" }

func (p *Provider) Health() circuit.Health {
	b, ok := p.breaker.GetBreaker("kraken")
	if !ok {
		return circuit.Initializing
	}
	return b.Health()
}

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Candles:      true,
		OrderBook:    true,
		Trades:       true,
		OpenInterest: false, // spot-only public endpoints used here
		Funding:      false,
	}
}

// ListSymbols queries Kraken's AssetPairs endpoint and normalizes every
// tradable pair into canonical "BASE-QUOTE" form.
func (p *Provider) ListSymbols(ctx context.Context) ([]symbol.Symbol, error) {
	var result assetPairsResult
	if err := p.cl.get(ctx, "/0/public/AssetPairs", "", &result); err != nil {
		return nil, fmt.Errorf("kraken: list symbols: %w", err)
	}

	out := make([]symbol.Symbol, 0, len(result))
	for wirePair, meta := range result {
		base := fromWireAsset(meta.Base)
		quote := fromWireAsset(meta.Quote)
		if base == "" || quote == "" {
			continue
		}
		sym := symbol.Symbol(base + "-" + quote)
		p.pairIndex[sym] = wirePair
		out = append(out, sym)
	}
	return out, nil
}

// wirePair resolves a canonical symbol to Kraken's REST pair name, falling
// back to direct construction when ListSymbols has not yet been called.
func (p *Provider) wirePair(sym symbol.Symbol) string {
	if wp, ok := p.pairIndex[sym]; ok {
		return wp
	}
	return toWirePair(sym.Base(), sym.Quote())
}

func (p *Provider) GetCandles(ctx context.Context, sym symbol.Symbol, interval string, limit int) ([]provider.Candle, error) {
	minutes := intervalToMinutes(interval)
	q := url.Values{}
	q.Set("pair", p.wirePair(sym))
	q.Set("interval", strconv.Itoa(minutes))

	var result map[string]interface{}
	if err := p.cl.get(ctx, "/0/public/OHLC", q.Encode(), &result); err != nil {
		return nil, fmt.Errorf("kraken: get candles: %w", err)
	}

	rows, err := extractOHLCRows(result, p.wirePair(sym))
	if err != nil {
		return nil, err
	}

	candles := make([]provider.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := parseOHLCRow(row)
		if err != nil {
			continue
		}
		candles = append(candles, c)
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

func intervalToMinutes(interval string) int {
	switch interval {
	case "1m":
		return 1
	case "5m":
		return 5
	case "15m":
		return 15
	case "1h":
		return 60
	case "4h":
		return 240
	case "1d":
		return 1440
	default:
		return 1
	}
}

// extractOHLCRows pulls the pair-keyed array out of Kraken's OHLC result,
// which mixes a "last" cursor field alongside the pair key at the top level.
func extractOHLCRows(result map[string]interface{}, pair string) ([]ohlcRow, error) {
	raw, ok := result[pair]
	if !ok {
		return nil, fmt.Errorf("kraken: no OHLC rows for pair %s", pair)
	}
	rawRows, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("kraken: unexpected OHLC shape for pair %s", pair)
	}
	rows := make([]ohlcRow, 0, len(rawRows))
	for _, r := range rawRows {
		row, ok := r.([]interface{})
		if !ok {
			continue
		}
		rows = append(rows, ohlcRow(row))
	}
	return rows, nil
}

func parseOHLCRow(row ohlcRow) (provider.Candle, error) {
	if len(row) < 7 {
		return provider.Candle{}, fmt.Errorf("kraken: malformed OHLC row")
	}
	ts, _ := row[0].(float64)
	open, err := parseFloatField(row[1])
	if err != nil {
		return provider.Candle{}, err
	}
	high, err := parseFloatField(row[2])
	if err != nil {
		return provider.Candle{}, err
	}
	low, err := parseFloatField(row[3])
	if err != nil {
		return provider.Candle{}, err
	}
	closePrice, err := parseFloatField(row[4])
	if err != nil {
		return provider.Candle{}, err
	}
	volume, err := parseFloatField(row[6])
	if err != nil {
		return provider.Candle{}, err
	}
	return provider.Candle{
		Timestamp: time.Unix(int64(ts), 0).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}

func parseFloatField(v interface{}) (float64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("kraken: expected string numeric field, got %T", v)
	}
	return strconv.ParseFloat(s, 64)
}

func (p *Provider) GetOrderBook(ctx context.Context, sym symbol.Symbol, depth int) (provider.OrderBook, error) {
	if depth <= 0 {
		depth = 10
	}
	q := url.Values{}
	q.Set("pair", p.wirePair(sym))
	q.Set("count", strconv.Itoa(depth))

	var result map[string]depthResult
	if err := p.cl.get(ctx, "/0/public/Depth", q.Encode(), &result); err != nil {
		return provider.OrderBook{}, fmt.Errorf("kraken: get order book: %w", err)
	}

	data, ok := result[p.wirePair(sym)]
	if !ok {
		return provider.OrderBook{}, fmt.Errorf("kraken: no book data for %s", sym)
	}

	book := provider.OrderBook{Symbol: sym, Timestamp: time.Now().UTC()}
	for _, lvl := range data.Bids {
		price, size, err := parseLevel(lvl)
		if err != nil {
			continue
		}
		book.Bids = append(book.Bids, provider.OrderBookLevel{Price: price, Size: size})
	}
	for _, lvl := range data.Asks {
		price, size, err := parseLevel(lvl)
		if err != nil {
			continue
		}
		book.Asks = append(book.Asks, provider.OrderBookLevel{Price: price, Size: size})
	}
	return book, nil
}

func (p *Provider) GetTrades(ctx context.Context, sym symbol.Symbol, limit int) ([]provider.Trade, error) {
	q := url.Values{}
	q.Set("pair", p.wirePair(sym))

	var result map[string]interface{}
	if err := p.cl.get(ctx, "/0/public/Trades", q.Encode(), &result); err != nil {
		return nil, fmt.Errorf("kraken: get trades: %w", err)
	}

	raw, ok := result[p.wirePair(sym)]
	if !ok {
		return nil, fmt.Errorf("kraken: no trades for %s", sym)
	}
	rawRows, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("kraken: unexpected trades shape for %s", sym)
	}

	out := make([]provider.Trade, 0, len(rawRows))
	for _, r := range rawRows {
		row, ok := r.([]interface{})
		if !ok {
			continue
		}
		te := tradeEntry(row)
		price, err := te.priceFloat()
		if err != nil {
			continue
		}
		size, err := te.volumeFloat()
		if err != nil {
			continue
		}
		out = append(out, provider.Trade{
			Timestamp: te.timestamp(),
			Price:     price,
			Size:      size,
			Side:      te.side(),
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// GetOpenInterest is unsupported on Kraken's public spot endpoints; callers
// select a provider with Capabilities().OpenInterest before calling this.
func (p *Provider) GetOpenInterest(ctx context.Context, sym symbol.Symbol) (provider.OpenInterest, error) {
	return provider.OpenInterest{}, fmt.Errorf("kraken: open interest not supported on spot public API")
}

// GetFunding is unsupported on Kraken's public spot endpoints.
func (p *Provider) GetFunding(ctx context.Context, sym symbol.Symbol) (provider.Funding, error) {
	return provider.Funding{}, fmt.Errorf("kraken: funding not supported on spot public API")
}

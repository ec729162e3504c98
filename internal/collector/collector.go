// Package collector runs the periodic observation pass: for every tracked
// symbol, pull the latest market data from the best available provider,
// compute the indicator catalog, classify the regime, and append an
// observation.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/marketintel/internal/indicators"
	"github.com/sawpanic/marketintel/internal/provider"
	"github.com/sawpanic/marketintel/internal/regimeengine"
	"github.com/sawpanic/marketintel/internal/resolver"
	"github.com/sawpanic/marketintel/internal/store"
	"github.com/sawpanic/marketintel/internal/symbol"
)

// Config parameterizes a collection pass.
type Config struct {
	Interval          time.Duration
	MinProvidersOK    int
	SymbolConcurrency int
	CandleInterval    string
	CandleLookback    int
	OrderBookDepth    int
	TradeLookback     int
}

// Collector runs periodic, per-symbol fan-out passes against the resolver,
// writing results to a Store. Passes never overlap: a new tick is skipped if
// the previous one is still running.
type Collector struct {
	cfg      Config
	resolver *resolver.Resolver
	store    store.Store
	log      zerolog.Logger

	mu      sync.Mutex
	running bool
}

// New builds a Collector.
func New(cfg Config, res *resolver.Resolver, st store.Store, log zerolog.Logger) *Collector {
	if cfg.OrderBookDepth <= 0 {
		cfg.OrderBookDepth = 10
	}
	if cfg.TradeLookback <= 0 {
		cfg.TradeLookback = 50
	}
	return &Collector{cfg: cfg, resolver: res, store: st, log: log}
}

// PassResult summarizes one collection pass across the symbol universe.
type PassResult struct {
	Attempted int
	Succeeded int
	Skipped   []symbol.Symbol
	Errors    map[symbol.Symbol]error
}

// Run executes a single pass over symbols, fanning out up to
// cfg.SymbolConcurrency at a time. If a pass is already running, Run returns
// immediately with an error rather than overlapping.
func (c *Collector) Run(ctx context.Context, symbols []symbol.Symbol) (PassResult, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return PassResult{}, fmt.Errorf("collector: pass already in progress")
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	concurrency := c.cfg.SymbolConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var resultMu sync.Mutex
	result := PassResult{Attempted: len(symbols), Errors: make(map[symbol.Symbol]error)}

	for _, sym := range symbols {
		sym := sym
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if err := c.collectOne(ctx, sym); err != nil {
				resultMu.Lock()
				result.Errors[sym] = err
				result.Skipped = append(result.Skipped, sym)
				resultMu.Unlock()
				c.log.Warn().Err(err).Str("symbol", sym.String()).Msg("observation collection failed")
				return
			}
			resultMu.Lock()
			result.Succeeded++
			resultMu.Unlock()
		}()
	}
	wg.Wait()

	if result.Succeeded < c.cfg.MinProvidersOK {
		c.log.Warn().Int("succeeded", result.Succeeded).Int("min_required", c.cfg.MinProvidersOK).
			Msg("collection pass fell below minimum sufficiency threshold")
	}

	return result, nil
}

// snapshot is the aggregate-input material gathered from a provider's
// optional endpoints for one symbol; any field may be zero-valued when the
// underlying call failed, per the sufficiency-gate contract (spec §4.5 S3):
// a failed order book or funding fetch degrades the observation rather than
// failing the whole pass.
type snapshot struct {
	book     provider.OrderBook
	haveBook bool
	trades   []provider.Trade
	haveOI   bool
	oi       provider.OpenInterest
	haveFund bool
	funding  provider.Funding
	missing  []string
}

func (c *Collector) collectOne(ctx context.Context, sym symbol.Symbol) error {
	p, err := c.resolver.Resolve(ctx, sym)
	if err != nil {
		return fmt.Errorf("resolve provider: %w", err)
	}

	candles, err := p.GetCandles(ctx, sym, c.cfg.CandleInterval, c.cfg.CandleLookback)
	if err != nil {
		return fmt.Errorf("get candles from %s: %w", p.ID(), err)
	}
	if len(candles) == 0 {
		return fmt.Errorf("no candles returned by %s", p.ID())
	}

	snap := c.fetchSnapshot(ctx, p, sym)

	closes := make([]float64, len(candles))
	bars := make([]indicators.Bar, len(candles))
	for i, cndl := range candles {
		closes[i] = cndl.Close
		bars[i] = indicators.Bar{High: cndl.High, Low: cndl.Low, Close: cndl.Close, Volume: cndl.Volume}
	}

	input := indicators.Input{
		Closes:    closes,
		Bars:      bars,
		OrderBook: snap.book,
		HaveBook:  snap.haveBook,
		Trades:    snap.trades,
		OI:        snap.oi,
		HaveOI:    snap.haveOI,
		Funding:   snap.funding,
		HaveFund:  snap.haveFund,
	}
	result := indicators.Compute(input)
	latest := candles[len(candles)-1]

	returns := closeReturns(closes)
	agg := regimeengine.Aggregate(regimeengine.AggregateInputs{
		RecentReturns:       returns,
		BidDepth:            bookDepth(snap.book.Bids),
		AskDepth:            bookDepth(snap.book.Asks),
		FundingRate:         snap.funding.Rate,
		OpenInterestDelta:   0,
		LiquidationCascade:  detectCascade(snap.trades),
		VolatilityReference: 0,
	})
	detection := regimeengine.Classify(agg, regimeengine.DefaultThresholds())

	obs := store.Observation{
		Symbol:           sym,
		Timestamp:        latest.Timestamp,
		Price:            latest.Close,
		Volume:           latest.Volume,
		Indicators:       result.Values,
		Completeness:     result.Completeness(),
		Regime:           detection.Regime,
		RegimeConfidence: detection.Confidence,
		Aggregates:       agg,
		SourceMeta:       store.SourceMeta{ProviderID: p.ID(), DataMode: "live", Missing: snap.missing},
	}

	if err := c.store.Append(ctx, obs); err != nil {
		return fmt.Errorf("append observation: %w", err)
	}
	return nil
}

// fetchSnapshot pulls the provider's order-book, trade, open-interest and
// funding endpoints, per spec §4.5 step 2's full aggregate snapshot. Each
// call degrades independently: a failure is recorded in snap.missing
// instead of failing the whole collection (spec §4.5 S3, the sufficiency
// gate).
func (c *Collector) fetchSnapshot(ctx context.Context, p provider.Provider, sym symbol.Symbol) snapshot {
	var snap snapshot
	caps := p.Capabilities()

	if caps.OrderBook {
		book, err := p.GetOrderBook(ctx, sym, c.cfg.OrderBookDepth)
		if err != nil {
			snap.missing = append(snap.missing, "orderBook")
			c.log.Debug().Err(err).Str("symbol", sym.String()).Msg("order book fetch failed")
		} else {
			snap.book = book
			snap.haveBook = true
		}
	}

	if caps.Trades {
		trades, err := p.GetTrades(ctx, sym, c.cfg.TradeLookback)
		if err != nil {
			snap.missing = append(snap.missing, "trades")
			c.log.Debug().Err(err).Str("symbol", sym.String()).Msg("trades fetch failed")
		} else {
			snap.trades = trades
		}
	}

	if caps.OpenInterest {
		oi, err := p.GetOpenInterest(ctx, sym)
		if err != nil {
			snap.missing = append(snap.missing, "openInterest")
			c.log.Debug().Err(err).Str("symbol", sym.String()).Msg("open interest fetch failed")
		} else {
			snap.oi = oi
			snap.haveOI = true
		}
	}

	if caps.Funding {
		funding, err := p.GetFunding(ctx, sym)
		if err != nil {
			snap.missing = append(snap.missing, "funding")
			c.log.Debug().Err(err).Str("symbol", sym.String()).Msg("funding fetch failed")
		} else {
			snap.funding = funding
			snap.haveFund = true
		}
	}

	return snap
}

func closeReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, (closes[i]-closes[i-1])/closes[i-1])
	}
	return out
}

func bookDepth(levels []provider.OrderBookLevel) float64 {
	var total float64
	for _, l := range levels {
		total += l.Price * l.Size
	}
	return total
}

// detectCascade flags a liquidation cascade from a lopsided, one-sided burst
// of recent trade prints: a large majority on one side within the fetched
// window is the cheap proxy this platform uses in place of a dedicated
// liquidation feed.
func detectCascade(trades []provider.Trade) bool {
	if len(trades) < 10 {
		return false
	}
	var sells int
	for _, t := range trades {
		if t.Side == "sell" {
			sells++
		}
	}
	ratio := float64(sells) / float64(len(trades))
	return ratio >= 0.9 || ratio <= 0.1
}

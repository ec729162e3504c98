// Package backfill drives bounded historical candle ingestion: chunked pulls
// from a provider, written through to the observation store, with progress
// tracking and cooperative cancellation.
package backfill

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/marketintel/internal/indicators"
	"github.com/sawpanic/marketintel/internal/provider"
	"github.com/sawpanic/marketintel/internal/ratelimit"
	"github.com/sawpanic/marketintel/internal/regimeengine"
	"github.com/sawpanic/marketintel/internal/store"
	"github.com/sawpanic/marketintel/internal/symbol"
)

// Status is the lifecycle state of a backfill run.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

// RunState is a point-in-time snapshot of one backfill run's progress.
type RunState struct {
	ID             uuid.UUID
	Symbol         symbol.Symbol
	Status         Status
	ChunksTotal    int
	ChunksDone     int
	StartedAt      time.Time
	UpdatedAt      time.Time
	EstimatedDone  time.Time
	Err            string
}

// Request parameterizes a single backfill run.
type Request struct {
	Symbol         symbol.Symbol
	Interval       string
	From           time.Time
	To             time.Time
	ChunkCandles   int
	ThrottleCooldown time.Duration
}

// Manager tracks in-flight and completed backfill runs, keyed by run id.
type Manager struct {
	mu      sync.RWMutex
	runs    map[uuid.UUID]*RunState
	cancels map[uuid.UUID]context.CancelFunc
	limiter *ratelimit.Scheduler
	store   store.Store
}

// NewManager builds a backfill Manager. limiter must have an entry for the
// provider being backfilled so 429 pauses share the same schedule as live
// collection.
func NewManager(limiter *ratelimit.Scheduler, st store.Store) *Manager {
	return &Manager{runs: make(map[uuid.UUID]*RunState), cancels: make(map[uuid.UUID]context.CancelFunc), limiter: limiter, store: st}
}

// Start launches a backfill run against p in its own goroutine and returns
// its run id immediately; callers poll Get or cancel via ctx, or call
// Cancel with the returned id.
func (m *Manager) Start(ctx context.Context, p provider.Provider, req Request) uuid.UUID {
	id := uuid.New()
	chunkDuration := intervalDuration(req.Interval) * time.Duration(req.ChunkCandles)
	total := int(req.To.Sub(req.From)/chunkDuration) + 1
	if total < 1 {
		total = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	state := &RunState{
		ID:          id,
		Symbol:      req.Symbol,
		Status:      StatusRunning,
		ChunksTotal: total,
		StartedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	m.mu.Lock()
	m.runs[id] = state
	m.cancels[id] = cancel
	m.mu.Unlock()

	go m.run(runCtx, id, p, req, chunkDuration)
	return id
}

// Cancel stops a running backfill's chunk loop cooperatively. It is a no-op
// for runs that have already finished, and returns an error for an id that
// Start never returned.
func (m *Manager) Cancel(id uuid.UUID) error {
	m.mu.RLock()
	cancel, ok := m.cancels[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("backfill: no run %s", id)
	}
	cancel()
	return nil
}

func (m *Manager) run(ctx context.Context, id uuid.UUID, p provider.Provider, req Request, chunkDuration time.Duration) {
	cursor := req.From
	for cursor.Before(req.To) {
		select {
		case <-ctx.Done():
			m.finish(id, StatusCancelled, ctx.Err())
			return
		default:
		}

		candles, err := p.GetCandles(ctx, req.Symbol, req.Interval, req.ChunkCandles)
		if err != nil {
			if isRateLimited(err) {
				cooldown := req.ThrottleCooldown
				if cooldown < 5*time.Second {
					cooldown = 5 * time.Second
				}
				_ = m.limiter.PauseOnThrottle(ctx, p.ID(), cooldown)
				continue
			}
			m.finish(id, StatusFailed, err)
			return
		}

		if err := m.writeChunk(ctx, req.Symbol, p, candles); err != nil {
			m.finish(id, StatusFailed, err)
			return
		}

		cursor = cursor.Add(chunkDuration)
		m.advance(id)
	}
	m.finish(id, StatusCompleted, nil)
}

// writeChunk computes indicators and regime for every candle in a backfilled
// chunk and appends one observation per candle. Order book, trade, open
// interest and funding history isn't retrievable for past timestamps, so the
// chunk's aggregates are derived from a single best-effort current-state
// snapshot of p applied across the whole chunk (recorded under "backfill"
// data mode so downstream consumers can weight it differently from "live").
func (m *Manager) writeChunk(ctx context.Context, sym symbol.Symbol, p provider.Provider, candles []provider.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	closes := make([]float64, len(candles))
	bars := make([]indicators.Bar, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		bars[i] = indicators.Bar{High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
	}

	snap, missing := fetchSnapshot(ctx, p, sym)
	input := indicators.Input{
		Closes: closes, Bars: bars,
		OrderBook: snap.book, HaveBook: snap.haveBook,
		Trades: snap.trades,
		OI:     snap.oi, HaveOI: snap.haveOI,
		Funding: snap.funding, HaveFund: snap.haveFund,
	}
	result := indicators.Compute(input)

	agg := regimeengine.Aggregate(regimeengine.AggregateInputs{
		RecentReturns:      chunkReturns(closes),
		BidDepth:           depthOf(snap.book.Bids),
		AskDepth:           depthOf(snap.book.Asks),
		FundingRate:        snap.funding.Rate,
		LiquidationCascade: false,
	})
	detection := regimeengine.Classify(agg, regimeengine.DefaultThresholds())

	for _, c := range candles {
		obs := store.Observation{
			Symbol:           sym,
			Timestamp:        c.Timestamp,
			Price:            c.Close,
			Volume:           c.Volume,
			Indicators:       result.Values,
			Completeness:     result.Completeness(),
			Regime:           detection.Regime,
			RegimeConfidence: detection.Confidence,
			Aggregates:       agg,
			SourceMeta:       store.SourceMeta{ProviderID: p.ID(), DataMode: "backfill", Missing: missing},
		}
		if err := m.store.Append(ctx, obs); err != nil {
			return fmt.Errorf("backfill: append observation: %w", err)
		}
	}
	return nil
}

type chunkSnapshot struct {
	book     provider.OrderBook
	haveBook bool
	trades   []provider.Trade
	oi       provider.OpenInterest
	haveOI   bool
	funding  provider.Funding
	haveFund bool
}

func fetchSnapshot(ctx context.Context, p provider.Provider, sym symbol.Symbol) (chunkSnapshot, []string) {
	var snap chunkSnapshot
	var missing []string
	caps := p.Capabilities()

	if caps.OrderBook {
		if book, err := p.GetOrderBook(ctx, sym, 10); err == nil {
			snap.book, snap.haveBook = book, true
		} else {
			missing = append(missing, "orderBook")
		}
	}
	if caps.Trades {
		if trades, err := p.GetTrades(ctx, sym, 50); err == nil {
			snap.trades = trades
		} else {
			missing = append(missing, "trades")
		}
	}
	if caps.OpenInterest {
		if oi, err := p.GetOpenInterest(ctx, sym); err == nil {
			snap.oi, snap.haveOI = oi, true
		} else {
			missing = append(missing, "openInterest")
		}
	}
	if caps.Funding {
		if funding, err := p.GetFunding(ctx, sym); err == nil {
			snap.funding, snap.haveFund = funding, true
		} else {
			missing = append(missing, "funding")
		}
	}
	return snap, missing
}

func chunkReturns(closes []float64) []float64 {
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

func depthOf(levels []provider.OrderBookLevel) float64 {
	var total float64
	for _, l := range levels {
		total += l.Price * l.Size
	}
	return total
}

func (m *Manager) advance(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.runs[id]
	if !ok {
		return
	}
	s.ChunksDone++
	s.UpdatedAt = time.Now().UTC()
	if s.ChunksDone > 0 {
		elapsed := s.UpdatedAt.Sub(s.StartedAt)
		perChunk := elapsed / time.Duration(s.ChunksDone)
		remaining := s.ChunksTotal - s.ChunksDone
		s.EstimatedDone = s.UpdatedAt.Add(perChunk * time.Duration(remaining))
	}
}

func (m *Manager) finish(id uuid.UUID, status Status, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.runs[id]
	if !ok {
		return
	}
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
	if err != nil {
		s.Err = err.Error()
	}
}

// Get returns a snapshot of a run's state.
func (m *Manager) Get(id uuid.UUID) (RunState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.runs[id]
	if !ok {
		return RunState{}, false
	}
	return *s, true
}

// List returns a snapshot of every tracked run.
func (m *Manager) List() []RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RunState, 0, len(m.runs))
	for _, s := range m.runs {
		out = append(out, *s)
	}
	return out
}

func intervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

func isRateLimited(err error) bool {
	return err != nil && strings.Contains(err.Error(), "429")
}

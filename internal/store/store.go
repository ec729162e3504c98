// Package store defines the append-only observation store: the durable
// record of what the platform saw for each symbol at each point in time.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sawpanic/marketintel/internal/regimeengine"
	"github.com/sawpanic/marketintel/internal/symbol"
)

// Observation is one normalized snapshot of a symbol's market state plus its
// computed indicator values, keyed for idempotent writes by (symbol,
// timestamp).
type Observation struct {
	Symbol           symbol.Symbol
	Timestamp        time.Time
	Price            float64
	Volume           float64
	Indicators       map[string]float64
	Completeness     float64 // fraction of expected indicators present
	Regime           regimeengine.Regime
	RegimeConfidence float64
	Aggregates       regimeengine.Aggregates
	SourceMeta       SourceMeta
}

// SourceMeta records where an observation's underlying data came from.
type SourceMeta struct {
	ProviderID string
	DataMode   string // "live" or "backfill"
	Missing    []string
}

// key uniquely identifies an observation for idempotent inserts.
func key(sym symbol.Symbol, ts time.Time) string {
	return fmt.Sprintf("%s@%d", sym, ts.UnixMilli())
}

// Store is the append-only observation store contract. Implementations must
// be idempotent: appending the same (symbol, timestamp) twice must not
// create a duplicate row.
type Store interface {
	Append(ctx context.Context, obs Observation) error
	Latest(ctx context.Context, sym symbol.Symbol) (Observation, bool, error)
	Range(ctx context.Context, sym symbol.Symbol, from, to time.Time) ([]Observation, error)

	// RangeByRegime returns observations for sym whose classified regime
	// matches regime, ordered by ascending timestamp, supporting the
	// (symbol, regime.type, timestamp) index spec §4.8 requires.
	RangeByRegime(ctx context.Context, sym symbol.Symbol, regime regimeengine.Regime, from, to time.Time) ([]Observation, error)

	// RangeMinCompleteness returns observations for sym with completeness
	// at or above minCompleteness, ordered by ascending timestamp,
	// supporting the quality-filtered query spec §4.8 requires.
	RangeMinCompleteness(ctx context.Context, sym symbol.Symbol, minCompleteness float64, from, to time.Time) ([]Observation, error)
}

// Memory is an in-process Store used in tests and as a fallback when no
// database is configured.
type Memory struct {
	mu   sync.RWMutex
	byKey map[string]Observation
	bySymbol map[symbol.Symbol][]string // ordered keys, oldest first
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byKey:    make(map[string]Observation),
		bySymbol: make(map[symbol.Symbol][]string),
	}
}

func (m *Memory) Append(ctx context.Context, obs Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(obs.Symbol, obs.Timestamp)
	if _, exists := m.byKey[k]; exists {
		return nil // idempotent no-op
	}
	m.byKey[k] = obs

	keys := m.bySymbol[obs.Symbol]
	i := sort.Search(len(keys), func(i int) bool {
		return m.byKey[keys[i]].Timestamp.After(obs.Timestamp) || m.byKey[keys[i]].Timestamp.Equal(obs.Timestamp)
	})
	keys = append(keys, "")
	copy(keys[i+1:], keys[i:])
	keys[i] = k
	m.bySymbol[obs.Symbol] = keys
	return nil
}

func (m *Memory) Latest(ctx context.Context, sym symbol.Symbol) (Observation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := m.bySymbol[sym]
	if len(keys) == 0 {
		return Observation{}, false, nil
	}
	return m.byKey[keys[len(keys)-1]], true, nil
}

func (m *Memory) Range(ctx context.Context, sym symbol.Symbol, from, to time.Time) ([]Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := m.bySymbol[sym]
	out := make([]Observation, 0, len(keys))
	for _, k := range keys {
		obs := m.byKey[k]
		if (obs.Timestamp.Equal(from) || obs.Timestamp.After(from)) && obs.Timestamp.Before(to) {
			out = append(out, obs)
		}
	}
	return out, nil
}

func (m *Memory) RangeByRegime(ctx context.Context, sym symbol.Symbol, regime regimeengine.Regime, from, to time.Time) ([]Observation, error) {
	all, err := m.Range(ctx, sym, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]Observation, 0, len(all))
	for _, obs := range all {
		if obs.Regime == regime {
			out = append(out, obs)
		}
	}
	return out, nil
}

func (m *Memory) RangeMinCompleteness(ctx context.Context, sym symbol.Symbol, minCompleteness float64, from, to time.Time) ([]Observation, error) {
	all, err := m.Range(ctx, sym, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]Observation, 0, len(all))
	for _, obs := range all {
		if obs.Completeness >= minCompleteness {
			out = append(out, obs)
		}
	}
	return out, nil
}

// Package outcomes attributes realized trade results to the model version
// that produced them, and indexes every model the registry has ever held so
// the lifecycle controller can recover a retired model's full record for
// rollback. It is the bridge between dataset-built rows (what actually
// happened to price) and the performance package's model-centric windows.
package outcomes

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sawpanic/marketintel/internal/dataset"
	"github.com/sawpanic/marketintel/internal/model"
	"github.com/sawpanic/marketintel/internal/performance"
)

// Store holds model-attributed trade outcomes and a model id index. It
// implements both lifecycle.OutcomeSource and lifecycle.ModelStore.
type Store struct {
	mu        sync.RWMutex
	byHorizon map[string][]performance.TradeOutcome
	byModel   map[uuid.UUID]model.Model
}

// NewStore returns an empty outcome store.
func NewStore() *Store {
	return &Store{
		byHorizon: make(map[string][]performance.TradeOutcome),
		byModel:   make(map[uuid.UUID]model.Model),
	}
}

// Append records a single trade outcome.
func (s *Store) Append(ctx context.Context, o performance.TradeOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHorizon[o.Horizon] = append(s.byHorizon[o.Horizon], o)
	return nil
}

// Outcomes implements lifecycle.OutcomeSource.
func (s *Store) Outcomes(ctx context.Context, horizon string) ([]performance.TradeOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]performance.TradeOutcome, len(s.byHorizon[horizon]))
	copy(out, s.byHorizon[horizon])
	return out, nil
}

// IndexModel records m so GetModel can recover it later. RecordFromDataset
// does not index models; callers that register candidates or promote models
// index them with this method so rollback can find the model it restores.
func (s *Store) IndexModel(m model.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byModel[m.ID] = m
}

// GetModel implements lifecycle.ModelStore.
func (s *Store) GetModel(ctx context.Context, id uuid.UUID) (model.Model, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byModel[id]
	return m, ok, nil
}

// RecordFromDataset derives a TradeOutcome for every labeled row produced by
// the dataset builder, attributing each to modelID and tagging whether the
// prediction came from the shadow or active model for that horizon.
// NEUTRAL-labeled rows are recorded too; performance.Compute excludes them
// from win rate but still counts them as samples.
func RecordFromDataset(ctx context.Context, s *Store, rows []dataset.Row, horizon string, modelID uuid.UUID, isShadow bool) (int, error) {
	if horizon == "" {
		return 0, fmt.Errorf("outcomes: horizon must not be empty")
	}
	for _, r := range rows {
		o := performance.TradeOutcome{
			Timestamp: r.ObservedAt,
			Horizon:   horizon,
			Symbol:    string(r.Symbol),
			ReturnPct: r.RealizedReturn,
			Result:    toResult(r.Label),
			ModelID:   modelID.String(),
			IsShadow:  isShadow,
		}
		if err := s.Append(ctx, o); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

func toResult(l dataset.Label) performance.Result {
	switch l {
	case dataset.LabelWin:
		return performance.Win
	case dataset.LabelLoss:
		return performance.Loss
	default:
		return performance.Neutral
	}
}

package main

import (
	"context"

	"github.com/sawpanic/marketintel/internal/metrics"
	"github.com/sawpanic/marketintel/internal/store"
)

// meteredStore decorates a store.Store with Prometheus instrumentation
// without requiring the store package itself to depend on metrics.
type meteredStore struct {
	store.Store
}

func (m *meteredStore) Append(ctx context.Context, obs store.Observation) error {
	err := m.Store.Append(ctx, obs)
	if err == nil {
		metrics.ObservationsAppended.WithLabelValues(obs.SourceMeta.ProviderID, obs.SourceMeta.DataMode).Inc()
	}
	return err
}

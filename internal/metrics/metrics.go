// Package metrics exposes the platform's Prometheus instrumentation: a
// small, fixed set of counters and gauges covering collection, backfill and
// model lifecycle activity, served over the process's internal /metrics
// endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ObservationsAppended counts successfully stored observations, by
	// provider and data mode (live/backfill).
	ObservationsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketintel_observations_appended_total",
		Help: "Observations written to the store.",
	}, []string{"provider", "data_mode"})

	// CollectorPassErrors counts per-symbol errors encountered during a
	// collection pass.
	CollectorPassErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketintel_collector_errors_total",
		Help: "Per-symbol errors during a collection pass.",
	}, []string{"symbol"})

	// BackfillChunksWritten counts completed backfill chunks.
	BackfillChunksWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketintel_backfill_chunks_total",
		Help: "Backfill chunks successfully written.",
	}, []string{"provider"})

	// ModelPromotions counts successful promotions, by horizon.
	ModelPromotions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketintel_model_promotions_total",
		Help: "Successful model promotions.",
	}, []string{"horizon"})

	// ModelRollbacks counts successful rollbacks, by horizon and reason.
	ModelRollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketintel_model_rollbacks_total",
		Help: "Successful model rollbacks.",
	}, []string{"horizon", "reason"})

	// ProviderHealth reports the current circuit health per provider:
	// 0=INITIALIZING, 1=UP, 2=DEGRADED, 3=DOWN.
	ProviderHealth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "marketintel_provider_health",
		Help: "Current circuit health per provider (0=INITIALIZING,1=UP,2=DEGRADED,3=DOWN).",
	}, []string{"provider"})

	// KillSwitchActive is 1 when the global kill switch is on.
	KillSwitchActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketintel_kill_switch_active",
		Help: "1 when the lifecycle kill switch is active.",
	})
)

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

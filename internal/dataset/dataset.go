// Package dataset builds labeled training rows from observations paired
// with their realized future outcome.
package dataset

import (
	"fmt"
	"sort"
	"time"

	"github.com/sawpanic/marketintel/internal/regimeengine"
	"github.com/sawpanic/marketintel/internal/store"
	"github.com/sawpanic/marketintel/internal/symbol"
)

// Label is the causal outcome classification for one row.
type Label string

const (
	LabelWin     Label = "WIN"
	LabelLoss    Label = "LOSS"
	LabelNeutral Label = "NEUTRAL"
)

// Direction is the declared trade intent a row's realized return is judged
// against: a LONG profits from price appreciation, a SHORT from decline.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// stressEscalationThreshold and volatilitySpikeThreshold are the fixed
// normalized-aggregate deltas spec'd for the derived flags.
const (
	stressEscalationThreshold = 0.20
	volatilitySpikeThreshold  = 0.20
)

// regimeSeverity orders the closed regime taxonomy from calmest to most
// dangerous, used to decide whether a regime transition counts as a
// degradation between t0 and t1.
var regimeSeverity = map[regimeengine.Regime]int{
	regimeengine.Neutral:      0,
	regimeengine.Range:        1,
	regimeengine.Accumulation: 1,
	regimeengine.TrendingUp:   2,
	regimeengine.TrendingDown: 2,
	regimeengine.Transition:   3,
	regimeengine.Chaotic:      4,
	regimeengine.Crisis:       5,
}

// DerivedFlags summarizes how the market aggregates moved between a row's t0
// observation and its t1 outcome.
type DerivedFlags struct {
	CascadeOccurred bool
	StressEscalated bool
	RegimeDegraded  bool
	VolatilitySpike bool
}

// Row is one causal training example: an observation's feature vector (its
// indicator snapshot) paired with the realized, direction-aware return over
// a horizon, the resulting label, and the derived regime/stress flags.
type Row struct {
	Symbol         symbol.Symbol
	ObservedAt     time.Time
	OutcomeAt      time.Time
	Direction      Direction
	Features       map[string]float64
	HorizonMinutes int
	RealizedReturn float64
	Label          Label
	Flags          DerivedFlags
}

// BuildConfig parameterizes labeling.
type BuildConfig struct {
	HorizonMinutes int
	EpsilonReturn  float64 // |return| below this is NEUTRAL regardless of direction

	// Direction is the declared trade intent realized return is judged
	// against. Defaults to LONG when unset.
	Direction Direction
}

// Build pairs each observation with the nearest observation at or after
// HorizonMinutes later for the same symbol, computing a direction-aware
// realized return, a WIN/LOSS/NEUTRAL label, and derived flags from the
// aggregate movement between the two points. Observations without a future
// match (the tail of the series) are dropped rather than padded with a
// lookahead value.
func Build(observations []store.Observation, cfg BuildConfig) ([]Row, error) {
	if cfg.HorizonMinutes <= 0 {
		return nil, fmt.Errorf("dataset: horizon must be positive")
	}
	direction := cfg.Direction
	if direction == "" {
		direction = DirectionLong
	}

	sorted := make([]store.Observation, len(observations))
	copy(sorted, observations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	horizon := time.Duration(cfg.HorizonMinutes) * time.Minute
	rows := make([]Row, 0, len(sorted))

	for i, obs := range sorted {
		targetTime := obs.Timestamp.Add(horizon)
		future, ok := findAtOrAfter(sorted, i+1, obs.Symbol, targetTime)
		if !ok {
			continue
		}

		realizedReturn := directionalReturn(obs.Price, future.Price, direction)

		rows = append(rows, Row{
			Symbol:         obs.Symbol,
			ObservedAt:     obs.Timestamp,
			OutcomeAt:      future.Timestamp,
			Direction:      direction,
			Features:       obs.Indicators,
			HorizonMinutes: cfg.HorizonMinutes,
			RealizedReturn: realizedReturn,
			Label:          label(realizedReturn, cfg.EpsilonReturn),
			Flags:          deriveFlags(obs, future),
		})
	}
	return rows, nil
}

// directionalReturn computes realized return such that a positive value
// always means direction-aligned profit: unchanged for LONG, sign-flipped
// for SHORT.
func directionalReturn(p0, p1 float64, direction Direction) float64 {
	if p0 == 0 {
		return 0
	}
	raw := (p1 - p0) / p0
	if direction == DirectionShort {
		return -raw
	}
	return raw
}

// deriveFlags compares the t0 and t1 observations' aggregates against fixed
// thresholds to produce the outcome's derived flags.
func deriveFlags(t0, t1 store.Observation) DerivedFlags {
	flags := DerivedFlags{
		CascadeOccurred: t0.Aggregates.LiquidationCascade || t1.Aggregates.LiquidationCascade,
	}
	if t0.Aggregates.Valid && t1.Aggregates.Valid {
		flags.StressEscalated = (t1.Aggregates.Stress - t0.Aggregates.Stress) >= stressEscalationThreshold
		flags.VolatilitySpike = (t1.Aggregates.Volatility - t0.Aggregates.Volatility) >= volatilitySpikeThreshold
	}
	flags.RegimeDegraded = regimeSeverity[t1.Regime] > regimeSeverity[t0.Regime]
	return flags
}

func findAtOrAfter(sorted []store.Observation, start int, sym symbol.Symbol, target time.Time) (store.Observation, bool) {
	for i := start; i < len(sorted); i++ {
		if sorted[i].Symbol == sym && !sorted[i].Timestamp.Before(target) {
			return sorted[i], true
		}
	}
	return store.Observation{}, false
}

func label(realizedReturn, epsilon float64) Label {
	switch {
	case realizedReturn > epsilon:
		return LabelWin
	case realizedReturn < -epsilon:
		return LabelLoss
	default:
		return LabelNeutral
	}
}

// Package regimeengine classifies the prevailing market regime from a small
// set of market aggregates (stress, signed order-book pressure, crowding,
// normalized volatility, liquidation cascade) using a closed-set threshold
// classifier, rather than a single indicator.
package regimeengine

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Regime is the classified market state, drawn from the platform's closed
// taxonomy.
type Regime string

const (
	TrendingUp   Regime = "TRENDING_UP"
	TrendingDown Regime = "TRENDING_DOWN"
	Range        Regime = "RANGE"
	Chaotic      Regime = "CHAOTIC"
	Transition   Regime = "TRANSITION"
	Crisis       Regime = "CRISIS"
	Accumulation Regime = "ACCUMULATION"
	Neutral      Regime = "NEUTRAL"
)

func (r Regime) String() string { return string(r) }

// Thresholds parameterizes the classifier's boundaries. Defaults are
// returned by DefaultThresholds.
type Thresholds struct {
	TrendStrong     float64 // |trendStrength| above this votes TRENDING_UP/DOWN
	TrendTransition float64 // |trendStrength| in [TrendTransition, TrendStrong) is treated as TRANSITION
	VolatilityHigh  float64 // normalized volatility above this, with a weak trend, votes CHAOTIC
	VolatilityLow   float64 // normalized volatility below this, with a weak trend, votes RANGE
	CrowdingHigh    float64 // |crowding| above this, with a weak trend and tame volatility, votes ACCUMULATION
	StressCrisis    float64 // overall stress above this votes CRISIS outright
}

// DefaultThresholds returns the classifier's stock boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TrendStrong:     0.35,
		TrendTransition: 0.15,
		VolatilityHigh:  0.70,
		VolatilityLow:   0.30,
		CrowdingHigh:    0.65,
		StressCrisis:    0.80,
	}
}

// Aggregates is the small set of market aggregates the classifier consumes,
// each derived from the indicator snapshot for one observation.
type Aggregates struct {
	// Stress is the overall market-stress aggregate in [0, 1].
	Stress float64
	// OrderBookPressure is signed in [-1, 1]: positive means bid-heavy
	// (buy-side pressure), negative means ask-heavy.
	OrderBookPressure float64
	// Crowding is signed position crowding in [-1, 1]: positive means
	// crowded long, negative means crowded short.
	Crowding float64
	// Volatility is normalized realized volatility in [0, 1].
	Volatility float64
	// TrendStrength is signed trend strength in [-1, 1], derived from
	// momentum indicators: positive is bullish, negative is bearish.
	TrendStrength float64
	// LiquidationCascade reports whether a cascade is currently in
	// progress, per the indicator snapshot's cascade detector.
	LiquidationCascade bool
	// Valid reports whether enough of the underlying indicators were
	// present to compute these aggregates at all. When false, every other
	// field is meaningless and Classify returns NEUTRAL/0.5.
	Valid bool
}

const (
	minConfidence = 0.3
	maxConfidence = 0.95
	// neutralConfidence is the fixed confidence reported when required
	// indicators are missing, per spec.
	neutralConfidence = 0.5
)

// Detection is the classifier's output: the winning regime, its confidence,
// and the aggregate inputs it was derived from.
type Detection struct {
	Regime     Regime
	Confidence float64
	Aggregates Aggregates
}

// Classify maps a set of aggregates into a closed-set regime using threshold
// rules on trend strength, volatility, the liquidation cascade flag, and
// position crowding, with confidence a monotonic function of how far the
// inputs sit from the dominant boundary, clamped to [0.3, 0.95].
func Classify(agg Aggregates, th Thresholds) Detection {
	if !agg.Valid {
		return Detection{Regime: Neutral, Confidence: neutralConfidence, Aggregates: agg}
	}

	if agg.LiquidationCascade || agg.Stress >= th.StressCrisis {
		margin := agg.Stress - th.StressCrisis
		if agg.LiquidationCascade && margin < 0 {
			margin = 0
		}
		return Detection{Regime: Crisis, Confidence: clampConfidence(0.7 + margin), Aggregates: agg}
	}

	trend := agg.TrendStrength
	absTrend := math.Abs(trend)

	switch {
	case absTrend >= th.TrendStrong:
		conf := clampConfidence(0.5 + (absTrend-th.TrendStrong))
		if trend > 0 {
			return Detection{Regime: TrendingUp, Confidence: conf, Aggregates: agg}
		}
		return Detection{Regime: TrendingDown, Confidence: conf, Aggregates: agg}

	case absTrend >= th.TrendTransition:
		// Trend is building or fading through the transition band: let
		// volatility break the tie toward CHAOTIC when it's also elevated.
		if agg.Volatility >= th.VolatilityHigh {
			return Detection{Regime: Chaotic, Confidence: clampConfidence(0.5 + (agg.Volatility - th.VolatilityHigh)), Aggregates: agg}
		}
		conf := clampConfidence(0.5 - math.Abs(absTrend-((th.TrendStrong+th.TrendTransition)/2)))
		return Detection{Regime: Transition, Confidence: conf, Aggregates: agg}

	case agg.Volatility >= th.VolatilityHigh:
		return Detection{Regime: Chaotic, Confidence: clampConfidence(0.5 + (agg.Volatility - th.VolatilityHigh)), Aggregates: agg}

	case math.Abs(agg.Crowding) >= th.CrowdingHigh && agg.Volatility < th.VolatilityHigh:
		return Detection{Regime: Accumulation, Confidence: clampConfidence(0.5 + (math.Abs(agg.Crowding) - th.CrowdingHigh)), Aggregates: agg}

	case agg.Volatility <= th.VolatilityLow:
		return Detection{Regime: Range, Confidence: clampConfidence(0.5 + (th.VolatilityLow - agg.Volatility)), Aggregates: agg}

	default:
		return Detection{Regime: Neutral, Confidence: neutralConfidence, Aggregates: agg}
	}
}

func clampConfidence(c float64) float64 {
	if c < minConfidence {
		return minConfidence
	}
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}

// AggregateInputs is the raw per-observation material the aggregator
// combines into Aggregates: order-book depth, recent trade prints, realized
// returns, and indicator-derived crowding proxies.
type AggregateInputs struct {
	// RecentReturns are close-to-close returns, most recent last, used to
	// derive normalized volatility and trend strength.
	RecentReturns []float64
	// BidDepth and AskDepth are aggregated notional size on each side of
	// the book, used to derive signed order-book pressure.
	BidDepth float64
	AskDepth float64
	// FundingRate and OpenInterestDelta feed the crowding estimate: a
	// strongly positive funding rate paid by longs, alongside rising open
	// interest, signals crowded-long positioning.
	FundingRate       float64
	OpenInterestDelta float64
	// LiquidationCascade is passed through from the provider snapshot's
	// own cascade detector.
	LiquidationCascade bool
	// VolatilityReference is the normalization divisor for realized
	// volatility (e.g. a trailing long-run average); zero disables
	// normalization and falls back to a fixed scale.
	VolatilityReference float64
}

// Aggregate derives the market aggregates the classifier consumes from raw
// per-observation inputs. It reports Valid=false when there isn't enough
// return history to compute a volatility/trend estimate, matching the
// "required indicators missing ⇒ NEUTRAL" rule in Classify.
func Aggregate(in AggregateInputs) Aggregates {
	if len(in.RecentReturns) < 2 {
		return Aggregates{Valid: false}
	}

	vol := stat.StdDev(in.RecentReturns, nil)
	normVol := vol
	if in.VolatilityReference > 0 {
		normVol = vol / in.VolatilityReference
	} else {
		normVol = vol / 0.02 // fixed reference scale: 2% stdev ~= fully volatile
	}
	normVol = clampUnit(normVol)

	mean := stat.Mean(in.RecentReturns, nil)
	trend := clampSigned(mean / 0.01) // fixed reference scale: 1% mean return ~= fully trending

	pressure := 0.0
	if total := in.BidDepth + in.AskDepth; total > 0 {
		pressure = clampSigned((in.BidDepth - in.AskDepth) / total)
	}

	crowding := clampSigned(in.FundingRate*500 + sign(in.OpenInterestDelta)*math.Min(math.Abs(in.OpenInterestDelta), 1))

	stress := clampUnit(0.5*normVol + 0.3*math.Abs(pressure) + 0.2*math.Abs(crowding))
	if in.LiquidationCascade {
		stress = clampUnit(stress + 0.25)
	}

	return Aggregates{
		Stress:             stress,
		OrderBookPressure:  pressure,
		Crowding:           crowding,
		Volatility:         normVol,
		TrendStrength:      trend,
		LiquidationCascade: in.LiquidationCascade,
		Valid:              true,
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampSigned(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	if v > 0 {
		return 1
	}
	return 0
}

// Package performance computes capital-centric performance windows from
// trade outcomes and the policies that decide whether a shadow model beats
// active, and whether an active model's recent performance demands a
// rollback.
package performance

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Result is a trade outcome's coarse classification.
type Result string

const (
	Win     Result = "WIN"
	Loss    Result = "LOSS"
	Neutral Result = "NEUTRAL"
)

// TradeOutcome is one realized trade result attributed to a model, used as
// the raw input to every window computation in this package.
type TradeOutcome struct {
	Timestamp  time.Time
	Horizon    string
	Symbol     string
	ReturnPct  float64 // direction-aware realized return, decimal fraction
	Result     Result
	ModelID    string
	IsShadow   bool
}

// StandardWindowDays are the standard lookback periods, in days, that
// Rolling reports for.
var StandardWindowDays = []int{7, 14, 30, 60, 90, 180, 365}

// Window is the set of capital-centric metrics computed over one slice of
// trade outcomes, as of a reference time.
type Window struct {
	WindowDays      int
	Samples         int
	Wins            int
	Losses          int
	Neutrals        int
	WinRate         float64 // wins / (wins + losses); excludes neutrals from the denominator
	MeanReturn      float64
	StdDevReturn    float64
	SharpeLike      float64 // mean / std; 0 when std is 0
	FinalEquity     float64 // product of (1 + r_i) starting from 1.0
	MaxDrawdown     float64 // peak-to-trough fraction, in [0, 1]
	LongestLoseStreak int
	StabilityScore  float64
}

// Compute builds a Window over outcomes within [referenceTime -
// windowDays, referenceTime], for a given horizon/symbol filter. Pass an
// empty symbol to include every symbol.
func Compute(outcomes []TradeOutcome, horizon, symbol string, windowDays int, referenceTime time.Time) Window {
	cutoff := referenceTime.AddDate(0, 0, -windowDays)
	filtered := make([]TradeOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Horizon != horizon {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		if o.Timestamp.Before(cutoff) || o.Timestamp.After(referenceTime) {
			continue
		}
		filtered = append(filtered, o)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Timestamp.Before(filtered[j].Timestamp) })
	return computeWindow(filtered, windowDays)
}

func computeWindow(outcomes []TradeOutcome, windowDays int) Window {
	w := Window{WindowDays: windowDays, Samples: len(outcomes)}
	if len(outcomes) == 0 {
		w.FinalEquity = 1.0
		w.StabilityScore = 1.0
		return w
	}

	returns := make([]float64, len(outcomes))
	for i, o := range outcomes {
		returns[i] = o.ReturnPct
		switch o.Result {
		case Win:
			w.Wins++
		case Loss:
			w.Losses++
		case Neutral:
			w.Neutrals++
		}
	}

	if len(returns) > 0 {
		w.MeanReturn = stat.Mean(returns, nil)
	}
	if len(returns) > 1 {
		w.StdDevReturn = stat.StdDev(returns, nil)
	}
	if w.StdDevReturn > 0 {
		w.SharpeLike = w.MeanReturn / w.StdDevReturn
	}

	if w.Wins+w.Losses > 0 {
		w.WinRate = float64(w.Wins) / float64(w.Wins+w.Losses)
	}

	equity := 1.0
	peak := 1.0
	maxDD := 0.0
	streak := 0
	longestStreak := 0
	for i, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
		if outcomes[i].Result == Loss {
			streak++
			if streak > longestStreak {
				longestStreak = streak
			}
		} else {
			streak = 0
		}
	}
	w.FinalEquity = equity
	w.MaxDrawdown = maxDD
	w.LongestLoseStreak = longestStreak
	w.StabilityScore = stabilityScore(w.MeanReturn, w.StdDevReturn, w.MaxDrawdown)
	return w
}

// stabilityScore combines a volatility ratio and drawdown into a single
// [0, 1] score: 1/(1+std/|mean|) * (1 - maxDD), or 1-maxDD when std<=0.
func stabilityScore(mean, std, maxDrawdown float64) float64 {
	var volTerm float64
	if std <= 0 {
		volTerm = 1
	} else if mean == 0 {
		volTerm = 0
	} else {
		volTerm = 1 / (1 + std/math.Abs(mean))
	}
	score := volTerm * (1 - maxDrawdown)
	return clamp01(score)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Rolling computes a Window for every entry in StandardWindowDays.
func Rolling(outcomes []TradeOutcome, horizon, symbol string, referenceTime time.Time) map[int]Window {
	out := make(map[int]Window, len(StandardWindowDays))
	for _, d := range StandardWindowDays {
		out[d] = Compute(outcomes, horizon, symbol, d, referenceTime)
	}
	return out
}

// Confidence is how strongly a comparison favors the shadow model.
type Confidence string

const (
	ConfidenceNone   Confidence = ""
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// Delta is the shadow-minus-active difference across the metrics the
// promotion policy cares about.
type Delta struct {
	WinRate        float64
	MaxDrawdown    float64
	SharpeLike     float64
	StabilityScore float64
}

// Comparison is the outcome of comparing an active window against a shadow
// window under the promotion policy (§4.13).
type Comparison struct {
	Active       Window
	Shadow       Window
	Delta        Delta
	ShadowBetter bool
	Confidence   Confidence
	Reason       string
}

// CompareConfig parameterizes CompareModels' sample-size floor.
type CompareConfig struct {
	MinSamples int
}

// CompareModels implements the shadowBetter policy from §4.13: shadow must
// clear a minimum sample count, then either a meaningful win-rate lift with
// no drawdown regression, or a Sharpe-like lift with non-negative stability
// movement, makes it better than active.
func CompareModels(active, shadow Window, cfg CompareConfig) Comparison {
	delta := Delta{
		WinRate:        shadow.WinRate - active.WinRate,
		MaxDrawdown:    shadow.MaxDrawdown - active.MaxDrawdown,
		SharpeLike:     shadow.SharpeLike - active.SharpeLike,
		StabilityScore: shadow.StabilityScore - active.StabilityScore,
	}
	c := Comparison{Active: active, Shadow: shadow, Delta: delta}

	if shadow.Samples < cfg.MinSamples {
		c.Reason = "SAMPLES_LOW"
		return c
	}

	switch {
	case delta.WinRate >= 0.02 && delta.MaxDrawdown <= 0:
		c.ShadowBetter = true
		c.Reason = "win rate lift"
		if delta.WinRate >= 0.05 {
			c.Confidence = ConfidenceHigh
		} else {
			c.Confidence = ConfidenceMedium
		}
	case delta.SharpeLike >= 0.1 && delta.StabilityScore >= 0:
		c.ShadowBetter = true
		c.Reason = "sharpe-like lift"
		if delta.SharpeLike >= 0.2 {
			c.Confidence = ConfidenceHigh
		} else {
			c.Confidence = ConfidenceMedium
		}
	default:
		c.Reason = "no qualifying lift"
	}
	return c
}

// PromotionRules are the hard safety floors a shadow must clear before
// CheckPromotion will approve it, on top of CompareModels' shadowBetter
// verdict.
type PromotionRules struct {
	CompareConfig
	MaxDrawdownForPromo float64
	MinStability        float64
	MinWinRateLift      float64
	MinSharpeLift       float64
}

// CheckPromotion reports whether a shadow model qualifies for promotion:
// shadowBetter from CompareModels, plus the shadow clearing absolute safety
// floors on drawdown and stability, plus a lift on win rate or Sharpe at
// least as large as the configured minimums.
func CheckPromotion(active, shadow Window, rules PromotionRules) Comparison {
	c := CompareModels(active, shadow, rules.CompareConfig)
	if !c.ShadowBetter {
		return c
	}
	if shadow.MaxDrawdown > rules.MaxDrawdownForPromo {
		c.ShadowBetter = false
		c.Reason = "shadow drawdown exceeds promotion ceiling"
		return c
	}
	if shadow.StabilityScore < rules.MinStability {
		c.ShadowBetter = false
		c.Reason = "shadow stability below promotion floor"
		return c
	}
	if c.Delta.WinRate < rules.MinWinRateLift && c.Delta.SharpeLike < rules.MinSharpeLift {
		c.ShadowBetter = false
		c.Reason = "lift below configured minimums"
	}
	return c
}

// Severity is how urgently a rollback decision demands action.
type Severity string

const (
	SeverityNone     Severity = "NONE"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// RollbackRules parameterizes CheckRollback's thresholds.
type RollbackRules struct {
	MinSamples           int
	WinRateFloor         float64
	MaxDrawdownCeil      float64
	MinStability         float64
	MaxConsecutiveLosses int
}

// RollbackDecision is the verdict CheckRollback returns.
type RollbackDecision struct {
	Needed   bool
	Severity Severity
	Reason   string
}

// CheckRollback implements §4.13's rollback policy against an active
// window: STREAK_KILLER when a long losing streak coincides with a
// drawdown or win-rate breach, CAPITAL_INSTABILITY when drawdown, stability
// and win rate are all simultaneously bad, WARNING for any single bad
// indicator short of those, otherwise none.
func CheckRollback(active Window, rules RollbackRules) RollbackDecision {
	if active.Samples < rules.MinSamples {
		return RollbackDecision{Reason: "INSUFFICIENT_SAMPLES"}
	}

	ddBreach := active.MaxDrawdown > rules.MaxDrawdownCeil
	winRateBreach := active.WinRate < rules.WinRateFloor
	stabilityBreach := active.StabilityScore < rules.MinStability
	streakBreach := active.LongestLoseStreak >= rules.MaxConsecutiveLosses

	if streakBreach && (ddBreach || winRateBreach) {
		return RollbackDecision{Needed: true, Severity: SeverityCritical, Reason: "STREAK_KILLER: consecutive losses with drawdown/win-rate breach"}
	}
	if ddBreach && stabilityBreach && winRateBreach {
		return RollbackDecision{Needed: true, Severity: SeverityCritical, Reason: "CAPITAL_INSTABILITY: drawdown, stability and win rate all breached"}
	}
	if ddBreach || winRateBreach || stabilityBreach || streakBreach {
		return RollbackDecision{Needed: false, Severity: SeverityWarning, Reason: "single indicator breach, not critical"}
	}
	return RollbackDecision{Reason: "within bounds"}
}

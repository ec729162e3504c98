package performance

import (
	"math"
	"testing"
	"time"
)

func syntheticWindow(samples, wins, losses int, maxDD, sharpeLike, stability float64) Window {
	return Window{
		Samples:     samples,
		Wins:        wins,
		Losses:      losses,
		WinRate:     float64(wins) / float64(wins+losses),
		MaxDrawdown: maxDD,
		SharpeLike:  sharpeLike,
		StabilityScore: stability,
	}
}

// S4 — active {samples 500, winRate 0.50, maxDD 0.20, sharpeLike 0.8, stability 0.6};
// shadow {samples 200, winRate 0.56, maxDD 0.18, sharpeLike 0.9, stability 0.7}.
func TestCompareModels_S4ShadowBetterHighConfidence(t *testing.T) {
	active := syntheticWindow(500, 250, 250, 0.20, 0.8, 0.6)
	shadow := syntheticWindow(200, 112, 88, 0.18, 0.9, 0.7)

	cmp := CompareModels(active, shadow, CompareConfig{MinSamples: 30})
	if !cmp.ShadowBetter {
		t.Fatalf("expected shadow to be better, got reason %q", cmp.Reason)
	}
	if cmp.Confidence != ConfidenceHigh {
		t.Fatalf("expected HIGH confidence (delta winRate %.3f >= 0.05), got %s", cmp.Delta.WinRate, cmp.Confidence)
	}
}

func TestCompareModels_SamplesLow(t *testing.T) {
	active := syntheticWindow(500, 250, 250, 0.2, 0.8, 0.6)
	shadow := syntheticWindow(10, 6, 4, 0.1, 1.0, 0.8)

	cmp := CompareModels(active, shadow, CompareConfig{MinSamples: 30})
	if cmp.ShadowBetter {
		t.Fatalf("expected not-better when shadow sample count is below minimum")
	}
	if cmp.Reason != "SAMPLES_LOW" {
		t.Fatalf("expected SAMPLES_LOW reason, got %q", cmp.Reason)
	}
}

// S5 — window {samples 40, winRateFloor 0.40, maxDrawdownCeil 0.15,
// maxConsecutiveLosses 6}; observed 8 consecutive losses and maxDD 0.18.
func TestCheckRollback_S5StreakKiller(t *testing.T) {
	active := Window{
		Samples:           40,
		WinRate:           0.35,
		MaxDrawdown:       0.18,
		LongestLoseStreak: 8,
		StabilityScore:    0.5,
	}
	rules := RollbackRules{
		MinSamples:           30,
		WinRateFloor:         0.40,
		MaxDrawdownCeil:      0.15,
		MinStability:         0.3,
		MaxConsecutiveLosses: 6,
	}

	decision := CheckRollback(active, rules)
	if !decision.Needed || decision.Severity != SeverityCritical {
		t.Fatalf("expected critical rollback decision, got %+v", decision)
	}
	if len(decision.Reason) < len("STREAK_KILLER") || decision.Reason[:len("STREAK_KILLER")] != "STREAK_KILLER" {
		t.Fatalf("expected reason to start with STREAK_KILLER, got %q", decision.Reason)
	}
}

func TestCheckRollback_InsufficientSamples(t *testing.T) {
	active := Window{Samples: 5}
	rules := RollbackRules{MinSamples: 30}
	decision := CheckRollback(active, rules)
	if decision.Needed {
		t.Fatalf("expected no rollback with insufficient samples")
	}
	if decision.Reason != "INSUFFICIENT_SAMPLES" {
		t.Fatalf("expected INSUFFICIENT_SAMPLES reason, got %q", decision.Reason)
	}
}

func TestCheckRollback_CapitalInstability(t *testing.T) {
	active := Window{
		Samples:           100,
		WinRate:           0.30,
		MaxDrawdown:       0.25,
		LongestLoseStreak: 2,
		StabilityScore:    0.1,
	}
	rules := RollbackRules{
		MinSamples:           30,
		WinRateFloor:         0.40,
		MaxDrawdownCeil:      0.15,
		MinStability:         0.3,
		MaxConsecutiveLosses: 6,
	}
	decision := CheckRollback(active, rules)
	if !decision.Needed || decision.Severity != SeverityCritical {
		t.Fatalf("expected CAPITAL_INSTABILITY critical decision, got %+v", decision)
	}
}

func TestCheckRollback_SingleBreachIsWarningOnly(t *testing.T) {
	active := Window{
		Samples:           100,
		WinRate:           0.30, // breaches floor alone
		MaxDrawdown:       0.05,
		LongestLoseStreak: 1,
		StabilityScore:    0.8,
	}
	rules := RollbackRules{
		MinSamples:           30,
		WinRateFloor:         0.40,
		MaxDrawdownCeil:      0.15,
		MinStability:         0.3,
		MaxConsecutiveLosses: 6,
	}
	decision := CheckRollback(active, rules)
	if decision.Needed {
		t.Fatalf("expected a single breach not to require rollback")
	}
	if decision.Severity != SeverityWarning {
		t.Fatalf("expected WARNING severity, got %s", decision.Severity)
	}
}

// Invariant 10: final equity = product(1+r_i); win rate excludes neutrals.
func TestCompute_EquityAndWinRateMath(t *testing.T) {
	now := time.Now().UTC()
	outcomes := []TradeOutcome{
		{Timestamp: now.Add(-3 * time.Hour), Horizon: "1d", ReturnPct: 0.10, Result: Win},
		{Timestamp: now.Add(-2 * time.Hour), Horizon: "1d", ReturnPct: -0.05, Result: Loss},
		{Timestamp: now.Add(-1 * time.Hour), Horizon: "1d", ReturnPct: 0.00, Result: Neutral},
	}

	w := Compute(outcomes, "1d", "", 7, now)
	wantEquity := 1.10 * 0.95 * 1.00
	if math.Abs(w.FinalEquity-wantEquity) > 1e-9 {
		t.Fatalf("expected final equity %.6f, got %.6f", wantEquity, w.FinalEquity)
	}
	// one win, one loss, one neutral: wins / (wins + losses) = 1/2
	if w.WinRate != 0.5 {
		t.Fatalf("expected win rate 0.5 excluding the neutral trade, got %f", w.WinRate)
	}
	if w.Samples != 3 {
		t.Fatalf("expected 3 samples, got %d", w.Samples)
	}
}

func TestCompute_MaxDrawdownIsPeakToTrough(t *testing.T) {
	now := time.Now().UTC()
	outcomes := []TradeOutcome{
		{Timestamp: now.Add(-4 * time.Hour), Horizon: "1d", ReturnPct: 0.20, Result: Win},
		{Timestamp: now.Add(-3 * time.Hour), Horizon: "1d", ReturnPct: -0.30, Result: Loss},
		{Timestamp: now.Add(-2 * time.Hour), Horizon: "1d", ReturnPct: 0.10, Result: Win},
	}
	w := Compute(outcomes, "1d", "", 7, now)
	// peak 1.2 after trade 1, trough 1.2*0.7=0.84 after trade 2: dd = (1.2-0.84)/1.2 = 0.3
	if math.Abs(w.MaxDrawdown-0.3) > 1e-9 {
		t.Fatalf("expected max drawdown 0.3, got %f", w.MaxDrawdown)
	}
}

package dataset

import (
	"testing"
	"time"

	"github.com/sawpanic/marketintel/internal/regimeengine"
	"github.com/sawpanic/marketintel/internal/store"
)

func TestBuild_LabelsWinLossNeutral(t *testing.T) {
	base := time.Now().UTC()
	obs := []store.Observation{
		{Symbol: "BTC-USD", Timestamp: base, Price: 100, Indicators: map[string]float64{"rsi_14": 50}},
		{Symbol: "BTC-USD", Timestamp: base.Add(60 * time.Minute), Price: 110, Indicators: map[string]float64{"rsi_14": 60}},
	}

	rows, err := Build(obs, BuildConfig{HorizonMinutes: 60, EpsilonReturn: 0.01})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row (tail observation has no future match), got %d", len(rows))
	}
	if rows[0].Label != LabelWin {
		t.Fatalf("expected WIN label for +10%% return, got %s", rows[0].Label)
	}
}

func TestBuild_NeutralWithinEpsilon(t *testing.T) {
	base := time.Now().UTC()
	obs := []store.Observation{
		{Symbol: "BTC-USD", Timestamp: base, Price: 100},
		{Symbol: "BTC-USD", Timestamp: base.Add(60 * time.Minute), Price: 100.2},
	}
	rows, err := Build(obs, BuildConfig{HorizonMinutes: 60, EpsilonReturn: 0.01})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[0].Label != LabelNeutral {
		t.Fatalf("expected NEUTRAL within epsilon, got %s", rows[0].Label)
	}
}

func TestBuild_RejectsNonPositiveHorizon(t *testing.T) {
	if _, err := Build(nil, BuildConfig{HorizonMinutes: 0}); err == nil {
		t.Fatalf("expected error for zero horizon")
	}
}

func TestBuild_ShortDirectionFlipsReturnSign(t *testing.T) {
	base := time.Now().UTC()
	obs := []store.Observation{
		{Symbol: "BTC-USD", Timestamp: base, Price: 100},
		{Symbol: "BTC-USD", Timestamp: base.Add(60 * time.Minute), Price: 110},
	}

	rows, err := Build(obs, BuildConfig{HorizonMinutes: 60, EpsilonReturn: 0.01, Direction: DirectionShort})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].RealizedReturn >= 0 {
		t.Fatalf("expected negative direction-aligned return for a SHORT into a +10%% price move, got %f", rows[0].RealizedReturn)
	}
	if rows[0].Label != LabelLoss {
		t.Fatalf("expected LOSS for a SHORT against a rising price, got %s", rows[0].Label)
	}
}

func TestBuild_DerivesFlagsFromAggregateMovement(t *testing.T) {
	base := time.Now().UTC()
	obs := []store.Observation{
		{
			Symbol: "BTC-USD", Timestamp: base, Price: 100, Regime: regimeengine.Range,
			Aggregates: regimeengine.Aggregates{Valid: true, Stress: 0.2, Volatility: 0.2},
		},
		{
			Symbol: "BTC-USD", Timestamp: base.Add(60 * time.Minute), Price: 105, Regime: regimeengine.Crisis,
			Aggregates: regimeengine.Aggregates{Valid: true, Stress: 0.45, Volatility: 0.5, LiquidationCascade: true},
		},
	}

	rows, err := Build(obs, BuildConfig{HorizonMinutes: 60, EpsilonReturn: 0.01})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	flags := rows[0].Flags
	if !flags.CascadeOccurred {
		t.Fatalf("expected cascade occurred to be true")
	}
	if !flags.StressEscalated {
		t.Fatalf("expected stress escalated (0.2 -> 0.45 clears the 0.20 threshold)")
	}
	if !flags.VolatilitySpike {
		t.Fatalf("expected volatility spike (0.2 -> 0.5 clears the 0.20 threshold)")
	}
	if !flags.RegimeDegraded {
		t.Fatalf("expected regime degraded (RANGE -> CRISIS)")
	}
}

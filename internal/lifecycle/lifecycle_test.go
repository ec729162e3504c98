package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/marketintel/internal/eventlog"
	"github.com/sawpanic/marketintel/internal/guardrails"
	"github.com/sawpanic/marketintel/internal/model"
	"github.com/sawpanic/marketintel/internal/performance"
)

type fakeOutcomes struct {
	byHorizon map[string][]performance.TradeOutcome
}

func (f *fakeOutcomes) Outcomes(ctx context.Context, horizon string) ([]performance.TradeOutcome, error) {
	return f.byHorizon[horizon], nil
}

type fakeModelStore struct {
	byID map[uuid.UUID]model.Model
}

func (f *fakeModelStore) GetModel(ctx context.Context, id uuid.UUID) (model.Model, bool, error) {
	m, ok := f.byID[id]
	return m, ok, nil
}

func testController(t *testing.T) (*Controller, *fakeOutcomes, *fakeModelStore, *guardrails.Guardrails) {
	t.Helper()
	log := eventlog.NewMemory()
	reg := model.NewRegistry(log)
	gr := guardrails.New(guardrails.Config{MaxDailyRetrains: 10, MinRetrainInterval: time.Minute, MaxPortfolioExposure: 1, MaxVolatility: 1}, log)
	outcomes := &fakeOutcomes{byHorizon: make(map[string][]performance.TradeOutcome)}
	models := &fakeModelStore{byID: make(map[uuid.UUID]model.Model)}

	c := &Controller{
		Registry:   reg,
		Guardrails: gr,
		Outcomes:   outcomes,
		Models:     models,
		Cfg: PassConfig{
			WindowDays: 30,
			Compare:    performance.CompareConfig{MinSamples: 10},
			Promotion: performance.PromotionRules{
				CompareConfig:       performance.CompareConfig{MinSamples: 10},
				MaxDrawdownForPromo: 0.5,
				MinStability:        0.0,
				MinWinRateLift:      0.02,
				MinSharpeLift:       0.1,
			},
			Rollback: performance.RollbackRules{
				MinSamples:           10,
				WinRateFloor:         0.40,
				MaxDrawdownCeil:      0.15,
				MinStability:         0.3,
				MaxConsecutiveLosses: 6,
			},
		},
		Log: zerolog.Nop(),
	}
	return c, outcomes, models, gr
}

func winOutcome(t time.Time, horizon string, isShadow bool) performance.TradeOutcome {
	return performance.TradeOutcome{Timestamp: t, Horizon: horizon, ReturnPct: 0.05, Result: performance.Win, IsShadow: isShadow}
}

func lossOutcome(t time.Time, horizon string, isShadow bool) performance.TradeOutcome {
	return performance.TradeOutcome{Timestamp: t, Horizon: horizon, ReturnPct: -0.05, Result: performance.Loss, IsShadow: isShadow}
}

func TestRunPromotionPass_PromotesQualifyingShadow(t *testing.T) {
	c, outcomes, _, _ := testController(t)
	ctx := context.Background()
	now := time.Now().UTC()

	c.Registry.RegisterCandidate(model.Model{ID: uuid.New(), Horizon: "1d"})
	cand := c.Registry.Get("1d").Candidate
	c.Registry.SetShadow(ctx, "1d", *cand)

	var outs []performance.TradeOutcome
	for i := 0; i < 15; i++ {
		outs = append(outs, winOutcome(now.Add(-time.Duration(i)*time.Hour), "1d", false)) // active: all wins
	}
	for i := 0; i < 15; i++ {
		outs = append(outs, winOutcome(now.Add(-time.Duration(i)*time.Hour), "1d", true)) // shadow: all wins too, need a higher rate
	}
	// give shadow a clear win-rate edge by adding extra active losses
	for i := 0; i < 10; i++ {
		outs = append(outs, lossOutcome(now.Add(-time.Duration(i)*time.Hour), "1d", false))
	}
	outcomes.byHorizon["1d"] = outs

	counts, err := c.RunPromotionPass(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts.Promoted != 1 {
		t.Fatalf("expected 1 promotion, got %+v", counts)
	}
	if c.Registry.Get("1d").Active == nil {
		t.Fatalf("expected an active model after promotion")
	}
}

func TestRunPromotionPass_SkipsWhenNothingQualifies(t *testing.T) {
	c, outcomes, _, _ := testController(t)
	ctx := context.Background()
	now := time.Now().UTC()

	c.Registry.RegisterCandidate(model.Model{ID: uuid.New(), Horizon: "1d"})
	cand := c.Registry.Get("1d").Candidate
	c.Registry.SetShadow(ctx, "1d", *cand)

	var outs []performance.TradeOutcome
	for i := 0; i < 15; i++ {
		outs = append(outs, winOutcome(now.Add(-time.Duration(i)*time.Hour), "1d", false))
		outs = append(outs, winOutcome(now.Add(-time.Duration(i)*time.Hour), "1d", true))
	}
	outcomes.byHorizon["1d"] = outs

	counts, err := c.RunPromotionPass(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts.Promoted != 0 {
		t.Fatalf("expected no promotions when shadow shows no lift, got %+v", counts)
	}
}

// S6 — kill switch blocks lifecycle: no registry mutation, no PROMOTED event.
func TestRunPromotionPass_SkippedUnderKillSwitch(t *testing.T) {
	c, outcomes, _, gr := testController(t)
	ctx := context.Background()
	now := time.Now().UTC()

	c.Registry.RegisterCandidate(model.Model{ID: uuid.New(), Horizon: "1d"})
	cand := c.Registry.Get("1d").Candidate
	c.Registry.SetShadow(ctx, "1d", *cand)

	var outs []performance.TradeOutcome
	for i := 0; i < 15; i++ {
		outs = append(outs, winOutcome(now.Add(-time.Duration(i)*time.Hour), "1d", true))
		outs = append(outs, lossOutcome(now.Add(-time.Duration(i)*time.Hour), "1d", false))
	}
	outcomes.byHorizon["1d"] = outs

	gr.SetKillSwitch(ctx, true, "test halt")
	counts, err := c.RunPromotionPass(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts.Promoted != 0 || counts.HorizonsChecked != 0 {
		t.Fatalf("expected a fully skipped pass under kill switch, got %+v", counts)
	}
	if c.Registry.Get("1d").Active != nil {
		t.Fatalf("expected no active model while kill switch blocks promotion")
	}
}

func TestRunRollbackPass_RollsBackOnStreakKiller(t *testing.T) {
	c, outcomes, models, _ := testController(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := model.Model{ID: uuid.New(), Horizon: "1d"}
	c.Registry.RegisterCandidate(first)
	promoted1, _ := c.Registry.Promote(ctx, "1d", "initial")
	models.byID[promoted1.ID] = promoted1

	second := model.Model{ID: uuid.New(), Horizon: "1d"}
	c.Registry.RegisterCandidate(second)
	_, _ = c.Registry.Promote(ctx, "1d", "second")

	var outs []performance.TradeOutcome
	for i := 0; i < 8; i++ {
		outs = append(outs, lossOutcome(now.Add(-time.Duration(i)*time.Hour), "1d", false))
	}
	for i := 0; i < 10; i++ {
		outs = append(outs, winOutcome(now.Add(-time.Duration(20+i)*time.Hour), "1d", false))
	}
	outcomes.byHorizon["1d"] = outs

	counts, err := c.RunRollbackPass(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts.RolledBack != 1 {
		t.Fatalf("expected 1 rollback, got %+v", counts)
	}
	if c.Registry.Get("1d").Active.ID != promoted1.ID {
		t.Fatalf("expected active to be restored to the first promoted model")
	}
}

package guardrails

import (
	"context"
	"testing"
	"time"

	"github.com/sawpanic/marketintel/internal/eventlog"
)

func testConfig() Config {
	return Config{
		MaxDailyRetrains:     3,
		MinRetrainInterval:   time.Hour,
		MaxPortfolioExposure: 0.1,
		MaxVolatility:        0.08,
	}
}

func TestKillSwitch_TogglesAndLogsOnce(t *testing.T) {
	log := eventlog.NewMemory()
	g := New(testConfig(), log)
	ctx := context.Background()

	if g.IsKillSwitchActive() {
		t.Fatalf("expected kill switch off by default")
	}

	g.SetKillSwitch(ctx, true, "manual halt")
	g.SetKillSwitch(ctx, true, "manual halt again") // no-op, already on

	if !g.IsKillSwitchActive() {
		t.Fatalf("expected kill switch on")
	}
	events, _ := log.ByType(ctx, eventlog.KillSwitchOn, eventlog.Global, 10)
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 KILL_SWITCH_ON event, got %d", len(events))
	}
}

func TestCanRetrain_BlocksWithinCooldown(t *testing.T) {
	g := New(testConfig(), eventlog.NewMemory())
	now := time.Now().UTC()

	g.MarkRetrainExecuted(now)
	decision := g.CanRetrain(now.Add(time.Minute))
	if decision.Allowed {
		t.Fatalf("expected retrain to be blocked by cooldown")
	}
	if decision.Reason != "RETRAIN_COOLDOWN" {
		t.Fatalf("expected RETRAIN_COOLDOWN reason, got %s", decision.Reason)
	}

	decision = g.CanRetrain(now.Add(2 * time.Hour))
	if !decision.Allowed {
		t.Fatalf("expected retrain to be allowed after cooldown elapses")
	}
}

func TestCanRetrain_DailyLimitResetsAtUTCBoundary(t *testing.T) {
	cfg := testConfig()
	cfg.MinRetrainInterval = 0
	g := New(cfg, eventlog.NewMemory())

	day1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < cfg.MaxDailyRetrains; i++ {
		g.MarkRetrainExecuted(day1.Add(time.Duration(i) * time.Minute))
	}
	if g.CanRetrain(day1.Add(time.Hour)).Allowed {
		t.Fatalf("expected daily retrain limit to be hit")
	}

	day2 := day1.Add(24 * time.Hour)
	if !g.CanRetrain(day2).Allowed {
		t.Fatalf("expected retrain count to reset on the next UTC day")
	}
}

func TestCapExposure(t *testing.T) {
	g := New(testConfig(), eventlog.NewMemory())
	if got := g.CapExposure(0.5); got != 0.1 {
		t.Fatalf("expected exposure capped to 0.1, got %f", got)
	}
	if got := g.CapExposure(0.05); got != 0.05 {
		t.Fatalf("expected exposure under cap to pass through, got %f", got)
	}
}

func TestShouldBlockTrading(t *testing.T) {
	g := New(testConfig(), eventlog.NewMemory())
	if !g.ShouldBlockTrading(0.2) {
		t.Fatalf("expected high volatility to block trading")
	}
	if g.ShouldBlockTrading(0.01) {
		t.Fatalf("expected low volatility not to block trading")
	}
}

func TestSetDriftState_LogsOnlyOnChange(t *testing.T) {
	log := eventlog.NewMemory()
	g := New(testConfig(), log)
	ctx := context.Background()

	if got := g.DriftFor("1d"); got != DriftNormal {
		t.Fatalf("expected default drift NORMAL, got %s", got)
	}

	g.SetDriftState(ctx, "1d", DriftWarning)
	g.SetDriftState(ctx, "1d", DriftWarning) // no-op

	events, _ := log.ByType(ctx, eventlog.DriftChanged, "1d", 10)
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 drift transition logged, got %d", len(events))
	}
	if g.DriftFor("1d") != DriftWarning {
		t.Fatalf("expected drift state WARNING")
	}
}

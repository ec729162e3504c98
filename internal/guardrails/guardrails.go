// Package guardrails holds the process-scoped safety controls that gate
// every lifecycle action: kill switch, promotion lock, retrain throttle,
// per-horizon drift state, and exposure/volatility caps. All state lives
// behind a single mutex; kill-switch, promotion-lock and drift transitions
// and config updates are logged to the event log, while retrain marks are
// not.
package guardrails

import (
	"context"
	"sync"
	"time"

	"github.com/sawpanic/marketintel/internal/eventlog"
)

// DriftState is a horizon's closed-set drift classification.
type DriftState string

const (
	DriftNormal   DriftState = "NORMAL"
	DriftWarning  DriftState = "WARNING"
	DriftCritical DriftState = "CRITICAL"
)

// Config is the mutable set of thresholds guardrails enforce.
type Config struct {
	MaxDailyRetrains     int
	MinRetrainInterval   time.Duration
	MaxPortfolioExposure float64
	MaxVolatility        float64
}

// RetrainDecision is the result of a canRetrain check: allowed, or a reason
// why not.
type RetrainDecision struct {
	Allowed bool
	Reason  string
}

// Guardrails is the process-wide safety-control service. Construct one with
// New and share the pointer across every component that needs to read or
// mutate guardrail state; never copy the struct.
type Guardrails struct {
	mu  sync.Mutex
	cfg Config
	log eventlog.Log

	killSwitch     bool
	promotionLock  bool
	drift          map[string]DriftState
	retrainDay     string // YYYY-MM-DD in UTC
	retrainCount   int
	lastRetrainAt  time.Time
}

// New constructs Guardrails with cfg and a log to record transitions to.
// Pass eventlog.NewMemory() (or any Log) shared with the rest of the
// lifecycle subsystem.
func New(cfg Config, log eventlog.Log) *Guardrails {
	return &Guardrails{
		cfg:   cfg,
		log:   log,
		drift: make(map[string]DriftState),
	}
}

// IsKillSwitchActive is a pure read.
func (g *Guardrails) IsKillSwitchActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.killSwitch
}

// IsPromotionLocked is a pure read.
func (g *Guardrails) IsPromotionLocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.promotionLock
}

// SetKillSwitch flips the kill switch and logs the transition if it
// actually changed.
func (g *Guardrails) SetKillSwitch(ctx context.Context, active bool, reason string) {
	g.mu.Lock()
	changed := g.killSwitch != active
	g.killSwitch = active
	g.mu.Unlock()

	if !changed {
		return
	}
	t := eventlog.KillSwitchOff
	if active {
		t = eventlog.KillSwitchOn
	}
	_ = g.log.Append(ctx, eventlog.Event{Type: t, Horizon: eventlog.Global, Reason: reason})
}

// SetPromotionLock flips the promotion lock and logs the transition if it
// actually changed.
func (g *Guardrails) SetPromotionLock(ctx context.Context, active bool, reason string) {
	g.mu.Lock()
	changed := g.promotionLock != active
	g.promotionLock = active
	g.mu.Unlock()

	if !changed {
		return
	}
	t := eventlog.PromotionLockOff
	if active {
		t = eventlog.PromotionLockOn
	}
	_ = g.log.Append(ctx, eventlog.Event{Type: t, Horizon: eventlog.Global, Reason: reason})
}

// CanRetrain reports whether a retrain may run now, given today's count and
// the minimum interval since the last one.
func (g *Guardrails) CanRetrain(now time.Time) RetrainDecision {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := now.UTC().Format("2006-01-02")
	count := g.retrainCount
	if g.retrainDay != day {
		count = 0
	}
	if count >= g.cfg.MaxDailyRetrains {
		return RetrainDecision{Allowed: false, Reason: "DAILY_RETRAIN_LIMIT"}
	}
	if !g.lastRetrainAt.IsZero() && now.Sub(g.lastRetrainAt) < g.cfg.MinRetrainInterval {
		return RetrainDecision{Allowed: false, Reason: "RETRAIN_COOLDOWN"}
	}
	return RetrainDecision{Allowed: true}
}

// MarkRetrainExecuted records that a retrain ran at now, resetting the daily
// counter at the UTC day boundary.
func (g *Guardrails) MarkRetrainExecuted(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := now.UTC().Format("2006-01-02")
	if g.retrainDay != day {
		g.retrainDay = day
		g.retrainCount = 0
	}
	g.retrainCount++
	g.lastRetrainAt = now
}

// CapExposure clamps x to the configured maximum portfolio exposure.
func (g *Guardrails) CapExposure(x float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if x > g.cfg.MaxPortfolioExposure {
		return g.cfg.MaxPortfolioExposure
	}
	return x
}

// ShouldBlockTrading reports whether observed volatility exceeds the
// configured ceiling.
func (g *Guardrails) ShouldBlockTrading(volatility float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return volatility > g.cfg.MaxVolatility
}

// DriftFor returns a horizon's current drift state, defaulting to NORMAL if
// never set.
func (g *Guardrails) DriftFor(horizon string) DriftState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.drift[horizon]; ok {
		return s
	}
	return DriftNormal
}

// SetDriftState mutates a horizon's drift classification and logs the
// transition if it changed.
func (g *Guardrails) SetDriftState(ctx context.Context, horizon string, state DriftState) {
	g.mu.Lock()
	prev, ok := g.drift[horizon]
	if !ok {
		prev = DriftNormal
	}
	changed := prev != state
	g.drift[horizon] = state
	g.mu.Unlock()

	if !changed {
		return
	}
	_ = g.log.Append(ctx, eventlog.Event{
		Type:    eventlog.DriftChanged,
		Horizon: horizon,
		Reason:  string(state),
		Meta:    map[string]string{"from": string(prev), "to": string(state)},
	})
}

// UpdateConfig applies a partial patch (zero fields are left unchanged) and
// logs the mutation. A field cannot be set to zero through this method.
func (g *Guardrails) UpdateConfig(ctx context.Context, patch Config) {
	g.mu.Lock()
	if patch.MaxDailyRetrains != 0 {
		g.cfg.MaxDailyRetrains = patch.MaxDailyRetrains
	}
	if patch.MinRetrainInterval != 0 {
		g.cfg.MinRetrainInterval = patch.MinRetrainInterval
	}
	if patch.MaxPortfolioExposure != 0 {
		g.cfg.MaxPortfolioExposure = patch.MaxPortfolioExposure
	}
	if patch.MaxVolatility != 0 {
		g.cfg.MaxVolatility = patch.MaxVolatility
	}
	g.mu.Unlock()

	_ = g.log.Append(ctx, eventlog.Event{Type: eventlog.ConfigUpdated, Horizon: eventlog.Global, Reason: "guardrails config updated"})
}

// Snapshot is a read-only view of the current guardrail state, used by
// status endpoints.
type Snapshot struct {
	KillSwitch    bool
	PromotionLock bool
	Config        Config
	Drift         map[string]DriftState
}

// Status returns a copy of the current state for reporting.
func (g *Guardrails) Status() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	drift := make(map[string]DriftState, len(g.drift))
	for k, v := range g.drift {
		drift[k] = v
	}
	return Snapshot{
		KillSwitch:    g.killSwitch,
		PromotionLock: g.promotionLock,
		Config:        g.cfg,
		Drift:         drift,
	}
}

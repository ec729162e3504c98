// Package lifecycle runs the periodic auto-promotion and auto-rollback
// passes (C14) under the scheduler (C16): it compares active and shadow
// performance windows, promotes a winning shadow, or rolls back an active
// model whose recent performance trips a critical threshold, all gated by
// guardrails and recorded to the event log.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/sawpanic/marketintel/internal/guardrails"
	"github.com/sawpanic/marketintel/internal/model"
	"github.com/sawpanic/marketintel/internal/performance"
)

// OutcomeSource supplies the trade outcomes a horizon's active or shadow
// model has produced, within whatever lookback the caller's performance
// window needs; Controller filters by window internally.
type OutcomeSource interface {
	Outcomes(ctx context.Context, horizon string) ([]performance.TradeOutcome, error)
}

// ModelStore resolves a model id to its full record, needed by Rollback
// since the registry only retains the retired model's id.
type ModelStore interface {
	GetModel(ctx context.Context, id uuid.UUID) (model.Model, bool, error)
}

// PassConfig parameterizes one controller's comparison and rollback
// policies.
type PassConfig struct {
	WindowDays     int
	Compare        performance.CompareConfig
	Promotion      performance.PromotionRules
	Rollback       performance.RollbackRules
}

// ActionCounts summarizes what a pass did, for scheduler logging.
type ActionCounts struct {
	HorizonsChecked int
	Promoted        int
	RolledBack      int
	Skipped         int
}

// Controller composes the registry, guardrails, performance policy and
// outcome source into the promotion/rollback pass logic (§4.14). It holds
// no lock of its own beyond what Registry and Guardrails already provide;
// callers serialize promotion vs. rollback passes via Scheduler's lifecycle
// lock.
type Controller struct {
	Registry   *model.Registry
	Guardrails *guardrails.Guardrails
	Outcomes   OutcomeSource
	Models     ModelStore
	Cfg        PassConfig
	Log        zerolog.Logger
}

// RunPromotionPass evaluates every horizon's shadow against its active
// model and promotes any shadow that clears CheckPromotion. A no-op,
// skip-everything pass runs while the kill switch or promotion lock is
// active (§4.14, §8 invariant 11).
func (c *Controller) RunPromotionPass(ctx context.Context) (ActionCounts, error) {
	var counts ActionCounts
	if c.Guardrails.IsKillSwitchActive() {
		c.Log.Info().Msg("skipped: kill switch active")
		return counts, nil
	}
	if c.Guardrails.IsPromotionLocked() {
		c.Log.Info().Msg("skipped: promotion lock active")
		return counts, nil
	}

	now := time.Now().UTC()
	for _, horizon := range c.Registry.Horizons() {
		counts.HorizonsChecked++
		entry := c.Registry.Get(horizon)
		if entry.Shadow == nil && entry.Candidate == nil {
			counts.Skipped++
			continue
		}

		outcomes, err := c.Outcomes.Outcomes(ctx, horizon)
		if err != nil {
			return counts, fmt.Errorf("lifecycle: load outcomes for horizon %s: %w", horizon, err)
		}

		activeOutcomes := filterByShadow(outcomes, false)
		shadowOutcomes := filterByShadow(outcomes, true)
		activeWindow := performance.Compute(activeOutcomes, horizon, "", c.Cfg.WindowDays, now)
		shadowWindow := performance.Compute(shadowOutcomes, horizon, "", c.Cfg.WindowDays, now)

		cmp := performance.CheckPromotion(activeWindow, shadowWindow, c.Cfg.Promotion)
		if !cmp.ShadowBetter {
			c.Log.Info().Str("horizon", horizon).Str("reason", cmp.Reason).Msg("promotion skipped")
			counts.Skipped++
			continue
		}

		if _, err := c.Registry.Promote(ctx, horizon, cmp.Reason); err != nil {
			return counts, fmt.Errorf("lifecycle: promote horizon %s: %w", horizon, err)
		}
		counts.Promoted++
		c.Log.Info().Str("horizon", horizon).Str("confidence", string(cmp.Confidence)).Msg("promoted shadow to active")
	}
	return counts, nil
}

// RunRollbackPass evaluates every horizon's active model performance and
// rolls back any horizon whose window trips a CRITICAL rollback decision
// and has a prior active model to restore. A no-op, skip-everything pass
// runs while the kill switch is active (§4.14, §8 invariant 11).
func (c *Controller) RunRollbackPass(ctx context.Context) (ActionCounts, error) {
	var counts ActionCounts
	if c.Guardrails.IsKillSwitchActive() {
		c.Log.Info().Msg("skipped: kill switch active")
		return counts, nil
	}

	now := time.Now().UTC()
	for _, horizon := range c.Registry.Horizons() {
		counts.HorizonsChecked++
		entry := c.Registry.Get(horizon)
		if entry.Active == nil {
			counts.Skipped++
			continue
		}

		outcomes, err := c.Outcomes.Outcomes(ctx, horizon)
		if err != nil {
			return counts, fmt.Errorf("lifecycle: load outcomes for horizon %s: %w", horizon, err)
		}
		activeWindow := performance.Compute(filterByShadow(outcomes, false), horizon, "", c.Cfg.WindowDays, now)

		decision := performance.CheckRollback(activeWindow, c.Cfg.Rollback)
		if decision.Severity != performance.SeverityCritical {
			counts.Skipped++
			continue
		}
		if entry.PrevActiveID == uuid.Nil {
			c.Log.Warn().Str("horizon", horizon).Str("reason", decision.Reason).Msg("rollback needed but no prior active model exists")
			counts.Skipped++
			continue
		}

		previous, ok, err := c.Models.GetModel(ctx, entry.PrevActiveID)
		if err != nil {
			return counts, fmt.Errorf("lifecycle: load prior active model for horizon %s: %w", horizon, err)
		}
		if !ok {
			c.Log.Warn().Str("horizon", horizon).Msg("rollback needed but prior active model record missing")
			counts.Skipped++
			continue
		}

		if err := c.Registry.Rollback(ctx, horizon, decision.Reason, previous); err != nil {
			return counts, fmt.Errorf("lifecycle: rollback horizon %s: %w", horizon, err)
		}
		counts.RolledBack++
		c.Log.Warn().Str("horizon", horizon).Str("reason", decision.Reason).Msg("rolled back active model")
	}
	return counts, nil
}

func filterByShadow(outcomes []performance.TradeOutcome, shadow bool) []performance.TradeOutcome {
	out := make([]performance.TradeOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.IsShadow == shadow {
			out = append(out, o)
		}
	}
	return out
}

// SchedulerConfig parameterizes the two independent cron ticks.
type SchedulerConfig struct {
	PromotionCron     string
	RollbackCron      string
	PromotionEnabled  bool
	RollbackEnabled   bool
	InitialDelay      time.Duration
}

// Scheduler runs Controller's promotion and rollback passes on independent
// cron schedules, serialized against each other by a single lifecycle lock
// so they never interleave (§4.16).
type Scheduler struct {
	cfg        SchedulerConfig
	controller *Controller
	log        zerolog.Logger

	mu   sync.Mutex // the lifecycle lock: held for the duration of either pass
	cron *cron.Cron
}

// NewScheduler builds a Scheduler around controller.
func NewScheduler(cfg SchedulerConfig, controller *Controller, log zerolog.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, controller: controller, log: log}
}

// Start registers both cron ticks and begins running them. An initial pass
// of each enabled task runs after cfg.InitialDelay. Start returns once
// scheduling is registered; ticks fire on the Scheduler's own cron.Cron
// goroutine until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()

	if s.cfg.PromotionEnabled {
		if _, err := s.cron.AddFunc(s.cfg.PromotionCron, func() { s.tick(ctx, "promotion", s.controller.RunPromotionPass) }); err != nil {
			return fmt.Errorf("lifecycle: invalid promotion cron %q: %w", s.cfg.PromotionCron, err)
		}
	}
	if s.cfg.RollbackEnabled {
		if _, err := s.cron.AddFunc(s.cfg.RollbackCron, func() { s.tick(ctx, "rollback", s.controller.RunRollbackPass) }); err != nil {
			return fmt.Errorf("lifecycle: invalid rollback cron %q: %w", s.cfg.RollbackCron, err)
		}
	}

	s.cron.Start()

	go func() {
		if s.cfg.InitialDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.InitialDelay):
			}
		}
		if s.cfg.PromotionEnabled {
			s.tick(ctx, "promotion", s.controller.RunPromotionPass)
		}
		if s.cfg.RollbackEnabled {
			s.tick(ctx, "rollback", s.controller.RunRollbackPass)
		}
	}()

	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
	return nil
}

func (s *Scheduler) tick(ctx context.Context, role string, pass func(context.Context) (ActionCounts, error)) {
	if !s.cfg.PromotionEnabled && !s.cfg.RollbackEnabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	counts, err := pass(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("role", role).Msg("lifecycle pass failed")
		return
	}
	s.log.Info().Str("role", role).
		Int("checked", counts.HorizonsChecked).
		Int("promoted", counts.Promoted).
		Int("rolled_back", counts.RolledBack).
		Int("skipped", counts.Skipped).
		Msg("lifecycle pass complete")
}

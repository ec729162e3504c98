package main

import (
	"github.com/sawpanic/marketintel/internal/config"
	"github.com/sawpanic/marketintel/internal/performance"
)

func performanceCompareConfig(cfg *config.Config) performance.CompareConfig {
	return performance.CompareConfig{MinSamples: cfg.Performance.MinCompareSamples}
}

func performancePromotionRules(cfg *config.Config) performance.PromotionRules {
	return performance.PromotionRules{
		CompareConfig:       performanceCompareConfig(cfg),
		MaxDrawdownForPromo: cfg.Performance.MaxDrawdownForPromo,
		MinStability:        cfg.Performance.MinStabilityForPromo,
		MinWinRateLift:      cfg.Performance.MinWinRateLift,
		MinSharpeLift:       cfg.Performance.MinSharpeLift,
	}
}

func performanceRollbackRules(cfg *config.Config) performance.RollbackRules {
	return performance.RollbackRules{
		MinSamples:           cfg.Performance.MinCompareSamples,
		WinRateFloor:         cfg.Performance.WinRateFloor,
		MaxDrawdownCeil:      cfg.Performance.MaxDrawdownCeil,
		MinStability:         cfg.Performance.MinStabilityFloor,
		MaxConsecutiveLosses: cfg.Guardrails.StreakKillerLosses,
	}
}

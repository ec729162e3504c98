// Package config loads and validates the platform's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MockFallbackPriority is the priority assigned to the mock provider when no
// explicit "mock" entry is configured. Registry priority is descending
// (higher wins), so this must sit below every real provider's priority to
// keep mock a last resort.
const MockFallbackPriority = -1000

// Config is the root configuration document for the platform.
type Config struct {
	Providers   map[string]ProviderConfig `yaml:"providers"`
	Global      GlobalConfig              `yaml:"global"`
	Collector   CollectorConfig           `yaml:"collector"`
	Training    TrainingConfig            `yaml:"training"`
	Lifecycle   LifecycleConfig           `yaml:"lifecycle"`
	Guardrails  GuardrailsConfig          `yaml:"guardrails"`
	Performance PerformanceConfig         `yaml:"performance"`
	Persistence PersistenceConfig         `yaml:"persistence"`
}

// ProviderConfig describes one exchange data provider's connection and
// resilience parameters.
type ProviderConfig struct {
	Host        string        `yaml:"host"`
	Priority    int           `yaml:"priority"`
	Enabled     bool          `yaml:"enabled"`
	BaseURL     string        `yaml:"base_url"`
	RPS         float64       `yaml:"rps"`
	Burst       int           `yaml:"burst"`
	Backoff     BackoffConfig `yaml:"backoff"`
	Circuit     CircuitConfig `yaml:"circuit"`
	RequestTTL  time.Duration `yaml:"request_ttl"`
}

// BackoffConfig controls exponential retry backoff.
type BackoffConfig struct {
	Base   time.Duration `yaml:"base"`
	Max    time.Duration `yaml:"max"`
	Jitter bool          `yaml:"jitter"`
}

// CircuitConfig parameterizes the per-provider circuit breaker, mapped onto
// the UP/DEGRADED/DOWN health vocabulary rather than the generic
// closed/open/half-open one.
type CircuitConfig struct {
	DegradedThreshold int           `yaml:"degraded_threshold"`
	DownThreshold     int           `yaml:"down_threshold"`
	RecoveryProbes    int           `yaml:"recovery_probes"`
	OpenTimeout       time.Duration `yaml:"open_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
}

// GlobalConfig holds cross-cutting provider settings.
type GlobalConfig struct {
	MaxConcurrentPerHost int    `yaml:"max_concurrent_per_host"`
	UserAgent            string `yaml:"user_agent"`
	RedisAddr            string `yaml:"redis_addr"`
	CatalogTTL           time.Duration `yaml:"catalog_ttl"`
}

// CollectorConfig parameterizes the observation collection loop.
type CollectorConfig struct {
	Interval          time.Duration `yaml:"interval"`
	MinProvidersOK    int           `yaml:"min_providers_ok"`
	SymbolConcurrency int           `yaml:"symbol_concurrency"`
	CandleInterval    string        `yaml:"candle_interval"`
	CandleLookback    int           `yaml:"candle_lookback"`
	Symbols           []string      `yaml:"symbols"`
}

// TrainingConfig parameterizes the trainer and dataset builder.
type TrainingConfig struct {
	Horizons         []string      `yaml:"horizons"`
	EpsilonReturn    float64       `yaml:"epsilon_return"`
	TrainSplit       float64       `yaml:"train_split"`
	ValSplit         float64       `yaml:"val_split"`
	LearningRate     float64       `yaml:"learning_rate"`
	L2Penalty        float64       `yaml:"l2_penalty"`
	MaxEpochs        int           `yaml:"max_epochs"`
	EarlyStopPatience int          `yaml:"early_stop_patience"`
	MinSamples       int           `yaml:"min_samples"`
	RetrainCooldown  time.Duration `yaml:"retrain_cooldown"`
}

// LifecycleConfig parameterizes the promotion/rollback scheduler.
type LifecycleConfig struct {
	PromotionCron  string  `yaml:"promotion_cron"`
	RollbackCron   string  `yaml:"rollback_cron"`
	MinImprovement float64 `yaml:"min_improvement"`
	WindowDays     int     `yaml:"window_days"`
}

// GuardrailsConfig parameterizes protective limits on lifecycle actions.
type GuardrailsConfig struct {
	MaxExposurePerSymbol float64       `yaml:"max_exposure_per_symbol"`
	MaxVolatilityCap     float64       `yaml:"max_volatility_cap"`
	StreakKillerLosses   int           `yaml:"streak_killer_losses"`
	MaxDailyRetrains     int           `yaml:"max_daily_retrains"`
	MinRetrainInterval   time.Duration `yaml:"min_retrain_interval"`
}

// PerformanceConfig parameterizes the thresholds the lifecycle controller
// uses to decide whether a shadow model qualifies for promotion or an active
// model has degraded enough to roll back.
type PerformanceConfig struct {
	MinCompareSamples    int     `yaml:"min_compare_samples"`
	MinWinRateLift       float64 `yaml:"min_win_rate_lift"`
	MinSharpeLift        float64 `yaml:"min_sharpe_lift"`
	MaxDrawdownForPromo  float64 `yaml:"max_drawdown_for_promo"`
	MinStabilityForPromo float64 `yaml:"min_stability_for_promo"`
	WinRateFloor         float64 `yaml:"win_rate_floor"`
	MaxDrawdownCeil      float64 `yaml:"max_drawdown_ceil"`
	MinStabilityFloor    float64 `yaml:"min_stability_floor"`
}

// PersistenceConfig holds storage backend connection settings.
type PersistenceConfig struct {
	PostgresDSN    string        `yaml:"postgres_dsn"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for internal consistency, failing fast
// on anything that would produce undefined behavior downstream.
func (c *Config) Validate() error {
	for name, p := range c.Providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}

	if c.Global.MaxConcurrentPerHost <= 0 {
		return fmt.Errorf("global.max_concurrent_per_host must be positive")
	}
	if c.Collector.Interval <= 0 {
		return fmt.Errorf("collector.interval must be positive")
	}
	if c.Collector.MinProvidersOK <= 0 {
		return fmt.Errorf("collector.min_providers_ok must be positive")
	}

	if len(c.Training.Horizons) == 0 {
		return fmt.Errorf("training.horizons must not be empty")
	}
	if c.Training.TrainSplit+c.Training.ValSplit >= 1.0 {
		return fmt.Errorf("training.train_split + val_split must leave room for a test split")
	}
	if c.Training.MinSamples <= 0 {
		return fmt.Errorf("training.min_samples must be positive")
	}

	if c.Lifecycle.PromotionCron == "" || c.Lifecycle.RollbackCron == "" {
		return fmt.Errorf("lifecycle cron expressions must be set")
	}

	return nil
}

// Validate checks a single provider's configuration.
func (p *ProviderConfig) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if p.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %f", p.RPS)
	}
	if p.Burst <= 0 {
		return fmt.Errorf("burst must be positive, got %d", p.Burst)
	}
	if p.Backoff.Max <= p.Backoff.Base {
		return fmt.Errorf("backoff.max (%s) must exceed backoff.base (%s)", p.Backoff.Max, p.Backoff.Base)
	}
	if p.Circuit.DegradedThreshold <= 0 || p.Circuit.DownThreshold <= p.Circuit.DegradedThreshold {
		return fmt.Errorf("circuit thresholds must satisfy 0 < degraded < down")
	}
	return nil
}

// Default returns a configuration populated with sane defaults, used when no
// config file is supplied (tests, local development).
func Default() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{
			"kraken": {
				Host:     "api.kraken.com",
				Priority: 10,
				Enabled:  true,
				BaseURL:  "https://api.kraken.com",
				RPS:      1.0,
				Burst:    3,
				Backoff:  BackoffConfig{Base: 500 * time.Millisecond, Max: 30 * time.Second, Jitter: true},
				Circuit: CircuitConfig{
					DegradedThreshold: 3,
					DownThreshold:     5,
					RecoveryProbes:    2,
					OpenTimeout:       30 * time.Second,
					RequestTimeout:    10 * time.Second,
				},
				RequestTTL: 5 * time.Second,
			},
			"mock": {
				Host:     "mock.local",
				Priority: 0,
				Enabled:  true,
				BaseURL:  "mock://local",
				RPS:      1000,
				Burst:    1000,
				Backoff:  BackoffConfig{Base: time.Millisecond, Max: time.Second, Jitter: false},
				Circuit: CircuitConfig{
					DegradedThreshold: 3,
					DownThreshold:     5,
					RecoveryProbes:    1,
					OpenTimeout:       time.Second,
					RequestTimeout:    time.Second,
				},
				RequestTTL: time.Second,
			},
		},
		Global: GlobalConfig{
			MaxConcurrentPerHost: 4,
			UserAgent:            "marketintel/1.0",
			CatalogTTL:           5 * time.Minute,
		},
		Collector: CollectorConfig{
			Interval:          time.Minute,
			MinProvidersOK:    1,
			SymbolConcurrency: 8,
			CandleInterval:    "1m",
			CandleLookback:    60,
			Symbols:           []string{"BTC-USD", "ETH-USD", "SOL-USD"},
		},
		Training: TrainingConfig{
			Horizons:          []string{"1h", "4h", "24h"},
			EpsilonReturn:     0.001,
			TrainSplit:        0.7,
			ValSplit:          0.15,
			LearningRate:      0.05,
			L2Penalty:         0.001,
			MaxEpochs:         200,
			EarlyStopPatience: 10,
			MinSamples:        200,
			RetrainCooldown:   24 * time.Hour,
		},
		Lifecycle: LifecycleConfig{
			PromotionCron:  "0 */6 * * *",
			RollbackCron:   "0 */3 * * *",
			MinImprovement: 0.02,
			WindowDays:     30,
		},
		Guardrails: GuardrailsConfig{
			MaxExposurePerSymbol: 0.1,
			MaxVolatilityCap:     0.08,
			StreakKillerLosses:   5,
			MaxDailyRetrains:     3,
			MinRetrainInterval:   time.Hour,
		},
		Performance: PerformanceConfig{
			MinCompareSamples:    30,
			MinWinRateLift:       0.02,
			MinSharpeLift:        0.1,
			MaxDrawdownForPromo:  0.5,
			MinStabilityForPromo: 0.0,
			WinRateFloor:         0.40,
			MaxDrawdownCeil:      0.15,
			MinStabilityFloor:    0.3,
		},
		Persistence: PersistenceConfig{
			QueryTimeout: 5 * time.Second,
		},
	}
}

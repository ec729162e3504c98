package main

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/sawpanic/marketintel/internal/backfill"
	"github.com/sawpanic/marketintel/internal/cache"
	"github.com/sawpanic/marketintel/internal/circuit"
	"github.com/sawpanic/marketintel/internal/collector"
	"github.com/sawpanic/marketintel/internal/config"
	"github.com/sawpanic/marketintel/internal/eventlog"
	"github.com/sawpanic/marketintel/internal/guardrails"
	"github.com/sawpanic/marketintel/internal/lifecycle"
	"github.com/sawpanic/marketintel/internal/logging"
	"github.com/sawpanic/marketintel/internal/model"
	"github.com/sawpanic/marketintel/internal/outcomes"
	"github.com/sawpanic/marketintel/internal/provider"
	"github.com/sawpanic/marketintel/internal/providers/kraken"
	"github.com/sawpanic/marketintel/internal/providers/mock"
	"github.com/sawpanic/marketintel/internal/ratelimit"
	"github.com/sawpanic/marketintel/internal/resolver"
	"github.com/sawpanic/marketintel/internal/store"
	"github.com/sawpanic/marketintel/internal/symbol"
)

// app bundles every wired component a subcommand might need. It is built
// fresh from config at the start of each invocation; only the "serve"
// command keeps it alive across time via the collector and lifecycle
// schedulers.
type app struct {
	cfg *config.Config
	log zerolog.Logger

	breaker  *circuit.Manager
	limiter  *ratelimit.Scheduler
	registry *provider.Registry
	resolver *resolver.Resolver
	obsStore store.Store

	collector   *collector.Collector
	backfillMgr *backfill.Manager

	modelRegistry *model.Registry
	eventLog      eventlog.Log
	guardrailSvc  *guardrails.Guardrails
	outcomeStore  *outcomes.Store
	lifecycleCtl  *lifecycle.Controller
}

func newApp(cfgPath string) (*app, error) {
	var cfg *config.Config
	if cfgPath == "" {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	logging.Init(false)
	log := logging.For("marketintel")

	breaker := circuit.NewManager()
	limiter := ratelimit.NewScheduler()
	registry := provider.NewRegistry()

	for name, pc := range cfg.Providers {
		breaker.AddProvider(circuit.Config{
			Name:              name,
			DegradedThreshold: uint32(pc.Circuit.DegradedThreshold),
			DownThreshold:     uint32(pc.Circuit.DownThreshold),
			OpenTimeout:       pc.Circuit.OpenTimeout,
			RequestTimeout:    pc.Circuit.RequestTimeout,
		})
		limiter.AddProvider(name, pc.RPS, pc.Burst)
	}

	if pc, ok := cfg.Providers["kraken"]; ok && pc.Enabled {
		registry.Register(kraken.New(kraken.Config{
			BaseURL:        pc.BaseURL,
			RequestTimeout: pc.Circuit.RequestTimeout,
			UserAgent:      cfg.Global.UserAgent,
		}, limiter, breaker), pc.Priority)
	}
	if pc, ok := cfg.Providers["mock"]; ok && pc.Enabled {
		registry.Register(mock.New(), pc.Priority)
	} else {
		registry.Register(mock.New(), config.MockFallbackPriority)
	}

	c := cache.NewAuto(cfg.Global.RedisAddr)
	res := resolver.New(registry, c, cfg.Global.CatalogTTL)

	obsStore, err := buildObservationStore(cfg)
	if err != nil {
		return nil, err
	}
	obsStore = &meteredStore{Store: obsStore}

	coll := collector.New(collector.Config{
		Interval:          cfg.Collector.Interval,
		MinProvidersOK:    cfg.Collector.MinProvidersOK,
		SymbolConcurrency: cfg.Collector.SymbolConcurrency,
		CandleInterval:    cfg.Collector.CandleInterval,
		CandleLookback:    cfg.Collector.CandleLookback,
	}, res, obsStore, log)

	backfillMgr := backfill.NewManager(limiter, obsStore)

	eventLog := eventlog.NewMemory()
	modelRegistry := model.NewRegistry(eventLog)
	guardrailSvc := guardrails.New(guardrails.Config{
		MaxDailyRetrains:     cfg.Guardrails.MaxDailyRetrains,
		MinRetrainInterval:   cfg.Guardrails.MinRetrainInterval,
		MaxPortfolioExposure: cfg.Guardrails.MaxExposurePerSymbol,
		MaxVolatility:        cfg.Guardrails.MaxVolatilityCap,
	}, eventLog)
	outcomeStore := outcomes.NewStore()

	lifecycleCtl := &lifecycle.Controller{
		Registry:   modelRegistry,
		Guardrails: guardrailSvc,
		Outcomes:   outcomeStore,
		Models:     outcomeStore,
		Cfg: lifecycle.PassConfig{
			WindowDays: cfg.Lifecycle.WindowDays,
			Compare:    performanceCompareConfig(cfg),
			Promotion:  performancePromotionRules(cfg),
			Rollback:   performanceRollbackRules(cfg),
		},
		Log: log,
	}

	return &app{
		cfg:           cfg,
		log:           log,
		breaker:       breaker,
		limiter:       limiter,
		registry:      registry,
		resolver:      res,
		obsStore:      obsStore,
		collector:     coll,
		backfillMgr:   backfillMgr,
		modelRegistry: modelRegistry,
		eventLog:      eventLog,
		guardrailSvc:  guardrailSvc,
		outcomeStore:  outcomeStore,
		lifecycleCtl:  lifecycleCtl,
	}, nil
}

func buildObservationStore(cfg *config.Config) (store.Store, error) {
	if cfg.Persistence.PostgresDSN == "" {
		return store.NewMemory(), nil
	}
	db, err := sqlx.Connect("postgres", cfg.Persistence.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetConnMaxLifetime(time.Hour)
	return store.NewPostgres(db), nil
}

func symbolsFromConfig(cfg *config.Config) []symbol.Symbol {
	out := make([]symbol.Symbol, 0, len(cfg.Collector.Symbols))
	for _, s := range cfg.Collector.Symbols {
		out = append(out, symbol.Normalize(s))
	}
	return out
}

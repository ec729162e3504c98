// Command marketintel runs the crypto derivatives market-intelligence
// platform: provider ingestion, indicator computation, model training, and
// the auto-promotion/rollback lifecycle, all driven from one binary.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/marketintel/internal/lifecycle"
	"github.com/sawpanic/marketintel/internal/metrics"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:   "marketintel",
		Short: "Crypto derivatives market-intelligence and auto-learning platform",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (defaults to built-in defaults)")

	root.AddCommand(
		newServeCmd(),
		newProvidersCmd(),
		newObserveCmd(),
		newBackfillCmd(),
		newTrainCmd(),
		newModelsCmd(),
		newLifecycleCmd(),
		newGuardrailsCmd(),
		newEventsCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the collector and lifecycle schedulers until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			srv := &http.Server{Addr: metricsAddr, Handler: mux}
			go func() {
				a.log.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					a.log.Error().Err(err).Msg("metrics server stopped")
				}
			}()

			scheduler := lifecycle.NewScheduler(lifecycle.SchedulerConfig{
				PromotionCron:    a.cfg.Lifecycle.PromotionCron,
				RollbackCron:     a.cfg.Lifecycle.RollbackCron,
				PromotionEnabled: true,
				RollbackEnabled:  true,
				InitialDelay:     time.Minute,
			}, a.lifecycleCtl, a.log)
			if err := scheduler.Start(ctx); err != nil {
				return err
			}

			symbols := symbolsFromConfig(a.cfg)
			ticker := time.NewTicker(a.cfg.Collector.Interval)
			defer ticker.Stop()

			a.log.Info().Int("symbols", len(symbols)).Msg("collector loop starting")
			for {
				select {
				case <-ctx.Done():
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
					return nil
				case <-ticker.C:
					result, err := a.collector.Run(ctx, symbols)
					if err != nil {
						a.log.Warn().Err(err).Msg("collection pass skipped")
						continue
					}
					a.log.Info().Int("succeeded", result.Succeeded).Int("attempted", result.Attempted).Msg("collection pass complete")
				}
			}
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address the /metrics endpoint listens on")
	return cmd
}

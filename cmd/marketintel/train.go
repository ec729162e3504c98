package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sawpanic/marketintel/internal/dataset"
	"github.com/sawpanic/marketintel/internal/model"
	"github.com/sawpanic/marketintel/internal/outcomes"
	"github.com/sawpanic/marketintel/internal/symbol"
	"github.com/sawpanic/marketintel/internal/trainer"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "train", Short: "Train horizon-scoped classifiers and inspect training runs"}
	cmd.AddCommand(newTrainRunCmd(), newTrainListCmd(), newTrainGetCmd())
	return cmd
}

func newTrainRunCmd() *cobra.Command {
	var sym string
	var horizonMinutes int
	var lookback time.Duration
	var algorithm string
	c := &cobra.Command{
		Use:   "run [horizon]",
		Short: "Build a dataset from stored observations and train a candidate model for horizon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			horizon := args[0]
			if algorithm != "" && algorithm != string(model.AlgorithmLogisticRegression) {
				return fmt.Errorf("train: only %s is implemented; tree/forest/boost are registry placeholders (see §9)", model.AlgorithmLogisticRegression)
			}

			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			obs, err := a.obsStore.Range(cmd.Context(), symbol.Normalize(sym), now.Add(-lookback), now)
			if err != nil {
				return fmt.Errorf("train: load observations: %w", err)
			}
			if horizonMinutes <= 0 {
				return fmt.Errorf("train: --horizon-minutes must be positive")
			}

			rows, err := dataset.Build(obs, dataset.BuildConfig{
				HorizonMinutes: horizonMinutes,
				EpsilonReturn:  a.cfg.Training.EpsilonReturn,
			})
			if err != nil {
				return fmt.Errorf("train: build dataset: %w", err)
			}
			if len(rows) < a.cfg.Training.MinSamples {
				fmt.Printf("skipped: SAMPLES_LOW (%d rows, need %d)\n", len(rows), a.cfg.Training.MinSamples)
				return nil
			}

			cfg := trainer.Config{
				TrainSplit:        a.cfg.Training.TrainSplit,
				ValSplit:          a.cfg.Training.ValSplit,
				LearningRate:      a.cfg.Training.LearningRate,
				L2Penalty:         a.cfg.Training.L2Penalty,
				MaxEpochs:         a.cfg.Training.MaxEpochs,
				EarlyStopPatience: a.cfg.Training.EarlyStopPatience,
				MinSamples:        a.cfg.Training.MinSamples,
				Seed:              1,
			}

			result := trainer.Run(rows, cfg)
			if result.Status != trainer.StatusCompleted {
				return fmt.Errorf("train: run failed: %w", result.Err)
			}

			_, featureKeys, err := trainer.SplitRows(rows, cfg)
			if err != nil {
				return fmt.Errorf("train: derive feature keys: %w", err)
			}

			m := model.Model{
				ID:          uuid.New(),
				Horizon:     horizon,
				Algorithm:   model.AlgorithmLogisticRegression,
				Status:      model.StatusReady,
				Artifact:    result.Artifact,
				Metrics:     model.Metrics{Accuracy: result.TestAccuracy, Brier: result.ValLoss},
				Thresholds:  model.Thresholds{WinThreshold: 0.6, LossThreshold: 0.4},
				FeatureKeys: featureKeys,
				TrainedAt:   now,
			}
			a.modelRegistry.RegisterCandidate(m)
			a.outcomeStore.IndexModel(m)

			if _, err := outcomes.RecordFromDataset(cmd.Context(), a.outcomeStore, rows, horizon, m.ID, true); err != nil {
				return fmt.Errorf("train: record shadow outcomes: %w", err)
			}

			fmt.Printf("trained candidate for horizon=%s epochs=%d train_loss=%.4f val_loss=%.4f test_accuracy=%.4f rows=%d\n",
				horizon, result.Epochs, result.TrainLoss, result.ValLoss, result.TestAccuracy, len(rows))
			return nil
		},
	}
	c.Flags().StringVar(&sym, "symbol", "", "symbol to build the dataset from")
	c.Flags().IntVar(&horizonMinutes, "horizon-minutes", 60, "forward-outcome horizon in minutes")
	c.Flags().DurationVar(&lookback, "lookback", 30*24*time.Hour, "how far back to pull observations for the dataset")
	c.Flags().StringVar(&algorithm, "algorithm", "", "algorithm override (only LOGISTIC_REGRESSION is implemented)")
	_ = c.MarkFlagRequired("symbol")
	return c
}

func newTrainListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every horizon's version, promotion and rollback counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			for _, h := range a.modelRegistry.Horizons() {
				entry := a.modelRegistry.Get(h)
				fmt.Printf("%-8s versions=%d promotions=%d rollbacks=%d\n", h, entry.TotalVersions, entry.TotalPromotions, entry.TotalRollbacks)
			}
			return nil
		},
	}
}

func newTrainGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [horizon]",
		Short: "Show a horizon's candidate/shadow/active models",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			entry := a.modelRegistry.Get(args[0])
			printModelSlot("active", entry.Active)
			printModelSlot("shadow", entry.Shadow)
			printModelSlot("candidate", entry.Candidate)
			return nil
		},
	}
}

func printModelSlot(name string, m *model.Model) {
	if m == nil {
		fmt.Printf("%s: (none)\n", name)
		return
	}
	fmt.Printf("%s: id=%s version=%d status=%s accuracy=%.4f\n", name, m.ID, m.Version, m.Status, m.Metrics.Accuracy)
}

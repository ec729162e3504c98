package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sawpanic/marketintel/internal/backfill"
	"github.com/sawpanic/marketintel/internal/symbol"
)

func newBackfillCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "backfill", Short: "Start and monitor historical candle ingestion runs"}
	cmd.AddCommand(newBackfillStartCmd(), newBackfillStatusCmd(), newBackfillListCmd(), newBackfillCancelCmd())
	return cmd
}

func newBackfillStartCmd() *cobra.Command {
	var providerID, interval string
	var days, chunkCandles int
	c := &cobra.Command{
		Use:   "start [symbol]",
		Short: "Start a backfill run for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			if days < 1 || days > 30 {
				return fmt.Errorf("backfill: days must be in [1, 30], got %d", days)
			}
			entry, ok := a.registry.Get(providerID)
			if !ok {
				return fmt.Errorf("backfill: provider %q is not registered", providerID)
			}

			now := time.Now().UTC()
			req := backfill.Request{
				Symbol:           symbol.Normalize(args[0]),
				Interval:         interval,
				From:             now.AddDate(0, 0, -days),
				To:               now,
				ChunkCandles:     chunkCandles,
				ThrottleCooldown: 5 * time.Second,
			}
			id := a.backfillMgr.Start(cmd.Context(), entry.Provider, req)
			fmt.Println(id)
			return nil
		},
	}
	c.Flags().StringVar(&providerID, "provider", "kraken", "provider id to backfill from")
	c.Flags().StringVar(&interval, "timeframe", "5m", "candle timeframe: 1m, 5m, or 15m")
	c.Flags().IntVar(&days, "days", 7, "number of days to backfill, 1-30")
	c.Flags().IntVar(&chunkCandles, "chunk", 200, "candles requested per chunk, up to 500")
	return c
}

func newBackfillStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [run-id]",
		Short: "Show a backfill run's progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("backfill: invalid run id: %w", err)
			}
			state, ok := a.backfillMgr.Get(id)
			if !ok {
				return fmt.Errorf("backfill: no run %s", id)
			}
			printRunState(state)
			return nil
		},
	}
}

func newBackfillListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every tracked backfill run",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			for _, s := range a.backfillMgr.List() {
				printRunState(s)
			}
			return nil
		},
	}
}

func newBackfillCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [run-id]",
		Short: "Cancel a running backfill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("backfill: invalid run id: %w", err)
			}
			return a.backfillMgr.Cancel(id)
		},
	}
}

func printRunState(s backfill.RunState) {
	fmt.Printf("%s symbol=%s status=%-10s chunks=%d/%d eta=%s\n",
		s.ID, s.Symbol, s.Status, s.ChunksDone, s.ChunksTotal, s.EstimatedDone.Format(time.RFC3339))
	if s.Err != "" {
		fmt.Printf("  error: %s\n", s.Err)
	}
}

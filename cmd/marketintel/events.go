package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/marketintel/internal/eventlog"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "events", Short: "Read the lifecycle audit trail"}
	cmd.AddCommand(newEventsRecentCmd(), newEventsStatsCmd())
	return cmd
}

func newEventsRecentCmd() *cobra.Command {
	var horizon string
	var limit int
	c := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent lifecycle events, globally or for one horizon",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			var events []eventlog.Event
			if horizon == "" {
				events, err = a.eventLog.Recent(cmd.Context(), limit)
			} else {
				events, err = a.eventLog.ByHorizon(cmd.Context(), horizon, limit)
			}
			if err != nil {
				return err
			}
			for _, e := range events {
				fmt.Printf("%s type=%-20s horizon=%-8s reason=%q\n", e.Timestamp.Format(time.RFC3339), e.Type, e.Horizon, e.Reason)
			}
			return nil
		},
	}
	c.Flags().StringVar(&horizon, "horizon", "", "restrict to one horizon")
	c.Flags().IntVar(&limit, "limit", 20, "maximum events to show")
	return c
}

func newEventsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate counts by type and horizon, and recent promotion/rollback activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			mem, ok := a.eventLog.(*eventlog.Memory)
			if !ok {
				return fmt.Errorf("events: stats requires the in-memory event log backend")
			}
			stats := mem.ComputeStats(time.Now().UTC())
			for t, n := range stats.TotalByType {
				fmt.Printf("by_type[%s]=%d\n", t, n)
			}
			for h, n := range stats.TotalByHorizon {
				fmt.Printf("by_horizon[%s]=%d\n", h, n)
			}
			fmt.Printf("promotions_last_7d=%d rollbacks_last_7d=%d\n", stats.PromotionsLast7d, stats.RollbacksLast7d)
			return nil
		},
	}
}

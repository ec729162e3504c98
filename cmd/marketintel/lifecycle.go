package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLifecycleCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "lifecycle", Short: "Inspect and manually trigger the auto-promotion/auto-rollback lifecycle"}
	cmd.AddCommand(newLifecycleStatusCmd(), newLifecycleTickCmd())
	return cmd
}

func newLifecycleStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show guardrail gating state and per-horizon registry counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			status := a.guardrailSvc.Status()
			fmt.Printf("kill_switch=%v promotion_lock=%v\n", status.KillSwitch, status.PromotionLock)
			for h, d := range status.Drift {
				fmt.Printf("drift[%s]=%s\n", h, d)
			}
			for _, h := range a.modelRegistry.Horizons() {
				entry := a.modelRegistry.Get(h)
				fmt.Printf("%-8s promotions=%d rollbacks=%d\n", h, entry.TotalPromotions, entry.TotalRollbacks)
			}
			return nil
		},
	}
}

func newLifecycleTickCmd() *cobra.Command {
	var role string
	c := &cobra.Command{
		Use:   "tick",
		Short: "Run one promotion and/or rollback pass immediately, outside the scheduler's cron",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			if role == "promotion" || role == "both" {
				counts, err := a.lifecycleCtl.RunPromotionPass(cmd.Context())
				if err != nil {
					return fmt.Errorf("promotion pass: %w", err)
				}
				fmt.Printf("promotion: checked=%d promoted=%d skipped=%d\n", counts.HorizonsChecked, counts.Promoted, counts.Skipped)
			}
			if role == "rollback" || role == "both" {
				counts, err := a.lifecycleCtl.RunRollbackPass(cmd.Context())
				if err != nil {
					return fmt.Errorf("rollback pass: %w", err)
				}
				fmt.Printf("rollback: checked=%d rolled_back=%d skipped=%d\n", counts.HorizonsChecked, counts.RolledBack, counts.Skipped)
			}
			return nil
		},
	}
	c.Flags().StringVar(&role, "role", "both", "which pass to run: promotion, rollback, or both")
	return c
}

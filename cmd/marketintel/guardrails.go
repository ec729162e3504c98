package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sawpanic/marketintel/internal/guardrails"
)

func newGuardrailsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "guardrails", Short: "Read and mutate process-scoped safety controls"}
	cmd.AddCommand(
		newGuardrailsStatusCmd(),
		newGuardrailsKillSwitchCmd(),
		newGuardrailsPromotionLockCmd(),
		newGuardrailsDriftCmd(),
		newGuardrailsCapsCmd(),
	)
	return cmd
}

func newGuardrailsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current guardrail state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			s := a.guardrailSvc.Status()
			fmt.Printf("kill_switch=%v\n", s.KillSwitch)
			fmt.Printf("promotion_lock=%v\n", s.PromotionLock)
			fmt.Printf("max_exposure=%.4f max_volatility=%.4f\n", s.Config.MaxPortfolioExposure, s.Config.MaxVolatility)
			fmt.Printf("max_daily_retrains=%d min_retrain_interval=%s\n", s.Config.MaxDailyRetrains, s.Config.MinRetrainInterval)
			for h, d := range s.Drift {
				fmt.Printf("drift[%s]=%s\n", h, d)
			}
			return nil
		},
	}
}

func newGuardrailsKillSwitchCmd() *cobra.Command {
	var reason string
	c := &cobra.Command{
		Use:   "kill-switch [on|off]",
		Short: "Toggle the global kill switch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			active, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			a.guardrailSvc.SetKillSwitch(cmd.Context(), active, reason)
			return nil
		},
	}
	c.Flags().StringVar(&reason, "reason", "", "reason recorded in the event log")
	return c
}

func newGuardrailsPromotionLockCmd() *cobra.Command {
	var reason string
	c := &cobra.Command{
		Use:   "promotion-lock [on|off]",
		Short: "Toggle the promotion lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			active, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			a.guardrailSvc.SetPromotionLock(cmd.Context(), active, reason)
			return nil
		},
	}
	c.Flags().StringVar(&reason, "reason", "", "reason recorded in the event log")
	return c
}

func newGuardrailsDriftCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drift [horizon] [NORMAL|WARNING|CRITICAL]",
		Short: "Set a horizon's drift state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			a.guardrailSvc.SetDriftState(cmd.Context(), args[0], guardrails.DriftState(args[1]))
			return nil
		},
	}
}

func newGuardrailsCapsCmd() *cobra.Command {
	var maxExposure, maxVolatility float64
	c := &cobra.Command{
		Use:   "caps",
		Short: "Adjust exposure and volatility caps",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			a.guardrailSvc.UpdateConfig(cmd.Context(), guardrails.Config{
				MaxPortfolioExposure: maxExposure,
				MaxVolatility:        maxVolatility,
			})
			return nil
		},
	}
	c.Flags().Float64Var(&maxExposure, "max-exposure", 0, "new max portfolio exposure (0 leaves unchanged)")
	c.Flags().Float64Var(&maxVolatility, "max-volatility", 0, "new max volatility cap (0 leaves unchanged)")
	return c
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected \"on\" or \"off\", got %q", s)
	}
}

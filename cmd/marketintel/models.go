package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/google/uuid"

	"github.com/sawpanic/marketintel/internal/model"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "models", Short: "Inspect and manually drive per-horizon model lifecycle state"}
	cmd.AddCommand(
		newModelsListCmd(),
		newModelsGetCmd(),
		newModelsPromoteCmd(),
		newModelsRollbackCmd(),
		newModelsShadowCmd(),
		newModelsClearShadowCmd(),
	)
	return cmd
}

func newModelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every horizon's registry pointers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			for _, h := range a.modelRegistry.Horizons() {
				entry := a.modelRegistry.Get(h)
				fmt.Printf("%-8s active=%s shadow=%s candidate=%s\n", h,
					modelIDOrNone(entry.Active), modelIDOrNone(entry.Shadow), modelIDOrNone(entry.Candidate))
			}
			return nil
		},
	}
}

func newModelsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [horizon]",
		Short: "Show one horizon's full registry entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			entry := a.modelRegistry.Get(args[0])
			fmt.Printf("horizon=%s active=%s shadow=%s candidate=%s prev=%s promotions=%d rollbacks=%d\n",
				entry.Horizon, modelIDOrNone(entry.Active), modelIDOrNone(entry.Shadow), modelIDOrNone(entry.Candidate),
				entry.PrevActiveID, entry.TotalPromotions, entry.TotalRollbacks)
			return nil
		},
	}
}

func newModelsPromoteCmd() *cobra.Command {
	var reason string
	c := &cobra.Command{
		Use:   "promote [horizon]",
		Short: "Promote a horizon's candidate (or shadow) to active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			if a.guardrailSvc.IsKillSwitchActive() {
				fmt.Println("skipped: kill switch active")
				return nil
			}
			if a.guardrailSvc.IsPromotionLocked() {
				fmt.Println("skipped: promotion lock active")
				return nil
			}
			promoted, err := a.modelRegistry.Promote(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			fmt.Printf("promoted %s to active for horizon %s\n", promoted.ID, args[0])
			return nil
		},
	}
	c.Flags().StringVar(&reason, "reason", "manual promotion", "reason recorded in the event log")
	return c
}

func newModelsRollbackCmd() *cobra.Command {
	var reason string
	c := &cobra.Command{
		Use:   "rollback [horizon]",
		Short: "Roll a horizon's active model back to the previous active model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			if a.guardrailSvc.IsKillSwitchActive() {
				fmt.Println("skipped: kill switch active")
				return nil
			}
			entry := a.modelRegistry.Get(args[0])
			if entry.PrevActiveID == uuid.Nil {
				return fmt.Errorf("models: horizon %q has no prior active model to roll back to", args[0])
			}
			previous, ok, err := a.outcomeStore.GetModel(cmd.Context(), entry.PrevActiveID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("models: prior active model %s not found", entry.PrevActiveID)
			}
			if err := a.modelRegistry.Rollback(cmd.Context(), args[0], reason, previous); err != nil {
				return err
			}
			fmt.Printf("rolled back horizon %s to %s\n", args[0], previous.ID)
			return nil
		},
	}
	c.Flags().StringVar(&reason, "reason", "manual rollback", "reason recorded in the event log")
	return c
}

func newModelsShadowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shadow [horizon]",
		Short: "Promote a horizon's current candidate to shadow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			entry := a.modelRegistry.Get(args[0])
			if entry.Candidate == nil {
				return fmt.Errorf("models: horizon %q has no candidate to shadow", args[0])
			}
			a.modelRegistry.SetShadow(cmd.Context(), args[0], *entry.Candidate)
			fmt.Printf("set shadow for horizon %s to %s\n", args[0], entry.Candidate.ID)
			return nil
		},
	}
}

func newModelsClearShadowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-shadow [horizon]",
		Short: "Clear a horizon's shadow model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			a.modelRegistry.ClearShadow(cmd.Context(), args[0])
			return nil
		},
	}
}

func modelIDOrNone(m *model.Model) string {
	if m == nil {
		return "-"
	}
	return m.ID.String()
}

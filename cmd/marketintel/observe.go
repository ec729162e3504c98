package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/marketintel/internal/symbol"
)

func newObserveCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "observe", Short: "Run collection passes and read back stored observations"}
	cmd.AddCommand(newObserveRunCmd(), newObserveLatestCmd(), newObserveRangeCmd(), newObserveIndicatorsCmd())
	return cmd
}

func newObserveRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a single collection pass over the configured symbol list",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			result, err := a.collector.Run(cmd.Context(), symbolsFromConfig(a.cfg))
			if err != nil {
				return err
			}
			fmt.Printf("attempted=%d succeeded=%d errors=%d\n", result.Attempted, result.Succeeded, len(result.Errors))
			return nil
		},
	}
}

func newObserveLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest [symbol]",
		Short: "Show the latest stored observation for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			obs, ok, err := a.obsStore.Latest(cmd.Context(), symbol.Normalize(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("no observations stored for that symbol")
				return nil
			}
			fmt.Printf("symbol=%s timestamp=%s price=%.4f volume=%.4f completeness=%.2f provider=%s mode=%s\n",
				obs.Symbol, obs.Timestamp.Format(time.RFC3339), obs.Price, obs.Volume, obs.Completeness,
				obs.SourceMeta.ProviderID, obs.SourceMeta.DataMode)
			return nil
		},
	}
}

func newObserveRangeCmd() *cobra.Command {
	var fromStr, toStr string
	var minCompleteness float64
	c := &cobra.Command{
		Use:   "range [symbol]",
		Short: "List stored observations for a symbol over a time range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			from, err := parseRangeTime(fromStr, time.Now().Add(-24*time.Hour))
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			to, err := parseRangeTime(toStr, time.Now())
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			obs, err := a.obsStore.Range(cmd.Context(), symbol.Normalize(args[0]), from, to)
			if err != nil {
				return err
			}
			for _, o := range obs {
				if o.Completeness < minCompleteness {
					continue
				}
				fmt.Printf("%s price=%.4f completeness=%.2f\n", o.Timestamp.Format(time.RFC3339), o.Price, o.Completeness)
			}
			return nil
		},
	}
	c.Flags().StringVar(&fromStr, "from", "", "range start, RFC3339 (default 24h ago)")
	c.Flags().StringVar(&toStr, "to", "", "range end, RFC3339 (default now)")
	c.Flags().Float64Var(&minCompleteness, "min-completeness", 0, "skip observations below this completeness")
	return c
}

func newObserveIndicatorsCmd() *cobra.Command {
	var id string
	c := &cobra.Command{
		Use:   "indicators [symbol]",
		Short: "Show the latest indicator snapshot for a symbol, optionally filtered to one id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			obs, ok, err := a.obsStore.Latest(cmd.Context(), symbol.Normalize(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("no observations stored for that symbol")
				return nil
			}
			if id != "" {
				v, ok := obs.Indicators[id]
				if !ok {
					fmt.Printf("%s: missing\n", id)
					return nil
				}
				fmt.Printf("%s=%.6f\n", id, v)
				return nil
			}
			for k, v := range obs.Indicators {
				fmt.Printf("%s=%.6f\n", k, v)
			}
			return nil
		},
	}
	c.Flags().StringVar(&id, "id", "", "show only this indicator id")
	return c
}

func parseRangeTime(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, s)
}

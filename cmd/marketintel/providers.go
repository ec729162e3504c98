package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "providers", Short: "Inspect and manage registered market data providers"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered providers by id, with priority, enabled flag and health",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(cfgPath)
				if err != nil {
					return err
				}
				for _, e := range a.registry.All() {
					fmt.Printf("%-10s priority=%-4d enabled=%-5v health=%s\n", e.Provider.ID(), e.Priority, e.Enabled, e.Provider.Health())
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "enable [provider-id]",
			Short: "Enable a provider",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(cfgPath)
				if err != nil {
					return err
				}
				return a.registry.Enable(args[0], true)
			},
		},
		&cobra.Command{
			Use:   "disable [provider-id]",
			Short: "Disable a provider",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(cfgPath)
				if err != nil {
					return err
				}
				return a.registry.Enable(args[0], false)
			},
		},
		&cobra.Command{
			Use:   "reset-health [provider-id]",
			Short: "Reset a provider's circuit breaker state",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(cfgPath)
				if err != nil {
					return err
				}
				return a.breaker.Reset(args[0])
			},
		},
		&cobra.Command{
			Use:   "priority [provider-id] [n]",
			Short: "Set a provider's ranking priority (higher wins resolution ties)",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("parse priority %q: %w", args[1], err)
				}
				a, err := newApp(cfgPath)
				if err != nil {
					return err
				}
				return a.registry.SetPriority(args[0], n)
			},
		},
	)
	return cmd
}

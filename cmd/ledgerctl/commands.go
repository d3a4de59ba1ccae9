package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/rentchain-properties/internal/reconcile"
	"github.com/angelmondragon/rentchain-properties/pkg/config"
)

func newRootCmd(a *app) *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Inspect the property ledger contract",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.ensureLogger(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug|info|warn|error)")

	root.AddCommand(countCmd(a), getCmd(a), reconcileCmd(a))
	return root
}

func countCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "count",
		Short:   "Print the contract's property counter",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigInto(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.ledger.PropertyCount(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, n)
			return nil
		},
	}
}

func getCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "get <ledger-id>",
		Short:   "Print one on-chain property as JSON",
		Args:    cobra.ExactArgs(1),
		PreRunE: loadConfigInto(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("ledger id must be a positive integer, got %q", args[0])
			}
			p, err := a.ledger.GetProperty(cmd.Context(), id)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
}

func reconcileCmd(a *app) *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one ledger reconciliation pass now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.runJobs == nil {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				if err := a.prepareReconcile(cmd.Context(), cfg, batch); err != nil {
					return err
				}
			}
			if err := a.runJobs(cmd.Context(), reconcile.JobName); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "reconciliation pass complete")
			return nil
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 0, "rows per batch (defaults to RENTCHAIN_RECONCILE_BATCH_SIZE)")
	return cmd
}

// loadConfigInto dials the ledger for read-only commands unless a reader was injected.
func loadConfigInto(a *app) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if a.ledger != nil {
			return nil
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return a.dialLedger(cmd.Context(), cfg)
	}
}

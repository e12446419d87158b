package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Re-synchronize the index with dataset storage",
	Long: `Adds index rows for recognized keys found in storage, removes rows whose
key disappeared, and refreshes sample counts. Unreadable datasets are marked
invalid and reported; they do not stop the others.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		filter, err := selectionFilter(cmd, true)
		if err != nil {
			return err
		}

		eng, err := newEngine(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer eng.Close()

		reports, err := eng.Reconcile(cmd.Context(), filter)
		out := cmd.OutOrStdout()
		for _, r := range reports {
			if !r.Changed() {
				fmt.Fprintf(out, "%s: unchanged (%d samples)\n", r.Dataset, r.Samples)
				continue
			}
			fmt.Fprintf(out, "%s: +[%s] -[%s] (%d samples)\n",
				r.Dataset, strings.Join(r.Added, ","), strings.Join(r.Removed, ","), r.Samples)
		}
		if err != nil {
			// Unreadable datasets are per-dataset outcomes, not a command failure.
			logger.Warn("Some datasets could not be reconciled", "error", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	addSelectionFlags(reconcileCmd)
}

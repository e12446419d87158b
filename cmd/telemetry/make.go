package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/telemetry"
	"github.com/aretw0/telemetry/internal/dto"
	"github.com/aretw0/telemetry/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var makeCmd = &cobra.Command{
	Use:   "make <kind>",
	Short: "Generate a kind on the selected datasets",
	Long: `Generates <kind> on every selected dataset. With --recursive the missing
prerequisites are generated first; otherwise only <kind> itself is attempted.
--force regenerates <kind> even when it exists; prerequisites are never forced.

Per-dataset failures are reported in the summary and do not change the exit
code. Interrupting (Ctrl+C) stops the batch; committed artifacts are kept.`,
	Args: cobra.ExactArgs(1),
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
		force, _ := cmd.Flags().GetBool("force")
		recursive, _ := cmd.Flags().GetBool("recursive")
		asJSON, _ := cmd.Flags().GetBool("json")

		// SIGINT revokes the batch.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng, err := newEngine(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := eng.Close(); err != nil {
				logger.Warn("Failed to close engine", "error", err)
			}
		}()

		summary, err := eng.Make(ctx, args[0], filter, telemetry.MakeOptions{Force: force, Recursive: recursive})
		cancelled := errors.Is(err, context.Canceled)
		if err != nil && !cancelled {
			return err
		}

		out := dto.FromSummary(summary)
		if asJSON {
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
		} else {
			tui.RenderSummary(cmd.OutOrStdout(), out, tui.ColorEnabled(os.Stdout))
		}
		if cancelled {
			return fmt.Errorf("batch %s interrupted", summary.Batch)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(makeCmd)
	addSelectionFlags(makeCmd)
	makeCmd.Flags().BoolP("recursive", "r", false, "Generate missing prerequisites first")
	makeCmd.Flags().BoolP("force", "f", false, "Regenerate the kind even if it exists")
	makeCmd.Flags().Bool("json", false, "Print the summary as JSON")
}

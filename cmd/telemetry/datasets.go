package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aretw0/telemetry/internal/dto"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/spf13/cobra"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "Manage datasets",
}

var datasetsRegisterCmd = &cobra.Command{
	Use:   "register <id>",
	Short: "Register a dataset and reconcile it with its storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		locator, _ := cmd.Flags().GetString("locator")
		createdFlag, _ := cmd.Flags().GetString("created")

		ds := domain.Dataset{ID: args[0], Locator: locator}
		switch {
		case createdFlag != "":
			if ds.Created, err = parseCreated(createdFlag); err != nil {
				return err
			}
		default:
			ds.Created, _ = domain.CreatedFromName(args[0])
		}

		eng, err := newEngine(cmd.Context(), cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer eng.Close()

		report, err := eng.RegisterDataset(cmd.Context(), ds)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered %s: %d artifacts, %d samples\n", report.Dataset, len(report.Added), report.Samples)
		return nil
	},
}

func parseCreated(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(dto.DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --created %q, want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

var datasetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		all, _ := cmd.Flags().GetBool("all")
		asJSON, _ := cmd.Flags().GetBool("json")
		filter, err := selectionFilter(cmd, all)
		if err != nil {
			return err
		}

		eng, err := newEngine(cmd.Context(), cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer eng.Close()

		list, err := eng.Datasets(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), list)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tSAMPLES\tSTATUS")
		for _, ds := range list {
			status := "valid"
			if !ds.Valid {
				status = "invalid: " + ds.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", ds.ID, ds.Created.Format(time.RFC3339), ds.Samples, status)
		}
		return w.Flush()
	},
}

var datasetsRemoveCmd = &cobra.Command{
	Use:   "remove [id...]",
	Short: "Forget datasets and their artifact rows (storage is kept)",
	Long: `Remove the named datasets, or every dataset selected by --date/--days,
from the index. Their storage is not deleted. With the memory index the
datasets are rediscovered on the next start, so remove is only lasting with
a persistent index.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		date, _ := cmd.Flags().GetString("date")
		if len(args) == 0 && date == "" {
			return errors.New("name datasets or select them with --date")
		}

		eng, err := newEngine(cmd.Context(), cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer eng.Close()

		var removed []string
		if len(args) > 0 {
			var errs []error
			for _, id := range args {
				if err := eng.RemoveDataset(cmd.Context(), id); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", id, err))
					continue
				}
				removed = append(removed, id)
			}
			err = errors.Join(errs...)
		} else {
			filter, ferr := selectionFilter(cmd, true)
			if ferr != nil {
				return ferr
			}
			removed, err = eng.RemoveDatasets(cmd.Context(), filter)
		}

		for _, id := range removed {
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
	datasetsCmd.AddCommand(datasetsRegisterCmd, datasetsListCmd, datasetsRemoveCmd)

	datasetsRegisterCmd.Flags().String("locator", "", "Storage locator (default: the id)")
	datasetsRegisterCmd.Flags().String("created", "", "Creation time (RFC 3339 or YYYY-MM-DD; default: from the id, else now)")

	addSelectionFlags(datasetsListCmd)
	datasetsListCmd.Flags().Bool("all", false, "Include invalid datasets")
	datasetsListCmd.Flags().Bool("json", false, "Print as JSON")

	addSelectionFlags(datasetsRemoveCmd)
}

package main

import (
	"encoding/json"
	"io"

	"github.com/aretw0/telemetry/internal/dto"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/spf13/cobra"
)

// addSelectionFlags registers --date and --days on cmd.
func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("date", "", "First day of the selection (YYYY-MM-DD); empty selects every dataset")
	cmd.Flags().Int("days", 1, "Number of days selected from --date")
}

func selectionFilter(cmd *cobra.Command, includeInvalid bool) (domain.DatasetFilter, error) {
	date, _ := cmd.Flags().GetString("date")
	days, _ := cmd.Flags().GetInt("days")
	return dto.Selection{Date: date, Days: days, IncludeInvalid: includeInvalid}.Filter()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the registered kinds",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		eng, err := newEngine(cmd.Context(), cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer eng.Close()

		prereqs := make(map[string][]string)
		for _, e := range eng.Graph().Edges() {
			prereqs[e.Source] = append(prereqs[e.Source], e.Prerequisite)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVARIANT\tNAME\tREQUIRES")
		for _, k := range eng.Kinds() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k.Key, k.Variant, k.Name, strings.Join(prereqs[k.Key], ","))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(kindsCmd)
}

package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/telemetry/internal/presentation/graph"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [kind]",
	Short: "Show the build order of a kind, or the whole kind graph",
	Long: `Prints the kinds needed to produce [kind], prerequisites first. With
--mermaid it outputs a Mermaid diagram (graph TD) instead; --dataset marks
what that dataset already has.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		mermaid, _ := cmd.Flags().GetBool("mermaid")
		datasetID, _ := cmd.Flags().GetString("dataset")

		eng, err := newEngine(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer eng.Close()

		kinds := eng.Kinds()
		target := ""
		if len(args) > 0 {
			target = args[0]
			if kinds, err = eng.Closure(target); err != nil {
				return err
			}
		}

		if !mermaid {
			for i, k := range kinds {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. %-30s %s\n", i+1, k.Key, k.Variant)
			}
			return nil
		}

		keep := make(map[string]bool, len(kinds))
		nodes := make([]*domain.Kind, len(kinds))
		for i := range kinds {
			keep[kinds[i].Key] = true
			nodes[i] = &kinds[i]
		}
		var edges []domain.Edge
		for _, e := range eng.Graph().Edges() {
			if keep[e.Source] && keep[e.Prerequisite] {
				edges = append(edges, e)
			}
		}

		var overlay *graph.GraphOverlay
		if datasetID != "" {
			arts, err := eng.Artifacts(cmd.Context(), datasetID)
			if err != nil {
				return err
			}
			overlay = &graph.GraphOverlay{Target: target}
			for key := range arts {
				overlay.Materialized = append(overlay.Materialized, key)
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), strings.TrimRight(graph.GenerateMermaid(nodes, edges, overlay), "\n")+"\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("mermaid", false, "Output a Mermaid diagram")
	graphCmd.Flags().String("dataset", "", "Mark the artifacts of this dataset (with --mermaid)")
}

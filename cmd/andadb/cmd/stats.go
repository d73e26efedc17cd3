package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andalabs/andadb/internal/output"
	"github.com/andalabs/andadb/internal/telemetry"
	"github.com/andalabs/andadb/pkg/nexus"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show graph size, schema, and compaction-eligibility stats",
		Long: `stats opens the graph directly (not through the daemon, since
orphan-ratio/compaction stats aren't part of the KIP wire protocol) and
reports the primer (declared types, version pointers) alongside the
HNSW/TFS orphan counts the background compactor tracks.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runStats(cmd *cobra.Command, jsonOutput bool) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	n, closeGraph, err := openLocalGraph(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeGraph() }()

	primer, err := n.Primer(ctx)
	if err != nil {
		return err
	}
	orphans := nexus.NewHandle(n).Stats()

	var estimates []telemetry.Estimate
	if est := n.Estimator(); est != nil {
		estimates = est.Snapshot()
	}

	if jsonOutput {
		out := map[string]any{"primer": primer, "orphans": orphans, "cardinality_estimates": estimates}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := output.New(cmd.OutOrStdout())
	w.Statusf("📊", "%d concept type(s), %d proposition type(s) declared",
		primer["concept_type_count"], primer["proposition_type_count"])
	w.Statusf("🔖", "concepts@v%v  propositions@v%v", primer["concepts_version"], primer["propositions_version"])
	w.Newline()
	fmt.Fprintf(cmd.OutOrStdout(), "vector/text orphans: %d / %d total (ratio %.2f%%)\n",
		orphans.OrphanCount, orphans.TotalVectors, orphans.OrphanRatio*100)

	if len(estimates) > 0 {
		w.Newline()
		fmt.Fprintln(cmd.OutOrStdout(), "observed pattern cardinalities:")
		for _, e := range estimates {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-24s count=%-6d min=%-6d max=%-6d mean=%.1f\n",
				e.Key, e.Count, e.Min, e.Max, e.Mean())
		}
	}

	return nil
}

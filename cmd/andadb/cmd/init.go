package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/andalabs/andadb/internal/config"
	"github.com/andalabs/andadb/internal/output"
)

func newInitCmd() *cobra.Command {
	var force bool
	var embeddingDim int

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new graph",
		Long: `Create the graph's data directory, write a default config.yaml, and
run the genesis bootstrap (the $ConceptType/$PropositionType/Domain
meta-schema every graph starts with).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), cmd, force, embeddingDim)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reinitialize even if config.yaml already exists")
	cmd.Flags().IntVar(&embeddingDim, "embedding-dim", 0, "Enable vector search on concepts with this embedding dimension")

	return cmd
}

func runInit(ctx context.Context, cmd *cobra.Command, force bool, embeddingDim int) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	out.Statusf("📁", "Data directory: %s", cfg.Paths.DataDir)

	configPath := cfg.Paths.DataDir + "/config.yaml"
	if _, statErr := os.Stat(configPath); statErr == nil && !force {
		out.Status("ℹ️ ", "config.yaml already exists, use --force to overwrite")
	} else {
		if embeddingDim > 0 {
			cfg.HNSW.EmbeddingDim = embeddingDim
		}
		if err := cfg.WriteYAML(configPath); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		out.Statusf("📝", "Wrote %s", configPath)
	}

	n, closeGraph, err := openLocalGraphWithDim(ctx, cfg, cfg.HNSW.EmbeddingDim)
	if err != nil {
		return fmt.Errorf("failed to open graph: %w", err)
	}
	defer func() { _ = closeGraph() }()

	types, err := n.DescribeConceptTypes(ctx)
	if err != nil {
		return err
	}
	out.Successf("Graph ready (%d concept type(s) declared)", len(types))

	if !config.UserConfigExists() {
		out.Newline()
		out.Status("💡", "Run 'andadb daemon start' to keep indexes warm across invocations")
	}

	return nil
}

package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/andalabs/andadb/internal/daemon"
	"github.com/andalabs/andadb/internal/output"
	"github.com/andalabs/andadb/internal/ui"
	"github.com/andalabs/andadb/pkg/nexus"
)

func newCompactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Sweep tombstoned entries out of the HNSW and BM25 indexes",
		Long: `compact runs the same sweep the daemon's background compactor runs
on an idle, orphan-heavy collection (spec.md §4.4): rebuild each HNSW
index from its live vectors and merge each BM25 index's segments,
then checkpoint.

Run this while the daemon is stopped: compacting the on-disk store out
from under a running daemon's in-memory copy isn't coordinated, so the
daemon's cached index would go stale until it reopens the collection.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompact(cmd)
		},
	}
	return cmd
}

func runCompact(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	daemonCfg := daemon.DefaultConfig()
	daemonCfg.SocketPath = cfg.Server.SocketPath
	if daemon.NewClient(daemonCfg).IsRunning() {
		out.Warning("daemon is running; stop it first with 'andadb daemon stop' for a consistent compact")
		return nil
	}

	n, closeGraph, err := openLocalGraph(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeGraph() }()

	handle := nexus.NewHandle(n)
	before := handle.Stats()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithCollectionName("graph")))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	start := time.Now()

	stage := ui.StageScanning
	renderer.UpdateProgress(ui.ProgressEvent{Stage: stage, Message: "scanning for tombstoned entries"})

	compactErr := handle.CompactWithProgress(ctx, func(collection string) {
		stage = ui.StageMerging
		renderer.UpdateProgress(ui.ProgressEvent{Stage: stage, CurrentItem: collection, Message: "merging segments"})
	})
	if compactErr != nil {
		renderer.AddError(ui.ErrorEvent{Err: compactErr})
		_ = renderer.Stop()
		return compactErr
	}

	after := handle.Stats()
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageSwapping, Message: "publishing new version pointer"})
	renderer.Complete(ui.CompletionStats{
		Segments:  2, // concepts, propositions
		Reclaimed: before.OrphanCount - after.OrphanCount,
		Duration:  time.Since(start),
	})
	if err := renderer.Stop(); err != nil {
		return err
	}

	out.Successf("compacted: %d orphan(s) reclaimed (%d -> %d)",
		before.OrphanCount-after.OrphanCount, before.OrphanCount, after.OrphanCount)
	return nil
}

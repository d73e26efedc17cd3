package nexus

import (
	"context"

	"github.com/andalabs/andadb/internal/daemon"
	"github.com/andalabs/andadb/pkg/collection"
)

// Handle adapts a Nexus to internal/daemon.CollectionHandle, the
// per-collection surface the daemon's CollectionOpener returns: KIP
// execution plus the compaction manager's stats/compact/close hooks.
// Unlike Handler (which answers the daemon's top-level status/execute
// RPCs for a single fixed graph), Handle is what gets opened and
// evicted per named collection — here there is exactly one, "graph",
// but the interface supports a future multi-graph daemon.
type Handle struct {
	nexus *Nexus
}

// NewHandle wraps n for the daemon's per-collection lifecycle.
func NewHandle(n *Nexus) *Handle {
	return &Handle{nexus: n}
}

// Execute implements daemon.CollectionHandle.
func (h *Handle) Execute(ctx context.Context, params daemon.ExecuteParams) (*daemon.ExecuteResult, error) {
	handler := &Handler{nexus: h.nexus}
	return handler.HandleExecute(ctx, params)
}

// Stats implements daemon.CollectionHandle, combining the concepts and
// propositions collections' vector/text index stats into one
// orphan-ratio estimate for the compaction manager's eligibility check.
func (h *Handle) Stats() daemon.CollectionStats {
	var orphans, live int
	accumulate := func(s collection.Stats) {
		for _, hs := range s.HNSW {
			orphans += hs.TombstoneNodes
			live += hs.LiveNodes
		}
		for _, ts := range s.TFS {
			orphans += ts.TombstonedDocs
			live += ts.LiveDocs
		}
	}
	accumulate(h.nexus.concepts.Stats())
	accumulate(h.nexus.propositions.Stats())

	total := orphans + live
	var ratio float64
	if total > 0 {
		ratio = float64(orphans) / float64(total)
	}
	return daemon.CollectionStats{
		OrphanRatio:  ratio,
		OrphanCount:  orphans,
		TotalVectors: total,
	}
}

// Compact implements daemon.CollectionHandle.
func (h *Handle) Compact(ctx context.Context) error {
	return h.CompactWithProgress(ctx, nil)
}

// CompactWithProgress runs the same sweep as Compact, calling onStage
// (if non-nil) before each of the two collections' compaction passes so
// a caller can render per-collection progress.
func (h *Handle) CompactWithProgress(ctx context.Context, onStage func(collection string)) error {
	if onStage != nil {
		onStage("concepts")
	}
	if err := h.nexus.concepts.Compact(ctx); err != nil {
		return err
	}
	if onStage != nil {
		onStage("propositions")
	}
	return h.nexus.propositions.Compact(ctx)
}

// Close implements daemon.CollectionHandle.
func (h *Handle) Close() error {
	if err := h.nexus.concepts.Close(); err != nil {
		return err
	}
	return h.nexus.propositions.Close()
}

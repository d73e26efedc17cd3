package nexus

import (
	"context"
	"log/slog"

	"github.com/andalabs/andadb/internal/daemon"
	"github.com/andalabs/andadb/internal/errors"
	"github.com/andalabs/andadb/pkg/kip"
)

// graphName is the fixed collection name KIP statements execute
// against. The wire protocol still carries ExecuteParams.Collection so
// a future multi-graph daemon can route between engines; today there is
// exactly one, and a mismatched name is rejected rather than silently
// ignored.
const graphName = "graph"

// Handler adapts a Nexus to internal/daemon.RequestHandler, translating
// pkg/kip's Issue list into the wire protocol's ValidationIssue shape.
type Handler struct {
	nexus   *Nexus
	dataDir string
}

// NewHandler wraps n for serving over the daemon's JSON-RPC socket.
func NewHandler(n *Nexus, dataDir string) *Handler {
	return &Handler{nexus: n, dataDir: dataDir}
}

// HandleExecute parses, validates, and (unless DryRun) executes one KIP
// statement (spec.md §4.5/§4.6).
func (h *Handler) HandleExecute(ctx context.Context, params daemon.ExecuteParams) (*daemon.ExecuteResult, error) {
	if params.Collection != "" && params.Collection != graphName {
		return nil, errors.NotFoundf("nexus: unknown collection %q", params.Collection)
	}

	src, err := kip.SubstituteParams(params.Statement, params.Params)
	if err != nil {
		return errorResult(params.DryRun, err), nil
	}

	stmt, err := kip.Parse(src)
	if err != nil {
		return errorResult(params.DryRun, err), nil
	}

	result, issues, err := kip.Execute(ctx, h.nexus, stmt, params.DryRun)
	if err != nil {
		return errorResult(params.DryRun, err), nil
	}

	wireIssues := make([]daemon.ValidationIssue, len(issues))
	for i, iss := range issues {
		wireIssues[i] = daemon.ValidationIssue{Kind: iss.Kind, Path: iss.Path, Message: iss.Message}
	}

	if params.DryRun {
		return &daemon.ExecuteResult{OK: len(issues) == 0, DryRun: true, Errors: wireIssues}, nil
	}
	if len(issues) > 0 {
		return &daemon.ExecuteResult{OK: false, Errors: wireIssues}, nil
	}

	out := &daemon.ExecuteResult{OK: true, Count: result.Count}
	if result.Rows != nil {
		out.Rows = result.Rows
	}
	return out, nil
}

func errorResult(dryRun bool, err error) *daemon.ExecuteResult {
	kind := string(errors.GetKind(err))
	if kind == "" {
		kind = string(errors.Internal)
	}
	slog.Warn("kip.execute failed", slog.String("kind", kind), slog.String("error", err.Error()))
	return &daemon.ExecuteResult{
		OK:     false,
		DryRun: dryRun,
		Errors: []daemon.ValidationIssue{{Kind: kind, Message: err.Error()}},
	}
}

// GetStatus reports the handler's static status fields; the daemon
// server fills in PID/Uptime/Running itself.
func (h *Handler) GetStatus() daemon.StatusResult {
	return daemon.StatusResult{
		DataDir:           h.dataDir,
		CollectionsLoaded: 2,
	}
}

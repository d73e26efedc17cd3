package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andalabs/andadb/internal/config"
	"github.com/andalabs/andadb/internal/daemon"
	"github.com/andalabs/andadb/internal/errors"
	"github.com/andalabs/andadb/internal/session"
	"github.com/andalabs/andadb/internal/telemetry"
	"github.com/andalabs/andadb/pkg/nexus"
	"github.com/andalabs/andadb/pkg/osa"
)

// parseParams turns repeated --param name=value flags into the typed
// map kip.SubstituteParams expects, guessing bool/int/float before
// falling back to string so "$limit" can bind to a number without a
// --param-type flag per invocation.
func parseParams(raw []string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errors.Validationf("invalid --param %q, want name=value", kv)
		}
		out[name] = guessParamValue(value)
	}
	return out, nil
}

func guessParamValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// loadConfig resolves configuration for the --data-dir flag, falling
// back to config.Load's resolved default directory.
func loadConfig() (*config.Config, error) {
	dir := dataDir
	if dir == "" {
		dir = config.NewConfig().Paths.DataDir
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Paths.DataDir = dataDir
	}
	return cfg, nil
}

// openLocalGraph opens the graph directly against the configured data
// directory, for use when no daemon is running. Callers must call the
// returned close function.
func openLocalGraph(ctx context.Context, cfg *config.Config) (*nexus.Nexus, func() error, error) {
	return openLocalGraphWithDim(ctx, cfg, cfg.HNSW.EmbeddingDim)
}

// openLocalGraphWithDim is openLocalGraph with an explicit embedding
// dimension override, used by init to enable vector search on a fresh
// graph before any config.yaml has recorded one.
func openLocalGraphWithDim(ctx context.Context, cfg *config.Config, embeddingDim int) (*nexus.Nexus, func() error, error) {
	store, err := osa.NewLocalStore(cfg.Paths.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open data dir %s: %w", cfg.Paths.DataDir, err)
	}

	sessions, err := session.NewManager(session.ManagerConfig{MaxLeases: cfg.Sessions.MaxSessions})
	if err != nil {
		return nil, nil, err
	}

	estimator := telemetry.NewEstimator(telemetry.NewOSAEstimatorStore(store))

	n, err := nexus.Open(ctx, nexus.Config{Store: store, Sessions: sessions, EmbeddingDim: embeddingDim, Estimator: estimator})
	if err != nil {
		return nil, nil, err
	}

	handle := nexus.NewHandle(n)
	closeFn := func() error {
		estimatorErr := estimator.Close()
		if err := handle.Close(); err != nil {
			return err
		}
		return estimatorErr
	}
	return n, closeFn, nil
}

// execKIP runs one KIP statement, preferring a running daemon (which
// keeps indexes warm across invocations) and falling back to opening
// the graph directly, mirroring the teacher's daemon-then-local search
// fallback.
func execKIP(ctx context.Context, statement string, params map[string]any, dryRun bool) (*daemon.ExecuteResult, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	daemonCfg := daemon.DefaultConfig()
	daemonCfg.SocketPath = cfg.Server.SocketPath
	client := daemon.NewClient(daemonCfg)
	if client.IsRunning() {
		result, err := client.Execute(ctx, daemon.ExecuteParams{
			Collection: "graph",
			Statement:  statement,
			Params:     params,
			DryRun:     dryRun,
		})
		if err == nil {
			return result, nil
		}
		// Fall through to local execution on daemon error.
	}

	n, closeGraph, err := openLocalGraph(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeGraph() }()

	handler := nexus.NewHandler(n, cfg.Paths.DataDir)
	return handler.HandleExecute(ctx, daemon.ExecuteParams{
		Collection: "graph",
		Statement:  statement,
		Params:     params,
		DryRun:     dryRun,
	})
}

// printExecuteResult renders an ExecuteResult as JSON (rows/errors) or
// a short human summary, depending on the jsonOutput flag.
func printExecuteResult(cmd *cobra.Command, result *daemon.ExecuteResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if !result.OK {
		for _, iss := range result.Errors {
			fmt.Fprintf(cmd.OutOrStdout(), "error [%s]", iss.Kind)
			if iss.Path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " at %s", iss.Path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), ": %s\n", iss.Message)
		}
		return fmt.Errorf("statement failed")
	}

	if result.DryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "ok (dry run)")
		return nil
	}

	for _, row := range result.Rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		for i, k := range keys {
			if i > 0 {
				fmt.Fprint(cmd.OutOrStdout(), "  ")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%v", k, row[k])
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "(%d row(s))\n", result.Count)
	return nil
}

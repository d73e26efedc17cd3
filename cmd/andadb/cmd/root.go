// Package cmd provides the CLI commands for andadb.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/andalabs/andadb/internal/logging"
	"github.com/andalabs/andadb/internal/profiling"
	"github.com/andalabs/andadb/pkg/version"
)

// Profiling flags, shared across the command tree like the teacher's.
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()
)

// Debug logging flag.
var (
	debugMode      bool
	loggingCleanup func()
)

// dataDir is the root persistent flag naming where collections, the
// daemon socket/PID, and sessions live. Empty means "use config.Load's
// resolved default."
var dataDir string

// NewRootCmd creates the root command for the andadb CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "andadb",
		Short: "Typed knowledge-graph database engine for AI agents",
		Long: `andadb stores concepts and propositions in a typed knowledge graph,
indexed by a B-tree attribute index, a BM25 text index, and an HNSW
vector index, and queried or mutated through KIP: KQL for reads, KML
for writes, META for introspection.

Run 'andadb init' to set up a new graph, then 'andadb query' or
'andadb upsert' to interact with it. 'andadb daemon start' keeps the
graph's indexes warm in memory across invocations.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("andadb version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Graph data directory (default: XDG data dir)")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newUpsertCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newDescribeCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newCompactCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error

	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	}

	if profileCPU != "" {
		cpuCleanup, err = profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
	}

	if profileTrace != "" {
		traceCleanup, err = profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			return fmt.Errorf("failed to start trace: %w", err)
		}
	}

	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}

	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
	}

	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}

	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

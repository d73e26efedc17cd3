package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/andalabs/andadb/internal/config"
	"github.com/andalabs/andadb/internal/daemon"
	"github.com/andalabs/andadb/internal/errors"
	"github.com/andalabs/andadb/internal/logging"
	"github.com/andalabs/andadb/internal/output"
	"github.com/andalabs/andadb/internal/session"
	"github.com/andalabs/andadb/internal/telemetry"
	"github.com/andalabs/andadb/pkg/nexus"
	"github.com/andalabs/andadb/pkg/osa"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background KIP daemon",
		Long: `The daemon keeps the graph's HNSW/BM25/B-tree indexes loaded in
memory and serves KIP statements over a Unix socket, so the CLI and
other clients avoid reopening and rebuilding a collection's cache on
every invocation.

Commands:
  start   Start the daemon (runs in background by default)
  stop    Stop the running daemon
  status  Show daemon status`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the background daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonStart(cmd.Context(), cmd, foreground)
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (don't daemonize)")
	return cmd
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonStop(cmd)
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// collectionOpener builds the daemon.CollectionOpener that opens the
// fixed "graph" collection against cfg's embedding dimension, wrapping
// it in a nexus.Handle.
func collectionOpener(cfg *config.Config) daemon.CollectionOpener {
	return func(dataDir, name string) (daemon.CollectionHandle, error) {
		if name != "graph" {
			return nil, errors.NotFoundf("daemon: unknown collection %q", name)
		}

		store, err := osa.NewLocalStore(dataDir)
		if err != nil {
			return nil, err
		}
		sessions, err := session.NewManager(session.ManagerConfig{MaxLeases: cfg.Sessions.MaxSessions})
		if err != nil {
			return nil, err
		}
		n, err := nexus.Open(context.Background(), nexus.Config{
			Store: store, Sessions: sessions, EmbeddingDim: cfg.HNSW.EmbeddingDim,
			Estimator: telemetry.NewEstimator(telemetry.NewOSAEstimatorStore(store)),
		})
		if err != nil {
			return nil, err
		}
		return nexus.NewHandle(n), nil
	}
}

func runDaemonStart(ctx context.Context, cmd *cobra.Command, foreground bool) error {
	out := output.New(cmd.OutOrStdout())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	daemonCfg := daemon.DefaultConfig()
	daemonCfg.SocketPath = cfg.Server.SocketPath
	daemonCfg.PIDPath = cfg.Paths.PIDFile

	client := daemon.NewClient(daemonCfg)
	if client.IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	if foreground {
		logCfg := logging.DefaultConfig()
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
		if logger, cleanup, err := logging.Setup(logCfg); err == nil {
			slog.SetDefault(logger)
			defer cleanup()
		}

		out.Status("", "Starting daemon in foreground...")
		out.Status("", fmt.Sprintf("Socket: %s", daemonCfg.SocketPath))
		out.Status("", fmt.Sprintf("Logs: %s", logging.DefaultLogPath()))
		out.Status("", "Press Ctrl+C to stop")
		out.Newline()

		d, err := daemon.NewDaemon(daemonCfg,
			daemon.WithDataDir(cfg.Paths.DataDir),
			daemon.WithCollectionOpener(collectionOpener(cfg)))
		if err != nil {
			return fmt.Errorf("failed to create daemon: %w", err)
		}

		return d.Start(ctx, cfg.Compaction)
	}

	out.Status("", "Starting daemon in background...")

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	bgCmd := exec.Command(execPath, "daemon", "start", "--foreground")
	if dataDir != "" {
		bgCmd.Args = append(bgCmd.Args, "--data-dir", dataDir)
	}
	bgCmd.Stdout = nil
	bgCmd.Stderr = nil
	bgCmd.Stdin = nil
	bgCmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := bgCmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- bgCmd.Wait() }()

	for i := 0; i < 20; i++ {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon process exited unexpectedly: %w", err)
			}
			return fmt.Errorf("daemon process exited unexpectedly with code 0")
		default:
		}

		time.Sleep(100 * time.Millisecond)
		if client.IsRunning() {
			out.Success(fmt.Sprintf("Daemon started (pid: %d)", bgCmd.Process.Pid))
			return nil
		}
	}

	return fmt.Errorf("daemon failed to start within timeout")
}

func runDaemonStop(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pidFile := daemon.NewPIDFile(cfg.Paths.PIDFile)

	if !pidFile.IsRunning() {
		out.Status("", "Daemon is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			out.Success(fmt.Sprintf("Daemon stopped (was pid: %d)", pid))
			return nil
		}
	}

	out.Status("", "Daemon not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}

	out.Success("Daemon killed")
	return nil
}

func runDaemonStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	daemonCfg := daemon.DefaultConfig()
	daemonCfg.SocketPath = cfg.Server.SocketPath
	client := daemon.NewClient(daemonCfg)

	if !client.IsRunning() {
		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(daemon.StatusResult{Running: false})
		}
		out.Status("", "Daemon is not running")
		out.Status("", "Run 'andadb daemon start' to start it")
		return nil
	}

	status, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	out.Status("", "Daemon is running")
	out.Status("", fmt.Sprintf("  PID:                %d", status.PID))
	out.Status("", fmt.Sprintf("  Uptime:             %s", status.Uptime))
	out.Status("", fmt.Sprintf("  Data dir:           %s", status.DataDir))
	out.Status("", fmt.Sprintf("  Collections loaded: %d", status.CollectionsLoaded))
	out.Status("", fmt.Sprintf("  Socket:             %s", daemonCfg.SocketPath))

	return nil
}

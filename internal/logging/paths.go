package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.local/share/andadb/logs/).
func DefaultLogDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "andadb", "logs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "andadb", "logs")
	}
	return filepath.Join(home, ".local", "share", "andadb", "logs")
}

// DefaultLogPath returns the default daemon log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "daemon.log")
}

// CompactorLogPath returns the background compactor's log path.
func CompactorLogPath() string {
	return filepath.Join(DefaultLogDir(), "compactor.log")
}

// LogSource represents which log stream to view.
type LogSource string

const (
	// LogSourceDaemon is the KIP daemon's own logs (default).
	LogSourceDaemon LogSource = "daemon"
	// LogSourceCompactor is the background compactor's logs.
	LogSourceCompactor LogSource = "compactor"
	// LogSourceAll combines all log sources.
	LogSourceAll LogSource = "all"
)

// FindLogFile finds the log file for viewing: an explicit path if
// given, else the default daemon log.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	globalPath := DefaultLogPath()
	if _, err := os.Stat(globalPath); err == nil {
		return globalPath, nil
	}

	return "", fmt.Errorf("no log file found. The daemon may not have run yet.\nExpected at: %s", globalPath)
}

// FindLogFileBySource finds log files for the given source, returning
// the paths that exist.
func FindLogFileBySource(source LogSource, explicit string) ([]string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return []string{explicit}, nil
		}
		return nil, fmt.Errorf("log file not found: %s", explicit)
	}

	var paths []string
	var checked []string

	switch source {
	case LogSourceDaemon:
		p := DefaultLogPath()
		checked = append(checked, p)
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}

	case LogSourceCompactor:
		p := CompactorLogPath()
		checked = append(checked, p)
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}

	case LogSourceAll:
		daemonPath := DefaultLogPath()
		compactorPath := CompactorLogPath()
		checked = append(checked, daemonPath, compactorPath)
		if _, err := os.Stat(daemonPath); err == nil {
			paths = append(paths, daemonPath)
		}
		if _, err := os.Stat(compactorPath); err == nil {
			paths = append(paths, compactorPath)
		}

	default:
		return nil, fmt.Errorf("unknown log source: %s (use: daemon, compactor, all)", source)
	}

	if len(paths) == 0 {
		hint := getLogHint(source)
		return nil, fmt.Errorf("no log files found for source '%s'.\nChecked: %v\n\n%s", source, checked, hint)
	}

	return paths, nil
}

// ParseLogSource parses a string into a LogSource.
func ParseLogSource(s string) LogSource {
	switch s {
	case "compactor":
		return LogSourceCompactor
	case "all":
		return LogSourceAll
	default:
		return LogSourceDaemon
	}
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	return os.MkdirAll(DefaultLogDir(), 0o755)
}

func getLogHint(source LogSource) string {
	switch source {
	case LogSourceDaemon:
		return "To generate daemon logs:\n  andadb serve --debug"
	case LogSourceCompactor:
		return "Compactor logs appear once background compaction has run at least once."
	case LogSourceAll:
		return "To generate logs:\n  andadb serve --debug"
	default:
		return ""
	}
}

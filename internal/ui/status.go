package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo contains collection health information.
type StatusInfo struct {
	// Collection stats
	CollectionName    string    `json:"collection_name"`
	TotalConcepts     int       `json:"total_concepts"`
	TotalPropositions int       `json:"total_propositions"`
	LastCompacted     time.Time `json:"last_compacted"`

	// Storage sizes (in bytes)
	HNSWSize  int64 `json:"hnsw_size"`
	TFSSize   int64 `json:"tfs_size"`
	BTreeSize int64 `json:"btree_size"`
	TotalSize int64 `json:"total_size"`

	// Component status
	HNSWStatus  string `json:"hnsw_status"`  // "ready", "degraded", "error"
	TFSStatus   string `json:"tfs_status"`   // "ready", "degraded", "error"
	BTreeStatus string `json:"btree_status"` // "ready", "degraded", "error"
}

// StatusRenderer displays collection status.
type StatusRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Collection Status: "+info.CollectionName))

	_, _ = fmt.Fprintf(r.out, "  Concepts:      %d\n", info.TotalConcepts)
	_, _ = fmt.Fprintf(r.out, "  Propositions:  %d\n", info.TotalPropositions)
	if !info.LastCompacted.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last compacted: %s\n", formatTime(info.LastCompacted))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Storage:")
	_, _ = fmt.Fprintf(r.out, "    HNSW:  %s\n", FormatBytes(info.HNSWSize))
	_, _ = fmt.Fprintf(r.out, "    TFS:   %s\n", FormatBytes(info.TFSSize))
	_, _ = fmt.Fprintf(r.out, "    BTree: %s\n", FormatBytes(info.BTreeSize))
	_, _ = fmt.Fprintf(r.out, "    Total: %s\n", FormatBytes(info.TotalSize))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Indexes:")
	_, _ = fmt.Fprintf(r.out, "    HNSW:  %s\n", r.renderStatus(info.HNSWStatus))
	_, _ = fmt.Fprintf(r.out, "    TFS:   %s\n", r.renderStatus(info.TFSStatus))
	_, _ = fmt.Fprintf(r.out, "    BTree: %s\n", r.renderStatus(info.BTreeStatus))

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderStatus formats a status string with color.
func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready", "running":
		return r.styles.Success.Render(status)
	case "degraded", "stopped":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

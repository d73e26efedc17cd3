package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	e, ok := err.(*Error)
	if !ok {
		e = Wrap(Internal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("error: %s\n", e.Message))
	if e.Path != "" {
		sb.WriteString(fmt.Sprintf("  at: %s\n", e.Path))
	}
	sb.WriteString(fmt.Sprintf("  kind: %s\n", e.Kind))
	return sb.String()
}

// jsonError is the wire shape of an Error, matching the KIP dry-run
// {kind, path} error list (scenario S5) when marshalled individually.
type jsonError struct {
	Kind    Kind           `json:"kind"`
	Path    string         `json:"path,omitempty"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   string         `json:"cause,omitempty"`
}

// FormatJSON returns the JSON representation of an error.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	e, ok := err.(*Error)
	if !ok {
		e = Wrap(Internal, err)
	}

	je := jsonError{
		Kind:    e.Kind,
		Path:    e.Path,
		Message: e.Message,
		Details: e.Details,
	}
	if e.Cause != nil {
		je.Cause = e.Cause.Error()
	}
	return json.Marshal(je)
}

// FormatForLog returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	e, ok := err.(*Error)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"kind":     string(e.Kind),
		"message":  e.Message,
		"severity": string(e.Severity),
	}
	if e.Path != "" {
		result["path"] = e.Path
	}
	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}
	for k, v := range e.Details {
		result["detail_"+k] = v
	}
	return result
}

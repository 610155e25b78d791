// Package cli provides output formatting and an HTTP client for the kotae command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

const rule = "─────────────────────────────────────────────────────────"

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an AI reply in the given format.
func WriteAnswer(w io.Writer, msg models.Message, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, msg)
	}
	fmt.Fprintf(w, "\n%s\n\n", msg.Content)
	fmt.Fprintf(w, "confidence: %.2f\n", msg.Confidence)
	if len(msg.Sources) > 0 {
		fmt.Fprintf(w, "sources:    %s\n", strings.Join(msg.Sources, ", "))
	}
	return nil
}

// WriteSessions writes session summaries in the given format.
func WriteSessions(w io.Writer, sessions []models.SessionSummary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  %-20s  %s  %s\n",
			s.SessionID, s.Role, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Title)
	}
	return nil
}

// WriteHistory writes a session's messages in the given format.
func WriteHistory(w io.Writer, h *models.SessionHistory, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, h)
	}
	fmt.Fprintf(w, "session: %s\nrole:    %s\n", h.SessionID, h.Role)
	if len(h.Filenames) > 0 {
		fmt.Fprintf(w, "files:   %s\n", strings.Join(h.Filenames, ", "))
	}
	for _, m := range h.Messages {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "[%s] %s\n", m.Sender, utils.Truncate(m.Content, 500))
		if len(m.Sources) > 0 {
			fmt.Fprintf(w, "  sources: %s\n", strings.Join(m.Sources, ", "))
		}
	}
	return nil
}

// WriteUpload writes the result of an upload in the given format.
func WriteUpload(w io.Writer, resp *models.UploadResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintln(w, resp.Message)
	fmt.Fprintf(w, "session: %s\n", resp.SessionID)
	fmt.Fprintf(w, "files:   %s\n", strings.Join(resp.Filenames, ", "))
	return nil
}

// WriteStatus writes server status in the given format.
func WriteStatus(w io.Writer, s *models.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "version:            %s\n", s.Version)
	fmt.Fprintf(w, "sessions:           %d   # chat sessions\n", s.Sessions)
	fmt.Fprintf(w, "open_stores:        %d   # session stores loaded in memory\n", s.OpenStores)
	fmt.Fprintf(w, "disk_usage_bytes:   %d   # database + session stores on disk\n", s.DiskUsageBytes)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	fmt.Fprintf(w, "embedding_model:    %s\n", s.EmbeddingModel)
	fmt.Fprintf(w, "embedding_dims:     %d\n", s.Dimensions)
	fmt.Fprintf(w, "vector_index_type:  %s\n", s.IndexType)
	fmt.Fprintf(w, "roles:              %s\n", strings.Join(s.Roles, ", "))
	fmt.Fprintf(w, "extensions:         %s\n", strings.Join(s.Extensions, " "))
	return nil
}

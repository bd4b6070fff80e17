// Package cli provides output helpers for the Med-Bot command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/medbot/internal/index"
	"github.com/hyperjump/medbot/internal/ingest"
	"github.com/hyperjump/medbot/internal/models"
	"github.com/hyperjump/medbot/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat returns the format named by s. Anything other than "json" is text.
func ParseFormat(s string) OutputFormat {
	if strings.EqualFold(strings.TrimSpace(s), string(OutputJSON)) {
		return OutputJSON
	}
	return OutputText
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteChatResponse writes a chat reply and its doctor cards.
func WriteChatResponse(w io.Writer, resp *models.ChatResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n", resp.Response)
	if len(resp.Doctors) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	for i, d := range resp.Doctors {
		fmt.Fprintf(w, "%d. %s | %s | %s | Fee: %v\n", i+1, d.Name, d.Specialty, d.Location, d.Fee)
	}
	return nil
}

// WriteProviders writes full provider records.
func WriteProviders(w io.Writer, providers []*models.Provider, format OutputFormat) error {
	if format == OutputJSON {
		if providers == nil {
			providers = []*models.Provider{}
		}
		return writeJSON(w, providers)
	}
	fmt.Fprintf(w, "%d providers\n", len(providers))
	for _, p := range providers {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%d] %s", p.ID, p.Name)
		if p.Designation != "" {
			fmt.Fprintf(w, " (%s)", p.Designation)
		}
		fmt.Fprintf(w, "\n%s, %s | Fee: %v\n", p.Specialty, p.Location, p.Summary().Fee)
		if p.Keywords != "" {
			fmt.Fprintf(w, "Keywords: %s\n", TruncateWords(p.Keywords, 20))
		}
	}
	return nil
}

// IndexStatus is the report printed by the index status command.
type IndexStatus struct {
	Providers int64      `json:"providers"`
	Index     index.Info `json:"index"`
	Encoder   string     `json:"encoder"`
	DiskBytes int64      `json:"disk_usage_bytes"`
}

// WriteIndexStatus writes provider and index status.
func WriteIndexStatus(w io.Writer, status *IndexStatus, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "Providers:  %d\n", status.Providers)
	fmt.Fprintf(w, "Index:      %s (%d entries)\n", status.Index.State, status.Index.Size)
	if status.Index.BuildID != "" {
		fmt.Fprintf(w, "Build:      %s at %s\n", status.Index.BuildID, status.Index.BuiltAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "Backend:    %s\n", status.Index.Backend)
		fmt.Fprintf(w, "Model:      %s\n", status.Index.Model)
	}
	fmt.Fprintf(w, "Encoder:    %s\n", status.Encoder)
	fmt.Fprintf(w, "Disk usage: %d bytes\n", status.DiskBytes)
	return nil
}

// WriteImportReport summarises an import run. Skipped rows are listed with their reason.
func WriteImportReport(w io.Writer, report *ingest.Report, format OutputFormat) error {
	if format == OutputJSON {
		skipped := make([]string, len(report.Skipped))
		for i, e := range report.Skipped {
			skipped[i] = e.Error()
		}
		return writeJSON(w, map[string]interface{}{
			"files":    report.Files,
			"imported": report.Imported,
			"skipped":  skipped,
		})
	}
	fmt.Fprintf(w, "Imported %d providers from %d files\n", report.Imported, len(report.Files))
	for _, e := range report.Skipped {
		fmt.Fprintf(w, "  skipped %s\n", utils.Truncate(e.Error(), 160))
	}
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

// Package output renders diagnostics for the CLI in table or JSON form.
package output

import (
	"fmt"
	"strings"

	"github.com/fieldsync/fieldsync/internal/core"
	"github.com/fieldsync/fieldsync/internal/core/ratelimit"
)

// Format represents an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// Status is the combined diagnostic view rendered by the status command
// and the /status endpoint.
type Status struct {
	Queue        core.QueueSummary  `json:"queue"`
	Limiter      ratelimit.Snapshot `json:"limiter"`
	CacheEntries int                `json:"cache_entries"`
}

// Formatter renders diagnostic views.
type Formatter interface {
	FormatStatus(status Status) (string, error)
	FormatActions(actions []core.OfflineAction) (string, error)
	FormatErrorRecords(records []core.OfflineErrorRecord) (string, error)
	FormatSyncReport(report core.SyncReport) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	if format == FormatJSON {
		return &JSONFormatter{Indent: true}
	}
	return &TableFormatter{}
}

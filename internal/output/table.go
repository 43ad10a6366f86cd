package output

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/fieldsync/fieldsync/internal/core"
)

// TableFormatter renders views as ASCII tables.
type TableFormatter struct{}

// FormatStatus renders the combined diagnostic view as a table.
func (f *TableFormatter) FormatStatus(status Status) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Field", "Value"})

	connectivity := "offline"
	if status.Queue.Online {
		connectivity = "online"
	}
	t.AppendRow(table.Row{"Connectivity", connectivity})
	t.AppendRow(table.Row{"Pending actions", status.Queue.PendingActions})
	t.AppendRow(table.Row{"Error records", status.Queue.ErrorRecords})
	if status.Queue.OldestPending != nil {
		t.AppendRow(table.Row{"Oldest pending", formatTime(*status.Queue.OldestPending)})
	}
	t.AppendRow(table.Row{"Requests in flight", status.Limiter.InFlight})
	t.AppendRow(table.Row{"Window starts", status.Limiter.WindowStarts})
	t.AppendRow(table.Row{"Cache entries", status.CacheEntries})

	return t.Render(), nil
}

// FormatActions renders pending actions oldest first.
func (f *TableFormatter) FormatActions(actions []core.OfflineAction) (string, error) {
	if len(actions) == 0 {
		return "No pending actions.", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Type", "Queued", "Retries"})
	for _, action := range actions {
		t.AppendRow(table.Row{
			shortID(action.ID),
			action.Type,
			formatTime(action.EnqueuedAt),
			fmt.Sprintf("%d/%d", action.RetryCount, action.MaxRetries),
		})
	}
	return t.Render(), nil
}

// FormatErrorRecords renders the permanent-failure log.
func (f *TableFormatter) FormatErrorRecords(records []core.OfflineErrorRecord) (string, error) {
	if len(records) == 0 {
		return "No permanent failures.", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Action", "Type", "Retries", "Error", "Recorded"})
	for _, record := range records {
		t.AppendRow(table.Row{
			shortID(record.ActionID),
			record.ActionType,
			record.RetryCount,
			record.Message,
			formatTime(record.RecordedAt),
		})
	}
	return t.Render(), nil
}

// FormatSyncReport renders a replay pass summary.
func (f *TableFormatter) FormatSyncReport(report core.SyncReport) (string, error) {
	if report.Attempted == 0 {
		return "Nothing to sync.", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Attempted", "Succeeded", "Retrying", "Failed", "Duration"})
	t.AppendRow(table.Row{
		report.Attempted,
		report.Succeeded,
		report.Retrying,
		report.Abandoned,
		report.Duration.Round(time.Millisecond).String(),
	})
	return t.Render(), nil
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

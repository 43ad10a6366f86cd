package output

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldsync/fieldsync/internal/core"
	"github.com/fieldsync/fieldsync/internal/core/ratelimit"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestFormatStatus(t *testing.T) {
	oldest := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	status := Status{
		Queue: core.QueueSummary{
			PendingActions: 3,
			ErrorRecords:   1,
			OldestPending:  &oldest,
			Online:         true,
		},
		Limiter:      ratelimit.Snapshot{InFlight: 2, WindowStarts: 7},
		CacheEntries: 12,
	}

	tableRendered, err := NewFormatter(FormatTable).FormatStatus(status)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "online")
	require.Contains(t, tableRendered, "2025-06-01T12:00:00Z")

	jsonRendered, err := NewFormatter(FormatJSON).FormatStatus(status)
	require.NoError(t, err)
	require.Contains(t, jsonRendered, "\"pending_actions\": 3")
	require.Contains(t, jsonRendered, "\"cache_entries\": 12")
}

func TestFormatActions(t *testing.T) {
	actions := []core.OfflineAction{
		{
			ID:         "0c3f7a1e-aaaa-bbbb-cccc-000000000001",
			Type:       "create_reading",
			EnqueuedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			RetryCount: 1,
			MaxRetries: 3,
		},
	}

	rendered, err := NewFormatter(FormatTable).FormatActions(actions)
	require.NoError(t, err)
	require.Contains(t, rendered, "0c3f7a1e")
	require.Contains(t, rendered, "create_reading")
	require.Contains(t, rendered, "1/3")

	empty, err := NewFormatter(FormatTable).FormatActions(nil)
	require.NoError(t, err)
	require.Equal(t, "No pending actions.", empty)

	jsonRendered, err := NewFormatter(FormatJSON).FormatActions(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", jsonRendered)
}

func TestFormatErrorRecords(t *testing.T) {
	records := []core.OfflineErrorRecord{
		{
			ID:         "r1",
			ActionID:   "a1",
			ActionType: "update_reading",
			RetryCount: 3,
			Message:    "upstream rejected request: 422 Unprocessable Entity",
			RecordedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	rendered, err := NewFormatter(FormatTable).FormatErrorRecords(records)
	require.NoError(t, err)
	require.Contains(t, rendered, "update_reading")
	require.Contains(t, rendered, "422")

	empty, err := NewFormatter(FormatTable).FormatErrorRecords(nil)
	require.NoError(t, err)
	require.Equal(t, "No permanent failures.", empty)
}

func TestFormatSyncReport(t *testing.T) {
	report := core.SyncReport{
		Attempted: 4,
		Succeeded: 2,
		Retrying:  1,
		Abandoned: 1,
		Duration:  1230 * time.Millisecond,
	}

	rendered, err := NewFormatter(FormatTable).FormatSyncReport(report)
	require.NoError(t, err)
	require.Contains(t, rendered, "1.23s")

	idle, err := NewFormatter(FormatTable).FormatSyncReport(core.SyncReport{})
	require.NoError(t, err)
	require.Equal(t, "Nothing to sync.", idle)
}

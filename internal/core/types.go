package core

import "time"

// OfflineAction is a mutating operation that failed while offline and is
// queued for replay. Payload is opaque to the core; call sites own the
// encoding.
type OfflineAction struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Payload    []byte    `json:"payload,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	RetryCount int       `json:"retry_count"`
	MaxRetries int       `json:"max_retries"`
}

// OfflineErrorRecord is appended when an action exhausts its retry budget.
// Immutable once created.
type OfflineErrorRecord struct {
	ID         string    `json:"id"`
	ActionID   string    `json:"action_id"`
	ActionType string    `json:"action_type"`
	RetryCount int       `json:"retry_count"`
	Message    string    `json:"message"`
	RecordedAt time.Time `json:"recorded_at"`
}

// QueueSummary is a read-only diagnostic view of the offline queue.
type QueueSummary struct {
	PendingActions int        `json:"pending_actions"`
	ErrorRecords   int        `json:"error_records"`
	OldestPending  *time.Time `json:"oldest_pending,omitempty"`
	NewestPending  *time.Time `json:"newest_pending,omitempty"`
	Online         bool       `json:"online"`
}

// CacheEntryMeta is the bookkeeping row for a durable cache entry.
type CacheEntryMeta struct {
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SyncReport summarizes a single replay pass.
type SyncReport struct {
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Retrying  int           `json:"retrying"`
	Abandoned int           `json:"abandoned"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

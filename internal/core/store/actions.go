package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldsync/fieldsync/internal/core"
)

// AppendAction appends an offline action to the durable FIFO log. When the
// log exceeds capacity the oldest rows are dropped. capacity <= 0 means
// unbounded.
func (s *Store) AppendAction(ctx context.Context, action core.OfflineAction, capacity int) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(action.ID) == "" {
		return errors.New("action id is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO offline_actions (id, action_type, payload, enqueued_at, retry_count, max_retries)
		VALUES (?, ?, ?, ?, ?, ?)
	`, action.ID, action.Type, action.Payload, action.EnqueuedAt.UTC().Unix(), action.RetryCount, action.MaxRetries)
	if err != nil {
		return fmt.Errorf("append offline action: %w", err)
	}

	if capacity > 0 {
		if err := s.trimLog(ctx, "offline_actions", capacity); err != nil {
			return err
		}
	}

	return nil
}

// ListActions returns all queued actions in enqueue (FIFO) order.
func (s *Store) ListActions(ctx context.Context) ([]core.OfflineAction, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, action_type, payload, enqueued_at, retry_count, max_retries
		FROM offline_actions
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list offline actions: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var actions []core.OfflineAction
	for rows.Next() {
		var (
			action     core.OfflineAction
			enqueuedAt int64
		)
		if err := rows.Scan(&action.ID, &action.Type, &action.Payload, &enqueuedAt, &action.RetryCount, &action.MaxRetries); err != nil {
			return nil, fmt.Errorf("scan offline action: %w", err)
		}
		action.EnqueuedAt = time.Unix(enqueuedAt, 0).UTC()
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list offline actions: %w", err)
	}

	return actions, nil
}

// UpdateActionRetry persists an incremented retry count for a queued action.
func (s *Store) UpdateActionRetry(ctx context.Context, id string, retryCount int) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.DB.ExecContext(ctx, `UPDATE offline_actions SET retry_count = ? WHERE id = ?`, retryCount, id); err != nil {
		return fmt.Errorf("update offline action retry: %w", err)
	}
	return nil
}

// DeleteAction removes a single action from the log. Idempotent.
func (s *Store) DeleteAction(ctx context.Context, id string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM offline_actions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete offline action: %w", err)
	}
	return nil
}

// DeleteActions empties the action log.
func (s *Store) DeleteActions(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM offline_actions`); err != nil {
		return fmt.Errorf("clear offline actions: %w", err)
	}
	return nil
}

// AppendErrorRecord appends a permanent-failure record, dropping the oldest
// rows beyond capacity. capacity <= 0 means unbounded.
func (s *Store) AppendErrorRecord(ctx context.Context, record core.OfflineErrorRecord, capacity int) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(record.ID) == "" {
		return errors.New("error record id is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO offline_errors (id, action_id, action_type, retry_count, message, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, record.ID, record.ActionID, record.ActionType, record.RetryCount, record.Message, record.RecordedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("append error record: %w", err)
	}

	if capacity > 0 {
		if err := s.trimLog(ctx, "offline_errors", capacity); err != nil {
			return err
		}
	}

	return nil
}

// ListErrorRecords returns permanent-failure records, oldest first.
func (s *Store) ListErrorRecords(ctx context.Context) ([]core.OfflineErrorRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, action_id, action_type, retry_count, message, recorded_at
		FROM offline_errors
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list error records: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var records []core.OfflineErrorRecord
	for rows.Next() {
		var (
			record     core.OfflineErrorRecord
			recordedAt int64
		)
		if err := rows.Scan(&record.ID, &record.ActionID, &record.ActionType, &record.RetryCount, &record.Message, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan error record: %w", err)
		}
		record.RecordedAt = time.Unix(recordedAt, 0).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list error records: %w", err)
	}

	return records, nil
}

// DeleteErrorRecords empties the error log.
func (s *Store) DeleteErrorRecords(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM offline_errors`); err != nil {
		return fmt.Errorf("clear error records: %w", err)
	}
	return nil
}

// trimLog drops the oldest rows of a capped log table beyond capacity.
func (s *Store) trimLog(ctx context.Context, table string, capacity int) error {
	stmt := fmt.Sprintf(`
		DELETE FROM %s WHERE seq NOT IN (
			SELECT seq FROM %s ORDER BY seq DESC LIMIT ?
		)
	`, table, table)
	if _, err := s.DB.ExecContext(ctx, stmt, capacity); err != nil {
		return fmt.Errorf("trim %s: %w", table, err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldsync/fieldsync/internal/core"
)

// GetEntry returns the durable-tier value for a key if it has not expired.
// A miss (absent or expired) returns (nil, zero time, nil).
func (s *Store) GetEntry(ctx context.Context, key string) ([]byte, time.Time, error) {
	if s == nil || s.DB == nil {
		return nil, time.Time{}, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, time.Time{}, errors.New("cache key is required")
	}

	var (
		value     []byte
		expiresAt int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT value, expires_at
		FROM cache_entries
		WHERE key = ? AND expires_at > ?
	`, key, time.Now().UTC().Unix())

	if err := row.Scan(&value, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, fmt.Errorf("fetch cache entry: %w", err)
	}

	return value, time.Unix(expiresAt, 0).UTC(), nil
}

// SetEntry stores a durable-tier value with an absolute expiry.
func (s *Store) SetEntry(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("cache key is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, stored_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			stored_at = excluded.stored_at,
			expires_at = excluded.expires_at
	`, key, value, time.Now().UTC().Unix(), expiresAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}

	return nil
}

// DeleteEntry removes a single durable-tier entry. Idempotent.
func (s *Store) DeleteEntry(ctx context.Context, key string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// DeleteEntries removes every durable-tier entry.
func (s *Store) DeleteEntries(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("clear cache entries: %w", err)
	}
	return nil
}

// DeleteEntriesByPrefix removes durable-tier entries whose key starts with
// the prefix. The prefix is matched literally; LIKE metacharacters in it are
// escaped.
func (s *Store) DeleteEntriesByPrefix(ctx context.Context, prefix string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	pattern := escapeLike(prefix) + "%"
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\'`, pattern); err != nil {
		return fmt.Errorf("clear cache entries by prefix: %w", err)
	}
	return nil
}

// ListEntryMeta returns key and expiry bookkeeping for all unexpired durable
// entries. Expired rows are swept in the same call.
func (s *Store) ListEntryMeta(ctx context.Context) ([]core.CacheEntryMeta, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Unix()
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, now); err != nil {
		return nil, fmt.Errorf("sweep expired cache entries: %w", err)
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT key, expires_at FROM cache_entries WHERE expires_at > ?`, now)
	if err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var metas []core.CacheEntryMeta
	for rows.Next() {
		var (
			key       string
			expiresAt int64
		)
		if err := rows.Scan(&key, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		metas = append(metas, core.CacheEntryMeta{
			Key:       key,
			ExpiresAt: time.Unix(expiresAt, 0).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}

	return metas, nil
}

// CountEntries reports the number of unexpired durable entries.
func (s *Store) CountEntries(ctx context.Context) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var count int
	row := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries WHERE expires_at > ?`, time.Now().UTC().Unix())
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return count, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "explicit missing file should fail")

	cfg, err = Load("")
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, cfg.Cache.FastTTL)
	require.Equal(t, 24*time.Hour, cfg.Cache.DurableTTL)
	require.Equal(t, "durable", cfg.Cache.ExpiryPolicy)
	require.Equal(t, 60, cfg.Limiter.RequestsPerMinute)
	require.Equal(t, 5, cfg.Limiter.MaxConcurrent)
	require.Equal(t, 500, cfg.Queue.Capacity)
	require.Equal(t, 5*time.Minute, cfg.Queue.SyncInterval)
	require.NotEmpty(t, cfg.Store.Path)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
cache:
  fast_ttl: 90s
  expiry_policy: strict
limiter:
  requests_per_minute: 10
queue:
  capacity: 25
store:
  path: ` + filepath.Join(dir, "test.db") + `
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, cfg.Cache.FastTTL)
	require.Equal(t, "strict", cfg.Cache.ExpiryPolicy)
	require.Equal(t, 10, cfg.Limiter.RequestsPerMinute)
	require.Equal(t, 25, cfg.Queue.Capacity)
	require.Equal(t, filepath.Join(dir, "test.db"), cfg.Store.Path)

	// defaults still apply for unset keys
	require.Equal(t, 24*time.Hour, cfg.Cache.DurableTTL)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FIELDSYNC_LIMITER_MAX_CONCURRENT", "2")
	t.Setenv("FIELDSYNC_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Limiter.MaxConcurrent)
	require.Equal(t, "debug", cfg.Logging.Level)
}

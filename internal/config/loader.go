package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const envPrefix = "FIELDSYNC"

// Load resolves configuration from defaults, an optional config file, and
// FIELDSYNC_* environment variables. An empty cfgFile falls back to the
// default user config path; a missing file is not an error, an unreadable
// one is.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(cfgFile) != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if path := DefaultConfigPath(); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8632)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.timeout", 30*time.Second)

	v.SetDefault("store.driver", "libsql")

	v.SetDefault("cache.fast_ttl", 5*time.Minute)
	v.SetDefault("cache.durable_ttl", 24*time.Hour)
	v.SetDefault("cache.expiry_policy", "durable")

	v.SetDefault("limiter.requests_per_minute", 60)
	v.SetDefault("limiter.max_concurrent", 5)
	v.SetDefault("limiter.max_retries", 3)
	v.SetDefault("limiter.backoff_base", time.Second)

	v.SetDefault("queue.capacity", 500)
	v.SetDefault("queue.error_log_capacity", 100)
	v.SetDefault("queue.default_max_retries", 3)
	v.SetDefault("queue.sync_interval", 5*time.Minute)

	v.SetDefault("logging.level", "info")
}

// DefaultConfigPath returns the user config file path, or "" when the home
// directory cannot be resolved.
func DefaultConfigPath() string {
	dir := userConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// DefaultStorePath returns the default database file path.
func DefaultStorePath() string {
	dir := userDataDir()
	if dir == "" {
		return "./fieldsync.db"
	}
	return filepath.Join(dir, "fieldsync.db")
}

func userConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "fieldsync")
}

func userDataDir() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "fieldsync")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "fieldsync")
}

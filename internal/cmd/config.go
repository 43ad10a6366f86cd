package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fieldsync/fieldsync/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage fieldsync configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if path == "" {
			return fmt.Errorf("cannot resolve a config path; pass --config")
		}

		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}

		data, err := renderDefaultConfig()
		if err != nil {
			return fmt.Errorf("render config: %w", err)
		}

		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		cmd.Printf("Wrote default config to %s\n", path)
		return nil
	},
}

// renderDefaultConfig produces the default YAML document. Durations are
// written as strings so the file stays readable.
func renderDefaultConfig() ([]byte, error) {
	type section map[string]any

	document := struct {
		Server  section `yaml:"server"`
		Remote  section `yaml:"remote"`
		Store   section `yaml:"store"`
		Cache   section `yaml:"cache"`
		Limiter section `yaml:"limiter"`
		Queue   section `yaml:"queue"`
		Logging section `yaml:"logging"`
	}{
		Server: section{
			"host":             "127.0.0.1",
			"port":             8632,
			"read_timeout":     "30s",
			"write_timeout":    "30s",
			"idle_timeout":     "120s",
			"shutdown_timeout": "10s",
		},
		Remote: section{
			"base_url": "",
			"timeout":  "30s",
		},
		Store: section{
			"driver": "libsql",
			"path":   config.DefaultStorePath(),
		},
		Cache: section{
			"fast_ttl":      "5m",
			"durable_ttl":   "24h",
			"expiry_policy": "durable",
		},
		Limiter: section{
			"requests_per_minute": 60,
			"max_concurrent":      5,
			"max_retries":         3,
			"backoff_base":        "1s",
		},
		Queue: section{
			"capacity":            500,
			"error_log_capacity":  100,
			"default_max_retries": 3,
			"sync_interval":       "5m",
		},
		Logging: section{
			"level": "info",
		},
	}

	return yaml.Marshal(&document)
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
}

// Package cmd implements the fieldsync CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fieldsync/fieldsync/internal/config"
	"github.com/fieldsync/fieldsync/internal/core"
	"github.com/fieldsync/fieldsync/internal/core/cache"
	"github.com/fieldsync/fieldsync/internal/core/queue"
	"github.com/fieldsync/fieldsync/internal/core/ratelimit"
	"github.com/fieldsync/fieldsync/internal/core/remote"
	"github.com/fieldsync/fieldsync/internal/core/store"
	"github.com/fieldsync/fieldsync/internal/observability"
	"github.com/fieldsync/fieldsync/internal/output"
)

var (
	cfgFile      string
	verbose      bool
	outputFormat string

	// Version info set by the main package.
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by the main package before Execute.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   "fieldsync",
	Short: "Offline-first sync and caching layer for a remote HTTP API",
	Long: `fieldsync keeps a durable local cache and an offline action queue for a
rate-limited remote API. Mutations made while offline are replayed in order
once connectivity returns.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/fieldsync/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table|json)")
}

// app bundles the wired components behind a CLI command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Store
	cache   *cache.Cache
	limiter *ratelimit.Limiter
	queue   *queue.Queue
	client  *remote.Client
}

// newApp loads configuration and wires the store, cache, limiter, and
// queue. Callers must Close.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewCLILogger(verbose)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.Limiter.RequestsPerMinute,
		MaxConcurrent:     cfg.Limiter.MaxConcurrent,
		MaxRetries:        cfg.Limiter.MaxRetries,
		BackoffBase:       cfg.Limiter.BackoffBase,
	}, ratelimit.WithLogger(logger))

	tiered := cache.New(cache.Config{
		FastTTL:    cfg.Cache.FastTTL,
		DurableTTL: cfg.Cache.DurableTTL,
		Policy:     cache.ParsePolicy(cfg.Cache.ExpiryPolicy),
	}, st, cache.WithLogger(logger))

	client := remote.New(remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		Timeout: cfg.Remote.Timeout,
	}, limiter, remote.WithLogger(logger))

	executor := client.Executor()
	if cfg.Remote.BaseURL == "" {
		executor = func(ctx context.Context, action core.OfflineAction) error {
			return ratelimit.Permanent(errors.New("remote base_url is not configured"))
		}
	}

	q := queue.New(st, executor, queue.Config{
		Capacity:          cfg.Queue.Capacity,
		ErrorLogCapacity:  cfg.Queue.ErrorLogCapacity,
		DefaultMaxRetries: cfg.Queue.DefaultMaxRetries,
		SyncInterval:      cfg.Queue.SyncInterval,
	}, queue.WithLogger(logger))

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		cache:   tiered,
		limiter: limiter,
		queue:   q,
		client:  client,
	}, nil
}

func (a *app) Close() {
	if a == nil {
		return
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync() // nolint:errcheck
	}
}

// formatter resolves the --output flag.
func formatter() (output.Formatter, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(format), nil
}

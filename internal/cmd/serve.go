package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fieldsync/fieldsync/internal/observability"
	"github.com/fieldsync/fieldsync/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the diagnostics HTTP server and the background sync loop",
	Long: `Run the diagnostics HTTP server (/health, /version, /status, /sync) and
the periodic replay loop. SIGINT or SIGTERM triggers a graceful shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		logger, err := observability.NewServerLogger(app.cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("init server logger: %w", err)
		}
		defer logger.Sync() // nolint:errcheck

		host := serveHost
		if host == "" {
			host = app.cfg.Server.Host
		}
		port := servePort
		if port == 0 {
			port = app.cfg.Server.Port
		}
		addr := fmt.Sprintf("%s:%d", host, port)

		srv := server.New(addr, server.Deps{
			Queue:   app.queue,
			Limiter: app.limiter,
			Cache:   app.cache,
			Version: versionInfo.Version,
		}, logger)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Background loops: periodic replay plus a connectivity probe
		// feeding the queue's online signal.
		go app.queue.Run(ctx)
		if app.cfg.Remote.BaseURL != "" {
			go probeConnectivity(ctx, app, logger)
		}

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errChan:
			return fmt.Errorf("server error: %w", err)
		case sig := <-sigChan:
			logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		}

		cancel()

		shutdownTimeout := app.cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		logger.Info("server stopped")
		return nil
	},
}

// probeConnectivity feeds the queue's online signal from periodic health
// probes against the remote API.
func probeConnectivity(ctx context.Context, app *app, logger *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	app.queue.UpdateConnectivity(ctx, app.client.Reachable(ctx))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			online := app.client.Reachable(ctx)
			if online != app.queue.Online() {
				logger.Info("connectivity changed", zap.Bool("online", online))
			}
			app.queue.UpdateConnectivity(ctx, online)
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "bind host (defaults to server.host)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "bind port (defaults to server.port)")
}

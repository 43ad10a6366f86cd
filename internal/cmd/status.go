package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldsync/fieldsync/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue, limiter, and cache diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		f, err := formatter()
		if err != nil {
			return err
		}

		if app.client != nil && app.cfg.Remote.BaseURL != "" {
			app.queue.UpdateConnectivity(cmd.Context(), app.client.Reachable(cmd.Context()))
		}

		summary, err := app.queue.Summary(cmd.Context())
		if err != nil {
			return fmt.Errorf("read queue state: %w", err)
		}

		rendered, err := f.FormatStatus(output.Status{
			Queue:        summary,
			Limiter:      app.limiter.Snapshot(),
			CacheEntries: app.cache.Len(cmd.Context()),
		})
		if err != nil {
			return err
		}

		cmd.Println(rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

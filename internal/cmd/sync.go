package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/fieldsync/fieldsync/internal/core"
	"github.com/fieldsync/fieldsync/internal/core/queue"
)

var syncCheckOnly bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued actions against the remote API",
	Long: `Probe the remote API and, when reachable, run one replay pass over the
offline action queue. Actions that keep failing are moved to the
permanent-failure log after their retry budget is spent.`,
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

		if app.cfg.Remote.BaseURL == "" {
			return errors.New("remote base_url is not configured; set remote.base_url or FIELDSYNC_REMOTE_BASE_URL")
		}

		if !app.client.Reachable(cmd.Context()) {
			cmd.Println("Remote API is unreachable; actions stay queued.")
			return nil
		}
		if syncCheckOnly {
			cmd.Println("Remote API is reachable.")
			return nil
		}

		var report core.SyncReport
		cancel := app.queue.Notifier().Subscribe(func(evt queue.Event) {
			if evt.Type == queue.EventSyncCompleted && evt.Report != nil {
				report = *evt.Report
			}
		})
		defer cancel()

		// The offline-to-online transition runs the replay pass; the
		// subscription above captures its report.
		app.queue.UpdateConnectivity(cmd.Context(), true)

		rendered, err := f.FormatSyncReport(report)
		if err != nil {
			return err
		}
		cmd.Println(rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVar(&syncCheckOnly, "check-only", false, "probe connectivity without replaying")
}

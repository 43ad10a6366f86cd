package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var queueMaxRetries int

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and modify the offline action queue",
}

var queueAddCmd = &cobra.Command{
	Use:   "add <type> [payload]",
	Short: "Queue an action for replay",
	Long: `Queue a mutating action for replay against the remote API. The optional
payload must be a JSON document and is stored verbatim.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		var payload []byte
		if len(args) == 2 {
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("payload is not valid JSON")
			}
			payload = []byte(args[1])
		}

		action, err := app.queue.Enqueue(cmd.Context(), args[0], payload, queueMaxRetries)
		if err != nil {
			return fmt.Errorf("queue action: %w", err)
		}

		cmd.Printf("Queued %s action %s\n", action.Type, action.ID)
		return nil
	},
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending actions in replay order",
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

		actions, err := app.queue.Actions(cmd.Context())
		if err != nil {
			return err
		}

		rendered, err := f.FormatActions(actions)
		if err != nil {
			return err
		}
		cmd.Println(rendered)
		return nil
	},
}

var queueErrorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "List actions that exhausted their retry budget",
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

		records, err := app.queue.ErrorRecords(cmd.Context())
		if err != nil {
			return err
		}

		rendered, err := f.FormatErrorRecords(records)
		if err != nil {
			return err
		}
		cmd.Println(rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueErrorsCmd)

	queueAddCmd.Flags().IntVar(&queueMaxRetries, "max-retries", 0, "retry budget for this action (0 uses the configured default)")
}

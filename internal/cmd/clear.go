package cmd

import (
	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the offline action queue and the failure log",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.queue.ClearAll(cmd.Context()); err != nil {
			return err
		}

		cmd.Println("Queue and failure log cleared.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

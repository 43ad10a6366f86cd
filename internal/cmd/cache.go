package cmd

import (
	"github.com/spf13/cobra"
)

var cachePrefix string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local tiered cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached entries from both tiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if cachePrefix != "" {
			app.cache.ClearPrefix(cmd.Context(), cachePrefix)
			cmd.Printf("Cleared cache entries with prefix %q.\n", cachePrefix)
			return nil
		}

		app.cache.Clear(cmd.Context())
		cmd.Println("Cache cleared.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().StringVar(&cachePrefix, "prefix", "", "only clear keys with this prefix")
}

package cmd

import (
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("fieldsync %s\n", versionInfo.Version)
		cmd.Printf("  commit:     %s\n", versionInfo.Commit)
		cmd.Printf("  build date: %s\n", versionInfo.BuildDate)
		cmd.Printf("  go version: %s\n", runtime.Version())
		cmd.Printf("  platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

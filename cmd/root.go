// Package cmd holds the mirrorhooks command line.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mirrorhooks",
	Short: "Keep local git mirrors in sync from GitHub and GitLab webhooks",
	Long: `mirrorhooks receives GitHub and GitLab push and wiki webhooks, keeps a
bare mirror of each repository up to date, and runs a commit notifier for
every change.

COMMANDS:
  serve   - HTTP gateway (optionally with an embedded worker)
  worker  - standalone job consumer
  replay  - process a saved webhook payload`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	rootCmd.AddCommand(ServeCmd)
	rootCmd.AddCommand(WorkerCmd)
	rootCmd.AddCommand(ReplayCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

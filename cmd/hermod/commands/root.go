// Package commands implements the Hermod CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root CLI command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hermod",
		Short: "Hermod - real-time chat streaming relay daemon",
		Long: `Hermod relays chat between web clients and an OpenAI-compatible
reasoning engine: it streams tokens and tool calls over WebSocket,
persists transcripts in SQLite, and serves the session/skill/log/cron
management API.

Examples:
  hermod serve
  hermod serve --config ./config.yaml --verbose`,
		Version: version,
	}

	rootCmd.AddCommand(newServeCmd())

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}

// Package commands implements the CLI commands for edgelogctl, the
// operator-facing client for inspecting a running edgelogd agent.
package commands

import (
	"github.com/spf13/cobra"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	serverHost   string
	ledgerPath   string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "edgelogctl",
	Short: "edgelogctl - inspect a running edgelogd agent",
	Long: `edgelogctl is the operator-facing client for edgelogd.

Use it to check agent health remotely and to review recent file-processing
activity recorded in the job ledger.

Use "edgelogctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverHost, "host", "localhost", "edgelogd health-endpoint host")
	rootCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "", "Path to the job ledger database (default: $XDG_STATE_HOME/edgelogd/ledger.db)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json|yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command, for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

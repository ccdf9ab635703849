package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the orgsync admin CLI. Subcommands
// (bootstrap, etc.) are attached here.
var rootCmd = &cobra.Command{
	Use:           "orgsync",
	Short:         "orgsync admin CLI",
	Long:          "Administrative utilities for the organization sync pipeline (schema bootstrap, outbox inspection).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}

package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the store admin CLI. Subcommands
// (bootstrap, schema management) are attached here.
var rootCmd = &cobra.Command{
	Use:           "store-admin",
	Short:         "Store admin CLI",
	Long:          "Administrative utilities for the store platform (database bootstrap, tenant schema management).",
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

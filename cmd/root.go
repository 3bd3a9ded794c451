// Package cmd defines the CLI commands for the caseharvester executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "caseharvester",
		Short: "Bulk ingestion of court case records",
		Long: `caseharvester pulls court case records from the public portal in bulk.
It keeps a buffer of solved access challenges, rotates the portal credential
on a fixed cadence, and processes case identifiers through a bounded worker
pool, persisting each case and its documents atomically.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newIngestCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

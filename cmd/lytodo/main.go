// Command lytodo is a personal task list with multi-device sync.
//
// The local snapshot lives in a single JSON file; a companion server stores
// one document per user and devices converge through pull-merge-push cycles.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lytodo/lytodo/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "lytodo",
	Short: "Personal task list with multi-device sync",
	Long: `lytodo manages a personal task list stored as a single JSON snapshot
and keeps it in sync across devices through a small storage server.

Local edits, background pulls and pushes all reconcile with last-write-wins
at record granularity, so devices converge without a central database.`,
	SilenceUsage: true,
}

// loadConfig reads the effective configuration for a command invocation.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.lytodo/config.yaml)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

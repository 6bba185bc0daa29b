package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lytodo/lytodo/internal/dashboard"
	"github.com/lytodo/lytodo/internal/orchestrator"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon",
	Long: `Run the sync daemon for the local snapshot file.

The daemon pulls the server's copy on startup, then keeps the snapshot
converged: periodic background pulls merge remote changes in, local edits
(including ones made by other lytodo commands) trigger a debounced push,
and a final push runs on shutdown.

With --dashboard a WebSocket endpoint broadcasts sync events for other
surfaces to display.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ocfg := orchestrator.DefaultConfig()
		ocfg.Logger = cfg.NewLogger("[sync] ")

		withDashboard, _ := cmd.Flags().GetBool("dashboard")
		var dash *dashboard.Server
		if withDashboard || cfg.Dashboard.Enabled {
			dash = dashboard.NewServer(&dashboard.Config{
				Port:   cfg.Dashboard.Port,
				Logger: cfg.NewLogger("[dashboard] "),
			})
			if err := dash.Start(); err != nil {
				return err
			}
			defer dash.Stop()
			fmt.Printf("Dashboard: ws://%s/ws\n", dash.GetAddr())
			ocfg.Notifier = dash
		}

		orch, err := orchestrator.New(cfg.Storage, ocfg)
		if err != nil {
			return err
		}
		if !orch.Enabled() {
			return fmt.Errorf("sync is not enabled in %s", cfg.Storage)
		}

		fmt.Printf("Syncing %s\n", cfg.Storage)
		fmt.Println("Press Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return orch.Start(ctx)
	},
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "Serve sync events over WebSocket")

	rootCmd.AddCommand(daemonCmd)
}

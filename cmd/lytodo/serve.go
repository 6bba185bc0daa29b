package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lytodo/lytodo/internal/server"
	"github.com/lytodo/lytodo/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storage server",
	Long: `Run the storage server that holds one snapshot document per user.

The server exposes GET/POST /storage with ETag-based conditional fetch and
an optional shared-token check (X-Token header). Documents are written
atomically, so a reader never sees a partial document.

Example usage:
  lytodo serve                      # Defaults from config
  lytodo serve --port 9000          # Custom port
  LYTODO_SERVER_TOKEN=s3cret lytodo serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Server.Port = port
		}
		if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
			cfg.Server.DataDir = dataDir
		}
		if token, _ := cmd.Flags().GetString("token"); token != "" {
			cfg.Server.Token = token
		}

		st, err := store.New(cfg.Server.DataDir)
		if err != nil {
			return err
		}

		srv := server.New(st, &server.Config{
			Port:   cfg.Server.Port,
			Token:  cfg.Server.Token,
			Logger: cfg.NewLogger("[server] "),
		})

		if err := srv.Start(); err != nil {
			return err
		}

		fmt.Printf("Storage server listening on %s (data: %s)\n", srv.GetAddr(), st.Dir())
		fmt.Println("Press Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		fmt.Println("\nShutting down...")
		return srv.Stop()
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on")
	serveCmd.Flags().String("data-dir", "", "Directory holding stored documents")
	serveCmd.Flags().String("token", "", "Shared token required in X-Token")

	rootCmd.AddCommand(serveCmd)
}

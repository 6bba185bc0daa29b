package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lytodo/lytodo/internal/client"
	"github.com/lytodo/lytodo/internal/orchestrator"
	"github.com/lytodo/lytodo/internal/snapshot"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull, merge and push the snapshot once",
	Long: `Perform one full sync cycle: pull the remote snapshot, merge it into
the local one with last-write-wins, save, and push the result back.

Connection settings come from the snapshot's own sync configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		orch, err := orchestrator.New(cfg.Storage, &orchestrator.Config{
			Logger: cfg.NewLogger("[sync] "),
		})
		if err != nil {
			return err
		}

		status := orch.ManualSync(context.Background())
		if !status.OK {
			return fmt.Errorf("%s", status.Message)
		}
		fmt.Println(status.Message)
		return nil
	},
}

// transportFromFlags builds a one-shot transport client: flags override the
// snapshot's stored sync settings.
func transportFromFlags(cmd *cobra.Command, storage string) (*client.Client, error) {
	snap, err := snapshot.Load(storage)
	if err != nil {
		return nil, err
	}
	s := snap.Settings

	if v, _ := cmd.Flags().GetString("url"); v != "" {
		s.SyncBaseURL = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		s.SyncToken = v
	}
	if v, _ := cmd.Flags().GetString("user"); v != "" {
		s.SyncUser = v
	}

	c := client.New(s.SyncBaseURL, s.SyncToken, s.SyncUser)
	if !c.Available() {
		return nil, fmt.Errorf("no sync server configured (set --url or the snapshot's sync settings)")
	}
	return c, nil
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Overwrite the local snapshot with the server's copy",
	Long: `Fetch the remote snapshot and replace the local file with it.

The existing local file is backed up first (storage.json.bak_<timestamp>).
This is replace, not merge; use "lytodo sync" to reconcile instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, err := transportFromFlags(cmd, cfg.Storage)
		if err != nil {
			return err
		}

		changed, err := c.PullToFile(context.Background(), cfg.Storage)
		if err != nil {
			return err
		}
		if changed {
			fmt.Println("pulled ok")
		} else {
			fmt.Println("already up to date")
		}
		return nil
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the local snapshot to the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, err := transportFromFlags(cmd, cfg.Storage)
		if err != nil {
			return err
		}

		if err := c.PushFromFile(context.Background(), cfg.Storage); err != nil {
			return err
		}
		fmt.Printf("pushed ok, etag=%s\n", c.ETag())
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{pullCmd, pushCmd} {
		c.Flags().String("url", "", "Sync server base URL")
		c.Flags().String("token", "", "Shared token")
		c.Flags().String("user", "", "User key on the server")
	}

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(pushCmd)
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lytodo/lytodo/internal/snapshot"
	"github.com/lytodo/lytodo/internal/tasklist"
)

// withSnapshot loads the local snapshot, applies edit, and saves it back.
// The save is atomic, and a running daemon picks the change up through its
// file watcher.
func withSnapshot(edit func(*snapshot.Snapshot) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	snap, err := snapshot.Load(cfg.Storage)
	if err != nil {
		return err
	}
	if err := edit(&snap); err != nil {
		return err
	}
	return snapshot.Save(cfg.Storage, snap)
}

var addCmd = &cobra.Command{
	Use:   "add [text...]",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, _ := cmd.Flags().GetString("tag")
		return withSnapshot(func(s *snapshot.Snapshot) error {
			id := tasklist.Add(s, strings.Join(args, " "), tag)
			fmt.Println(id)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		snap, err := snapshot.Load(cfg.Storage)
		if err != nil {
			return err
		}

		tag, _ := cmd.Flags().GetString("tag")
		all, _ := cmd.Flags().GetBool("all")

		for _, t := range tasklist.Visible(&snap, tag, all) {
			mark := " "
			if t.Done {
				mark = "x"
			}
			pin := ""
			if t.Pinned {
				pin = " *"
			}
			fmt.Printf("[%s] %-36s %s (%s)%s\n", mark, t.ID, firstLine(t.Text), t.Tag, pin)
		}
		return nil
	},
}

var doneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSnapshot(func(s *snapshot.Snapshot) error {
			if !tasklist.SetDone(s, args[0], true) {
				return fmt.Errorf("task %s not found", args[0])
			}
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task (soft)",
	Long: `Tombstone a task. The record stays in the snapshot so the deletion
propagates to other devices; use "lytodo purge" to erase tombstones.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSnapshot(func(s *snapshot.Snapshot) error {
			if !tasklist.SoftDelete(s, args[0]) {
				return fmt.Errorf("task %s not found", args[0])
			}
			return nil
		})
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Permanently erase deleted and completed tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		completedToo, _ := cmd.Flags().GetBool("completed")
		return withSnapshot(func(s *snapshot.Snapshot) error {
			n := tasklist.PurgeDeleted(s)
			if completedToo {
				n += tasklist.PurgeCompleted(s)
			}
			fmt.Printf("purged %d tasks\n", n)
			return nil
		})
	},
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func init() {
	addCmd.Flags().String("tag", "", "Tag for the new task")
	listCmd.Flags().String("tag", "", "Only tasks with this tag")
	listCmd.Flags().Bool("all", false, "Include completed tasks")
	purgeCmd.Flags().Bool("completed", false, "Also erase completed tasks")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(purgeCmd)
}

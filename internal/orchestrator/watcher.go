package orchestrator

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lytodo/lytodo/internal/snapshot"
)

// startWatcher monitors the snapshot file for writes made by other
// processes (the CLI editing commands, or the user) and turns them into
// MarkDirty so the debounced push picks them up.
//
// The parent directory is watched, not the file itself: the snapshot is
// replaced by rename on every save, which would silently drop a per-file
// watch.
func (o *Orchestrator) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(o.storagePath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer watcher.Close()

		for {
			select {
			case <-o.ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if filepath.Clean(event.Name) != filepath.Clean(o.storagePath) {
					continue
				}
				if o.selfWrite() {
					continue
				}
				o.config.Logger.Printf("Snapshot changed externally: %s", event.Name)
				o.reloadExternal()
				o.MarkDirty()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				o.config.Logger.Printf("Watcher error: %v", err)
			}
		}
	}()

	return nil
}

// selfWrite reports whether a file event falls inside the suppression
// window set around the orchestrator's own saves.
func (o *Orchestrator) selfWrite() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return time.Now().Before(o.ignoreUntil)
}

// reloadExternal refreshes the in-memory snapshot from an externally
// modified file. A corrupt file is ignored; the in-memory copy stays
// authoritative until the file is readable again.
func (o *Orchestrator) reloadExternal() {
	snap, err := snapshot.Load(o.storagePath)
	if err != nil {
		o.config.Logger.Printf("Ignoring unreadable snapshot: %v", err)
		return
	}
	o.mu.Lock()
	o.snap = snap
	o.mu.Unlock()
}

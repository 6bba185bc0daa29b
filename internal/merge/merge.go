// Package merge reconciles a remote snapshot into a local one with
// last-write-wins semantics at record granularity.
//
// Merge is a pure function: it performs no I/O, never mutates its inputs,
// and is idempotent: merging the same remote snapshot twice yields no
// further change.
package merge

import (
	"strings"

	"github.com/lytodo/lytodo/internal/snapshot"
)

// Stats summarizes what a merge changed, for status reporting.
type Stats struct {
	TasksAdopted int // remote tasks taken wholesale (new or newer)
	TasksKept    int // local tasks that won or had no remote counterpart
	TagsAdopted  int
	TagsKept     int
}

// Merge combines local and remote into a new snapshot.
//
// Tasks are keyed by id: the record with the greater updated_at wins
// wholesale, ties favor remote. Local tasks absent from remote are kept,
// since deletion propagates only through the tombstone flag, never by
// omission.
// Tags are keyed by trimmed name and reconcile only color and deleted on
// conflict. Settings adopt the remote sync-configuration subset and nothing
// else.
func Merge(local, remote snapshot.Snapshot) (snapshot.Snapshot, Stats) {
	var stats Stats

	out := snapshot.Snapshot{
		Version:  snapshot.Version,
		Settings: local.Settings,
	}
	out.Settings.ApplySyncFields(remote.Settings)

	out.Tasks = mergeTasks(local.Tasks, remote.Tasks, &stats)
	out.Tags = mergeTags(local.Tags, remote.Tags, &stats)
	out.Tags = snapshot.EnsureReservedTags(out.Tags)

	return out, stats
}

// mergeTasks preserves local ordering and appends remote-only tasks in
// remote order, so the result is deterministic.
func mergeTasks(local, remote []snapshot.Task, stats *Stats) []snapshot.Task {
	remoteByID := make(map[string]snapshot.Task, len(remote))
	for _, rt := range remote {
		if rt.ID == "" {
			continue // unusable record, skip rather than corrupt the list
		}
		remoteByID[rt.ID] = rt
	}

	out := make([]snapshot.Task, 0, len(local)+len(remote))
	localIDs := make(map[string]bool, len(local))

	for _, lt := range local {
		if lt.ID == "" {
			continue
		}
		localIDs[lt.ID] = true
		if rt, ok := remoteByID[lt.ID]; ok && rt.UpdatedAt >= lt.UpdatedAt {
			out = append(out, rt.Clone())
			stats.TasksAdopted++
		} else {
			out = append(out, lt.Clone())
			stats.TasksKept++
		}
	}

	for _, rt := range remote {
		if rt.ID == "" || localIDs[rt.ID] {
			continue
		}
		out = append(out, rt.Clone())
		stats.TasksAdopted++
	}

	return out
}

// mergeTags reconciles by name. On a remote win only color and deleted are
// adopted, and updated_at becomes the max of both sides; a tag must never
// regress to a stale name-to-color mapping.
func mergeTags(local, remote []snapshot.Tag, stats *Stats) []snapshot.Tag {
	index := make(map[string]int, len(local))
	out := make([]snapshot.Tag, 0, len(local)+len(remote))

	for _, lg := range local {
		name := tagKey(lg.Name)
		if _, dup := index[name]; dup {
			continue
		}
		index[name] = len(out)
		out = append(out, lg)
	}

	for _, rg := range remote {
		name := tagKey(rg.Name)
		i, ok := index[name]
		if !ok {
			index[name] = len(out)
			out = append(out, rg)
			stats.TagsAdopted++
			continue
		}
		lg := out[i]
		if rg.UpdatedAt >= lg.UpdatedAt {
			if rg.Color != "" {
				lg.Color = rg.Color
			}
			lg.Deleted = rg.Deleted
			if rg.UpdatedAt > lg.UpdatedAt {
				lg.UpdatedAt = rg.UpdatedAt
			}
			out[i] = lg
			stats.TagsAdopted++
		} else {
			stats.TagsKept++
		}
	}

	return out
}

func tagKey(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return snapshot.TagDefault
	}
	return name
}

// Package tasklist implements local edit operations over a snapshot.
//
// Every mutation touches the affected record's updated_at so the change wins
// (or loses) correctly in a later merge. Deletion is always the tombstone
// flag; records only leave the document through the explicit purge
// operations.
package tasklist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lytodo/lytodo/internal/snapshot"
)

// Add appends a new task to the snapshot and returns its id. The task is
// ordered after every existing non-deleted task in its pinned group.
func Add(s *snapshot.Snapshot, text, tag string) string {
	t := snapshot.NewTask(text, tag)

	maxOrder := t.Order
	for _, x := range s.Tasks {
		if !x.Deleted && x.Pinned == t.Pinned && x.Order > maxOrder {
			maxOrder = x.Order
		}
	}
	t.Order = maxOrder + 1.0

	s.Tasks = append(s.Tasks, t)
	ensureTagRow(s, t.Tag)
	return t.ID
}

// Find returns a pointer to the task with the given id.
func Find(s *snapshot.Snapshot, id string) (*snapshot.Task, bool) {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i], true
		}
	}
	return nil, false
}

// SetDone marks a task done or not done, maintaining completed_at.
func SetDone(s *snapshot.Snapshot, id string, done bool) bool {
	t, ok := Find(s, id)
	if !ok {
		return false
	}
	t.Done = done
	t.Touch()
	return true
}

// SetText replaces a task's text.
func SetText(s *snapshot.Snapshot, id, text string) bool {
	t, ok := Find(s, id)
	if !ok {
		return false
	}
	t.Text = text
	t.Touch()
	return true
}

// SoftDelete tombstones a task so the deletion propagates through merge.
func SoftDelete(s *snapshot.Snapshot, id string) bool {
	t, ok := Find(s, id)
	if !ok {
		return false
	}
	t.Deleted = true
	t.Touch()
	return true
}

// Restore clears a task's tombstone.
func Restore(s *snapshot.Snapshot, id string) bool {
	t, ok := Find(s, id)
	if !ok {
		return false
	}
	t.Deleted = false
	t.Touch()
	return true
}

// TogglePin flips a task's pinned flag.
func TogglePin(s *snapshot.Snapshot, id string) bool {
	t, ok := Find(s, id)
	if !ok {
		return false
	}
	t.Pinned = !t.Pinned
	t.Touch()
	return true
}

// SetTag moves a task to another tag, creating the tag row if it has none.
// A tombstoned tag cannot be targeted; the task falls back to the default.
func SetTag(s *snapshot.Snapshot, id, tag string) bool {
	t, ok := Find(s, id)
	if !ok {
		return false
	}
	tag = strings.TrimSpace(tag)
	if tag == "" || tag == snapshot.TagAll || tagDeleted(s, tag) {
		tag = snapshot.TagDefault
	}
	t.Tag = tag
	t.Touch()
	ensureTagRow(s, tag)
	return true
}

// Reorder moves the task with id to targetID's position. Only reordering
// within the same pinned group is allowed; the new order is the midpoint of
// the new neighbors so no other record needs rewriting.
func Reorder(s *snapshot.Snapshot, id, targetID string) error {
	src, ok := Find(s, id)
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	dst, ok := Find(s, targetID)
	if !ok {
		return fmt.Errorf("task %s not found", targetID)
	}
	if src.ID == dst.ID {
		return nil
	}
	if src.Pinned != dst.Pinned {
		return fmt.Errorf("cannot reorder across the pinned boundary")
	}

	group := visibleGroup(s, src.Pinned)
	pos := make([]string, 0, len(group))
	for _, t := range group {
		if t.ID != src.ID {
			pos = append(pos, t.ID)
		}
	}
	dstPos := 0
	for i, tid := range pos {
		if tid == dst.ID {
			dstPos = i
			break
		}
	}
	pos = append(pos[:dstPos], append([]string{src.ID}, pos[dstPos:]...)...)

	idx := dstPos
	var prev, next *float64
	if idx-1 >= 0 {
		if t, ok := Find(s, pos[idx-1]); ok {
			prev = &t.Order
		}
	}
	if idx+1 < len(pos) {
		if t, ok := Find(s, pos[idx+1]); ok {
			next = &t.Order
		}
	}

	switch {
	case prev == nil && next == nil:
		// single-element group, nothing to do
	case prev == nil:
		src.Order = *next + 1.0
	case next == nil:
		src.Order = *prev - 1.0
	default:
		src.Order = (*prev + *next) / 2.0
	}
	src.Touch()
	return nil
}

// PurgeCompleted permanently erases completed tasks. This is the explicit
// hard-purge; ordinary deletion stays a soft flag.
func PurgeCompleted(s *snapshot.Snapshot) int {
	return purge(s, func(t snapshot.Task) bool { return t.Done && !t.Deleted })
}

// PurgeDeleted permanently erases tombstoned tasks.
func PurgeDeleted(s *snapshot.Snapshot) int {
	return purge(s, func(t snapshot.Task) bool { return t.Deleted })
}

func purge(s *snapshot.Snapshot, drop func(snapshot.Task) bool) int {
	kept := s.Tasks[:0]
	removed := 0
	for _, t := range s.Tasks {
		if drop(t) {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.Tasks = kept
	return removed
}

// RenameTag renames a tag and migrates its tasks. Reserved names cannot be
// renamed or taken.
func RenameTag(s *snapshot.Snapshot, oldName, newName string) error {
	oldName = strings.TrimSpace(oldName)
	newName = strings.TrimSpace(newName)
	if oldName == "" || newName == "" || oldName == newName {
		return fmt.Errorf("invalid tag rename %q -> %q", oldName, newName)
	}
	if snapshot.Reserved(oldName) || snapshot.Reserved(newName) {
		return fmt.Errorf("reserved tags cannot be renamed")
	}
	for _, g := range s.Tags {
		if !g.Deleted && g.Name == newName {
			return fmt.Errorf("tag %q already exists", newName)
		}
	}

	found := false
	for i := range s.Tags {
		if !s.Tags[i].Deleted && s.Tags[i].Name == oldName {
			s.Tags[i].Name = newName
			s.Tags[i].UpdatedAt = snapshot.Now()
			found = true
		}
	}
	if !found {
		return fmt.Errorf("tag %q not found", oldName)
	}

	for i := range s.Tasks {
		if s.Tasks[i].Tag == oldName {
			s.Tasks[i].Tag = newName
			s.Tasks[i].Touch()
		}
	}
	return nil
}

// DeleteTag tombstones a tag and migrates its tasks to the default tag.
func DeleteTag(s *snapshot.Snapshot, name string) (moved int, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("tag name cannot be empty")
	}
	if snapshot.Reserved(name) {
		return 0, fmt.Errorf("reserved tags cannot be deleted")
	}

	found := false
	for i := range s.Tags {
		if !s.Tags[i].Deleted && s.Tags[i].Name == name {
			s.Tags[i].Deleted = true
			s.Tags[i].UpdatedAt = snapshot.Now()
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("tag %q not found", name)
	}

	for i := range s.Tasks {
		if !s.Tasks[i].Deleted && s.Tasks[i].Tag == name {
			s.Tasks[i].Tag = snapshot.TagDefault
			s.Tasks[i].Touch()
			moved++
		}
	}
	return moved, nil
}

// Visible returns non-deleted tasks for a tag filter (TagAll or "" matches
// everything), pinned first, each group ordered by descending order.
func Visible(s *snapshot.Snapshot, tag string, includeDone bool) []snapshot.Task {
	match := func(t snapshot.Task) bool {
		if t.Deleted {
			return false
		}
		if t.Done && !includeDone {
			return false
		}
		if tag != "" && tag != snapshot.TagAll && t.Tag != tag {
			return false
		}
		return true
	}

	var pinned, rest []snapshot.Task
	for _, t := range s.Tasks {
		if !match(t) {
			continue
		}
		if t.Pinned {
			pinned = append(pinned, t)
		} else {
			rest = append(rest, t)
		}
	}
	sortByOrder(pinned)
	sortByOrder(rest)
	return append(pinned, rest...)
}

func sortByOrder(tasks []snapshot.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Order > tasks[j].Order
	})
}

func visibleGroup(s *snapshot.Snapshot, pinned bool) []snapshot.Task {
	var out []snapshot.Task
	for _, t := range Visible(s, snapshot.TagAll, true) {
		if t.Pinned == pinned {
			out = append(out, t)
		}
	}
	return out
}

func tagDeleted(s *snapshot.Snapshot, name string) bool {
	for _, g := range s.Tags {
		if g.Name == name {
			return g.Deleted
		}
	}
	return false
}

func ensureTagRow(s *snapshot.Snapshot, name string) {
	name = strings.TrimSpace(name)
	if name == "" || name == snapshot.TagAll {
		return
	}
	for i := range s.Tags {
		if s.Tags[i].Name == name {
			if s.Tags[i].Deleted {
				s.Tags[i].Deleted = false
				s.Tags[i].UpdatedAt = snapshot.Now()
			}
			return
		}
	}
	s.Tags = append(s.Tags, snapshot.NewTag(name))
}

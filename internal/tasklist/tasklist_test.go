package tasklist

import (
	"testing"

	"github.com/lytodo/lytodo/internal/snapshot"
)

func newSnap() snapshot.Snapshot {
	return snapshot.New()
}

func TestAddOrdersAfterExisting(t *testing.T) {
	s := newSnap()

	first := Add(&s, "first", "")
	second := Add(&s, "second", "")

	a, _ := Find(&s, first)
	b, _ := Find(&s, second)
	if b.Order <= a.Order {
		t.Errorf("second order %v not after first %v", b.Order, a.Order)
	}

	// Newest first in the visible list.
	vis := Visible(&s, snapshot.TagAll, false)
	if len(vis) != 2 || vis[0].ID != second {
		t.Errorf("visible order wrong: %+v", vis)
	}
}

func TestAddCreatesTagRow(t *testing.T) {
	s := newSnap()
	Add(&s, "x", "groceries")

	found := false
	for _, g := range s.Tags {
		if g.Name == "groceries" && !g.Deleted {
			found = true
		}
	}
	if !found {
		t.Error("tag row for new task's tag not created")
	}
}

func TestSetDoneMaintainsCompletedAt(t *testing.T) {
	s := newSnap()
	id := Add(&s, "x", "")

	if !SetDone(&s, id, true) {
		t.Fatal("SetDone returned false")
	}
	task, _ := Find(&s, id)
	if !task.Done || task.CompletedAt == nil {
		t.Errorf("after done: Done=%v CompletedAt=%v", task.Done, task.CompletedAt)
	}

	SetDone(&s, id, false)
	task, _ = Find(&s, id)
	if task.Done || task.CompletedAt != nil {
		t.Errorf("after undo: Done=%v CompletedAt=%v", task.Done, task.CompletedAt)
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	s := newSnap()
	id := Add(&s, "x", "")

	if !SoftDelete(&s, id) {
		t.Fatal("SoftDelete returned false")
	}
	task, ok := Find(&s, id)
	if !ok {
		t.Fatal("soft delete removed the record")
	}
	if !task.Deleted {
		t.Error("Deleted = false after SoftDelete")
	}
	if len(Visible(&s, snapshot.TagAll, true)) != 0 {
		t.Error("deleted task still visible")
	}

	Restore(&s, id)
	task, _ = Find(&s, id)
	if task.Deleted {
		t.Error("Deleted = true after Restore")
	}
}

func TestPurge(t *testing.T) {
	s := newSnap()
	done := Add(&s, "done", "")
	deleted := Add(&s, "deleted", "")
	live := Add(&s, "live", "")
	SetDone(&s, done, true)
	SoftDelete(&s, deleted)

	if n := PurgeDeleted(&s); n != 1 {
		t.Errorf("PurgeDeleted = %d, want 1", n)
	}
	if n := PurgeCompleted(&s); n != 1 {
		t.Errorf("PurgeCompleted = %d, want 1", n)
	}

	if len(s.Tasks) != 1 || s.Tasks[0].ID != live {
		t.Errorf("remaining tasks = %+v, want only the live one", s.Tasks)
	}
}

func TestSetTagFallbacks(t *testing.T) {
	s := newSnap()
	id := Add(&s, "x", "work")

	tests := []struct {
		name string
		tag  string
		want string
	}{
		{"normal", "home", "home"},
		{"blank", "", snapshot.TagDefault},
		{"the all pseudo-tag", snapshot.TagAll, snapshot.TagDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetTag(&s, id, tt.tag)
			task, _ := Find(&s, id)
			if task.Tag != tt.want {
				t.Errorf("Tag = %q, want %q", task.Tag, tt.want)
			}
		})
	}
}

func TestSetTagRefusesTombstonedTag(t *testing.T) {
	s := newSnap()
	Add(&s, "keep tag alive", "doomed")
	if _, err := DeleteTag(&s, "doomed"); err != nil {
		t.Fatal(err)
	}

	id := Add(&s, "x", "")
	SetTag(&s, id, "doomed")
	task, _ := Find(&s, id)
	if task.Tag != snapshot.TagDefault {
		t.Errorf("Tag = %q, want fallback to default for tombstoned tag", task.Tag)
	}
}

func TestDeleteTagMigratesTasks(t *testing.T) {
	s := newSnap()
	a := Add(&s, "a", "work")
	b := Add(&s, "b", "work")
	Add(&s, "c", "home")

	moved, err := DeleteTag(&s, "work")
	if err != nil {
		t.Fatalf("DeleteTag() error = %v", err)
	}
	if moved != 2 {
		t.Errorf("moved = %d, want 2", moved)
	}

	for _, id := range []string{a, b} {
		task, _ := Find(&s, id)
		if task.Tag != snapshot.TagDefault {
			t.Errorf("task %s tag = %q, want default", id, task.Tag)
		}
	}
	for _, g := range s.Tags {
		if g.Name == "work" && !g.Deleted {
			t.Error("deleted tag not tombstoned")
		}
	}
}

func TestReservedTagGuards(t *testing.T) {
	s := newSnap()

	if _, err := DeleteTag(&s, snapshot.TagDefault); err == nil {
		t.Error("DeleteTag(default) succeeded")
	}
	if _, err := DeleteTag(&s, snapshot.TagAll); err == nil {
		t.Error("DeleteTag(all) succeeded")
	}
	if err := RenameTag(&s, snapshot.TagDefault, "other"); err == nil {
		t.Error("RenameTag from reserved succeeded")
	}
	if err := RenameTag(&s, "other", snapshot.TagAll); err == nil {
		t.Error("RenameTag onto reserved succeeded")
	}
}

func TestRenameTagMigratesTasks(t *testing.T) {
	s := newSnap()
	id := Add(&s, "x", "work")

	if err := RenameTag(&s, "work", "office"); err != nil {
		t.Fatalf("RenameTag() error = %v", err)
	}
	task, _ := Find(&s, id)
	if task.Tag != "office" {
		t.Errorf("task tag = %q, want %q", task.Tag, "office")
	}

	if err := RenameTag(&s, "missing", "x"); err == nil {
		t.Error("rename of missing tag succeeded")
	}
}

func TestRenameTagRefusesCollision(t *testing.T) {
	s := newSnap()
	Add(&s, "a", "work")
	Add(&s, "b", "home")

	if err := RenameTag(&s, "work", "home"); err == nil {
		t.Error("rename onto an existing tag succeeded")
	}
}

func TestVisibleFilters(t *testing.T) {
	s := newSnap()
	Add(&s, "work task", "work")
	Add(&s, "home task", "home")
	done := Add(&s, "finished", "work")
	SetDone(&s, done, true)

	if got := len(Visible(&s, "work", false)); got != 1 {
		t.Errorf("visible work tasks = %d, want 1", got)
	}
	if got := len(Visible(&s, "work", true)); got != 2 {
		t.Errorf("visible work tasks incl done = %d, want 2", got)
	}
	if got := len(Visible(&s, snapshot.TagAll, false)); got != 2 {
		t.Errorf("visible all = %d, want 2", got)
	}
}

func TestVisiblePinnedFirst(t *testing.T) {
	s := newSnap()
	Add(&s, "plain", "")
	pinned := Add(&s, "pinned", "")
	Add(&s, "newer plain", "")
	TogglePin(&s, pinned)

	vis := Visible(&s, snapshot.TagAll, false)
	if len(vis) != 3 || vis[0].ID != pinned {
		t.Errorf("pinned task not first: %+v", vis)
	}
}

func TestReorder(t *testing.T) {
	s := newSnap()
	a := Add(&s, "a", "")
	b := Add(&s, "b", "")
	c := Add(&s, "c", "")
	// Visible order is newest first: c, b, a.

	if err := Reorder(&s, a, c); err != nil {
		t.Fatalf("Reorder() error = %v", err)
	}

	vis := Visible(&s, snapshot.TagAll, false)
	got := []string{vis[0].ID, vis[1].ID, vis[2].ID}
	want := []string{a, c, b}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order after reorder = %v, want %v", got, want)
		}
	}
}

func TestReorderAcrossPinnedBoundary(t *testing.T) {
	s := newSnap()
	a := Add(&s, "a", "")
	b := Add(&s, "b", "")
	TogglePin(&s, b)

	if err := Reorder(&s, a, b); err == nil {
		t.Error("reorder across pinned boundary succeeded")
	}
}

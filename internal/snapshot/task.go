// Package snapshot defines the task-list data model and the local snapshot
// document exchanged with the sync server.
//
// A snapshot is the full (tasks, tags, settings) tuple serialized as one JSON
// document. Records carry per-record timestamps (Unix seconds as float64, the
// document's wire format) so that two snapshots can be reconciled with
// last-write-wins semantics.
package snapshot

import (
	"time"

	"github.com/google/uuid"
)

// Task is a single task record. Fields are flat and timestamped so that
// whole-record last-write-wins merging works across devices.
type Task struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Tag      string `json:"tag"`
	Done     bool   `json:"done"`
	Pinned   bool   `json:"pinned"`
	Note     string `json:"note"`

	CreatedAt   float64  `json:"created_at"`
	UpdatedAt   float64  `json:"updated_at"`
	CompletedAt *float64 `json:"completed_at"`

	// Order defines display rank within the pinned/unpinned group.
	Order float64 `json:"order"`

	// Deleted is a tombstone: soft-deleted tasks stay in the document so
	// deletion propagates through merge instead of being lost by omission.
	Deleted bool `json:"deleted"`
}

// Now returns the current time in the document's timestamp format.
func Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// NewID returns a fresh globally-unique record id.
func NewID() string {
	return uuid.NewString()
}

// NewTask creates a task with identity, timestamps and order initialized.
func NewTask(text, tag string) Task {
	now := Now()
	if tag == "" {
		tag = TagDefault
	}
	return Task{
		ID:        NewID(),
		Text:      text,
		Tag:       tag,
		CreatedAt: now,
		UpdatedAt: now,
		Order:     now,
	}
}

// Touch updates UpdatedAt and keeps the completed_at invariant:
// CompletedAt is non-nil exactly when Done is true.
func (t *Task) Touch() {
	t.UpdatedAt = Now()
	if t.Done {
		completed := t.UpdatedAt
		t.CompletedAt = &completed
	} else {
		t.CompletedAt = nil
	}
}

// Normalize repairs a task decoded from an untrusted document: missing ids
// and timestamps are filled in and the completed_at invariant is enforced.
func (t *Task) Normalize() {
	if t.ID == "" {
		t.ID = NewID()
	}
	if t.Tag == "" {
		t.Tag = TagDefault
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = Now()
	}
	if t.UpdatedAt == 0 {
		t.UpdatedAt = t.CreatedAt
	}
	if t.Done && t.CompletedAt == nil {
		completed := t.UpdatedAt
		t.CompletedAt = &completed
	}
	if !t.Done {
		t.CompletedAt = nil
	}
}

// Clone returns a deep copy. Merges hand out cloned records so no caller
// holds a reference into another snapshot.
func (t Task) Clone() Task {
	c := t
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		c.CompletedAt = &completed
	}
	return c
}

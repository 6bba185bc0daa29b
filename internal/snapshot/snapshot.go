package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Version is the snapshot document schema version.
const Version = 8

// Snapshot is the full (tasks, tags, settings) tuple: the unit of load, save
// and remote exchange. There is no partial or delta wire format.
type Snapshot struct {
	Version  int      `json:"version"`
	Settings Settings `json:"settings"`
	Tags     []Tag    `json:"tags"`
	Tasks    []Task   `json:"tasks"`
}

// New returns an empty normalized snapshot.
func New() Snapshot {
	return Snapshot{
		Version:  Version,
		Settings: DefaultSettings(),
		Tags:     EnsureReservedTags(nil),
	}
}

// seed returns the first-run snapshot written when no local file exists.
func seed() Snapshot {
	s := New()
	s.Tasks = []Task{NewTask("Welcome to lytodo", TagDefault)}
	return s
}

// Clone returns a deep copy of the snapshot. Each sync cycle works on its
// own copy so local edits and merges never share mutable state.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Tags = make([]Tag, len(s.Tags))
	copy(c.Tags, s.Tags)
	c.Tasks = make([]Task, len(s.Tasks))
	for i, t := range s.Tasks {
		c.Tasks[i] = t.Clone()
	}
	return c
}

// Normalize repairs a snapshot decoded from an untrusted document:
// records are normalized, tags are deduplicated by name, reserved tags are
// guaranteed, missing task orders are injected preserving list order, and
// every task tag is backed by a tag row.
func (s *Snapshot) Normalize() {
	s.Version = Version

	for i := range s.Tasks {
		s.Tasks[i].Normalize()
	}

	seen := make(map[string]bool)
	tags := s.Tags[:0]
	for _, g := range s.Tags {
		g.Normalize()
		if seen[g.Name] {
			continue
		}
		seen[g.Name] = true
		tags = append(tags, g)
	}
	s.Tags = EnsureReservedTags(tags)

	// Inject orders for tasks that never had one, keeping their current
	// position by stepping down from the max.
	maxOrder := Now()
	for _, t := range s.Tasks {
		if t.Order > maxOrder {
			maxOrder = t.Order
		}
	}
	const step = 0.001
	for i := range s.Tasks {
		if s.Tasks[i].Order == 0 {
			s.Tasks[i].Order = maxOrder - float64(i)*step
		}
	}

	// Any task pointing at a tag with no live row gets one.
	live := make(map[string]bool)
	for _, g := range s.Tags {
		if !g.Deleted {
			live[g.Name] = true
		}
	}
	for _, t := range s.Tasks {
		name := strings.TrimSpace(t.Tag)
		if name == "" || live[name] {
			continue
		}
		s.Tags = append(s.Tags, NewTag(name))
		live[name] = true
	}
}

// Load reads the snapshot file at path. A missing file seeds a fresh default
// snapshot and writes it back, so first launch always yields a usable
// snapshot.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Snapshot{}, fmt.Errorf("failed to read snapshot file %s: %w", path, err)
		}
		s := seed()
		if err := Save(path, s); err != nil {
			return Snapshot{}, err
		}
		return s, nil
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse snapshot file %s: %w", path, err)
	}
	s.Normalize()
	return s, nil
}

// Save writes the snapshot atomically: marshal, write to a temp file in the
// same directory, then rename into place. A concurrent reader sees either
// the old or the new document, never a partial write.
func Save(path string, s Snapshot) error {
	s.Version = Version

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}

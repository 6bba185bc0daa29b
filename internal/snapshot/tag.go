package snapshot

import "strings"

// Reserved tag names. Both always exist in a normalized snapshot and are
// never deleted: TagAll is the pseudo-tag matching every task, TagDefault is
// the fallback tag for tasks whose own tag goes away.
const (
	TagAll     = "all"
	TagDefault = "default"
)

// Tag is a task category. Tags are merged by name, not id, so renaming a tag
// on one device creates a new tag rather than racing the old one.
type Tag struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Color     string  `json:"color"`
	UpdatedAt float64 `json:"updated_at"`
	Deleted   bool    `json:"deleted"`
}

// NewTag creates a tag with identity and timestamp initialized.
func NewTag(name string) Tag {
	return Tag{
		ID:        NewID(),
		Name:      name,
		UpdatedAt: Now(),
	}
}

// Normalize trims the name (blank collapses to the default tag) and fills in
// missing identity and timestamp.
func (g *Tag) Normalize() {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		g.Name = TagDefault
	}
	if g.ID == "" {
		g.ID = NewID()
	}
	if g.UpdatedAt == 0 {
		g.UpdatedAt = Now()
	}
}

// Reserved reports whether name is one of the two tags that must always
// exist and may never be renamed or deleted.
func Reserved(name string) bool {
	return name == TagAll || name == TagDefault
}

// EnsureReservedTags guarantees both reserved tags are present exactly once
// and not tombstoned: TagAll first, TagDefault appended if missing.
func EnsureReservedTags(tags []Tag) []Tag {
	hasAll, hasDefault := false, false
	for i, g := range tags {
		switch g.Name {
		case TagAll:
			hasAll = true
			tags[i].Deleted = false
		case TagDefault:
			hasDefault = true
			tags[i].Deleted = false
		}
	}
	if !hasAll {
		tags = append([]Tag{NewTag(TagAll)}, tags...)
	}
	if !hasDefault {
		tags = append(tags, NewTag(TagDefault))
	}
	return tags
}

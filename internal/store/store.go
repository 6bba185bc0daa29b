// Package store provides durable, atomic storage of one JSON document per
// user key, with a content hash exposed as a cache validator.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when no document is stored for the user.
	ErrNotFound = errors.New("document not found")

	// ErrUnchanged is returned by GetIfChanged when the stored document
	// still matches the caller's known validator.
	ErrUnchanged = errors.New("document unchanged")

	// ErrInvalidJSON is returned by Put when the body is not valid JSON.
	ErrInvalidJSON = errors.New("body is not valid JSON")
)

// DefaultKey is the storage key used when sanitization strips every
// character from a user identifier.
const DefaultKey = "default"

// Store persists one JSON document per user key under a data directory.
type Store struct {
	dir string
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the data directory this store writes to.
func (s *Store) Dir() string {
	return s.dir
}

// sanitizeKey restricts a user identifier to [A-Za-z0-9_-] before it is used
// as a storage key. Anything else is stripped; an empty result falls back to
// DefaultKey. This is what keeps request input out of the filesystem path.
func sanitizeKey(user string) string {
	var b strings.Builder
	for _, ch := range user {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '-', ch == '_':
			b.WriteRune(ch)
		}
	}
	if b.Len() == 0 {
		return DefaultKey
	}
	return b.String()
}

func (s *Store) path(user string) string {
	return filepath.Join(s.dir, sanitizeKey(user)+".json")
}

// ETag returns the content hash used as the cache validator for a body.
func ETag(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Get returns the stored document and its validator, or ErrNotFound.
func (s *Store) Get(user string) ([]byte, string, error) {
	data, err := os.ReadFile(s.path(user))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to read document: %w", err)
	}
	return data, ETag(data), nil
}

// GetIfChanged returns the document only when its validator differs from
// knownETag; otherwise it returns ErrUnchanged without transferring the body.
func (s *Store) GetIfChanged(user, knownETag string) ([]byte, string, error) {
	data, etag, err := s.Get(user)
	if err != nil {
		return nil, "", err
	}
	if knownETag != "" && knownETag == etag {
		return nil, etag, ErrUnchanged
	}
	return data, etag, nil
}

// Put stores body as the user's document and returns the new validator.
//
// The body is canonicalized (two-space indent) before hashing so equal
// documents always produce equal validators. The write is atomic: temp file
// in the data directory, then a single rename into place, so a concurrent
// reader never observes a partially written document.
func (s *Store) Put(user string, body []byte) (string, error) {
	canonical, err := canonicalize(body)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, "doc-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(canonical); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path(user)); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to replace document: %w", err)
	}
	return ETag(canonical), nil
}

// canonicalize reformats a JSON body with stable indentation.
func canonicalize(body []byte) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize document: %w", err)
	}
	return out, nil
}

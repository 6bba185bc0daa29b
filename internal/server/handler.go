package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/lytodo/lytodo/internal/store"
)

// maxBodySize bounds uploaded documents. Snapshots are small; anything this
// large is a broken client.
const maxBodySize = 16 << 20

// authMiddleware rejects requests whose X-Token does not match the
// configured shared token. Runs before any store access. Health stays open.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.URL.Path != "/health" {
			got := r.Header.Get("X-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// handleGetStorage serves the user's document.
//
// Responses: 200 with body and ETag; 304 when If-None-Match matches; a
// synthetic empty document with ETag "0" when nothing is stored yet.
func (s *Server) handleGetStorage(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")

	data, etag, err := s.store.Get(user)
	if errors.Is(err, store.ErrNotFound) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", `"0"`)
		_ = json.NewEncoder(w).Encode(map[string]any{"version": 0, "payload": nil})
		return
	}
	if err != nil {
		s.logger.Printf("GET /storage user=%q: %v", user, err)
		writeJSONError(w, http.StatusInternalServerError, "storage read failed")
		return
	}

	if match := strings.Trim(r.Header.Get("If-None-Match"), `"`); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", `"`+etag+`"`)
	_, _ = w.Write(data)
}

// handlePostStorage replaces the user's document wholesale.
func (s *Server) handlePostStorage(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	etag, err := s.store.Put(user, body)
	if errors.Is(err, store.ErrInvalidJSON) {
		writeJSONError(w, http.StatusBadRequest, "body is not valid JSON")
		return
	}
	if err != nil {
		s.logger.Printf("POST /storage user=%q: %v", user, err)
		writeJSONError(w, http.StatusInternalServerError, "storage write failed")
		return
	}

	s.logger.Printf("Stored document for user=%q etag=%s", user, etag[:8])

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "etag": etag})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": msg})
}

package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/lytodo/lytodo/internal/store"
)

func startTestServer(t *testing.T, token string) (*Server, string) {
	t.Helper()

	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	srv := New(st, &Config{
		Port:   0, // Use random available port
		Token:  token,
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })

	time.Sleep(50 * time.Millisecond)
	return srv, "http://" + srv.GetAddr()
}

func doRequest(t *testing.T, method, url, token string, body []byte, header http.Header) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("X-Token", token)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestGetEmptyStore(t *testing.T) {
	_, base := startTestServer(t, "")

	resp := doRequest(t, "GET", base+"/storage?user=alice", "", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("ETag"); got != `"0"` {
		t.Errorf("ETag = %s, want \"0\"", got)
	}

	var doc struct {
		Version int             `json:"version"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if doc.Version != 0 {
		t.Errorf("version = %d, want 0", doc.Version)
	}
	if string(doc.Payload) != "null" {
		t.Errorf("payload = %s, want null", doc.Payload)
	}
}

func TestPostThenGet(t *testing.T) {
	_, base := startTestServer(t, "")
	body := []byte(`{"version": 8, "tasks": [{"id": "a"}]}`)

	resp := doRequest(t, "POST", base+"/storage?user=alice", "", body, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST status = %d, want 200", resp.StatusCode)
	}
	var posted struct {
		OK   bool   `json:"ok"`
		ETag string `json:"etag"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&posted); err != nil {
		t.Fatal(err)
	}
	if !posted.OK || posted.ETag == "" {
		t.Fatalf("POST response = %+v, want ok with etag", posted)
	}

	get := doRequest(t, "GET", base+"/storage?user=alice", "", nil, nil)
	if get.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", get.StatusCode)
	}
	if got := get.Header.Get("ETag"); got != `"`+posted.ETag+`"` {
		t.Errorf("GET ETag = %s, want %q", got, posted.ETag)
	}
}

func TestConditionalGet(t *testing.T) {
	_, base := startTestServer(t, "")

	resp := doRequest(t, "POST", base+"/storage?user=alice", "", []byte(`{"n": 1}`), nil)
	var posted struct {
		ETag string `json:"etag"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&posted); err != nil {
		t.Fatal(err)
	}

	h := http.Header{}
	h.Set("If-None-Match", `"`+posted.ETag+`"`)
	cond := doRequest(t, "GET", base+"/storage?user=alice", "", nil, h)
	if cond.StatusCode != http.StatusNotModified {
		t.Fatalf("conditional GET status = %d, want 304", cond.StatusCode)
	}

	// After the document changes the same validator must miss.
	doRequest(t, "POST", base+"/storage?user=alice", "", []byte(`{"n": 2}`), nil)
	miss := doRequest(t, "GET", base+"/storage?user=alice", "", nil, h)
	if miss.StatusCode != http.StatusOK {
		t.Errorf("stale conditional GET status = %d, want 200", miss.StatusCode)
	}
}

func TestAuth(t *testing.T) {
	_, base := startTestServer(t, "secret")

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"wrong token", "nope", http.StatusUnauthorized},
		{"correct token", "secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, "GET", base+"/storage?user=alice", tt.token, nil, nil)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestHealthSkipsAuth(t *testing.T) {
	_, base := startTestServer(t, "secret")

	resp := doRequest(t, "GET", base+"/health", "", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200 without token", resp.StatusCode)
	}
}

func TestPostInvalidJSON(t *testing.T) {
	_, base := startTestServer(t, "")

	resp := doRequest(t, "POST", base+"/storage?user=alice", "", []byte("{broken"), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	// The bad upload must not have created a document.
	get := doRequest(t, "GET", base+"/storage?user=alice", "", nil, nil)
	if got := get.Header.Get("ETag"); got != `"0"` {
		t.Errorf("ETag after bad POST = %s, want \"0\"", got)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	_, base := startTestServer(t, "")

	doRequest(t, "POST", base+"/storage?user=alice", "", []byte(`{"who": "alice"}`), nil)

	resp := doRequest(t, "GET", base+"/storage?user=bob", "", nil, nil)
	if got := resp.Header.Get("ETag"); got != `"0"` {
		t.Errorf("bob's ETag = %s, want \"0\" (empty store)", got)
	}
}

func TestEqualDocumentsShareValidator(t *testing.T) {
	_, base := startTestServer(t, "")

	etags := make([]string, 2)
	for i, body := range []string{`{"a":1}`, "{\n  \"a\": 1\n}"} {
		resp := doRequest(t, "POST", fmt.Sprintf("%s/storage?user=u%d", base, i), "", []byte(body), nil)
		var posted struct {
			ETag string `json:"etag"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&posted); err != nil {
			t.Fatal(err)
		}
		etags[i] = posted.ETag
	}
	if etags[0] != etags[1] {
		t.Errorf("equal documents got different validators: %s vs %s", etags[0], etags[1])
	}
}

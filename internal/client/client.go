// Package client moves the local snapshot file to and from the storage
// server over HTTP.
//
// The client remembers the last validator (ETag) it saw and sends it as
// If-None-Match on pulls, so an unchanged remote document costs no transfer.
// It performs no retries; callers decide retry policy from the returned
// error.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Timeout bounds every pull or push so a sync cycle never hangs.
const Timeout = 15 * time.Second

// Client is a transport client for one (server, user) pair.
type Client struct {
	baseURL string
	token   string
	user    string
	etag    string
	httpc   *http.Client
}

// New creates a client. An empty user falls back to "default"; an empty
// baseURL yields a client that reports unavailable.
func New(baseURL, token, user string) *Client {
	if user == "" {
		user = "default"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		user:    user,
		httpc:   &http.Client{Timeout: Timeout},
	}
}

// Available reports whether a target address is configured. Used as a gate
// before any pull or push attempt.
func (c *Client) Available() bool {
	return c.baseURL != ""
}

// ETag returns the last validator seen from the server, "" if none.
func (c *Client) ETag() string {
	return c.etag
}

func (c *Client) storageURL() string {
	return c.baseURL + "/storage?" + url.Values{"user": {c.user}}.Encode()
}

// PullToFile fetches the remote document into path. It reports changed=false
// on a not-modified response and on the empty-store response (success, no
// local mutation). On a body change the existing file is first backed up
// (best effort), then overwritten. On any failure the local file is left
// untouched.
func (c *Client) PullToFile(ctx context.Context, path string) (changed bool, err error) {
	if !c.Available() {
		return false, fmt.Errorf("sync target not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.storageURL(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("X-Token", c.token)
	}
	if c.etag != "" {
		req.Header.Set("If-None-Match", `"`+c.etag+`"`)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, fmt.Errorf("pull failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return false, nil
	case http.StatusOK:
		// fall through
	default:
		return false, fmt.Errorf("pull failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}

	et := strings.Trim(resp.Header.Get("ETag"), `"`)
	if et == "0" {
		// Reserved validator for an empty store: nothing stored remotely
		// yet, so there is nothing to adopt. The local file stays as is.
		return false, nil
	}
	if et != "" {
		c.etag = et
	}

	backupFile(path)

	if err := os.WriteFile(path, body, 0644); err != nil {
		return false, fmt.Errorf("failed to write local file: %w", err)
	}
	return true, nil
}

// PushFromFile sends the local file as the new remote document. The file
// must exist and hold valid JSON; remote state is never mutated otherwise.
func (c *Client) PushFromFile(ctx context.Context, path string) error {
	if !c.Available() {
		return fmt.Errorf("sync target not configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read local file: %w", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("local file %s is not valid JSON", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.storageURL(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("X-Token", c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push failed: status %d", resp.StatusCode)
	}

	var result struct {
		OK   bool   `json:"ok"`
		ETag string `json:"etag"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.ETag != "" {
		c.etag = result.ETag
	}
	return nil
}

// backupFile copies path to a timestamped sibling before an overwrite.
// Failures are ignored: the backup exists for operator recovery, it must
// never block a pull.
func backupFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	ts := time.Now().Format("20060102_150405")
	_ = os.WriteFile(path+".bak_"+ts, data, 0644)
}

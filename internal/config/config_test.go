package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Storage == "" {
		t.Error("Storage path is empty")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Dashboard.Port != 8090 {
		t.Errorf("Dashboard.Port = %d, want 8090", cfg.Dashboard.Port)
	}
	if cfg.Server.DataDir == "" {
		t.Error("Server.DataDir is empty")
	}
}

func TestLoadExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `storage: /tmp/elsewhere.json
log_file: /tmp/lytodo.log
server:
  port: 9999
  token: secret
dashboard:
  enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage != "/tmp/elsewhere.json" {
		t.Errorf("Storage = %q", cfg.Storage)
	}
	if cfg.Server.Port != 9999 || cfg.Server.Token != "secret" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if !cfg.Dashboard.Enabled {
		t.Error("Dashboard.Enabled = false")
	}
	// Values absent from the file keep their defaults.
	if cfg.Dashboard.Port != 8090 {
		t.Errorf("Dashboard.Port = %d, want default 8090", cfg.Dashboard.Port)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() error = nil for missing explicit config")
	}
}

func TestLoadNoFiles(t *testing.T) {
	// With no explicit path the defaults come back even when no config
	// exists anywhere.
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default", cfg.Server.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LYTODO_SERVER_TOKEN", "s3cret")
	t.Setenv("LYTODO_SERVER_PORT", "7070")
	t.Setenv("LYTODO_STORAGE", "/tmp/env-storage.json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Token != "s3cret" {
		t.Errorf("Server.Token = %q, want %q", cfg.Server.Token, "s3cret")
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Storage != "/tmp/env-storage.json" {
		t.Errorf("Storage = %q, want %q", cfg.Storage, "/tmp/env-storage.json")
	}
	// Untouched keys keep their defaults.
	if cfg.Dashboard.Port != 8090 {
		t.Errorf("Dashboard.Port = %d, want default 8090", cfg.Dashboard.Port)
	}
}

func TestEnvOverriddenByExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LYTODO_SERVER_PORT", "7070")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9999\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	// Environment wins over config files, viper's usual precedence.
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
}

func TestNewLoggerStderr(t *testing.T) {
	cfg := &Config{}
	logger := cfg.NewLogger("[test] ")
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}
	logger.Println("stderr logger works")
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lytodo.log")
	cfg := &Config{LogFile: path}

	logger := cfg.NewLogger("[test] ")
	logger.Println("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if len(data) == 0 {
		t.Error("log file is empty")
	}
}

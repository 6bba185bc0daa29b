// Package config loads CLI and server configuration.
//
// Sync connection settings (server URL, token, user) live inside the
// snapshot document itself, because they are merged across devices. This
// package covers only the process-local rest: file locations, server
// binding, logging.
package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is process-local configuration.
type Config struct {
	// Storage is the local snapshot file path.
	Storage string `mapstructure:"storage"`

	// LogFile, when set, routes logs to a rotating file instead of stderr.
	LogFile string `mapstructure:"log_file"`

	Server    ServerConfig    `mapstructure:"server"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// ServerConfig configures the storage server (`lytodo serve`).
type ServerConfig struct {
	Port    int    `mapstructure:"port"`
	Token   string `mapstructure:"token"`
	DataDir string `mapstructure:"data_dir"`
}

// DashboardConfig configures the sync status WebSocket server.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DefaultConfig returns defaults rooted under ~/.lytodo.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".lytodo")
	return &Config{
		Storage: filepath.Join(base, "storage.json"),
		Server: ServerConfig{
			Port:    8080,
			DataDir: filepath.Join(base, "data"),
		},
		Dashboard: DashboardConfig{
			Port: 8090,
		},
	}
}

// Load reads configuration: defaults, then ~/.lytodo/config.yaml if present,
// then path if given, then LYTODO_* environment variables.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LYTODO")
	// AutomaticEnv only resolves keys viper already knows, so every key is
	// registered with its default; the replacer maps LYTODO_SERVER_TOKEN to
	// the nested server.token.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.token", cfg.Server.Token)
	v.SetDefault("server.data_dir", cfg.Server.DataDir)
	v.SetDefault("dashboard.enabled", cfg.Dashboard.Enabled)
	v.SetDefault("dashboard.port", cfg.Dashboard.Port)
	v.AutomaticEnv()

	if home, err := os.UserHomeDir(); err == nil {
		global := filepath.Join(home, ".lytodo", "config.yaml")
		if _, err := os.Stat(global); err == nil {
			v.SetConfigFile(global)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", global, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// NewLogger builds a logger with the given prefix. With a log file
// configured the writer rotates at 10 MB keeping 3 backups; otherwise it
// writes to stderr.
func (c *Config) NewLogger(prefix string) *log.Logger {
	var w io.Writer = os.Stderr
	if c.LogFile != "" {
		w = &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		}
	}
	return log.New(w, prefix, log.LstdFlags)
}

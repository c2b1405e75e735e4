// Package config loads etgraph settings: built-in defaults, overridden by a
// YAML file, overridden by environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv and ResolvePath.
const (
	EnvConfig        = "ETGRAPH_CONFIG"
	EnvBackend       = "ETGRAPH_BACKEND"
	EnvLegacyBackend = "JASECI_ETG_BACKEND"
	EnvDataDir       = "ETGRAPH_DATA_DIR"
)

// Config holds every tunable setting.
type Config struct {
	DataDir           string        `yaml:"data_dir"`
	Backend           string        `yaml:"backend"`
	ExcludeDirs       []string      `yaml:"exclude_dirs"`
	StrictIndex       bool          `yaml:"strict_index"`
	HashWorkers       int           `yaml:"hash_workers"`
	LockTimeout       time.Duration `yaml:"lock_timeout"`
	OperationTimeout  time.Duration `yaml:"operation_timeout"`
	DefaultQueryLimit int           `yaml:"default_query_limit"`
	DefaultRadius     int           `yaml:"default_radius"`
	MetricsAddr       string        `yaml:"metrics_addr"`
	LogLevel          string        `yaml:"log_level"`
	WatchDebounce     time.Duration `yaml:"watch_debounce"`
}

// Default returns the built-in settings. DataDir is the location earlier
// versions wrote project documents to.
func Default() *Config {
	return &Config{
		DataDir:           filepath.Join("~", ".qwen", "graphs"),
		Backend:           "auto",
		ExcludeDirs:       []string{".git", "node_modules", "dist", "__pycache__", ".qwen"},
		HashWorkers:       8,
		LockTimeout:       10 * time.Second,
		OperationTimeout:  2 * time.Minute,
		DefaultQueryLimit: 5,
		DefaultRadius:     1,
		LogLevel:          "info",
		WatchDebounce:     250 * time.Millisecond,
	}
}

// ResolvePath picks the config file: explicit path, else $ETGRAPH_CONFIG,
// else ~/.etgraph/config.yaml.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".etgraph", "config.yaml")
}

// Load reads configuration from path, falling back to defaults when the
// file does not exist, then applies environment overrides and expands ~ in
// DataDir. An empty path goes through ResolvePath.
func Load(path string) (*Config, error) {
	cfg := Default()

	path = ResolvePath(path)
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			var fileCfg Config
			if err := yaml.Unmarshal(data, &fileCfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
			cfg.Merge(&fileCfg)
			var explicit explicitFields
			if err := yaml.Unmarshal(data, &explicit); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
			explicit.apply(cfg)
		case errors.Is(err, os.ErrNotExist):
			// No config file, use defaults
		default:
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.Getenv)
	dataDir, err := ExpandHome(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dataDir
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge copies every field set in other over c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}
	if other.Backend != "" {
		c.Backend = other.Backend
	}
	if len(other.ExcludeDirs) > 0 {
		c.ExcludeDirs = other.ExcludeDirs
	}
	if other.StrictIndex {
		c.StrictIndex = true
	}
	if other.HashWorkers > 0 {
		c.HashWorkers = other.HashWorkers
	}
	if other.LockTimeout > 0 {
		c.LockTimeout = other.LockTimeout
	}
	if other.OperationTimeout > 0 {
		c.OperationTimeout = other.OperationTimeout
	}
	if other.DefaultQueryLimit > 0 {
		c.DefaultQueryLimit = other.DefaultQueryLimit
	}
	if other.DefaultRadius > 0 {
		c.DefaultRadius = other.DefaultRadius
	}
	if other.MetricsAddr != "" {
		c.MetricsAddr = other.MetricsAddr
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.WatchDebounce > 0 {
		c.WatchDebounce = other.WatchDebounce
	}
}

// explicitFields holds settings whose zero value is meaningful. Merge skips
// zero values, so these are applied whenever the file names them.
type explicitFields struct {
	DefaultRadius *int `yaml:"default_radius"`
}

func (e explicitFields) apply(c *Config) {
	if e.DefaultRadius != nil {
		c.DefaultRadius = *e.DefaultRadius
	}
}

// ApplyEnv overrides fields from the environment. ETGRAPH_BACKEND wins over
// the older JASECI_ETG_BACKEND.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvLegacyBackend); v != "" {
		c.Backend = v
	}
	if v := getenv(EnvBackend); v != "" {
		c.Backend = v
	}
	if v := getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if c.DefaultRadius < 0 {
		return fmt.Errorf("default_radius must not be negative, got %d", c.DefaultRadius)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// --- Logging ---

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
	}
}

// NewLogger returns a text logger writing to w at the configured level.
// Callers pass stderr: stdout carries the MCP transport.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.LogLevel)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

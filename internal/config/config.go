// Package config loads the engine configuration from a YAML file,
// falling back to defaults when no file exists.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the YAML file looked up under the data directory.
const ConfigFileName = "config.yaml"

// Config holds the engine settings.
type Config struct {
	// DataDir holds the SQLite database, migration runs, and reports.
	DataDir string `yaml:"data_dir"`
	// RebuildWarnMS bounds how long a reader may wait on a projection
	// rebuild before the wait is logged as a warning.
	RebuildWarnMS int `yaml:"rebuild_warn_ms"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:       filepath.Join(home, ".decgraph"),
		RebuildWarnMS: 500,
		LogLevel:      "info",
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Default().DataDir, ConfigFileName)
}

// Load reads the configuration from path, or from DefaultPath when path
// is empty. A missing file yields the defaults; a malformed one is an
// error.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = Default().DataDir
	}
	if cfg.RebuildWarnMS <= 0 {
		cfg.RebuildWarnMS = Default().RebuildWarnMS
	}
	return cfg, nil
}

// WarnAfter converts the rebuild wait threshold to a duration.
func (c Config) WarnAfter() time.Duration {
	return time.Duration(c.RebuildWarnMS) * time.Millisecond
}

// SlogLevel maps the configured level name onto slog.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), ConfigFileName))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.DataDir != def.DataDir || cfg.RebuildWarnMS != def.RebuildWarnMS || cfg.LogLevel != def.LogLevel {
		t.Errorf("cfg = %+v, want defaults %+v", cfg, def)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	content := "data_dir: /var/lib/decgraph\nrebuild_warn_ms: 250\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/var/lib/decgraph" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.WarnAfter() != 250*time.Millisecond {
		t.Errorf("WarnAfter = %v, want 250ms", cfg.WarnAfter())
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel = %v, want debug", cfg.SlogLevel())
	}
}

func TestLoad_PartialFileBackfillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte("log_level: warn\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.DataDir != Default().DataDir {
		t.Errorf("DataDir = %q, want default", cfg.DataDir)
	}
	if cfg.RebuildWarnMS != Default().RebuildWarnMS {
		t.Errorf("RebuildWarnMS = %d, want default", cfg.RebuildWarnMS)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte("data_dir: [not: valid"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed YAML should be an error")
	}
}

func TestSlogLevel_UnknownFallsBackToInfo(t *testing.T) {
	cfg := Config{LogLevel: "verbose"}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("unknown level = %v, want info", cfg.SlogLevel())
	}
}

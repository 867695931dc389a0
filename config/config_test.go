package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "log_level: debug\nconnection:\n  ping_interval_seconds: 5\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Connection.PingIntervalSeconds != 5 {
		t.Errorf("PingIntervalSeconds = %d, want 5", cfg.Connection.PingIntervalSeconds)
	}
	if cfg.CredentialDatabase != Default().CredentialDatabase {
		t.Errorf("CredentialDatabase = %q, want default preserved", cfg.CredentialDatabase)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

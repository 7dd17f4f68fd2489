package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "coach.db" || cfg.WindowDays != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("COACH_DB", "/tmp/other.db")
	t.Setenv("COACH_REFINE_API_KEY", "sk-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/other.db" {
		t.Fatalf("env db path not applied: %s", cfg.DBPath)
	}
	if cfg.Refine.APIKey != "sk-test" {
		t.Fatalf("env api key not applied: %s", cfg.Refine.APIKey)
	}
}

func TestFileOverlayWins(t *testing.T) {
	t.Setenv("COACH_DB", "/tmp/env.db")

	path := filepath.Join(t.TempDir(), "coach.yaml")
	body := "db_path: /tmp/file.db\nwindow_days: 7\nrefine:\n  model: gpt-4o\n  timeout_seconds: 10\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/file.db" {
		t.Fatalf("file should override env, got %s", cfg.DBPath)
	}
	if cfg.WindowDays != 7 || cfg.Refine.Model != "gpt-4o" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Refine.Timeout().Seconds() != 10 {
		t.Fatalf("timeout not converted: %v", cfg.Refine.Timeout())
	}
}

func TestMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing config file should error")
	}
}

func TestInvalidWindowFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coach.yaml")
	if err := os.WriteFile(path, []byte("window_days: -3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WindowDays != 5 {
		t.Fatalf("invalid window should fall back to default, got %d", cfg.WindowDays)
	}
}

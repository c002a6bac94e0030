package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Engine.MaxConcurrentRuns != 10 {
		t.Errorf("Engine.MaxConcurrentRuns = %d, want 10", cfg.Engine.MaxConcurrentRuns)
	}
	if cfg.Export.Dir != "exports" {
		t.Errorf("Export.Dir = %q, want exports", cfg.Export.Dir)
	}
	if cfg.Database.URL != "" {
		t.Errorf("Database.URL = %q, want empty (memory-only)", cfg.Database.URL)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
database:
  url: postgres://localhost/flowd_test
engine:
  max_concurrent_runs: 3
connectors:
  default:
    type: openai
    url: https://api.example.com/v1
    api_key: test-key
export:
  dir: /tmp/docs
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	// Unset fields keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want default", cfg.Server.Host)
	}
	if cfg.Database.URL != "postgres://localhost/flowd_test" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Engine.MaxConcurrentRuns != 3 {
		t.Errorf("Engine.MaxConcurrentRuns = %d, want 3", cfg.Engine.MaxConcurrentRuns)
	}
	conn, ok := cfg.Connectors["default"]
	if !ok {
		t.Fatal("connector \"default\" missing")
	}
	if conn.Type != "openai" || conn.APIKey != "test-key" {
		t.Errorf("connector = %+v", conn)
	}
	if cfg.Export.Dir != "/tmp/docs" {
		t.Errorf("Export.Dir = %q, want /tmp/docs", cfg.Export.Dir)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not: a: mapping"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
database:
  url: postgres://file/value
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DATABASE_URL", "postgres://env/value")
	t.Setenv("FLOWD_PORT", "7070")
	t.Setenv("FLOWD_EXPORT_DIR", "/var/flowd/exports")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.URL != "postgres://env/value" {
		t.Errorf("Database.URL = %q, env should override file", cfg.Database.URL)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, env should override file", cfg.Server.Port)
	}
	if cfg.Export.Dir != "/var/flowd/exports" {
		t.Errorf("Export.Dir = %q, env should override default", cfg.Export.Dir)
	}
}

func TestEnvOverrides_BadPortIgnored(t *testing.T) {
	t.Setenv("FLOWD_PORT", "not-a-number")

	cfg := defaults()
	cfg.applyEnv()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, unparseable env port should be ignored", cfg.Server.Port)
	}
}

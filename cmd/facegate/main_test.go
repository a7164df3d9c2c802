package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("FACEGATE_CONFIG")
	defer os.Setenv("FACEGATE_CONFIG", originalEnv)

	os.Setenv("FACEGATE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
database:
  path: ""
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: info
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 8080
  timeouts:
    read: 30
    write: 60
    idle: 120
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("FACEGATE_CONFIG")
	defer os.Setenv("FACEGATE_CONFIG", originalEnv)
	os.Setenv("FACEGATE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestGetConfigPath verifies env override and default behaviour.
func TestGetConfigPath(t *testing.T) {
	originalEnv := os.Getenv("FACEGATE_CONFIG")
	defer os.Setenv("FACEGATE_CONFIG", originalEnv)

	os.Setenv("FACEGATE_CONFIG", "/custom/config.yaml")
	if got := getConfigPath(); got != "/custom/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env override", got)
	}

	os.Unsetenv("FACEGATE_CONFIG")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

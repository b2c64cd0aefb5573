package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadServeConfigLogsTheLoad(t *testing.T) {
	// The loader reports which file it read. That message must land in the
	// log output, which means logging has to be live before the load runs.
	path := filepath.Join(t.TempDir(), "conduct.yaml")
	if err := os.WriteFile(path, []byte("log_level: warn\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	originalPath := serveConfigPath
	defer func() { serveConfigPath = originalPath }()
	serveConfigPath = path

	var buf bytes.Buffer
	cfg, err := loadServeConfig(serveCmd, &buf)
	if err != nil {
		t.Fatalf("loadServeConfig failed: %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %s, expected warn", cfg.LogLevel)
	}
	if !strings.Contains(buf.String(), "Loaded configuration from") {
		t.Errorf("load message missing from log output: %q", buf.String())
	}
}

func TestLoadServeConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conduct.yaml")
	if err := os.WriteFile(path, []byte("log_level: loud\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	originalPath := serveConfigPath
	defer func() { serveConfigPath = originalPath }()
	serveConfigPath = path

	var buf bytes.Buffer
	if _, err := loadServeConfig(serveCmd, &buf); err == nil {
		t.Error("expected an error for an invalid log level")
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
version: 1
server:
  host: 0.0.0.0
  extra: true
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadRejectsMissingVersion(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
`)

	_, err := Load(path)
	var verr *VersionError
	if e, ok := err.(*VersionError); ok {
		verr = e
	}
	if verr == nil {
		t.Fatalf("err = %v, want *VersionError", err)
	}
}

func TestLoadValidatesSessionsBackend(t *testing.T) {
	path := writeConfig(t, `
version: 1
sessions:
  backend: carrier-pigeon
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "sessions.backend") {
		t.Fatalf("expected sessions.backend error, got %v", err)
	}
}

func TestLoadRequiresSQLConnectionWhenBackendIsSQL(t *testing.T) {
	path := writeConfig(t, `
version: 1
sessions:
  backend: sql
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "sessions.sql") {
		t.Fatalf("expected sessions.sql error, got %v", err)
	}
}

func TestLoadValidatesConvoRatio(t *testing.T) {
	path := writeConfig(t, `
version: 1
convo:
  ratio: 1.5
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "convo.ratio") {
		t.Fatalf("expected convo.ratio error, got %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `version: 1`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sessions.Backend != "memory" {
		t.Fatalf("Sessions.Backend = %q, want memory", cfg.Sessions.Backend)
	}
	if cfg.Model.DefaultModel == "" {
		t.Fatalf("expected a default model name")
	}
	if cfg.Convo.Ratio != 0.5 {
		t.Fatalf("Convo.Ratio = %v, want 0.5", cfg.Convo.Ratio)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Fatalf("Retry.MaxAttempts = %d, want 5", cfg.Retry.MaxAttempts)
	}
	if cfg.Observability.Logging.Level != "info" {
		t.Fatalf("Observability.Logging.Level = %q, want info", cfg.Observability.Logging.Level)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_RUNTIME_MODEL", "custom-test-model")
	path := writeConfig(t, `
version: 1
model:
  default_model: ${TEST_RUNTIME_MODEL}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model.DefaultModel != "custom-test-model" {
		t.Fatalf("Model.DefaultModel = %q, want custom-test-model", cfg.Model.DefaultModel)
	}
}

func TestLoadAPIKeyEnvOverride(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-key")
	path := writeConfig(t, `version: 1`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model.APIKey != "sk-test-key" {
		t.Fatalf("Model.APIKey = %q, want sk-test-key", cfg.Model.APIKey)
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Projects) != 3 {
		t.Errorf("expected 3 projects, got %d", len(cfg.Projects))
	}

	if cfg.Extraction.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", cfg.Extraction.Provider)
	}

	if cfg.Transcription.Model != "whisper-1" {
		t.Errorf("expected model 'whisper-1', got %q", cfg.Transcription.Model)
	}

	if cfg.Storage.AudioBucket != "daily-audio" || cfg.Storage.PhotoBucket != "daily-photos" {
		t.Errorf("unexpected buckets %q, %q", cfg.Storage.AudioBucket, cfg.Storage.PhotoBucket)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
extraction:
  provider: ollama
  model: llama3.1:8b
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Extraction.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.Extraction.Provider)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Extraction.OllamaURL != "http://localhost:11434" {
		t.Errorf("expected default ollama_url, got %q", cfg.Extraction.OllamaURL)
	}
	if !cfg.Extraction.Enabled || cfg.Extraction.MaxTokens != 1024 {
		t.Errorf("expected extraction defaults, got %+v", cfg.Extraction)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected default driver 'sqlite', got %q", cfg.Database.Driver)
	}
}

func TestParseRejectsBadDriver(t *testing.T) {
	_, err := parse([]byte("database:\n  driver: mysql\n"))
	if err == nil || !strings.Contains(err.Error(), "database.driver") {
		t.Errorf("expected driver error, got %v", err)
	}
}

func TestParsePostgresNeedsDSN(t *testing.T) {
	if _, err := parse([]byte("database:\n  driver: postgres\n")); err == nil {
		t.Error("expected error for postgres without dsn")
	}
}

func TestParseHTTPStorageNeedsBaseURL(t *testing.T) {
	if _, err := parse([]byte("storage:\n  provider: http\n")); err == nil {
		t.Error("expected error for http storage without base_url")
	}
}

func TestHasProject(t *testing.T) {
	cfg, err := parse([]byte("projects: [' Route 9 Bridge ', Eastside School]\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.HasProject("Route 9 Bridge") {
		t.Error("expected trimmed project to match")
	}
	if cfg.HasProject("Harbor Point Tower") {
		t.Error("expected unknown project to be rejected")
	}

	open := &Config{}
	if !open.HasProject("anything") {
		t.Error("expected empty project list to accept any name")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Projects) == 0 {
		t.Error("expected projects to be populated from file")
	}
}

func TestResolveConfigPathExplicitMissing(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
	if cfg.DatabaseDSN() != filepath.Join("/custom/path", "dailyreport.db") {
		t.Errorf("unexpected sqlite path %q", cfg.DatabaseDSN())
	}
	if cfg.MediaDir() != filepath.Join("/custom/path", "media") {
		t.Errorf("unexpected media dir %q", cfg.MediaDir())
	}
}

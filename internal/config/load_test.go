package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPrecedence(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg"))

	userConfigPath, err := UserConfigPath()
	if err != nil {
		t.Fatalf("user config path: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(userConfigPath), 0o755); err != nil {
		t.Fatalf("mkdir user config dir: %v", err)
	}

	userConfig := `version: 1
server:
  url: "http://user.example:8710"
defaults:
  format: "flac"
  concurrency: 2
`
	if err := os.WriteFile(userConfigPath, []byte(userConfig), 0o644); err != nil {
		t.Fatalf("write user config: %v", err)
	}

	projectDir := filepath.Join(tmp, "project")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatalf("mkdir project dir: %v", err)
	}
	projectConfig := `version: 1
defaults:
  format: "opus"
`
	if err := os.WriteFile(filepath.Join(projectDir, "bdl.yaml"), []byte(projectConfig), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	cfg, err := Load(LoadOptions{
		WorkingDir: projectDir,
		Env: map[string]string{
			"BDL_CONCURRENCY": "5",
		},
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Defaults.Concurrency != 5 {
		t.Fatalf("expected env override concurrency=5, got %d", cfg.Defaults.Concurrency)
	}
	if cfg.Defaults.Format != "opus" {
		t.Fatalf("expected project format to win, got %q", cfg.Defaults.Format)
	}
	if cfg.Server.URL != "http://user.example:8710" {
		t.Fatalf("expected user server url to survive, got %q", cfg.Server.URL)
	}
	if cfg.Defaults.Quality != "best" {
		t.Fatalf("expected default quality, got %q", cfg.Defaults.Quality)
	}
}

func TestLoadExplicitPathMissing(t *testing.T) {
	_, err := Load(LoadOptions{
		ExplicitPath: filepath.Join(t.TempDir(), "nope.yaml"),
		WorkingDir:   t.TempDir(),
		Env:          map[string]string{},
	})
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadBadEnvValue(t *testing.T) {
	_, err := Load(LoadOptions{
		WorkingDir: t.TempDir(),
		Env: map[string]string{
			"BDL_STREAM_RETRIES": "many",
		},
	})
	if err == nil || !strings.Contains(err.Error(), "BDL_STREAM_RETRIES") {
		t.Fatalf("expected BDL_STREAM_RETRIES error, got %v", err)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bdl.yaml")
	if err := os.WriteFile(path, []byte("version: [broken"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Load(LoadOptions{
		ExplicitPath: path,
		WorkingDir:   dir,
		Env:          map[string]string{},
	})
	if err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestDefaultTemplateParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bdl.yaml")
	if err := os.WriteFile(path, []byte(DefaultTemplate()), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	cfg, err := Load(LoadOptions{
		ExplicitPath: path,
		WorkingDir:   dir,
		Env:          map[string]string{},
	})
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("template config should validate: %v", err)
	}
}

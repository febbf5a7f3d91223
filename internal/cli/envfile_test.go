package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnvFilesLoadsEnvAndLocalOverrides(t *testing.T) {
	tmp := t.TempDir()
	envPath := filepath.Join(tmp, ".env")
	localPath := filepath.Join(tmp, ".env.local")

	if err := os.WriteFile(envPath, []byte("BDL_SERVER_URL=http://127.0.0.1:8710\nBDL_CONCURRENCY=1\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	if err := os.WriteFile(localPath, []byte("BDL_SERVER_URL=http://127.0.0.1:9999\n"), 0o644); err != nil {
		t.Fatalf("write .env.local: %v", err)
	}

	values := map[string]string{}
	setenv := func(k, v string) error {
		values[k] = v
		return nil
	}

	if err := loadDotEnvFiles(tmp, nil, setenv); err != nil {
		t.Fatalf("load dotenv files: %v", err)
	}
	if values["BDL_SERVER_URL"] != "http://127.0.0.1:9999" {
		t.Fatalf("expected .env.local to override .env, got %q", values["BDL_SERVER_URL"])
	}
	if values["BDL_CONCURRENCY"] != "1" {
		t.Fatalf("expected BDL_CONCURRENCY from .env, got %q", values["BDL_CONCURRENCY"])
	}
}

func TestLoadDotEnvFilesDoesNotOverrideProcessEnv(t *testing.T) {
	tmp := t.TempDir()
	envPath := filepath.Join(tmp, ".env")
	if err := os.WriteFile(envPath, []byte("BDL_SERVER_URL=http://from-file\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	values := map[string]string{}
	setenv := func(k, v string) error {
		values[k] = v
		return nil
	}

	if err := loadDotEnvFiles(tmp, []string{"BDL_SERVER_URL=http://already-set"}, setenv); err != nil {
		t.Fatalf("load dotenv files: %v", err)
	}
	if _, exists := values["BDL_SERVER_URL"]; exists {
		t.Fatalf("expected existing process env to be protected")
	}
}

func TestParseDotEnvLineSupportsExportAndQuotedValues(t *testing.T) {
	key, value, ok, err := parseDotEnvLine("export BDL_OUTPUT_DIR=\"/Users/test/Music\"")
	if err != nil {
		t.Fatalf("parse line: %v", err)
	}
	if !ok || key != "BDL_OUTPUT_DIR" || value != "/Users/test/Music" {
		t.Fatalf("unexpected parse result: ok=%v key=%q value=%q", ok, key, value)
	}

	key, value, ok, err = parseDotEnvLine("BDL_FORMAT='flac'")
	if err != nil {
		t.Fatalf("parse single-quoted line: %v", err)
	}
	if !ok || key != "BDL_FORMAT" || value != "flac" {
		t.Fatalf("unexpected single-quoted parse result: ok=%v key=%q value=%q", ok, key, value)
	}
}

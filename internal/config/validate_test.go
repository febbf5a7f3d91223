package config

import (
	"strings"
	"testing"
)

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Version = 2
	cfg.Server.URL = "ftp://example.com"
	cfg.Defaults.Concurrency = 0
	cfg.History.Limit = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}

	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	for _, want := range []string{
		"version must be 1",
		"scheme must be http or https",
		"defaults.concurrency must be > 0",
		"history.limit must be > 0",
	} {
		if !strings.Contains(ve.Error(), want) {
			t.Fatalf("expected problem %q in %v", want, ve)
		}
	}
}

func TestValidateEmptyServerURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.URL = "  "

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "server.url must be set") {
		t.Fatalf("expected server.url problem, got %v", err)
	}
}

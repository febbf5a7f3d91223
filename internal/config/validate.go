package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid config"
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Problems, "; "))
}

func Validate(cfg Config) error {
	problems := []string{}

	if cfg.Version != 1 {
		problems = append(problems, "version must be 1")
	}

	if strings.TrimSpace(cfg.Server.URL) == "" {
		problems = append(problems, "server.url must be set")
	} else if err := validateURL(cfg.Server.URL); err != nil {
		problems = append(problems, fmt.Sprintf("server.url is invalid: %v", err))
	}

	if strings.TrimSpace(cfg.Defaults.Format) == "" {
		problems = append(problems, "defaults.format must be set")
	}
	if strings.TrimSpace(cfg.Defaults.Quality) == "" {
		problems = append(problems, "defaults.quality must be set")
	}

	outputDir, err := ExpandPath(cfg.Defaults.OutputDir)
	if err != nil || strings.TrimSpace(outputDir) == "" {
		problems = append(problems, "defaults.output_dir must be a valid path")
	}

	if cfg.Defaults.Concurrency <= 0 {
		problems = append(problems, "defaults.concurrency must be > 0")
	}
	if cfg.Defaults.StreamRetries < 0 {
		problems = append(problems, "defaults.stream_retries must be >= 0")
	}
	if cfg.Defaults.RetryBackoffMS < 0 {
		problems = append(problems, "defaults.retry_backoff_ms must be >= 0")
	}

	if strings.TrimSpace(cfg.History.File) == "" {
		problems = append(problems, "history.file must be set")
	}
	if cfg.History.Limit <= 0 {
		problems = append(problems, "history.limit must be > 0")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

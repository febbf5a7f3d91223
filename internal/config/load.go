package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type LoadOptions struct {
	ExplicitPath string
	WorkingDir   string
	Env          map[string]string
}

type fileConfig struct {
	Version  *int         `yaml:"version"`
	Server   fileServer   `yaml:"server"`
	Defaults fileDefaults `yaml:"defaults"`
	History  fileHistory  `yaml:"history"`
}

type fileServer struct {
	URL *string `yaml:"url"`
}

type fileDefaults struct {
	Format         *string `yaml:"format"`
	Quality        *string `yaml:"quality"`
	OutputDir      *string `yaml:"output_dir"`
	Concurrency    *int    `yaml:"concurrency"`
	StreamRetries  *int    `yaml:"stream_retries"`
	RetryBackoffMS *int    `yaml:"retry_backoff_ms"`
}

type fileHistory struct {
	File  *string `yaml:"file"`
	Limit *int    `yaml:"limit"`
}

func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	cwd := opts.WorkingDir
	if strings.TrimSpace(cwd) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
		cwd = wd
	}

	env := opts.Env
	if env == nil {
		env = osEnvMap()
	}

	if explicit := strings.TrimSpace(opts.ExplicitPath); explicit != "" {
		if err := mergeFile(&cfg, explicit, true); err != nil {
			return Config{}, err
		}
	} else {
		userPath, err := UserConfigPath()
		if err != nil {
			return Config{}, err
		}
		if err := mergeFile(&cfg, userPath, false); err != nil {
			return Config{}, err
		}

		if err := mergeFile(&cfg, ProjectConfigPath(cwd), false); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg, env); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func mergeFile(cfg *Config, path string, required bool) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file does not exist: %s", path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(payload, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Version != nil {
		cfg.Version = *fc.Version
	}
	if fc.Server.URL != nil {
		cfg.Server.URL = strings.TrimSpace(*fc.Server.URL)
	}
	if fc.Defaults.Format != nil {
		cfg.Defaults.Format = strings.TrimSpace(*fc.Defaults.Format)
	}
	if fc.Defaults.Quality != nil {
		cfg.Defaults.Quality = strings.TrimSpace(*fc.Defaults.Quality)
	}
	if fc.Defaults.OutputDir != nil {
		cfg.Defaults.OutputDir = strings.TrimSpace(*fc.Defaults.OutputDir)
	}
	if fc.Defaults.Concurrency != nil {
		cfg.Defaults.Concurrency = *fc.Defaults.Concurrency
	}
	if fc.Defaults.StreamRetries != nil {
		cfg.Defaults.StreamRetries = *fc.Defaults.StreamRetries
	}
	if fc.Defaults.RetryBackoffMS != nil {
		cfg.Defaults.RetryBackoffMS = *fc.Defaults.RetryBackoffMS
	}
	if fc.History.File != nil {
		cfg.History.File = strings.TrimSpace(*fc.History.File)
	}
	if fc.History.Limit != nil {
		cfg.History.Limit = *fc.History.Limit
	}

	return nil
}

func applyEnvOverrides(cfg *Config, env map[string]string) error {
	if value := strings.TrimSpace(env["BDL_SERVER_URL"]); value != "" {
		cfg.Server.URL = value
	}
	if value := strings.TrimSpace(env["BDL_FORMAT"]); value != "" {
		cfg.Defaults.Format = value
	}
	if value := strings.TrimSpace(env["BDL_OUTPUT_DIR"]); value != "" {
		cfg.Defaults.OutputDir = value
	}
	if value := strings.TrimSpace(env["BDL_HISTORY_FILE"]); value != "" {
		cfg.History.File = value
	}
	if value := strings.TrimSpace(env["BDL_CONCURRENCY"]); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BDL_CONCURRENCY value %q: %w", value, err)
		}
		cfg.Defaults.Concurrency = parsed
	}
	if value := strings.TrimSpace(env["BDL_STREAM_RETRIES"]); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BDL_STREAM_RETRIES value %q: %w", value, err)
		}
		cfg.Defaults.StreamRetries = parsed
	}
	return nil
}

func osEnvMap() map[string]string {
	result := map[string]string{}
	for _, pair := range os.Environ() {
		pieces := strings.SplitN(pair, "=", 2)
		if len(pieces) == 2 {
			result[pieces[0]] = pieces[1]
		}
	}
	return result
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory %s: %w", dir, err)
	}
	return nil
}

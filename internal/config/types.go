package config

type Config struct {
	Version  int      `yaml:"version"`
	Server   Server   `yaml:"server"`
	Defaults Defaults `yaml:"defaults"`
	History  History  `yaml:"history"`
}

type Server struct {
	URL string `yaml:"url"`
}

type Defaults struct {
	Format         string `yaml:"format"`
	Quality        string `yaml:"quality"`
	OutputDir      string `yaml:"output_dir"`
	Concurrency    int    `yaml:"concurrency"`
	StreamRetries  int    `yaml:"stream_retries"`
	RetryBackoffMS int    `yaml:"retry_backoff_ms"`
}

type History struct {
	File  string `yaml:"file"`
	Limit int    `yaml:"limit"`
}

func DefaultConfig() Config {
	return Config{
		Version: 1,
		Server: Server{
			URL: "http://127.0.0.1:8710",
		},
		Defaults: Defaults{
			Format:         "mp3",
			Quality:        "best",
			OutputDir:      "~/Downloads",
			Concurrency:    3,
			StreamRetries:  3,
			RetryBackoffMS: 750,
		},
		History: History{
			File:  defaultHistoryFile(),
			Limit: 200,
		},
	}
}

package config

import "fmt"

func DefaultTemplate() string {
	return fmt.Sprintf(`version: 1
server:
  url: "http://127.0.0.1:8710"
defaults:
  format: "mp3"
  quality: "best"
  output_dir: "~/Downloads"
  concurrency: 3
  stream_retries: 3
  retry_backoff_ms: 750
history:
  file: %q
  limit: 200
`, defaultHistoryFile())
}

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jaa/batchdl/internal/progress"
)

// sseStream decodes the server's event stream: one JSON progress event per
// "data:" frame, frames separated by blank lines, ":" lines are keepalive
// comments. Non-data fields (event:, id:, retry:) are ignored.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func newSSEStream(body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 16*1024), 1024*1024)
	return &sseStream{body: body, scanner: scanner}
}

func (s *sseStream) Next(ctx context.Context) (progress.Event, error) {
	if err := ctx.Err(); err != nil {
		return progress.Event{}, err
	}

	var data []string
	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if len(data) == 0 {
				continue
			}
			return decodeEvent(strings.Join(data, "\n"))
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if value, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(value, " "))
		}
	}

	if err := s.scanner.Err(); err != nil {
		return progress.Event{}, fmt.Errorf("read progress stream: %w", err)
	}
	if len(data) > 0 {
		return decodeEvent(strings.Join(data, "\n"))
	}
	return progress.Event{}, io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}

func decodeEvent(raw string) (progress.Event, error) {
	var event progress.Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return progress.Event{}, fmt.Errorf("decode progress event: %w", err)
	}
	return event, nil
}

package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaa/batchdl/internal/fileops"
)

const DefaultLimit = 200

// Record is one finished download. JobID is the server's handle and stays
// valid for file retrieval until the server prunes the artifact.
type Record struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	Title     string    `json:"title"`
	Format    string    `json:"format"`
	SourceURL string    `json:"source_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps download history as one JSON record per line, oldest first,
// capped at a configured number of records.
type Store struct {
	path  string
	limit int

	mu  sync.Mutex
	now func() time.Time
}

func NewStore(path string, limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{path: path, limit: limit, now: time.Now}
}

// Append writes one record, assigning an ID and timestamp when absent, and
// trims the file back to the cap when it overflows.
func (s *Store) Append(record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now().UTC()
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		_ = file.Close()
		return fmt.Errorf("append history record: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close history file: %w", err)
	}

	return s.trimLocked()
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readLocked()
	if err != nil {
		return nil, err
	}

	if n <= 0 || n > len(records) {
		n = len(records)
	}

	out := make([]Record, 0, n)
	for i := len(records) - 1; i >= len(records)-n; i-- {
		out = append(out, records[i])
	}
	return out, nil
}

func (s *Store) readLocked() ([]Record, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 16*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			// Damaged lines are skipped rather than blocking all reads.
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan history file: %w", err)
	}
	return records, nil
}

func (s *Store) trimLocked() error {
	records, err := s.readLocked()
	if err != nil {
		return err
	}
	if len(records) <= s.limit {
		return nil
	}

	trimmed := records[len(records)-s.limit:]
	return fileops.WriteAtomic(s.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, record := range trimmed {
			if err := enc.Encode(record); err != nil {
				return fmt.Errorf("rewrite history record: %w", err)
			}
		}
		return nil
	})
}

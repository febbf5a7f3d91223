package fileops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic writes content through a sibling temp file and swaps it into
// place, so readers never observe a partially written target.
func WriteAtomic(targetPath string, write func(io.Writer) error) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}

	temp, err := os.CreateTemp(dir, filepath.Base(targetPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %q: %w", dir, err)
	}
	tempPath := temp.Name()

	cleanup := func() {
		_ = temp.Close()
		_ = os.Remove(tempPath)
	}

	if err := write(temp); err != nil {
		cleanup()
		return err
	}
	if err := temp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file %q: %w", tempPath, err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("close temp file %q: %w", tempPath, err)
	}

	if err := ReplaceFileSafely(tempPath, targetPath); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return nil
}

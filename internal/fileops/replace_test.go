package fileops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestReplaceFileSafelyReplacesExistingTarget(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "records.jsonl")
	temp := filepath.Join(tmp, "records.jsonl.tmp")

	if err := os.WriteFile(target, []byte("old"), 0o644); err != nil {
		t.Fatalf("write target: %v", err)
	}
	if err := os.WriteFile(temp, []byte("new"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}

	if err := ReplaceFileSafely(temp, target); err != nil {
		t.Fatalf("replace: %v", err)
	}

	content, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if string(content) != "new" {
		t.Fatalf("expected replaced content, got %q", content)
	}
	if _, err := os.Stat(target + ".bdl.bak"); !os.IsNotExist(err) {
		t.Fatalf("expected backup to be cleaned up")
	}
	if _, err := os.Stat(temp); !os.IsNotExist(err) {
		t.Fatalf("expected temp to be consumed")
	}
}

func TestReplaceFileSafelyCreatesMissingTarget(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "fresh.bin")
	temp := filepath.Join(tmp, "fresh.bin.tmp")

	if err := os.WriteFile(temp, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}

	if err := ReplaceFileSafely(temp, target); err != nil {
		t.Fatalf("replace: %v", err)
	}

	content, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if string(content) != "payload" {
		t.Fatalf("expected payload, got %q", content)
	}
}

func TestReplaceFileSafelyRejectsSamePath(t *testing.T) {
	if err := ReplaceFileSafely("/tmp/a", "/tmp/a"); err == nil {
		t.Fatalf("expected error for identical paths")
	}
}

func TestWriteAtomicWritesContent(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "nested", "out.txt")

	err := WriteAtomic(target, func(w io.Writer) error {
		_, writeErr := io.WriteString(w, "hello")
		return writeErr
	})
	if err != nil {
		t.Fatalf("write atomic: %v", err)
	}

	content, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if string(content) != "hello" {
		t.Fatalf("expected written content, got %q", content)
	}
}

func TestWriteAtomicDiscardsTempOnWriteError(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "out.txt")

	err := WriteAtomic(target, func(io.Writer) error {
		return fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatalf("expected write error to propagate")
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftover files, got %d", len(entries))
	}
}

package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFsnotifyWatcher_EmitsEventForMatchingExtension(t *testing.T) {
	dir := t.TempDir()

	w, err := NewFsnotifyWatcher(Options{MaxDirectories: 10, FileExtensions: []string{".jsonl"}})
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		t.Fatalf("failed to add dir: %v", err)
	}

	ignoredPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(ignoredPath, []byte("hello"), 0644); err != nil {
		t.Fatalf("failed to write ignored file: %v", err)
	}

	targetPath := filepath.Join(dir, "app.jsonl")
	if err := os.WriteFile(targetPath, []byte("{}"), 0644); err != nil {
		t.Fatalf("failed to write target file: %v", err)
	}

	select {
	case ev := <-w.Events():
		if ev.Path != targetPath {
			t.Errorf("expected event for %s, got %s", targetPath, ev.Path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for watcher event")
	}
}

func TestFsnotifyWatcher_RejectsDirectoryBeyondMax(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()

	w, err := NewFsnotifyWatcher(Options{MaxDirectories: 1})
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Close()

	if err := w.Add(dirA); err != nil {
		t.Fatalf("unexpected error adding first dir: %v", err)
	}
	if err := w.Add(dirB); err == nil {
		t.Error("expected error adding a directory beyond max_directories")
	}
}

func TestFsnotifyWatcher_MatchesGlobWhenNoExtensionList(t *testing.T) {
	w := &FsnotifyWatcher{filter: "app-*.jsonl"}

	if !w.matches("/var/log/app-1.jsonl") {
		t.Error("expected glob match")
	}
	if w.matches("/var/log/other.jsonl") {
		t.Error("expected glob mismatch to be rejected")
	}
}

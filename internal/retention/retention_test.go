package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/marmos91/edgelogd/internal/clock"
)

func writeProcessed(t *testing.T, dir, name, content string, age time.Duration, now time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	modTime := now.Add(-age)
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("failed to set mtime on %s: %v", name, err)
	}
	return path
}

func TestStandardCleanup_DeletesAgedFilesWhenNoArchiveSubdir(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(1_700_000_000, 0)
	fc := clock.NewFake(now)

	writeProcessed(t, dir, "old.processed", "data", 10*24*time.Hour, now)
	fresh := writeProcessed(t, dir, "fresh.processed", "data", time.Hour, now)

	m := New(fc, Config{
		Directories:    []string{dir},
		RetentionDays:  7,
		CompressProcessedFiles: false,
	})

	m.StandardCleanup(dir)

	if _, err := os.Stat(filepath.Join(dir, "old.processed")); !os.IsNotExist(err) {
		t.Error("expected aged file to be deleted")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("expected fresh file to remain")
	}
}

func TestStandardCleanup_ArchivesAgedFilesWhenArchiveSubdirSet(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(1_700_000_000, 0)
	fc := clock.NewFake(now)

	writeProcessed(t, dir, "old.processed", "data", 10*24*time.Hour, now)

	m := New(fc, Config{
		Directories:   []string{dir},
		RetentionDays: 7,
		ArchiveSubdir: "archive",
	})

	m.StandardCleanup(dir)

	if _, err := os.Stat(filepath.Join(dir, "archive", "old.processed")); err != nil {
		t.Errorf("expected archived file at archive/old.processed, got error: %v", err)
	}
}

func TestStandardCleanup_CompressesOldUncompressedCandidates(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(1_700_000_000, 0)
	fc := clock.NewFake(now)

	writeProcessed(t, dir, "big.processed", "some log content that compresses", 2*time.Hour, now)

	m := New(fc, Config{
		Directories:            []string{dir},
		RetentionDays:          30,
		CompressProcessedFiles: true,
	})

	m.StandardCleanup(dir)

	gzPath := filepath.Join(dir, "big.processed.gz")
	f, err := os.Open(gzPath)
	if err != nil {
		t.Fatalf("expected compressed file at %s: %v", gzPath, err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("expected valid gzip stream: %v", err)
	}
	defer gr.Close()

	if _, err := os.Stat(filepath.Join(dir, "big.processed")); !os.IsNotExist(err) {
		t.Error("expected original to be removed after successful compression")
	}
}

func TestListProcessedCandidates_IgnoresUnprocessedFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(1_700_000_000, 0)
	fc := clock.NewFake(now)

	writeProcessed(t, dir, "done.processed", "x", time.Hour, now)
	if err := os.WriteFile(filepath.Join(dir, "incoming.jsonl"), []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}

	m := New(fc, Config{Directories: []string{dir}})
	candidates := m.listProcessedCandidates(dir)

	if len(candidates) != 1 || filepath.Base(candidates[0].Path) != "done.processed" {
		t.Errorf("expected exactly one processed candidate, got %+v", candidates)
	}
}

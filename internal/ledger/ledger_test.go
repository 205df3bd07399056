package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/marmos91/edgelogd/internal/model"
)

func openTest(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordTransition_CreatesEntryOnFirstTouch(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()

	if err := l.RecordTransition(ctx, "/incoming/a.jsonl", model.FileTracked, 1024, "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, err := l.Get(ctx, "/incoming/a.jsonl")
	if err != nil {
		t.Fatalf("expected entry to exist: %v", err)
	}
	if entry.State != string(model.FileTracked) || entry.SizeBytes != 1024 {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestRecordTransition_UpdatesExistingEntry(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()

	_ = l.RecordTransition(ctx, "/incoming/a.jsonl", model.FileTracked, 1024, "", nil)
	_ = l.RecordTransition(ctx, "/incoming/a.jsonl", model.FileStable, 1024, "", nil)

	entry, err := l.Get(ctx, "/incoming/a.jsonl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.State != string(model.FileStable) {
		t.Errorf("expected state Stable, got %s", entry.State)
	}
}

func TestGet_ReturnsErrNotFoundForUnknownPath(t *testing.T) {
	l := openTest(t)
	_, err := l.Get(context.Background(), "/nowhere.jsonl")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListByState_FiltersCorrectly(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()

	_ = l.RecordTransition(ctx, "/a.jsonl", model.FileFailed, 10, "", errors.New("boom"))
	_ = l.RecordTransition(ctx, "/b.jsonl", model.FileProcessed, 20, "", nil)

	failed, err := l.ListByState(ctx, model.FileFailed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failed) != 1 || failed[0].Path != "/a.jsonl" {
		t.Errorf("expected exactly one failed entry for /a.jsonl, got %+v", failed)
	}
}

func TestList_ReturnsAllEntriesNewestFirst(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()

	_ = l.RecordTransition(ctx, "/a.jsonl", model.FileTracked, 10, "", nil)
	_ = l.RecordTransition(ctx, "/b.jsonl", model.FileStable, 20, "", nil)

	entries, err := l.List(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Path != "/b.jsonl" {
		t.Errorf("expected newest entry first (/b.jsonl), got %s", entries[0].Path)
	}
}

func TestList_RespectsLimit(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()

	_ = l.RecordTransition(ctx, "/a.jsonl", model.FileTracked, 10, "", nil)
	_ = l.RecordTransition(ctx, "/b.jsonl", model.FileStable, 20, "", nil)
	_ = l.RecordTransition(ctx, "/c.jsonl", model.FileProcessed, 30, "", nil)

	entries, err := l.List(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}

package dedupindex

import (
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "dedup"))
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestSeen_FalseForUntrackedTuple(t *testing.T) {
	idx := openTest(t)
	seen, err := idx.Seen("/incoming/a.jsonl", 100, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Error("expected an unmarked tuple to report unseen")
	}
}

func TestMarkProcessed_ThenSeenReportsTrue(t *testing.T) {
	idx := openTest(t)
	mtime := time.Unix(1700000000, 0)

	if err := idx.MarkProcessed("/incoming/a.jsonl", 100, mtime, time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen, err := idx.Seen("/incoming/a.jsonl", 100, mtime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Error("expected marked tuple to report seen")
	}
}

func TestSeen_DistinguishesBySizeAndMtime(t *testing.T) {
	idx := openTest(t)
	mtime := time.Unix(1700000000, 0)

	_ = idx.MarkProcessed("/incoming/a.jsonl", 100, mtime, time.Hour)

	seen, _ := idx.Seen("/incoming/a.jsonl", 200, mtime)
	if seen {
		t.Error("expected a different size to be treated as a distinct tuple")
	}
}

package jsonl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	edgencoding "github.com/marmos91/edgelogd/internal/encoding"
	"github.com/marmos91/edgelogd/internal/model"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.jsonl")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func collect(t *testing.T, path string) []LineResult {
	t.Helper()
	r, err := Open(path, edgencoding.UTF8)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	var out []LineResult
	for lr := range r.Lines(context.Background()) {
		out = append(out, lr)
	}
	return out
}

func TestLines_HappyPath(t *testing.T) {
	content := `{"id":"1","device_id":"d1","timestamp":"2025-03-21T15:30:45.123Z","level":"info","message":"ok"}` + "\n" +
		`{"id":"2","device_id":"d1","timestamp":"2025-03-21T15:30:46.000Z","level":"error","message":"boom"}`
	path := writeTemp(t, content)

	results := collect(t, path)
	if len(results) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(results))
	}
	for _, r := range results {
		if r.Record == nil {
			t.Fatalf("expected record, got error: %+v", r.Err)
		}
	}
	if results[0].Record.ID != "1" || results[1].Record.ID != "2" {
		t.Error("expected records in file order")
	}
}

func TestLines_MalformedLine(t *testing.T) {
	content := `{"id":"1","device_id":"d1","timestamp":"2025-03-21T15:30:45Z","level":"info","message":"a"}` + "\n" +
		`{not json}` + "\n" +
		`{"id":"2","device_id":"d1","timestamp":"2025-03-21T15:30:46Z","level":"info","message":"b"}`
	path := writeTemp(t, content)

	results := collect(t, path)
	if len(results) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(results))
	}
	if results[1].Err == nil || results[1].Err.Kind != model.ErrorKindParse {
		t.Fatalf("expected parse error on line 2, got %+v", results[1])
	}
	if results[1].Err.LineNo != 2 {
		t.Errorf("expected line_no=2, got %d", results[1].Err.LineNo)
	}
}

func TestLines_BlankLinesSkipped(t *testing.T) {
	content := "\n\n   \n"
	path := writeTemp(t, content)

	results := collect(t, path)
	if len(results) != 0 {
		t.Fatalf("expected no results for blank-only file, got %d", len(results))
	}
}

func TestLines_TimestampRecoveredFromString(t *testing.T) {
	content := `{"id":"1","device_id":"d1","timestamp":"2025-03-21T15:30:45Z","level":"info","message":"x"}`
	path := writeTemp(t, content)

	results := collect(t, path)
	if len(results) != 1 || results[0].Record == nil {
		t.Fatalf("expected one valid record, got %+v", results)
	}
	if results[0].Record.Timestamp.IsZero() {
		t.Error("expected timestamp to be recovered")
	}
}

func TestLines_CancellationStopsEarly(t *testing.T) {
	content := `{"id":"1","device_id":"d1","timestamp":"2025-03-21T15:30:45Z","level":"info","message":"x"}` + "\n" +
		`{"id":"2","device_id":"d1","timestamp":"2025-03-21T15:30:46Z","level":"info","message":"y"}`
	path := writeTemp(t, content)

	r, err := Open(path, edgencoding.UTF8)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out []LineResult
	for lr := range r.Lines(ctx) {
		out = append(out, lr)
	}
	if len(out) != 0 {
		t.Errorf("expected no lines to be yielded after cancellation, got %d", len(out))
	}
}

package orchestrator

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/edgelogd/internal/batch"
	"github.com/marmos91/edgelogd/internal/clock"
	"github.com/marmos91/edgelogd/internal/model"
	"github.com/marmos91/edgelogd/internal/retention"
	"github.com/marmos91/edgelogd/internal/upload"
	"github.com/marmos91/edgelogd/internal/watch"
)

type stubTransport struct {
	uploadedBlobs []string
}

func (s *stubTransport) Open(ctx context.Context) error  { return nil }
func (s *stubTransport) Close(ctx context.Context) error { return nil }
func (s *stubTransport) RequestUploadURI(ctx context.Context, blobName string) (string, string, error) {
	s.uploadedBlobs = append(s.uploadedBlobs, blobName)
	return "corr-1", "https://example/" + blobName, nil
}
func (s *stubTransport) PutBlob(ctx context.Context, uri string, body io.ReadSeeker, contentType string) error {
	return nil
}
func (s *stubTransport) NotifyCompletion(ctx context.Context, correlationID string, success bool) error {
	return nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *stubTransport) {
	t.Helper()
	fc := clock.NewFake(time.Unix(1_700_000_000, 0))
	tr := &stubTransport{}

	cfg := Config{
		Directories:    []string{t.TempDir()},
		Watch:          watch.Options{MaxDirectories: 10},
		Stability:      watch.Config{StabilizationPeriod: time.Second, CheckInterval: time.Second},
		Batch:          batch.Config{MaxBatchSizeBytes: 1 << 20, MaxBatchItems: 1000},
		Retention:      retention.Config{Directories: []string{t.TempDir()}},
		BlobNamePrefix: "logs",
		DeviceID:       "device-1",
	}

	o, err := New(cfg, fc, tr, upload.RetryPolicy{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}, nil, nil)
	if err != nil {
		t.Fatalf("failed to construct orchestrator: %v", err)
	}
	t.Cleanup(func() { _ = o.watcher.Close() })
	return o, tr
}

func TestOnFileStable_ProcessesUploadsAndMarksFile(t *testing.T) {
	o, tr := newTestOrchestrator(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "a.jsonl")
	content := `{"id":"1","device_id":"d1","timestamp":"2025-03-21T15:30:45Z","level":"info","message":"hello"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	o.onFileStable(path)

	if _, err := os.Stat(path + ".processed"); err != nil {
		t.Errorf("expected file to be renamed to .processed: %v", err)
	}
	if len(tr.uploadedBlobs) != 1 {
		t.Errorf("expected exactly one uploaded blob, got %v", tr.uploadedBlobs)
	}

	job, ok := o.jobs[path]
	if !ok {
		t.Fatal("expected a job entry for the processed path")
	}
	if job.State != model.FileProcessed {
		t.Errorf("expected final state Processed, got %s", job.State)
	}
}

func TestOnFileStable_MissingFileFailsGracefully(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	o.onFileStable(filepath.Join(t.TempDir(), "does-not-exist.jsonl"))

	job, ok := o.jobs[filepath.Join(t.TempDir(), "does-not-exist.jsonl")]
	_ = ok
	_ = job
	// No panic is the primary assertion here; fileproc.Process already
	// has dedicated coverage for the not-found path.
}

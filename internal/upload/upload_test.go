package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/marmos91/edgelogd/internal/clock"
	"github.com/marmos91/edgelogd/internal/model"
)

type fakeTransport struct {
	openErr          error
	openCalls        int
	requestErr       error
	putErr           error
	putCallsBeforeOK int
	putCalls         int
	notifyErr        error
	notifySuccess    *bool
}

func (f *fakeTransport) Open(ctx context.Context) error {
	f.openCalls++
	return f.openErr
}
func (f *fakeTransport) Close(ctx context.Context) error { return nil }
func (f *fakeTransport) RequestUploadURI(ctx context.Context, blobName string) (string, string, error) {
	if f.requestErr != nil {
		return "", "", f.requestErr
	}
	return "corr-1", "https://example/blob", nil
}
func (f *fakeTransport) PutBlob(ctx context.Context, uri string, body io.ReadSeeker, contentType string) error {
	f.putCalls++
	if f.putCallsBeforeOK > 0 && f.putCalls <= f.putCallsBeforeOK {
		return transientErr{}
	}
	return f.putErr
}
func (f *fakeTransport) NotifyCompletion(ctx context.Context, correlationID string, success bool) error {
	f.notifySuccess = &success
	return f.notifyErr
}

type transientErr struct{}

func (transientErr) Error() string  { return "503 service unavailable" }
func (transientErr) Retryable() bool { return true }

func policy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 10 * time.Millisecond}
}

func TestConnect_SucceedsOnFirstTry(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tr := &fakeTransport{}
	c := NewClient(tr, fc, policy(), "logs", "device-1")

	go advanceUntilDone(fc, 50*time.Millisecond)

	res, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	if !res.OK {
		t.Error("expected OK connect result")
	}
	if c.ConnectionState() != model.ConnConnected {
		t.Errorf("expected Connected, got %s", c.ConnectionState())
	}
}

func TestConnect_IsIdempotentWhenAlreadyConnected(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tr := &fakeTransport{}
	c := NewClient(tr, fc, policy(), "logs", "device-1")
	c.state.Set(model.ConnConnected)

	res, err := c.Connect(context.Background())
	if err != nil || !res.OK {
		t.Fatalf("expected idempotent success, got %+v err=%v", res, err)
	}
	if tr.openCalls != 0 {
		t.Error("expected no transport.Open call when already connected")
	}
}

func TestConnect_FailsAfterExhaustingRetries(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tr := &fakeTransport{openErr: transientErr{}}
	c := NewClient(tr, fc, policy(), "logs", "device-1")

	go advanceUntilDone(fc, 200*time.Millisecond)

	_, err := c.Connect(context.Background())
	if err == nil {
		t.Fatal("expected connect to fail after exhausting retries")
	}
	if c.ConnectionState() != model.ConnError {
		t.Errorf("expected Error state, got %s", c.ConnectionState())
	}
	if tr.openCalls != policy().MaxAttempts {
		t.Errorf("expected %d attempts, got %d", policy().MaxAttempts, tr.openCalls)
	}
}

func TestUploadFile_HappyPathNotifiesSuccess(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tr := &fakeTransport{}
	c := NewClient(tr, fc, policy(), "logs", "device-1")

	go advanceUntilDone(fc, 200*time.Millisecond)

	body := readSeekCloser{bytes.NewReader([]byte("hello"))}
	result := c.UploadFile(context.Background(), body, 5, "batch-1.jsonl")

	if !result.OK {
		t.Fatalf("expected successful upload, got %+v", result)
	}
	if tr.notifySuccess == nil || !*tr.notifySuccess {
		t.Error("expected NotifyCompletion to be called with success=true")
	}
}

func TestUploadFile_RetriesPutAfterTransientFailure(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tr := &fakeTransport{putCallsBeforeOK: 1}
	c := NewClient(tr, fc, policy(), "logs", "device-1")

	go advanceUntilDone(fc, 200*time.Millisecond)

	body := readSeekCloser{bytes.NewReader([]byte("hello"))}
	result := c.UploadFile(context.Background(), body, 5, "batch-1.jsonl")

	if !result.OK {
		t.Fatalf("expected eventual success after one transient PUT failure, got %+v", result)
	}
	if tr.putCalls != 2 {
		t.Errorf("expected 2 PUT attempts, got %d", tr.putCalls)
	}
}

func TestUploadFile_NonRetryableErrorNotifiesFailure(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tr := &fakeTransport{putErr: errors.New("400 bad request")}
	c := NewClient(tr, fc, policy(), "logs", "device-1")

	go advanceUntilDone(fc, 200*time.Millisecond)

	body := readSeekCloser{bytes.NewReader([]byte("hello"))}
	result := c.UploadFile(context.Background(), body, 5, "batch-1.jsonl")

	if result.OK {
		t.Fatal("expected upload to fail for a non-retryable PUT error")
	}
	if tr.notifySuccess == nil || *tr.notifySuccess {
		t.Error("expected NotifyCompletion to be called with success=false")
	}
}

type readSeekCloser struct {
	*bytes.Reader
}

func (readSeekCloser) Close() error { return nil }

// advanceUntilDone repeatedly nudges the fake clock forward so that any
// goroutine blocked on clk.After(backoff) during this test's retry loop
// eventually observes its deadline.
func advanceUntilDone(fc *clock.Fake, totalBudget time.Duration) {
	deadline := time.Now().Add(totalBudget)
	for time.Now().Before(deadline) {
		fc.Advance(5 * time.Millisecond)
		time.Sleep(2 * time.Millisecond)
	}
}

// Package upload implements the Upload Client (C8): a connection state
// machine over a device-authenticated upload channel with retry and
// reconnect, plus the three-step request-URI / PUT / notify protocol.
package upload

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/edgelogd/internal/clock"
	"github.com/marmos91/edgelogd/internal/logger"
	"github.com/marmos91/edgelogd/internal/metrics"
	"github.com/marmos91/edgelogd/internal/model"
)

// Transport is the trait boundary for the device upload endpoint's
// three-call protocol: request a destination URI, PUT the blob, notify
// completion. The shipped implementation is upload/s3transport.
type Transport interface {
	// Open establishes the underlying connection (auth handshake,
	// client construction). Returns a transient error on failure.
	Open(ctx context.Context) error
	// Close releases the underlying connection handle.
	Close(ctx context.Context) error
	// RequestUploadURI asks the endpoint for a destination for blobName,
	// returning a correlation id for NotifyCompletion.
	RequestUploadURI(ctx context.Context, blobName string) (correlationID string, blobURI string, err error)
	// PutBlob uploads body (rewound to position 0 by the caller before
	// each attempt) to uri with the given content type.
	PutBlob(ctx context.Context, uri string, body io.ReadSeeker, contentType string) error
	// NotifyCompletion informs the endpoint whether the upload succeeded.
	NotifyCompletion(ctx context.Context, correlationID string, success bool) error
}

// RetryableError, when satisfied by an error returned from a Transport
// method, marks it as transient. classifyRetryable falls back to string/type
// heuristics for errors that don't implement this.
type RetryableError interface {
	Retryable() bool
}

// Result mirrors connect()'s spec-level {ok, elapsed_ms} contract.
type Result struct {
	OK        bool
	ElapsedMs float64
}

// UploadResult mirrors upload_file()'s spec-level contract.
type UploadResult struct {
	OK        bool
	FileSize  int64
	ElapsedMs float64
	Err       error
}

// RetryPolicy configures the exponential backoff used by connect and
// upload_file (spec §4.7: 5 attempts, base 1s, cap 30s).
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return d
}

// Client owns the connection state machine (spec §4.7) and exposes
// connect/upload_file/disconnect/connection_state.
type Client struct {
	transport Transport
	clk       clock.Clock
	retry     RetryPolicy
	uploadFolder string
	deviceID  string

	sem   chan struct{} // single-permit semaphore serialising state transitions
	state *stateBox
}

// NewClient constructs the Upload Client in the Disconnected state.
func NewClient(transport Transport, clk clock.Clock, retry RetryPolicy, uploadFolder, deviceID string) *Client {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 5
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = time.Second
	}
	if retry.MaxBackoff <= 0 {
		retry.MaxBackoff = 30 * time.Second
	}

	return &Client{
		transport:    transport,
		clk:          clk,
		retry:        retry,
		uploadFolder: uploadFolder,
		deviceID:     deviceID,
		sem:          make(chan struct{}, 1),
		state:        newStateBox(model.ConnDisconnected),
	}
}

// ConnectionState returns the current state atomically.
func (c *Client) ConnectionState() model.ConnState {
	return c.state.Get()
}

// Connect is idempotent when already Connected. Guarded by the
// single-permit semaphore; applies the retry policy.
func (c *Client) Connect(ctx context.Context) (Result, error) {
	start := c.clk.Now()

	if c.state.Get() == model.ConnConnected {
		return Result{OK: true, ElapsedMs: elapsedMs(c.clk, start)}, nil
	}

	if err := c.acquire(ctx, 30*time.Second); err != nil {
		return Result{}, err
	}
	defer c.release()

	if c.state.Get() == model.ConnConnected {
		return Result{OK: true, ElapsedMs: elapsedMs(c.clk, start)}, nil
	}

	c.state.Set(model.ConnConnecting)

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.retry.backoff(attempt - 1)
			logger.Debug("upload: retrying connect", logger.Attempt(attempt+1), logger.Backoff(backoff.String()))
			select {
			case <-ctx.Done():
				c.state.Set(model.ConnError)
				return Result{}, ctx.Err()
			case <-c.clk.After(backoff):
			}
		}

		if err := c.transport.Open(ctx); err != nil {
			lastErr = err
			if !classifyRetryable(err) {
				break
			}
			continue
		}

		c.state.Set(model.ConnConnected)
		return Result{OK: true, ElapsedMs: elapsedMs(c.clk, start)}, nil
	}

	c.state.Set(model.ConnError)
	return Result{OK: false}, fmt.Errorf("upload: connect failed after %d attempts: %w", c.retry.MaxAttempts, lastErr)
}

// UploadFile uploads file as blobName via the three-step protocol,
// auto-connecting on demand (spec §4.7).
func (c *Client) UploadFile(ctx context.Context, file io.ReadSeekCloser, localSize int64, blobName string) UploadResult {
	start := c.clk.Now()

	if c.state.Get() != model.ConnConnected {
		if _, err := c.Connect(ctx); err != nil {
			return UploadResult{Err: err, ElapsedMs: elapsedMs(c.clk, start)}
		}
	}

	remotePath := c.remotePath(blobName)
	contentType := inferContentType(blobName)

	var cid, uri string
	err := c.withRetry(ctx, "RequestUploadURI", func() error {
		gotCID, gotURI, rerr := c.transport.RequestUploadURI(ctx, remotePath)
		if rerr == nil {
			cid, uri = gotCID, gotURI
		}
		return rerr
	})
	if err != nil {
		return UploadResult{Err: err, ElapsedMs: elapsedMs(c.clk, start)}
	}

	putErr := c.withRetrySeekable(ctx, file, func() error {
		return c.transport.PutBlob(ctx, uri, file, contentType)
	})
	if putErr != nil {
		_ = c.notifyBestEffort(ctx, cid, false)
		metrics.RecordUploadAttempt("failure")
		return UploadResult{Err: putErr, ElapsedMs: elapsedMs(c.clk, start)}
	}

	elapsed := elapsedMs(c.clk, start)
	if err := c.notifyBestEffort(ctx, cid, true); err != nil {
		metrics.RecordUploadAttempt("failure")
		return UploadResult{Err: err, FileSize: localSize, ElapsedMs: elapsed}
	}

	metrics.RecordUploadAttempt("success")
	metrics.RecordUploadDuration(time.Duration(elapsed) * time.Millisecond)
	return UploadResult{OK: true, FileSize: localSize, ElapsedMs: elapsed}
}

func (c *Client) notifyBestEffort(ctx context.Context, correlationID string, success bool) error {
	return c.withRetry(ctx, "NotifyCompletion", func() error {
		return c.transport.NotifyCompletion(ctx, correlationID, success)
	})
}

// withRetry applies the retry policy to a single protocol step.
func (c *Client) withRetry(ctx context.Context, step string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.retry.backoff(attempt - 1)
			logger.Debug("upload: retrying step", logger.Operation(step), logger.Attempt(attempt+1), logger.Backoff(backoff.String()))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.clk.After(backoff):
			}
		}

		if err := fn(); err != nil {
			lastErr = err
			if !classifyRetryable(err) {
				c.onTransportDrop()
				return fmt.Errorf("upload: %s failed: %w", step, err)
			}
			continue
		}
		return nil
	}
	c.onTransportDrop()
	return fmt.Errorf("upload: %s failed after %d attempts: %w", step, c.retry.MaxAttempts, lastErr)
}

// withRetrySeekable is like withRetry but rewinds file to offset 0 before
// each attempt beyond the first, logging a warning if the seek fails.
func (c *Client) withRetrySeekable(ctx context.Context, file io.Seeker, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			if _, err := file.Seek(0, io.SeekStart); err != nil {
				logger.Warn("upload: failed to rewind file stream for retry", logger.Err(err))
			}
			backoff := c.retry.backoff(attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.clk.After(backoff):
			}
		}

		if err := fn(); err != nil {
			lastErr = err
			if !classifyRetryable(err) {
				c.onTransportDrop()
				return fmt.Errorf("upload: PutBlob failed: %w", err)
			}
			continue
		}
		return nil
	}
	c.onTransportDrop()
	return fmt.Errorf("upload: PutBlob failed after %d attempts: %w", c.retry.MaxAttempts, lastErr)
}

// onTransportDrop transitions Connected -> Error when a transport call has
// failed for good: after exhausted retries or on a non-retryable error.
func (c *Client) onTransportDrop() {
	if c.state.Get() == model.ConnConnected {
		c.state.Set(model.ConnError)
	}
}

// Reconnect schedules a single reconnect attempt using the same retry
// policy, serialised by the connection semaphore.
func (c *Client) Reconnect(ctx context.Context) (Result, error) {
	c.state.Set(model.ConnConnecting)
	return c.Connect(ctx)
}

// Disconnect gracefully closes the transport with a 5s timeout, always
// transitioning to Disconnected even on close failure.
func (c *Client) Disconnect(ctx context.Context) error {
	c.state.Set(model.ConnDisconnecting)

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.transport.Close(closeCtx)
	c.state.Set(model.ConnDisconnected)
	return err
}

func (c *Client) acquire(ctx context.Context, timeout time.Duration) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	default:
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return fmt.Errorf("upload: timed out acquiring connection semaphore")
	}
}

func (c *Client) release() { <-c.sem }

func (c *Client) remotePath(blobName string) string {
	now := c.clk.Now().UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s/%s",
		strings.TrimRight(c.uploadFolder, "/"), now.Year(), now.Month(), now.Day(), c.deviceID, blobName)
}

func inferContentType(blobName string) string {
	switch strings.ToLower(filepath.Ext(blobName)) {
	case ".json", ".jsonl":
		return "application/json"
	case ".log", ".txt":
		return "text/plain"
	default:
		if ct := mime.TypeByExtension(filepath.Ext(blobName)); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

func elapsedMs(clk clock.Clock, start time.Time) float64 {
	return float64(clk.Now().Sub(start).Microseconds()) / 1000.0
}

func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}

	var re RetryableError
	if ok := asRetryable(err, &re); ok {
		return re.Retryable()
	}

	msg := strings.ToLower(err.Error())
	retryableSignals := []string{
		"timeout", "i/o timeout", "connection reset", "connection refused",
		"temporary failure", "transient", "503", "504", "408", "429",
		"service unavailable",
	}
	for _, s := range retryableSignals {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func asRetryable(err error, target *RetryableError) bool {
	if re, ok := err.(RetryableError); ok {
		*target = re
		return true
	}
	return false
}

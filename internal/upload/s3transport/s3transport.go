// Package s3transport implements upload.Transport against an
// S3-compatible object store, using presigned PUT URLs as the
// SAS-URI equivalent of the device upload protocol.
package s3transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ConnectionString parses a device connection string of the form
// "HostName=…;DeviceId=…;SharedAccessKey=…" (spec §6).
type ConnectionString struct {
	HostName        string
	DeviceID        string
	SharedAccessKey string
}

// ParseConnectionString parses the semicolon-delimited key=value pairs
// used by the device upload endpoint's connection string.
func ParseConnectionString(raw string) (ConnectionString, error) {
	var cs ConnectionString
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return ConnectionString{}, fmt.Errorf("s3transport: malformed connection string segment %q", part)
		}
		switch kv[0] {
		case "HostName":
			cs.HostName = kv[1]
		case "DeviceId":
			cs.DeviceID = kv[1]
		case "SharedAccessKey":
			cs.SharedAccessKey = kv[1]
		}
	}
	if cs.HostName == "" || cs.DeviceID == "" || cs.SharedAccessKey == "" {
		return ConnectionString{}, errors.New("s3transport: connection string missing HostName, DeviceId, or SharedAccessKey")
	}
	return cs, nil
}

// Config carries everything needed to build a Transport.
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
	PresignExpiry   time.Duration
}

// Transport is the S3-backed upload.Transport implementation.
type Transport struct {
	cfg     Config
	client  *s3.Client
	presign *s3.PresignClient
}

// New constructs a Transport; Open performs the actual client
// construction so the connection state machine observes connect failures.
func New(cfg Config) *Transport {
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}
	return &Transport{cfg: cfg}
}

// Open builds the underlying S3 client, matching the teacher's
// NewS3ClientFromConfig helper.
func (t *Transport) Open(ctx context.Context) error {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(t.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			t.cfg.AccessKeyID, t.cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return fmt.Errorf("s3transport: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if t.cfg.Endpoint != "" {
			o.BaseEndpoint = &t.cfg.Endpoint
		}
		o.UsePathStyle = t.cfg.ForcePathStyle
	})

	t.client = client
	t.presign = s3.NewPresignClient(client)
	return nil
}

// Close drops the client references; the AWS SDK client has no explicit
// close.
func (t *Transport) Close(ctx context.Context) error {
	t.client = nil
	t.presign = nil
	return nil
}

// RequestUploadURI presigns a PUT URL for key, the SAS-URI equivalent.
// The correlation id is the key itself: NotifyCompletion needs no further
// server-side lookup against an S3-compatible endpoint.
func (t *Transport) RequestUploadURI(ctx context.Context, blobName string) (string, string, error) {
	if t.presign == nil {
		return "", "", errors.New("s3transport: not connected")
	}

	req, err := t.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.cfg.Bucket),
		Key:    aws.String(blobName),
	}, s3.WithPresignExpires(t.cfg.PresignExpiry))
	if err != nil {
		return "", "", classify(fmt.Errorf("s3transport: presign put: %w", err))
	}

	return blobName, req.URL, nil
}

// PutBlob performs the actual HTTP PUT against the presigned URL.
func (t *Transport) PutBlob(ctx context.Context, uri string, body io.ReadSeeker, contentType string) error {
	size, err := body.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("s3transport: measure body: %w", err)
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("s3transport: rewind body: %w", err)
	}

	return putViaHTTP(ctx, uri, body, size, contentType)
}

// NotifyCompletion is a no-op against a bare S3-compatible endpoint: the
// object's presence at the presigned key already signals completion.
// Kept as an explicit step so the Transport shape matches the three-call
// device protocol and a future endpoint with a real notify hook can slot
// in without changing upload.Client.
func (t *Transport) NotifyCompletion(ctx context.Context, correlationID string, success bool) error {
	return nil
}

// isRetryableError mirrors the teacher's classification for transient S3
// failures: network timeouts, connection resets/refusals, throttling,
// internal/unavailable service errors, and HTTP 408, 429, 500, 503 and 504
// are retried; auth, not-found, and malformed-request errors are not, and
// neither are other statuses such as 502.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "ThrottlingException", "RequestThrottled", "SlowDown",
			"ProvisionedThroughputExceededException",
			"InternalError", "ServiceUnavailable", "ServiceException", "InternalServiceException":
			return true
		case "NoSuchKey", "NotFound", "AccessDenied", "Forbidden", "InvalidRequest":
			return false
		}
	}

	msg := err.Error()
	for _, s := range []string{
		"connection reset", "connection refused", "i/o timeout", "temporary failure",
		"status 408", "status 429", "status 503", "status 504", "500",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Retryable implements upload.RetryableError so upload.Client can
// classify errors returned from this transport without string matching.
type classifiedError struct {
	err       error
	retryable bool
}

func (c classifiedError) Error() string   { return c.err.Error() }
func (c classifiedError) Unwrap() error   { return c.err }
func (c classifiedError) Retryable() bool { return c.retryable }

func classify(err error) error {
	if err == nil {
		return nil
	}
	return classifiedError{err: err, retryable: isRetryableError(err)}
}

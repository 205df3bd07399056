package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the ingest pipeline.
// Use these keys consistently so aggregated logs can be queried by field
// rather than by message text.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// File System Operations
	// ========================================================================
	KeyPath       = "path"        // Full file/directory path
	KeyFilename   = "filename"    // File or directory name (basename)
	KeyDirectory  = "directory"   // Watched directory root
	KeySize       = "size"        // File size in bytes
	KeyEncoding   = "encoding"    // Detected text encoding (utf-8, utf-16le, shift_jis, ...)
	KeyConfidence = "confidence"  // Encoding detection confidence score

	// ========================================================================
	// JSONL Parsing & Validation
	// ========================================================================
	KeyLineNumber  = "line_number"  // 1-based line number within the source file
	KeyRecordCount = "record_count" // Number of records parsed/validated/flushed
	KeyFieldName   = "field_name"   // Name of the field that failed validation
	KeyReason      = "reason"       // Human-readable reason for a rejection

	// ========================================================================
	// Batching
	// ========================================================================
	KeyBatchID     = "batch_id"     // Batch instance identifier
	KeyBatchBytes  = "batch_bytes"  // Estimated byte size of a batch
	KeyFlushReason = "flush_reason" // size, count, idle_timeout, or forced

	// ========================================================================
	// Upload
	// ========================================================================
	KeyCorrelationID = "correlation_id" // Upload correlation id (SAS request -> PUT -> notify)
	KeyDeviceID      = "device_id"      // IoT device identifier
	KeyContentType   = "content_type"   // MIME type inferred for the uploaded blob
	KeyConnState     = "conn_state"     // Upload connection state machine state
	KeyAttempt       = "attempt"        // Retry attempt number
	KeyMaxRetries    = "max_retries"    // Maximum retry attempts
	KeyBackoff       = "backoff"        // Backoff duration before next retry

	// ========================================================================
	// Retention
	// ========================================================================
	KeyAgeDays         = "age_days"          // Age of a file in days at retention evaluation time
	KeyArchivePath     = "archive_path"      // Destination path of a compressed archive
	KeyBytesReclaimed  = "bytes_reclaimed"   // Bytes freed by a cleanup pass
	KeyDiskFreePercent = "disk_free_percent" // Free disk space percentage at check time

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorKind  = "error_kind"  // Parse, Validation, Processing, or Encoding
	KeySource     = "source"      // Originating component name
	KeyOperation  = "operation"   // Sub-operation type for complex operations
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Path returns a slog.Attr for file/directory path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Filename returns a slog.Attr for filename (basename)
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// Directory returns a slog.Attr for a watched directory root
func Directory(dir string) slog.Attr {
	return slog.String(KeyDirectory, dir)
}

// Size returns a slog.Attr for file size
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// Encoding returns a slog.Attr for detected text encoding
func Encoding(enc string) slog.Attr {
	return slog.String(KeyEncoding, enc)
}

// Confidence returns a slog.Attr for encoding detection confidence
func Confidence(score float64) slog.Attr {
	return slog.Float64(KeyConfidence, score)
}

// LineNumber returns a slog.Attr for a 1-based line number
func LineNumber(n int) slog.Attr {
	return slog.Int(KeyLineNumber, n)
}

// RecordCount returns a slog.Attr for a number of records
func RecordCount(n int) slog.Attr {
	return slog.Int(KeyRecordCount, n)
}

// FieldName returns a slog.Attr for a field that failed validation
func FieldName(name string) slog.Attr {
	return slog.String(KeyFieldName, name)
}

// Reason returns a slog.Attr for a human-readable rejection reason
func Reason(reason string) slog.Attr {
	return slog.String(KeyReason, reason)
}

// BatchID returns a slog.Attr for a batch instance identifier
func BatchID(id string) slog.Attr {
	return slog.String(KeyBatchID, id)
}

// BatchBytes returns a slog.Attr for the estimated byte size of a batch
func BatchBytes(n int64) slog.Attr {
	return slog.Int64(KeyBatchBytes, n)
}

// FlushReason returns a slog.Attr for why a batch was flushed
func FlushReason(reason string) slog.Attr {
	return slog.String(KeyFlushReason, reason)
}

// CorrelationID returns a slog.Attr for an upload correlation id
func CorrelationID(id string) slog.Attr {
	return slog.String(KeyCorrelationID, id)
}

// DeviceID returns a slog.Attr for the IoT device identifier
func DeviceID(id string) slog.Attr {
	return slog.String(KeyDeviceID, id)
}

// ContentType returns a slog.Attr for the inferred MIME type
func ContentType(ct string) slog.Attr {
	return slog.String(KeyContentType, ct)
}

// ConnState returns a slog.Attr for the upload connection state
func ConnState(state string) slog.Attr {
	return slog.String(KeyConnState, state)
}

// Attempt returns a slog.Attr for retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for maximum retry attempts
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// Backoff returns a slog.Attr for a backoff duration
func Backoff(d string) slog.Attr {
	return slog.String(KeyBackoff, d)
}

// AgeDays returns a slog.Attr for a file's age in days
func AgeDays(days int) slog.Attr {
	return slog.Int(KeyAgeDays, days)
}

// ArchivePath returns a slog.Attr for a compressed archive's destination path
func ArchivePath(p string) slog.Attr {
	return slog.String(KeyArchivePath, p)
}

// BytesReclaimed returns a slog.Attr for bytes freed during cleanup
func BytesReclaimed(n int64) slog.Attr {
	return slog.Int64(KeyBytesReclaimed, n)
}

// DiskFreePercent returns a slog.Attr for free disk space percentage
func DiskFreePercent(pct float64) slog.Attr {
	return slog.Float64(KeyDiskFreePercent, pct)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorKind returns a slog.Attr for the taxonomy of an ingest error
func ErrorKind(kind string) slog.Attr {
	return slog.String(KeyErrorKind, kind)
}

// Source returns a slog.Attr for the originating component name
func Source(src string) slog.Attr {
	return slog.String(KeySource, src)
}

// Operation returns a slog.Attr for sub-operation type
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Package model holds the pipeline's core data types: the normalized log
// record, the per-file job state machine, batches, connection state, and
// the retention and ledger entries derived from them.
package model

import (
	"strings"
	"time"
)

// Severity is the normalized log level of a LogRecord.
type Severity string

const (
	SeverityDebug    Severity = "Debug"
	SeverityInfo     Severity = "Info"
	SeverityWarning  Severity = "Warning"
	SeverityError    Severity = "Error"
	SeverityCritical Severity = "Critical"
)

// ParseSeverity canonicalizes a case-insensitive input string into one of
// the five enumerated severities. ok is false if the input does not match
// any known severity.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return SeverityDebug, true
	case "info":
		return SeverityInfo, true
	case "warning", "warn":
		return SeverityWarning, true
	case "error":
		return SeverityError, true
	case "critical":
		return SeverityCritical, true
	default:
		return "", false
	}
}

// RecordError is the optional nested error payload on a LogRecord.
type RecordError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// LogRecord is a normalized log entry flowing through the pipeline: parsed
// by the JSONL parser, mutated only by the validator (metadata assignment
// and HTML-escaping), then immutable through batching and upload.
type LogRecord struct {
	ID       string       `json:"id"`
	DeviceID string       `json:"device_id"`
	Timestamp time.Time   `json:"timestamp"`
	Level    Severity     `json:"level"`
	Message  string       `json:"message"`
	Category string       `json:"category,omitempty"`
	Tags     []string     `json:"tags,omitempty"`
	Error    *RecordError `json:"error,omitempty"`

	// Pipeline-assigned metadata, not present in the wire format.
	SourceFile  string    `json:"source_file"`
	ProcessedAt time.Time `json:"processed_at"`
}

// EstimatedBytes approximates the record's contribution to a batch's byte
// budget. This is a flush-triggering heuristic only, not a wire framing
// size (spec §4.6): the sum of several string field lengths plus a fixed
// per-record overhead.
func (r LogRecord) EstimatedBytes() int64 {
	const overhead = 100
	return int64(len(r.ID)+len(r.DeviceID)+len(r.Message)+len(r.Level)+len(r.SourceFile)) + overhead
}

// FileState is the lifecycle state of a FileJob.
type FileState string

const (
	FileTracked   FileState = "Tracked"
	FileStable    FileState = "Stable"
	FileParsing   FileState = "Parsing"
	FileUploading FileState = "Uploading"
	FileProcessed FileState = "Processed"
	FileFailed    FileState = "Failed"
)

// CanTransition reports whether the state machine permits moving from s to
// next. Failed is reachable from any non-terminal state; otherwise
// transitions follow Tracked -> Stable -> Parsing -> Uploading -> Processed.
func (s FileState) CanTransition(next FileState) bool {
	if next == FileFailed {
		return s != FileProcessed && s != FileFailed
	}
	order := map[FileState]int{
		FileTracked:   0,
		FileStable:    1,
		FileParsing:   2,
		FileUploading: 3,
		FileProcessed: 4,
	}
	from, ok1 := order[s]
	to, ok2 := order[next]
	return ok1 && ok2 && to == from+1
}

// FileJob is a unit of work representing one observed file. Only one active
// job exists per path at a time; the orchestrator is the sole owner of the
// job registry.
type FileJob struct {
	Path         string
	FirstSeen    time.Time
	LastModified time.Time
	Size         int64
	State        FileState
}

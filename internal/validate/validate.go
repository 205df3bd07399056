// Package validate implements the Validator (C3): a pure, I/O-free rule
// set applied to a parsed LogRecord before it is HTML-escaped and handed
// to the batch processor.
package validate

import (
	"fmt"
	"html"
	"time"

	"github.com/marmos91/edgelogd/internal/model"
)

const (
	maxMessageBytes = 32 * 1024
	maxTagLen       = 64
	maxTags         = 32
	maxPastWindow   = 10 * 365 * 24 * time.Hour
	maxFutureWindow = time.Hour
)

// Result is the outcome of validating a record.
type Result struct {
	OK     bool
	Errors []string
}

// Record checks a LogRecord against the schema rules in spec §4.3. It does
// not mutate the record; escaping is a separate step (Escape) invoked by
// the caller only after a successful Record validation.
func Record(r *model.LogRecord, now time.Time) Result {
	var errs []string

	if r.ID == "" {
		errs = append(errs, "id must be non-empty")
	}
	if r.DeviceID == "" {
		errs = append(errs, "device_id must be non-empty")
	}
	if r.Message == "" {
		errs = append(errs, "message must be non-empty")
	} else if len(r.Message) > maxMessageBytes {
		errs = append(errs, fmt.Sprintf("message exceeds %d bytes", maxMessageBytes))
	}

	if r.Timestamp.IsZero() {
		errs = append(errs, "timestamp must be present")
	} else {
		earliest := now.Add(-maxPastWindow)
		latest := now.Add(maxFutureWindow)
		if r.Timestamp.Before(earliest) || r.Timestamp.After(latest) {
			errs = append(errs, "timestamp out of acceptable range")
		}
	}

	switch r.Level {
	case model.SeverityDebug, model.SeverityInfo, model.SeverityWarning, model.SeverityError, model.SeverityCritical:
	default:
		errs = append(errs, fmt.Sprintf("unrecognized level: %q", r.Level))
	}

	if len(r.Tags) > maxTags {
		errs = append(errs, fmt.Sprintf("too many tags: %d > %d", len(r.Tags), maxTags))
	}
	for _, tag := range r.Tags {
		if len(tag) > maxTagLen {
			errs = append(errs, fmt.Sprintf("tag exceeds %d characters: %q", maxTagLen, tag))
			break
		}
	}

	return Result{OK: len(errs) == 0, Errors: errs}
}

// Escape HTML-entity-escapes user-controlled string fields in place as
// defense-in-depth against downstream XSS (spec §3). source_file and
// error.stack are left untouched: the former is a path, the latter a raw
// diagnostic blob meant for operators, not a rendering surface.
func Escape(r *model.LogRecord) {
	r.ID = html.EscapeString(r.ID)
	r.DeviceID = html.EscapeString(r.DeviceID)
	r.Message = html.EscapeString(r.Message)
	r.Category = html.EscapeString(r.Category)
	for i, tag := range r.Tags {
		r.Tags[i] = html.EscapeString(tag)
	}
	if r.Error != nil {
		r.Error.Code = html.EscapeString(r.Error.Code)
		r.Error.Message = html.EscapeString(r.Error.Message)
	}
}

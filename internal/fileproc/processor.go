// Package fileproc implements the File Processor (C4): orchestrates
// encoding detection, JSONL parsing, and validation for one file, emitting
// a per-file summary.
package fileproc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	edgencoding "github.com/marmos91/edgelogd/internal/encoding"
	"github.com/marmos91/edgelogd/internal/jsonl"
	"github.com/marmos91/edgelogd/internal/logger"
	"github.com/marmos91/edgelogd/internal/metrics"
	"github.com/marmos91/edgelogd/internal/model"
	"github.com/marmos91/edgelogd/internal/validate"
)

const maxSampleInvalidLogs = 10

// Options configures the should_process pre-filter and main-path limits.
type Options struct {
	FileExtensions       []string // allow-list; list wins if non-empty
	FileFilter           string   // glob, used only when FileExtensions is empty
	LargeFileSizeThreshold int64
}

// Sink receives valid records as the file is processed; the batch
// processor is the production sink, tests may use a simple slice
// collector.
type Sink interface {
	Add(ctx context.Context, record *model.LogRecord) bool
}

// Process runs should_process then, if the file is a target, the full
// detect -> parse -> validate -> escape -> sink pipeline (spec §4.4).
func Process(ctx context.Context, path string, opts Options, sink Sink) model.FileProcessingResult {
	start := time.Now()

	info, target, err := shouldProcess(path, opts)
	if err != nil {
		return model.FileProcessingResult{Success: false, Err: err, DurationMs: logger.Duration(start)}
	}
	if !target {
		return model.FileProcessingResult{Success: true, DurationMs: logger.Duration(start)}
	}

	enc, err := edgencoding.Detect(path)
	if err != nil {
		return model.FileProcessingResult{Success: false, Err: err, FileSize: info.Size(), DurationMs: logger.Duration(start)}
	}

	r, err := jsonl.Open(path, enc.Encoding)
	if err != nil {
		return model.FileProcessingResult{Success: false, Err: err, FileSize: info.Size(), DurationMs: logger.Duration(start)}
	}
	defer r.Close()

	valid, invalid := 0, 0
	sampleLogged := 0
	now := time.Now()

	for lr := range r.Lines(ctx) {
		if lr.Err != nil {
			invalid++
			metrics.RecordValidation("invalid")
			if sampleLogged < maxSampleInvalidLogs {
				logger.Warn("rejected jsonl line",
					logger.Path(path), logger.LineNumber(lr.Err.LineNo),
					logger.ErrorKind(string(lr.Err.Kind)), logger.Reason(lr.Err.Message))
				sampleLogged++
			}
			continue
		}

		res := validate.Record(lr.Record, now)
		if !res.OK {
			invalid++
			metrics.RecordValidation("invalid")
			if sampleLogged < maxSampleInvalidLogs {
				logger.Warn("rejected jsonl record",
					logger.Path(path), logger.LineNumber(lr.LineNo),
					logger.ErrorKind(string(model.ErrorKindValidation)),
					logger.Reason(strings.Join(res.Errors, "; ")))
				sampleLogged++
			}
			continue
		}

		validate.Escape(lr.Record)
		if !sink.Add(ctx, lr.Record) {
			// Cancelled: stop consuming but keep counts already gathered.
			break
		}
		valid++
		metrics.RecordValidation("valid")
	}

	return model.FileProcessingResult{
		Success:          true,
		ProcessedRecords: valid,
		InvalidRecords:   invalid,
		FileSize:         info.Size(),
		DurationMs:       logger.Duration(start),
	}
}

// shouldProcess implements the pre-filter (spec §4.4). It returns the
// file's FileInfo, whether the file is a processing target, and a non-nil
// error only for an IO failure that should fail the whole file.
func shouldProcess(path string, opts Options) (os.FileInfo, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, err
	}

	if !matchesFilter(path, opts) {
		return info, false, nil
	}

	if opts.LargeFileSizeThreshold > 0 && info.Size() > opts.LargeFileSizeThreshold {
		return info, false, nil
	}

	if err := probeSharedRead(path); err != nil {
		return info, false, nil
	}

	return info, true, nil
}

// matchesFilter applies the allow-list/glob precedence decided in
// DESIGN.md for spec §9's open question: FileExtensions wins if
// non-empty, else FileFilter, else accept all.
func matchesFilter(path string, opts Options) bool {
	if len(opts.FileExtensions) > 0 {
		ext := strings.ToLower(filepath.Ext(path))
		for _, allowed := range opts.FileExtensions {
			if strings.ToLower(allowed) == ext {
				return true
			}
		}
		return false
	}

	if opts.FileFilter != "" {
		ok, err := filepath.Match(opts.FileFilter, filepath.Base(path))
		return err == nil && ok
	}

	return true
}

// Package jsonl implements the JSONL Parser (C2): streams a file as a lazy
// sequence of parsed records or per-line errors, with bounded memory.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"

	edgencoding "github.com/marmos91/edgelogd/internal/encoding"
	"github.com/marmos91/edgelogd/internal/model"
)

// LineResult is either a successfully parsed record or a per-line error.
// Exactly one of Record/Err is non-nil.
type LineResult struct {
	LineNo int
	Record *model.LogRecord
	Err    *model.ProcessingError
}

// wireRecord mirrors the on-disk JSONL schema (spec §6); case-insensitive
// key matching is handled by encoding/json's default unmarshal behavior.
type wireRecord struct {
	ID        string          `json:"id"`
	DeviceID  string          `json:"device_id"`
	Timestamp json.RawMessage `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Category  string          `json:"category"`
	Tags      []string        `json:"tags"`
	Error     *wireError      `json:"error"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// Reader streams one file's lines, decoding from the detected encoding.
type Reader struct {
	f      *os.File
	sc     *bufio.Scanner
	source string
}

// Open prepares a Reader for the file at path using the given encoding.
func Open(path string, enc edgencoding.Name) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("jsonl: open %s: %w", path, err)
	}

	var r io.Reader = f
	if dec := decoderFor(enc); dec != nil {
		r = dec.Reader(f)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &Reader{f: f, sc: sc, source: path}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

// decoderFor returns a text-encoding decoder for the non-UTF-8 cases this
// parser supports natively. UTF-32 variants are rare in practice for JSONL
// log shipping and x/text has no first-class UTF-32 codec, so callers
// that detect UTF-32 get raw bytes decoded on a best-effort basis by the
// json package itself (which accepts only UTF-8); this is documented as a
// known limitation rather than hand-rolling a UTF-32 transformer.
func decoderFor(enc edgencoding.Name) *encoding.Decoder {
	switch enc {
	case edgencoding.UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	case edgencoding.UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	case edgencoding.ShiftJIS:
		return japanese.ShiftJIS.NewDecoder()
	default:
		return nil
	}
}

// Lines returns a lazy sequence of parsed lines. Cancellation is checked
// between lines; a cancelled context stops iteration without an error,
// leaving partial output observable to the caller (spec §4.2, §5).
func (r *Reader) Lines(ctx context.Context) iter.Seq[LineResult] {
	return func(yield func(LineResult) bool) {
		lineNo := 0
		for r.sc.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			lineNo++
			line := r.sc.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}

			result := r.parseLine(lineNo, line)
			if !yield(result) {
				return
			}
		}
	}
}

func (r *Reader) parseLine(lineNo int, line string) LineResult {
	var wr wireRecord
	if err := json.Unmarshal([]byte(line), &wr); err != nil {
		return LineResult{LineNo: lineNo, Err: &model.ProcessingError{
			LineNo:  lineNo,
			Content: line,
			Kind:    model.ErrorKindParse,
			Message: fmt.Sprintf("malformed json: %v", err),
		}}
	}

	ts, err := parseTimestamp(wr.Timestamp)
	if err != nil {
		return LineResult{LineNo: lineNo, Err: &model.ProcessingError{
			LineNo:  lineNo,
			Content: line,
			Kind:    model.ErrorKindParse,
			Message: fmt.Sprintf("invalid timestamp: %v", err),
		}}
	}

	// level enum membership is a Validator (C3) rule, not a parse failure:
	// an unrecognized level is passed through verbatim so validate.Record
	// can reject it as a Validation error rather than a Parse error.
	level, ok := model.ParseSeverity(wr.Level)
	if !ok {
		level = model.Severity(wr.Level)
	}

	rec := &model.LogRecord{
		ID:        wr.ID,
		DeviceID:  wr.DeviceID,
		Timestamp: ts,
		Level:     level,
		Message:   wr.Message,
		Category:  wr.Category,
		Tags:      wr.Tags,
	}
	if wr.Error != nil {
		rec.Error = &model.RecordError{
			Code:    wr.Error.Code,
			Message: wr.Error.Message,
			Stack:   wr.Error.Stack,
		}
	}

	rec.SourceFile = r.source
	rec.ProcessedAt = time.Now()

	return LineResult{LineNo: lineNo, Record: rec}
}

// parseTimestamp first tries a direct RFC3339/ISO-8601 unmarshal via
// time.Time's own UnmarshalJSON, then falls back to treating the raw
// content as a bare ISO-8601 string (spec §4.2 / §8 boundary case).
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}

	var t time.Time
	if err := t.UnmarshalJSON(raw); err == nil {
		return t, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("timestamp is neither RFC3339 nor a string: %w", err)
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("unparseable ISO-8601 timestamp %q: %w", s, err)
		}
	}
	return t, nil
}

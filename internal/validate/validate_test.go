package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/marmos91/edgelogd/internal/model"
)

func baseRecord(now time.Time) *model.LogRecord {
	return &model.LogRecord{
		ID:        "1",
		DeviceID:  "d1",
		Timestamp: now,
		Level:     model.SeverityInfo,
		Message:   "hello",
	}
}

func TestRecord_ValidPasses(t *testing.T) {
	now := time.Now()
	res := Record(baseRecord(now), now)
	if !res.OK {
		t.Fatalf("expected valid record to pass, got errors: %v", res.Errors)
	}
}

func TestRecord_RejectsEmptyID(t *testing.T) {
	now := time.Now()
	r := baseRecord(now)
	r.ID = ""

	res := Record(r, now)
	if res.OK {
		t.Fatal("expected rejection for empty id")
	}
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, "id") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an error mentioning id, got %v", res.Errors)
	}
}

func TestRecord_RejectsOldTimestamp(t *testing.T) {
	now := time.Now()
	r := baseRecord(now.AddDate(-11, 0, 0))

	res := Record(r, now)
	if res.OK {
		t.Fatal("expected rejection for timestamp outside the 10-year window")
	}
}

func TestRecord_RejectsFarFutureTimestamp(t *testing.T) {
	now := time.Now()
	r := baseRecord(now.Add(2 * time.Hour))

	res := Record(r, now)
	if res.OK {
		t.Fatal("expected rejection for timestamp more than 1 hour in the future")
	}
}

func TestRecord_RejectsOversizedMessage(t *testing.T) {
	now := time.Now()
	r := baseRecord(now)
	r.Message = strings.Repeat("x", maxMessageBytes+1)

	res := Record(r, now)
	if res.OK {
		t.Fatal("expected rejection for oversized message")
	}
}

func TestRecord_RejectsTooManyTags(t *testing.T) {
	now := time.Now()
	r := baseRecord(now)
	for i := 0; i < maxTags+1; i++ {
		r.Tags = append(r.Tags, "t")
	}

	res := Record(r, now)
	if res.OK {
		t.Fatal("expected rejection for too many tags")
	}
}

func TestEscape_IsIdempotentWhenNoSpecialChars(t *testing.T) {
	r := &model.LogRecord{ID: "abc", DeviceID: "d1", Message: "plain text", Category: "cat", Tags: []string{"t1"}}

	Escape(r)
	first := *r
	Escape(r)

	if r.ID != first.ID || r.Message != first.Message || r.Category != first.Category {
		t.Errorf("expected escape to be idempotent for plain text, got %+v vs %+v", r, first)
	}
}

func TestEscape_EscapesHTMLMetacharacters(t *testing.T) {
	r := &model.LogRecord{ID: "<script>", Message: "a & b"}
	Escape(r)

	if strings.Contains(r.ID, "<script>") {
		t.Errorf("expected id to be escaped, got %q", r.ID)
	}
	if !strings.Contains(r.Message, "&amp;") {
		t.Errorf("expected message to be escaped, got %q", r.Message)
	}
}

func TestEscape_LeavesSourceFileAndStackAlone(t *testing.T) {
	r := &model.LogRecord{
		ID:         "1",
		SourceFile: "/var/log/<weird>.jsonl",
		Error:      &model.RecordError{Stack: "<trace>"},
	}
	Escape(r)

	if r.SourceFile != "/var/log/<weird>.jsonl" {
		t.Errorf("expected source_file to be untouched, got %q", r.SourceFile)
	}
	if r.Error.Stack != "<trace>" {
		t.Errorf("expected error.stack to be untouched, got %q", r.Error.Stack)
	}
}

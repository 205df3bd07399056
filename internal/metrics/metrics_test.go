package metrics

import "testing"

func TestInitRegistry_IsIdempotentAndEnablesCollectors(t *testing.T) {
	InitRegistry()
	InitRegistry()

	if !IsEnabled() {
		t.Fatal("expected metrics to report enabled after InitRegistry")
	}
	if Handler() == nil {
		t.Fatal("expected a non-nil scrape handler once enabled")
	}

	RecordFileDetected("jsonl")
	RecordValidation("valid")
	RecordBatchFlush(4096)
	RecordUploadAttempt("success")
	RecordRetentionAction("compress")
	SetConnectionState(2)
}

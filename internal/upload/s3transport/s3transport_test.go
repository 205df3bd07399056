package s3transport

import (
	"errors"
	"net"
	"testing"
	"time"
)

func TestParseConnectionString_HappyPath(t *testing.T) {
	cs, err := ParseConnectionString("HostName=edge.example.com;DeviceId=sensor-01;SharedAccessKey=c2VjcmV0")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if cs.HostName != "edge.example.com" || cs.DeviceID != "sensor-01" || cs.SharedAccessKey != "c2VjcmV0" {
		t.Errorf("unexpected parsed fields: %+v", cs)
	}
}

func TestParseConnectionString_MissingFieldRejected(t *testing.T) {
	_, err := ParseConnectionString("HostName=edge.example.com;DeviceId=sensor-01")
	if err == nil {
		t.Error("expected error for a connection string missing SharedAccessKey")
	}
}

func TestSignResourceURI_IsDeterministicForSameInputs(t *testing.T) {
	cs := ConnectionString{SharedAccessKey: "c2VjcmV0a2V5"}
	expiry := time.Unix(1700000000, 0)

	sig1, err := SignResourceURI(cs, "https://bucket.s3.example.com/logs/1.jsonl", expiry)
	if err != nil {
		t.Fatalf("unexpected signing error: %v", err)
	}
	sig2, _ := SignResourceURI(cs, "https://bucket.s3.example.com/logs/1.jsonl", expiry)

	if sig1 != sig2 {
		t.Error("expected identical inputs to produce identical signatures")
	}
}

func TestSignResourceURI_RejectsNonBase64Key(t *testing.T) {
	cs := ConnectionString{SharedAccessKey: "not-valid-base64!!"}
	_, err := SignResourceURI(cs, "https://example.com/x", time.Now())
	if err == nil {
		t.Error("expected an error for a non-base64 shared access key")
	}
}

func TestIsRetryableError_ClassifiesKnownTransientPatterns(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
	}{
		{httpStatusError{status: 503}, true},
		{httpStatusError{status: 429}, true},
		{httpStatusError{status: 400}, false},
		{errors.New("connection reset by peer"), true},
		{&net.OpError{Op: "dial", Err: errNonTimeout{}}, false},
	}

	for _, c := range cases {
		if got := isRetryableError(c.err); got != c.retryable {
			t.Errorf("isRetryableError(%v) = %v, want %v", c.err, got, c.retryable)
		}
	}
}

type errNonTimeout struct{}

func (errNonTimeout) Error() string { return "permanent failure" }

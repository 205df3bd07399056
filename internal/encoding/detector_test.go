package encoding

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.jsonl")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestDetect_UTF8BOM(t *testing.T) {
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"id":"1"}`)...)
	path := writeTemp(t, content)

	res, err := Detect(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Encoding != UTF8 || !res.HasBOM || res.Confidence != 1.0 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestDetect_PlainUTF8(t *testing.T) {
	path := writeTemp(t, []byte(`{"id":"1","device_id":"d1","message":"hello"}`+"\n"))

	res, err := Detect(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Encoding != UTF8 || res.HasBOM {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Confidence != 1.0 {
		t.Errorf("expected full confidence for valid utf-8, got %f", res.Confidence)
	}
}

func TestDetect_FileNotFound(t *testing.T) {
	_, err := Detect(filepath.Join(t.TempDir(), "missing.jsonl"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDetect_IsPureFunctionOfContent(t *testing.T) {
	content := []byte(`{"id":"1"}` + "\n" + `{"id":"2"}`)
	pathA := writeTemp(t, content)
	pathB := writeTemp(t, content)

	resA, err := Detect(pathA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resB, err := Detect(pathB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resA != resB {
		t.Errorf("expected identical detection for identical content: %+v vs %+v", resA, resB)
	}
}

// Package encoding implements the Encoding Detector (C1): given a file
// path, determine the text encoding used to decode it before the JSONL
// parser streams it line by line.
package encoding

import (
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Name identifies a detected text encoding.
type Name string

const (
	UTF8      Name = "utf-8"
	UTF16LE   Name = "utf-16le"
	UTF16BE   Name = "utf-16be"
	UTF32LE   Name = "utf-32le"
	UTF32BE   Name = "utf-32be"
	ShiftJIS  Name = "shift_jis"
)

const sampleSize = 4096

// Result is the outcome of detecting a file's encoding.
type Result struct {
	Encoding   Name
	HasBOM     bool
	Confidence float64
	Warning    string
}

// bomEntry pairs a byte-order-mark prefix with the encoding it signals.
type bomEntry struct {
	prefix []byte
	name   Name
}

// bomTable is checked longest-prefix-first so UTF-32LE (which shares its
// first two bytes with UTF-16LE's BOM) is not masked by the shorter entry.
var bomTable = []bomEntry{
	{[]byte{0xEF, 0xBB, 0xBF}, UTF8},
	{[]byte{0xFF, 0xFE, 0x00, 0x00}, UTF32LE},
	{[]byte{0x00, 0x00, 0xFE, 0xFF}, UTF32BE},
	{[]byte{0xFF, 0xFE}, UTF16LE},
	{[]byte{0xFE, 0xFF}, UTF16BE},
}

// Detect returns the detected encoding for the file at path. It never
// returns an error for a readable file with undetectable content; it
// falls back to UTF-8 at reduced confidence instead (spec §4.1).
func Detect(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("encoding: open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, sampleSize)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return Result{}, fmt.Errorf("encoding: read %s: %w", path, err)
	}
	sample := buf[:n]

	if name, ok := matchBOM(sample); ok {
		return Result{Encoding: name, HasBOM: true, Confidence: 1.0}, nil
	}

	if utf8.Valid(sample) {
		return Result{Encoding: UTF8, HasBOM: false, Confidence: 1.0}, nil
	}

	if looksLikeShiftJIS(sample) {
		return Result{Encoding: ShiftJIS, HasBOM: false, Confidence: 0.8}, nil
	}

	return Result{
		Encoding:   UTF8,
		HasBOM:     false,
		Confidence: 0.5,
		Warning:    "could not confidently determine encoding; defaulting to utf-8",
	}, nil
}

func matchBOM(sample []byte) (Name, bool) {
	for _, entry := range bomTable {
		if len(sample) >= len(entry.prefix) && hasPrefix(sample, entry.prefix) {
			return entry.name, true
		}
	}
	return "", false
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if b[i] != p {
			return false
		}
	}
	return true
}

// looksLikeShiftJIS scores byte pairs against the Shift-JIS lead/trail
// ranges (spec §4.1 step 3), then cross-checks against x/text/japanese's
// decoder so a sample that merely resembles Shift-JIS byte-wise but fails
// to actually decode doesn't win out over the UTF-8 fallback.
func looksLikeShiftJIS(sample []byte) bool {
	pairs := 0
	covered := 0

	for i := 0; i+1 < len(sample); i++ {
		b1, b2 := sample[i], sample[i+1]
		if isShiftJISLead(b1) && isShiftJISTrail(b2) {
			pairs++
			covered += 2
			i++ // consume the pair
		}
	}

	if pairs < 10 || float64(covered) < 0.10*float64(len(sample)) {
		return false
	}

	_, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), sample)
	return err == nil
}

func isShiftJISLead(b byte) bool {
	return (b >= 0x81 && b <= 0x9F) || (b >= 0xE0 && b <= 0xFC)
}

func isShiftJISTrail(b byte) bool {
	return (b >= 0x40 && b <= 0x7E) || (b >= 0x80 && b <= 0xFC)
}

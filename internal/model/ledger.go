package model

import (
	"strconv"
	"time"
)

// LedgerEntry is the durable, SQLite-backed record of a FileJob's lifecycle
// (C11, SPEC_FULL §3 [ADD]). One row per observed path, upserted on every
// state transition, so a crash mid-pipeline can be reconciled on restart
// without re-walking files the stability detector has not yet re-tracked.
type LedgerEntry struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	Path           string `gorm:"uniqueIndex"`
	State          string
	FirstSeen      time.Time
	LastTransition time.Time
	SizeBytes      int64
	ErrorMessage   string
	CorrelationID  string
}

// TableName pins the GORM table name rather than relying on pluralization.
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// DedupRecord is the BadgerDB-backed restart fast path (C12, SPEC_FULL §3
// [ADD]): keyed by path|size|mtime_unixnano, valued by the instant the
// file was marked Processed, with a TTL matching retention.retention_days.
type DedupRecord struct {
	Key         string
	ProcessedAt time.Time
}

// DedupKey builds the composite key used by the dedup index.
func DedupKey(path string, size int64, mtime time.Time) string {
	return path + "|" + strconv.FormatInt(size, 10) + "|" + strconv.FormatInt(mtime.UnixNano(), 10)
}

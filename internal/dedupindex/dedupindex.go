// Package dedupindex implements the Dedup Index (C12): a BadgerDB-backed
// fast path recording which (path, size, mtime) tuples have already been
// fully processed, so a restart doesn't re-upload files the ledger would
// otherwise have to scan for.
package dedupindex

import (
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/edgelogd/internal/model"
)

// Index wraps a BadgerDB instance keyed by model.DedupKey.
type Index struct {
	db *badger.DB
}

// Open opens (creating if needed) the dedup index at dir.
func Open(dir string) (*Index, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("dedupindex: open: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Seen reports whether path/size/mtime has already been recorded as
// processed.
func (idx *Index) Seen(path string, size int64, mtime time.Time) (bool, error) {
	key := []byte(model.DedupKey(path, size, mtime))

	found := false
	err := idx.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("dedupindex: lookup: %w", err)
	}
	return found, nil
}

// MarkProcessed records path/size/mtime as fully processed, with a TTL so
// the index doesn't grow unbounded once the retention window has passed.
func (idx *Index) MarkProcessed(path string, size int64, mtime time.Time, ttl time.Duration) error {
	key := []byte(model.DedupKey(path, size, mtime))
	value := []byte(time.Now().UTC().Format(time.RFC3339))

	return idx.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// RunGC triggers BadgerDB's value-log garbage collection. Intended to be
// called periodically (e.g. alongside the retention manager's cadences);
// badger.ErrNoRewrite is not an error condition, just "nothing to do".
func (idx *Index) RunGC(discardRatio float64) error {
	err := idx.db.RunValueLogGC(discardRatio)
	if err == badger.ErrNoRewrite {
		return nil
	}
	return err
}

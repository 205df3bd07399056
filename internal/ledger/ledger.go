// Package ledger implements the Job Ledger (C11): a durable record of
// per-file processing state that survives restarts. The orchestrator writes
// every state transition; edgelogctl logs reads the entries back.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/edgelogd/internal/model"
)

// ErrNotFound is returned when no ledger entry exists for a path.
var ErrNotFound = errors.New("ledger: entry not found")

// Ledger is the durable job ledger, backed by a pure-Go SQLite driver so
// the agent carries no CGo dependency.
type Ledger struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite-backed ledger at path and
// runs AutoMigrate.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("ledger: create parent directory: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: open database: %w", err)
	}

	if err := db.AutoMigrate(&model.LedgerEntry{}); err != nil {
		return nil, fmt.Errorf("ledger: migrate schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordTransition upserts the ledger entry for path, advancing its state
// and transition timestamp. Creates the entry on first touch.
func (l *Ledger) RecordTransition(ctx context.Context, path string, state model.FileState, size int64, correlationID string, transitionErr error) error {
	now := time.Now()

	var entry model.LedgerEntry
	err := l.db.WithContext(ctx).Where("path = ?", path).First(&entry).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		entry = model.LedgerEntry{
			Path:           path,
			State:          string(state),
			FirstSeen:      now,
			LastTransition: now,
			SizeBytes:      size,
			CorrelationID:  correlationID,
		}
		if transitionErr != nil {
			entry.ErrorMessage = transitionErr.Error()
		}
		return l.db.WithContext(ctx).Create(&entry).Error
	case err != nil:
		return fmt.Errorf("ledger: lookup %s: %w", path, err)
	}

	entry.State = string(state)
	entry.LastTransition = now
	entry.SizeBytes = size
	if correlationID != "" {
		entry.CorrelationID = correlationID
	}
	if transitionErr != nil {
		entry.ErrorMessage = transitionErr.Error()
	} else {
		entry.ErrorMessage = ""
	}

	return l.db.WithContext(ctx).Save(&entry).Error
}

// Get returns the ledger entry for path, or ErrNotFound.
func (l *Ledger) Get(ctx context.Context, path string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := l.db.WithContext(ctx).Where("path = ?", path).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get %s: %w", path, err)
	}
	return &entry, nil
}

// ListByState returns every entry currently in state; edgelogctl logs
// --state uses it to filter its listing.
func (l *Ledger) ListByState(ctx context.Context, state model.FileState) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	if err := l.db.WithContext(ctx).Where("state = ?", string(state)).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("ledger: list by state %s: %w", state, err)
	}
	return entries, nil
}

// Delete removes the ledger entry for path, once a file has been fully
// retained/archived and no longer needs tracking.
func (l *Ledger) Delete(ctx context.Context, path string) error {
	return l.db.WithContext(ctx).Where("path = ?", path).Delete(&model.LedgerEntry{}).Error
}

// List returns the most recent entries ordered by last transition,
// newest first. limit <= 0 means no limit. Used by operator tooling to
// render a recent-activity view without filtering by state.
func (l *Ledger) List(ctx context.Context, limit int) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	q := l.db.WithContext(ctx).Order("last_transition DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	return entries, nil
}

// Package reslife provides a small integer-keyed registry of io.Closer
// resources with idle-timeout force-release, used by the orchestrator to
// make sure the file handles it opens for uploads don't leak across a
// long-running agent's lifetime.
package reslife

import (
	"sync"
	"time"

	"github.com/marmos91/edgelogd/internal/clock"
	"github.com/marmos91/edgelogd/internal/logger"
)

const defaultIdleTimeout = 24 * time.Hour

// entry pairs a tracked resource with its last-touch instant.
type entry struct {
	closer    interface{ Close() error }
	lastTouch time.Time
	label     string
}

// Tracker is an integer-keyed registry of io.Closer-like resources.
type Tracker struct {
	clk         clock.Clock
	idleTimeout time.Duration

	mu      sync.Mutex
	nextID  int64
	entries map[int64]*entry
}

// New constructs a Tracker. idleTimeout defaults to 24h when zero.
func New(clk clock.Clock, idleTimeout time.Duration) *Tracker {
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	return &Tracker{
		clk:         clk,
		idleTimeout: idleTimeout,
		entries:     make(map[int64]*entry),
	}
}

// Register adds a resource under a fresh key and returns it. Touch must
// be called periodically by the owner to keep it from being force-released.
func (t *Tracker) Register(label string, closer interface{ Close() error }) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.entries[id] = &entry{closer: closer, lastTouch: t.clk.Now(), label: label}
	return id
}

// Touch refreshes the last-touch instant for key, preventing idle release.
func (t *Tracker) Touch(key int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[key]; ok {
		e.lastTouch = t.clk.Now()
	}
}

// Release removes and closes the resource under key, if present.
func (t *Tracker) Release(key int64) error {
	t.mu.Lock()
	e, ok := t.entries[key]
	if ok {
		delete(t.entries, key)
	}
	t.mu.Unlock()

	if !ok {
		return nil
	}
	return e.closer.Close()
}

// SweepIdle force-releases every resource that hasn't been touched within
// the idle timeout. Intended to run on a periodic tick owned by the
// orchestrator.
func (t *Tracker) SweepIdle() {
	now := t.clk.Now()

	t.mu.Lock()
	var stale []int64
	for id, e := range t.entries {
		if now.Sub(e.lastTouch) >= t.idleTimeout {
			stale = append(stale, id)
		}
	}
	t.mu.Unlock()

	for _, id := range stale {
		t.mu.Lock()
		e, ok := t.entries[id]
		if ok {
			delete(t.entries, id)
		}
		t.mu.Unlock()

		if !ok {
			continue
		}
		if err := e.closer.Close(); err != nil {
			logger.Warn("reslife: idle release failed to close resource", logger.Source(e.label), logger.Err(err))
		} else {
			logger.Debug("reslife: force-released idle resource", logger.Source(e.label))
		}
	}
}

// Len returns the number of currently tracked resources.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

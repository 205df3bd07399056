package watch

import (
	"sync"
	"time"

	"github.com/marmos91/edgelogd/internal/clock"
	"github.com/marmos91/edgelogd/internal/logger"
)

// StabilityProbe performs a non-exclusive read probe against path and
// reports whether the file can currently be opened for read without
// contention. Split out as a field so tests can substitute a fake without
// touching the real filesystem.
type StabilityProbe func(path string) error

// OnStable is invoked once a tracked path has passed its stabilization
// window and the read probe succeeds.
type OnStable func(path string)

// StabilityDetector maintains a path -> last-touch map and periodically
// promotes entries that have stopped changing (spec §4.5).
type StabilityDetector struct {
	clk                clock.Clock
	stabilizationAfter time.Duration
	checkInterval      time.Duration
	probeRetries       int
	probeBackoff       time.Duration
	probe              StabilityProbe
	onStable           OnStable

	mu         sync.Mutex
	lastTouch  map[string]time.Time
	done       chan struct{}
	stopOnce   sync.Once
}

// Config carries the tunables named in spec §6 under watch.*.
type Config struct {
	StabilizationPeriod time.Duration
	CheckInterval       time.Duration
	ProbeRetries        int
	ProbeBackoff        time.Duration
}

// NewStabilityDetector builds a detector using clk for all timing so tests
// can drive it deterministically with a clock.Fake.
func NewStabilityDetector(clk clock.Clock, cfg Config, probe StabilityProbe, onStable OnStable) *StabilityDetector {
	if cfg.ProbeRetries <= 0 {
		cfg.ProbeRetries = 3
	}
	if cfg.ProbeBackoff <= 0 {
		cfg.ProbeBackoff = 100 * time.Millisecond
	}
	return &StabilityDetector{
		clk:                clk,
		stabilizationAfter: cfg.StabilizationPeriod,
		checkInterval:      cfg.CheckInterval,
		probeRetries:       cfg.ProbeRetries,
		probeBackoff:       cfg.ProbeBackoff,
		probe:              probe,
		onStable:           onStable,
		lastTouch:          make(map[string]time.Time),
		done:               make(chan struct{}),
	}
}

// Track records (or refreshes) the last-touch instant for path. Called
// whenever the Directory Watcher observes a create/write event.
func (d *StabilityDetector) Track(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastTouch[path] = d.clk.Now()
}

// Run drives the periodic check loop until stopped. Intended to run in its
// own goroutine for the lifetime of the orchestrator.
func (d *StabilityDetector) Run() {
	ticker := d.clk.NewTicker(d.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.Chan():
			d.checkAll()
		}
	}
}

// Stop halts the Run loop. Safe to call multiple times.
func (d *StabilityDetector) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
}

func (d *StabilityDetector) checkAll() {
	now := d.clk.Now()

	d.mu.Lock()
	due := make([]string, 0, len(d.lastTouch))
	for path, touched := range d.lastTouch {
		if now.Sub(touched) >= d.stabilizationAfter {
			due = append(due, path)
		}
	}
	d.mu.Unlock()

	for _, path := range due {
		d.evaluate(path)
	}
}

// evaluate runs the non-exclusive read probe with retry, then removes the
// entry from tracking regardless of outcome: either it is now considered
// stable and handed off, or it stays untracked until the next touch event
// re-registers it.
func (d *StabilityDetector) evaluate(path string) {
	var lastErr error
	for attempt := 1; attempt <= d.probeRetries; attempt++ {
		if err := d.probe(path); err == nil {
			d.remove(path)
			logger.Debug("file stabilized", logger.Path(path), logger.Attempt(attempt))
			d.onStable(path)
			return
		} else {
			lastErr = err
		}
		if attempt < d.probeRetries {
			<-d.clk.After(d.probeBackoff)
		}
	}

	d.remove(path)
	logger.Warn("stability probe failed after retries, will re-arm on next touch",
		logger.Path(path), logger.MaxRetries(d.probeRetries), logger.Err(lastErr))
}

func (d *StabilityDetector) remove(path string) {
	d.mu.Lock()
	delete(d.lastTouch, path)
	d.mu.Unlock()
}

// Package watch implements the Directory Watcher (C6) and Stability
// Detector (C5): subscribes to filesystem create/modify events across N
// directories and decides when a file has stopped growing.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/edgelogd/internal/logger"
	"github.com/marmos91/edgelogd/internal/metrics"
)

// Watcher is the trait boundary named in SPEC_FULL §9 so the directory
// watcher can be swapped for a fake in tests without pulling in fsnotify.
type Watcher interface {
	Add(dir string) error
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

// Event is a filtered create/modify notification forwarded to the
// Stability Detector.
type Event struct {
	Path string
}

// FsnotifyWatcher is the production Watcher, backed by fsnotify.
type FsnotifyWatcher struct {
	inner          *fsnotify.Watcher
	maxDirectories int
	extensions     []string
	filter         string

	mu      sync.RWMutex
	dirs    map[string]struct{}
	events  chan Event
	errs    chan error
	closeWg sync.WaitGroup
}

// Options configures extension/glob filtering shared with the File
// Processor's should_process precedence rule.
type Options struct {
	MaxDirectories int
	FileExtensions []string
	FileFilter     string
}

// NewFsnotifyWatcher constructs a Watcher with a hard cap on directories
// (spec §4.5) and starts its event-translation goroutine.
func NewFsnotifyWatcher(opts Options) (*FsnotifyWatcher, error) {
	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &FsnotifyWatcher{
		inner:          inner,
		maxDirectories: opts.MaxDirectories,
		extensions:     opts.FileExtensions,
		filter:         opts.FileFilter,
		dirs:           make(map[string]struct{}),
		events:         make(chan Event, 256),
		errs:           make(chan error, 16),
	}

	w.closeWg.Add(1)
	go w.translate()

	return w, nil
}

// Add registers dir for create/modify notifications, enforcing the
// max_directories cap.
func (w *FsnotifyWatcher) Add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.dirs[dir]; exists {
		return nil
	}
	if w.maxDirectories > 0 && len(w.dirs) >= w.maxDirectories {
		return fmt.Errorf("watch: max_directories limit (%d) reached, refusing %s", w.maxDirectories, dir)
	}

	if err := w.inner.Add(dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", dir, err)
	}
	w.dirs[dir] = struct{}{}
	return nil
}

func (w *FsnotifyWatcher) Events() <-chan Event { return w.events }
func (w *FsnotifyWatcher) Errors() <-chan error { return w.errs }

// Close tears down the underlying fsnotify watcher and waits for the
// translation goroutine to drain.
func (w *FsnotifyWatcher) Close() error {
	err := w.inner.Close()
	w.closeWg.Wait()
	return err
}

func (w *FsnotifyWatcher) translate() {
	defer w.closeWg.Done()
	defer close(w.events)
	defer close(w.errs)

	for {
		select {
		case ev, ok := <-w.inner.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.matches(ev.Name) {
				continue
			}
			metrics.RecordFileDetected(strings.ToLower(filepath.Ext(ev.Name)))
			select {
			case w.events <- Event{Path: ev.Name}:
			default:
				logger.Warn("watch event dropped: events channel full", logger.Path(ev.Name))
			}
		case err, ok := <-w.inner.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *FsnotifyWatcher) matches(path string) bool {
	if len(w.extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(path))
		for _, allowed := range w.extensions {
			if strings.ToLower(allowed) == ext {
				return true
			}
		}
		return false
	}
	if w.filter != "" {
		ok, err := filepath.Match(w.filter, filepath.Base(path))
		return err == nil && ok
	}
	return true
}

// Pump is a convenience used by the orchestrator to pump Watcher
// events into a Stability Detector until ctx is cancelled.
func Pump(ctx context.Context, w Watcher, detector *StabilityDetector) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			detector.Track(ev.Path)
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			logger.Warn("directory watcher error", logger.Err(err))
		}
	}
}

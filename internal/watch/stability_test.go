package watch

import (
	"sync"
	"testing"
	"time"

	"github.com/marmos91/edgelogd/internal/clock"
)

func TestStabilityDetector_PromotesAfterStabilizationWindow(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))

	var mu sync.Mutex
	var stabilized []string
	done := make(chan struct{}, 1)

	probe := func(path string) error { return nil }
	onStable := func(path string) {
		mu.Lock()
		stabilized = append(stabilized, path)
		mu.Unlock()
		done <- struct{}{}
	}

	d := NewStabilityDetector(fc, Config{
		StabilizationPeriod: 5 * time.Second,
		CheckInterval:       time.Second,
		ProbeRetries:        1,
	}, probe, onStable)

	go d.Run()
	defer d.Stop()

	d.Track("/tmp/incoming/a.jsonl")

	fc.Advance(6 * time.Second)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stabilization callback")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(stabilized) != 1 || stabilized[0] != "/tmp/incoming/a.jsonl" {
		t.Errorf("expected a.jsonl to be stabilized, got %v", stabilized)
	}
}

func TestStabilityDetector_NotYetDueIsNotPromoted(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))

	called := make(chan struct{}, 1)
	probe := func(path string) error { return nil }
	onStable := func(path string) { called <- struct{}{} }

	d := NewStabilityDetector(fc, Config{
		StabilizationPeriod: 5 * time.Second,
		CheckInterval:       time.Second,
		ProbeRetries:        1,
	}, probe, onStable)

	go d.Run()
	defer d.Stop()

	d.Track("/tmp/incoming/b.jsonl")
	fc.Advance(2 * time.Second)

	select {
	case <-called:
		t.Fatal("expected no stabilization callback before the window elapses")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestStabilityDetector_RetriesProbeBeforeGivingUp(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))

	var mu sync.Mutex
	attempts := 0
	probe := func(path string) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errLocked
		}
		return nil
	}

	done := make(chan struct{}, 1)
	onStable := func(path string) { done <- struct{}{} }

	d := NewStabilityDetector(fc, Config{
		StabilizationPeriod: time.Second,
		CheckInterval:       time.Second,
		ProbeRetries:        5,
		ProbeBackoff:        10 * time.Millisecond,
	}, probe, onStable)

	go d.Run()
	defer d.Stop()

	d.Track("/tmp/incoming/c.jsonl")
	fc.Advance(time.Second)

	// Drain the backoff waiters registered by evaluate's retry loop.
	for i := 0; i < 3; i++ {
		time.Sleep(20 * time.Millisecond)
		fc.Advance(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for eventual stabilization after retries")
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Errorf("expected exactly 3 probe attempts, got %d", attempts)
	}
}

type probeError string

func (e probeError) Error() string { return string(e) }

const errLocked = probeError("file locked")

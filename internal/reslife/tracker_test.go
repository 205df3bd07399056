package reslife

import (
	"testing"
	"time"

	"github.com/marmos91/edgelogd/internal/clock"
)

type fakeCloser struct {
	closed bool
}

func (c *fakeCloser) Close() error {
	c.closed = true
	return nil
}

func TestSweepIdle_ReleasesResourcesPastTimeout(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tr := New(fc, time.Hour)

	c := &fakeCloser{}
	id := tr.Register("test-resource", c)

	fc.Advance(2 * time.Hour)
	tr.SweepIdle()

	if !c.closed {
		t.Error("expected idle resource to be closed")
	}
	if tr.Len() != 0 {
		t.Errorf("expected tracker to be empty after sweep, got %d", tr.Len())
	}
	_ = id
}

func TestTouch_PreventsIdleRelease(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tr := New(fc, time.Hour)

	c := &fakeCloser{}
	id := tr.Register("test-resource", c)

	fc.Advance(59 * time.Minute)
	tr.Touch(id)
	fc.Advance(59 * time.Minute)
	tr.SweepIdle()

	if c.closed {
		t.Error("expected touched resource to survive the sweep")
	}
}

func TestRelease_ClosesAndRemoves(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tr := New(fc, time.Hour)

	c := &fakeCloser{}
	id := tr.Register("test-resource", c)

	if err := tr.Release(id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.closed {
		t.Error("expected resource to be closed on release")
	}
	if tr.Len() != 0 {
		t.Error("expected tracker to be empty after release")
	}
}

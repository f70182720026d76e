package download

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock advances instantly through waits and records each requested
// delay, so pacing and backoff tests run without real sleeps.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
	hold  bool // when set, After never fires (for cancellation tests)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	if c.hold {
		return make(chan time.Time)
	}
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

func TestPacerFirstCallDoesNotWait(t *testing.T) {
	clk := newFakeClock()
	p := NewPacer(1500 * time.Millisecond)
	p.clk = clk

	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(clk.Waits()) != 0 {
		t.Errorf("first Wait slept %v, want no sleep", clk.Waits())
	}
}

func TestPacerEnforcesInterval(t *testing.T) {
	clk := newFakeClock()
	p := NewPacer(1500 * time.Millisecond)
	p.clk = clk

	p.Record()
	clk.Advance(500 * time.Millisecond)

	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	waits := clk.Waits()
	if len(waits) != 1 || waits[0] != 1000*time.Millisecond {
		t.Errorf("waits = %v, want [1s] (the remaining interval)", waits)
	}
}

func TestPacerNoWaitOnceIntervalElapsed(t *testing.T) {
	clk := newFakeClock()
	p := NewPacer(1500 * time.Millisecond)
	p.clk = clk

	p.Record()
	clk.Advance(2 * time.Second)

	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(clk.Waits()) != 0 {
		t.Errorf("waits = %v, want none after the interval already passed", clk.Waits())
	}
}

func TestPacerInstancesDoNotShareState(t *testing.T) {
	clk := newFakeClock()
	p1 := NewPacer(1500 * time.Millisecond)
	p1.clk = clk
	p2 := NewPacer(1500 * time.Millisecond)
	p2.clk = clk

	p1.Record()

	// p2 never recorded a success, so p1's state must not pace it.
	if err := p2.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(clk.Waits()) != 0 {
		t.Errorf("p2 waited %v because of p1's state", clk.Waits())
	}
}

func TestPacerWaitCancelled(t *testing.T) {
	clk := newFakeClock()
	clk.hold = true
	p := NewPacer(1500 * time.Millisecond)
	p.clk = clk

	p.Record()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx); err != context.Canceled {
		t.Fatalf("Wait = %v, want context.Canceled", err)
	}
}

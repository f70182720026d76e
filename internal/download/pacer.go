// Package download fetches canonical per-ticker series from a remote
// market-data API under a global request budget: pacing between successful
// requests, exponential backoff on rate-limit responses, and row validation
// shared with the CSV pipeline.
package download

import (
	"context"
	"sync"
	"time"
)

// clock abstracts time for the pacing and backoff waits so tests can inject
// a deterministic clock instead of sleeping.
type clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Pacer enforces a minimum delay between consecutive successful requests
// issued by one downloader instance. The last-success timestamp is an
// instance field, never process-wide, so independent runs do not share
// pacing state.
type Pacer struct {
	interval time.Duration
	clk      clock

	mu   sync.Mutex
	last time.Time
}

// NewPacer creates a Pacer with the given minimum interval between
// successful requests.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval, clk: realClock{}}
}

// Wait blocks until the pacing interval since the last recorded success has
// elapsed, or until ctx is cancelled. The first request of an instance never
// waits.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	last := p.last
	p.mu.Unlock()

	if last.IsZero() {
		return ctx.Err()
	}
	remaining := p.interval - p.clk.Now().Sub(last)
	if remaining <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.clk.After(remaining):
		return nil
	}
}

// Record marks a successful request, restarting the pacing window.
func (p *Pacer) Record() {
	p.mu.Lock()
	p.last = p.clk.Now()
	p.mu.Unlock()
}

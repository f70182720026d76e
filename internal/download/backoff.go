package download

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRateLimited is the provider's signal that a request hit the remote
// rate limit (HTTP 429). It is the only error class the backoff policy
// retries; everything else is terminal for the symbol.
var ErrRateLimited = errors.New("rate limited by provider")

// ErrRateLimitExceeded marks terminal backoff exhaustion: every configured
// attempt came back rate-limited. Callers must not retry further.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// retryState is the explicit state of one Execute loop.
type retryState int

const (
	stateAttempting retryState = iota
	stateWaiting
	stateSucceeded
	stateFailed
)

// BackoffPolicy retries rate-limited calls with escalating delays. With the
// defaults (base 2s, 4 attempts) the waits between attempts are 2s, 4s, 8s;
// a fourth rate-limited attempt fails with ErrRateLimitExceeded.
type BackoffPolicy struct {
	BaseDelay   time.Duration
	MaxAttempts int

	clk clock
}

// NewBackoffPolicy creates a BackoffPolicy with the given first-retry delay
// and total attempt budget.
func NewBackoffPolicy(baseDelay time.Duration, maxAttempts int) *BackoffPolicy {
	return &BackoffPolicy{BaseDelay: baseDelay, MaxAttempts: maxAttempts, clk: realClock{}}
}

// Execute runs fn under the policy, walking Attempting -> Waiting ->
// Attempting until it succeeds, fails terminally, or exhausts the attempt
// budget. The wait doubles per retry and selects on ctx, so a cancellation
// observed mid-wait aborts the loop with ctx's error.
func (p *BackoffPolicy) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	delay := p.BaseDelay
	attempt := 1
	state := stateAttempting

	for {
		switch state {
		case stateAttempting:
			err = fn()
			switch {
			case err == nil:
				state = stateSucceeded
			case !errors.Is(err, ErrRateLimited):
				state = stateFailed
			case attempt >= p.MaxAttempts:
				err = fmt.Errorf("%w after %d attempts", ErrRateLimitExceeded, attempt)
				state = stateFailed
			default:
				state = stateWaiting
			}

		case stateWaiting:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.clk.After(delay):
			}
			delay *= 2
			attempt++
			state = stateAttempting

		case stateSucceeded:
			return nil

		case stateFailed:
			return err
		}
	}
}

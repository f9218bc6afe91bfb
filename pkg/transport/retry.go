package transport

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryPolicy controls the retry behavior of a Transport. It is a plain
// value so tests can substitute a zero-delay policy and get deterministic
// timing.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts (including the first request).
	MaxAttempts int

	// BaseDelay is the unit of the exponential backoff. Network errors and
	// 5xx responses wait BaseDelay*2^attempt; 429 responses wait
	// BaseDelay*2^(attempt+1), the upstream asked us to slow down.
	BaseDelay time.Duration

	// Jitter is the fraction of randomness applied to each backoff
	// (0.2 means ±20%). Zero disables jitter.
	Jitter float64
}

// DefaultRetryPolicy returns the policy used against the production API.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		Jitter:      0.2,
	}
}

// backoff returns the wait before retrying a network/server failure.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	return p.withJitter(p.BaseDelay * (1 << attempt))
}

// rateLimitBackoff returns the wait after a 429 response.
func (p RetryPolicy) rateLimitBackoff(attempt int) time.Duration {
	return p.withJitter(p.BaseDelay * (1 << (attempt + 1)))
}

func (p RetryPolicy) withJitter(d time.Duration) time.Duration {
	if p.Jitter <= 0 || d <= 0 {
		return d
	}
	spread := 1 - p.Jitter + rand.Float64()*2*p.Jitter
	return time.Duration(float64(d) * spread)
}

// sleep waits for the given duration with context cancellation support.
func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-time.After(d):
		return nil
	}
}

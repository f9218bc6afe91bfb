// Package ratelimit implements proactive request pacing against the Seller
// API. The upstream enforces a per-seller request budget; the pacer spaces
// outgoing calls so a run stays under it even when no 429 has been returned
// yet. Reactive 429 backoff lives in the transport; this is the preventive
// half.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum spacing between upstream requests.
const DefaultInterval = 300 * time.Millisecond

// Pacer delays requests so that consecutive upstream calls are at least one
// interval apart. The first call passes immediately. A Pacer is owned by one
// run and safe for that run's concurrent detail fetches.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer with the given minimum interval between requests.
// A non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next request is allowed or the context is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed immediately without waiting.
func (p *Pacer) Allow() bool {
	return p.limiter.Allow()
}

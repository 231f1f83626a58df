package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRemainingThreshold = 5
	rateLimitSleepCap         = 60 * time.Second
	localEstimateResetEvery   = time.Minute
	localEstimateStart        = 60

	// smoothingRate and smoothingBurst bound how fast this process issues
	// calls to one provider regardless of what its headers say, the same
	// token-bucket role pkg/security/ratelimit.go's RateLimiter plays for
	// inbound HTTP traffic, applied here to outbound provider calls.
	smoothingRate  = 20 // requests/second
	smoothingBurst = 10
)

// RateLimiter tracks the two mutable counters every provider client
// maintains: how many calls remain in the current window and when that
// window resets. Before a call, if remaining is at or below threshold
// and reset is still in the future, the limiter sleeps up to the reset
// instant, capped at 60s so cancellation latency stays bounded.
//
// Providers that omit rate-limit headers (Gemini) never call
// UpdateFromHeaders; they instead call DecrementLocal, which estimates
// remaining capacity and resets the estimate once a minute.
type RateLimiter struct {
	mu        sync.Mutex
	remaining int
	resetAt   time.Time
	threshold int

	localEstimate   int
	localResetAt    time.Time
	usingLocalOnly  bool

	// smoothing throttles outbound calls to a steady rate independent of
	// what the provider's own headers report, so a burst of cheap
	// requests can't all queue up behind the header-driven wait at once.
	smoothing *rate.Limiter
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		remaining:      -1, // unknown until the first response
		threshold:      defaultRemainingThreshold,
		localEstimate:  localEstimateStart,
		localResetAt:   time.Now().Add(localEstimateResetEvery),
		usingLocalOnly: false,
		smoothing:      rate.NewLimiter(rate.Limit(smoothingRate), smoothingBurst),
	}
}

// BeforeCall blocks, honouring ctx cancellation, until it is safe to
// issue the next call.
func (r *RateLimiter) BeforeCall(ctx context.Context) error {
	if err := r.smoothing.Wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	remaining := r.remaining
	resetAt := r.resetAt
	if r.usingLocalOnly {
		remaining = r.localEstimate
		resetAt = r.localResetAt
	}
	r.mu.Unlock()

	if remaining < 0 || remaining > r.threshold {
		return nil
	}
	if !time.Now().Before(resetAt) {
		return nil
	}

	wait := time.Until(resetAt)
	if wait > rateLimitSleepCap {
		wait = rateLimitSleepCap
	}
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// UpdateFromHeaders records the remaining-calls and reset-time counters
// a provider reports in its response headers.
func (r *RateLimiter) UpdateFromHeaders(remaining int, resetAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remaining = remaining
	r.resetAt = resetAt
	r.usingLocalOnly = false
}

// DecrementLocal is used by providers (Gemini) whose responses carry no
// rate-limit headers at all: it decrements a local estimate and resets
// it once per minute.
func (r *RateLimiter) DecrementLocal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usingLocalOnly = true
	now := time.Now()
	if !now.Before(r.localResetAt) {
		r.localEstimate = localEstimateStart
		r.localResetAt = now.Add(localEstimateResetEvery)
	}
	if r.localEstimate > 0 {
		r.localEstimate--
	}
}

package sync

import (
	"context"
	"time"
)

// RateLimiter enforces the courtesy delay between provider requests and the
// exponential backoff that follows a 429. State is scoped to one run.
type RateLimiter struct {
	base    time.Duration
	max     time.Duration
	current time.Duration

	// sleep is swapped out in tests to observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRateLimiter(base, max time.Duration) *RateLimiter {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = 30 * time.Second
	}
	return &RateLimiter{
		base:    base,
		max:     max,
		current: base,
		sleep:   sleepCtx,
	}
}

// Wait applies the courtesy throttle: at least the base delay between
// consecutive requests, independent of provider-imposed limits.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.sleep(ctx, r.base)
}

// Backoff pauses for the current backoff interval and doubles it for the
// next rate-limit signal. Once the interval has grown past the cap,
// ErrBackoffExhausted is returned and the caller must abandon the run's
// remaining configurations.
func (r *RateLimiter) Backoff(ctx context.Context) error {
	if r.current > r.max {
		return ErrBackoffExhausted
	}
	if err := r.sleep(ctx, r.current); err != nil {
		return err
	}
	r.current *= 2
	return nil
}

// Reset returns the backoff interval to the base delay after a success.
func (r *RateLimiter) Reset() {
	r.current = r.base
}

// Delay exposes the next backoff interval, for logging.
func (r *RateLimiter) Delay() time.Duration {
	return r.current
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

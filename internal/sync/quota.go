package sync

import (
	"context"
	"fmt"
	"math"
)

// UsageStore persists the per-provider daily request counter. The counter
// must survive restarts; IncrementUsage has to be atomic so concurrent runs
// for the same provider cannot overrun the budget.
type UsageStore interface {
	IncrementUsage(ctx context.Context, source string) (int, error)
	Usage(ctx context.Context, source string) (int, error)
}

// QuotaTracker checks a provider's daily request budget. A limit of zero
// or below means the provider is effectively unlimited.
type QuotaTracker struct {
	store  UsageStore
	source string
	limit  int
}

func NewQuotaTracker(store UsageStore, source string, limit int) *QuotaTracker {
	return &QuotaTracker{store: store, source: source, limit: limit}
}

func (q *QuotaTracker) Limit() int {
	return q.limit
}

// Remaining reports how many requests are left today.
func (q *QuotaTracker) Remaining(ctx context.Context) (int, error) {
	if q.limit <= 0 {
		return math.MaxInt32, nil
	}
	used, err := q.store.Usage(ctx, q.source)
	if err != nil {
		return 0, fmt.Errorf("quota check for %s: %w", q.source, err)
	}
	remaining := q.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Used reports today's consumed request count.
func (q *QuotaTracker) Used(ctx context.Context) (int, error) {
	return q.store.Usage(ctx, q.source)
}

// Acquire consumes one request slot via an atomic increment-and-check.
// Returns ErrQuotaExceeded when the post-increment count is over the limit;
// the slot stays counted, which errs on the side of issuing fewer requests.
func (q *QuotaTracker) Acquire(ctx context.Context) error {
	count, err := q.store.IncrementUsage(ctx, q.source)
	if err != nil {
		return fmt.Errorf("quota acquire for %s: %w", q.source, err)
	}
	if q.limit > 0 && count > q.limit {
		return ErrQuotaExceeded
	}
	return nil
}

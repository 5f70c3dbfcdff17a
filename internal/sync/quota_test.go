package sync

import (
	"context"
	"errors"
	"testing"
)

// memUsageStore is an in-memory UsageStore for quota tests.
type memUsageStore struct {
	counts map[string]int
	err    error
}

func newMemUsageStore() *memUsageStore {
	return &memUsageStore{counts: make(map[string]int)}
}

func (m *memUsageStore) IncrementUsage(ctx context.Context, source string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.counts[source]++
	return m.counts[source], nil
}

func (m *memUsageStore) Usage(ctx context.Context, source string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.counts[source], nil
}

func TestQuotaAcquireUpToLimit(t *testing.T) {
	store := newMemUsageStore()
	q := NewQuotaTracker(store, "sam.gov", 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := q.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: unexpected error: %v", i, err)
		}
	}

	if err := q.Acquire(ctx); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestQuotaRemaining(t *testing.T) {
	store := newMemUsageStore()
	q := NewQuotaTracker(store, "sam.gov", 10)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := q.Acquire(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	remaining, err := q.Remaining(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remaining != 6 {
		t.Errorf("expected 6 remaining, got %d", remaining)
	}
}

func TestQuotaRemainingNeverNegative(t *testing.T) {
	store := newMemUsageStore()
	store.counts["sam.gov"] = 15
	q := NewQuotaTracker(store, "sam.gov", 10)

	remaining, err := q.Remaining(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected 0 remaining, got %d", remaining)
	}
}

func TestQuotaUnlimitedProvider(t *testing.T) {
	store := newMemUsageStore()
	q := NewQuotaTracker(store, "grants.gov", 0)
	ctx := context.Background()

	remaining, err := q.Remaining(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remaining < 1000000 {
		t.Errorf("expected effectively unlimited remaining, got %d", remaining)
	}

	// Usage is still counted even without a limit.
	for i := 0; i < 50; i++ {
		if err := q.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: unexpected error: %v", i, err)
		}
	}
	if store.counts["grants.gov"] != 50 {
		t.Errorf("expected 50 recorded requests, got %d", store.counts["grants.gov"])
	}
}

func TestQuotaStoreErrorPropagates(t *testing.T) {
	store := newMemUsageStore()
	store.err = errors.New("db down")
	q := NewQuotaTracker(store, "sam.gov", 10)

	if err := q.Acquire(context.Background()); err == nil {
		t.Error("expected error when store fails")
	}
	if _, err := q.Remaining(context.Background()); err == nil {
		t.Error("expected error when store fails")
	}
}

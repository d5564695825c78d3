package countstore

import (
	"context"
	"sync"
)

// MemCountStore is the in-process implementation. Counts accumulate for the
// process lifetime; day/hour buckets are keyed by wall clock and old buckets
// are simply never read again.
type MemCountStore struct {
	mu     sync.Mutex
	counts map[string]int
}

var _ CountStore = (*MemCountStore)(nil)

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{counts: make(map[string]int)}
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[periodBucket(name, val, period)], nil
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range allPeriods {
		s.counts[periodBucket(name, val, p)]++
	}
	return nil
}

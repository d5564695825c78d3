package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemCacheStore bounds both entry count and entry age; expiry doubles as the
// freshness window, with stale entries evicted lazily by the LRU.
type MemCacheStore struct {
	data *expirable.LRU[string, string]
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	return &MemCacheStore{data: expirable.NewLRU[string, string](capacity, nil, ttl)}
}

func (s *MemCacheStore) Get(ctx context.Context, name, key string) (string, bool, error) {
	v, ok := s.data.Get(name + "/" + key)
	return v, ok, nil
}

func (s *MemCacheStore) Set(ctx context.Context, name, key, val string) error {
	s.data.Add(name+"/"+key, val)
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	s.data.Remove(name + "/" + key)
	return nil
}

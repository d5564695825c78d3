// Package cachestore is a small namespaced string cache with a freshness
// window, used for opportunistically persisted per-account data (currently
// the shared-connections count). Entries older than the window are treated
// as absent.
package cachestore

import "context"

type CacheStore interface {
	// Get returns the cached value and whether a fresh entry existed.
	Get(ctx context.Context, name, key string) (string, bool, error)
	Set(ctx context.Context, name, key, val string) error
	Purge(ctx context.Context, name, key string) error
}

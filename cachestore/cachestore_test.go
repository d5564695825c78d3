package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemCacheStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemCacheStore(4, time.Hour)

	_, ok, err := s.Get(ctx, "shared", "123")
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(s.Set(ctx, "shared", "123", "7"))
	v, ok, err := s.Get(ctx, "shared", "123")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal("7", v)

	// namespaces do not collide
	_, ok, _ = s.Get(ctx, "other", "123")
	assert.False(ok)

	assert.NoError(s.Purge(ctx, "shared", "123"))
	_, ok, _ = s.Get(ctx, "shared", "123")
	assert.False(ok)
}

func TestMemCacheStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemCacheStore(4, 10*time.Millisecond)

	assert.NoError(s.Set(ctx, "shared", "123", "7"))
	time.Sleep(30 * time.Millisecond)
	_, ok, _ := s.Get(ctx, "shared", "123")
	assert.False(ok)
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCache struct{ *memoryCache }

func (b *brokenCache) Get(context.Context, string, interface{}) error {
	return errors.New("connection reset")
}

func TestRememberCachesOnlySuccessfulLoads(t *testing.T) {
	repo := newMemoryCache()
	cache := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)
	ctx := context.Background()
	calls := 0

	_, hit, err := remember(ctx, cache, "k", 0, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("store down")
	})
	require.Error(t, err)
	assert.False(t, hit)
	assert.Empty(t, repo.entries)

	load := func(context.Context) (int, error) { calls++; return 42, nil }
	v, hit, err := remember(ctx, cache, "k", 0, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 42, v)

	v, hit, err = remember(ctx, cache, "k", 0, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, calls)
}

func TestCacheFaultsDegradeToMiss(t *testing.T) {
	broken := &brokenCache{newMemoryCache()}
	cache := NewCacheService(broken, nil, time.Minute, nil, true)

	var dest int
	hit, err := cache.Get(context.Background(), "k", &dest)
	assert.Error(t, err)
	assert.False(t, hit)

	v, hit, err := remember(context.Background(), cache, "k", 0, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)
}

func TestDisabledCacheIsNoop(t *testing.T) {
	repo := newMemoryCache()
	cache := NewCacheService(repo, nil, 0, nil, false)
	require.NoError(t, cache.Set(context.Background(), "k", 1, 0))
	assert.Empty(t, repo.entries)

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	assert.NoError(t, nilCache.Invalidate(context.Background(), "dashboard:*"))
}

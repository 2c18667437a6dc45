package writeoff

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheFetchJSONPopulatesOnMiss(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "writeoff", "report", "2026-03-01")
	require.NoError(t, err)

	calls := 0
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return Report{Rows: []Row{{DocID: 1, DocNumber: "INV-1"}}}, nil
	}

	var first Report
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	assert.Equal(t, 1, calls)
	require.Len(t, first.Rows, 1)

	// Second fetch is served from the cache.
	var second Report
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestCacheLoaderFailureIsNotCached(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "writeoff", "report", "2026-03-01")
	require.NoError(t, err)

	boom := fmt.Errorf("query failed")
	require.Error(t, cache.FetchJSON(ctx, key, &Report{}, func(ctx context.Context) (interface{}, error) {
		return nil, boom
	}))

	// The next fetch retries the loader instead of replaying a cached
	// failure.
	calls := 0
	var report Report
	require.NoError(t, cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		calls++
		return Report{Rows: []Row{}}, nil
	}))
	assert.Equal(t, 1, calls)
}

func TestCacheBumpInvalidates(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "writeoff", "report", "2026-03-01")
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BuildKey(ctx, "writeoff", "report", "2026-03-01")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestCacheNilClientPassesThrough(t *testing.T) {
	cache := NewCache(nil, time.Minute)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "writeoff", "report", "2026-03-01")
	require.NoError(t, err)

	calls := 0
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return Report{}, nil
	}
	var report Report
	require.NoError(t, cache.FetchJSON(ctx, key, &report, loader))
	require.NoError(t, cache.FetchJSON(ctx, key, &report, loader))
	assert.Equal(t, 2, calls)
	assert.NoError(t, cache.Bump(ctx))
}

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Count int `json:"count"`
}

func newTestCache(t *testing.T) (*Versioned, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "petcare:test", time.Minute), mr
}

func TestFetchJSONCachesUntilBump(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return payload{Count: calls}, nil
	}

	key, err := c.BuildKey(ctx, "summary", "all")
	require.NoError(t, err)
	require.Equal(t, "petcare:test:summary:all:v1", key)

	var got payload
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 1, got.Count)
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 1, got.Count)
	require.Equal(t, 1, calls)

	require.NoError(t, c.Bump(ctx))
	key, err = c.BuildKey(ctx, "summary", "all")
	require.NoError(t, err)
	require.Equal(t, "petcare:test:summary:all:v2", key)
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 2, got.Count)
}

func TestFetchJSONCollapsesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)
	key, err := c.BuildKey(ctx, "summary", "burst")
	require.NoError(t, err)

	var calls int32
	release := make(chan struct{})
	loader := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return payload{Count: 7}, nil
	}

	var wg sync.WaitGroup
	results := make([]payload, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.FetchJSON(ctx, key, &results[i], loader))
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		require.Equal(t, 7, r.Count)
	}
}

func TestNilCacheCallsLoader(t *testing.T) {
	var c *Versioned
	var got payload
	err := c.FetchJSON(context.Background(), "k", &got, func(context.Context) (any, error) {
		return payload{Count: 3}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, got.Count)
}

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheServesFreshValue(t *testing.T) {
	var loads int32
	c := NewTTLCache("spot", time.Minute, 0, func(ctx context.Context) (map[string]int, error) {
		atomic.AddInt32(&loads, 1)
		return map[string]int{"600519": 1}, nil
	}, nil)

	v, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v["600519"])

	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads), "second get must be a cache hit")
}

func TestTTLCacheSingleFlight(t *testing.T) {
	var loads int32
	c := NewTTLCache("spot", time.Minute, 0, func(ctx context.Context) (int, error) {
		atomic.AddInt32(&loads, 1)
		time.Sleep(50 * time.Millisecond)
		return 42, nil
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads), "concurrent cold gets must trigger exactly one load")
}

func TestTTLCacheExpiry(t *testing.T) {
	var loads int32
	c := NewTTLCache("spot", 30*time.Millisecond, 0, func(ctx context.Context) (int, error) {
		return int(atomic.AddInt32(&loads, 1)), nil
	}, nil)

	v1, _ := c.Get(context.Background())
	time.Sleep(40 * time.Millisecond)
	v2, _ := c.Get(context.Background())

	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)
}

func TestTTLCacheNegativeCaching(t *testing.T) {
	var loads int32
	c := NewTTLCache("spot", time.Minute, 0, func(ctx context.Context) ([]string, error) {
		atomic.AddInt32(&loads, 1)
		return nil, errors.New("upstream down")
	}, nil)

	_, err := c.Get(context.Background())
	require.Error(t, err)

	// Failure is cached: no further upstream calls within the TTL
	v, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func TestTTLCacheInvalidate(t *testing.T) {
	var loads int32
	c := NewTTLCache("spot", time.Minute, 0, func(ctx context.Context) (int, error) {
		return int(atomic.AddInt32(&loads, 1)), nil
	}, nil)

	c.Get(context.Background())
	c.Invalidate()
	v, _ := c.Get(context.Background())
	assert.Equal(t, 2, v)
}

func TestBoundedCacheTTL(t *testing.T) {
	c := NewBoundedCache[string](30*time.Millisecond, 10)
	c.Set("k", "v")

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	time.Sleep(40 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestBoundedCacheFIFOEviction(t *testing.T) {
	c := NewBoundedCache[int](time.Minute, 3)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Set("d", 4)

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry evicted at cap")
	_, ok = c.Get("d")
	assert.True(t, ok)
	assert.Equal(t, 3, c.Len())
}

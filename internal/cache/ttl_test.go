package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestTTL_GetSet(t *testing.T) {
	clock := newFakeClock()
	c := New[string](time.Minute, 10, clock.Now)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", "alpha")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestTTL_LazyExpiry(t *testing.T) {
	clock := newFakeClock()
	c := New[int](time.Minute, 10, clock.Now)

	c.Set("k", 1)
	clock.Advance(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok, "entry should still be live before the ttl")

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry should expire once the ttl has elapsed")
	assert.Equal(t, 0, c.Len(), "expired entry should be deleted on lookup")
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestTTL_SetResetsAge(t *testing.T) {
	clock := newFakeClock()
	c := New[int](time.Minute, 10, clock.Now)

	c.Set("k", 1)
	clock.Advance(50 * time.Second)
	c.Set("k", 2)
	clock.Advance(50 * time.Second)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestTTL_SweepOnCapacity(t *testing.T) {
	clock := newFakeClock()
	c := New[int](time.Minute, 3, clock.Now)

	c.Set("old1", 1)
	c.Set("old2", 2)
	clock.Advance(2 * time.Minute)
	c.Set("fresh1", 3)
	assert.Equal(t, 3, c.Len(), "no sweep until capacity is exceeded")

	c.Set("fresh2", 4)
	assert.Equal(t, 2, c.Len(), "insert above capacity sweeps expired entries")

	_, ok := c.Get("fresh1")
	assert.True(t, ok)
	_, ok = c.Get("fresh2")
	assert.True(t, ok)
}

func TestTTL_SweepIsNotLRU(t *testing.T) {
	clock := newFakeClock()
	c := New[int](time.Minute, 2, clock.Now)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Nothing is expired, so nothing is dropped even though we are over capacity.
	assert.Equal(t, 3, c.Len())
}

func TestTTL_ExplicitSweepAndClear(t *testing.T) {
	clock := newFakeClock()
	c := New[int](time.Minute, 0, clock.Now)

	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	clock.Advance(time.Hour)
	c.Set("live", 99)

	assert.Equal(t, 5, c.Sweep())
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestTTL_ZeroTTLNeverExpires(t *testing.T) {
	clock := newFakeClock()
	c := New[string](0, 0, clock.Now)

	c.Set("k", "v")
	clock.Advance(365 * 24 * time.Hour)
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestTTL_ConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute, 50, nil)

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%40)
				if _, ok := c.Get(key); !ok {
					c.Set(key, g)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 40, c.Len())
	stats := c.Stats()
	assert.Equal(t, int64(16*200), stats.Hits+stats.Misses)
}

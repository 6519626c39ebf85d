// Package cache provides the time-bounded memo tables used by the router and
// the market data layer.
package cache

import (
	"sync"
	"time"
)

// Clock returns the current time. Tests inject a fake one to force expiry.
type Clock func() time.Time

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Stats reports cache usage counters
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// TTL is a map of values that expire a fixed duration after insertion.
//
// Expired entries are removed lazily when a lookup finds them, and in bulk
// whenever an insert pushes the entry count above capacity. The bulk sweep only
// removes expired entries, so the map may stay above capacity while every
// entry is still fresh.
type TTL[V any] struct {
	mu       sync.Mutex
	items    map[string]entry[V]
	ttl      time.Duration
	capacity int
	now      Clock

	hits      int64
	misses    int64
	evictions int64
}

// New creates a cache. A ttl <= 0 disables expiry; a capacity <= 0 disables
// the bulk sweep. A nil clock means time.Now.
func New[V any](ttl time.Duration, capacity int, clock Clock) *TTL[V] {
	if clock == nil {
		clock = time.Now
	}
	return &TTL[V]{
		items:    make(map[string]entry[V]),
		ttl:      ttl,
		capacity: capacity,
		now:      clock,
	}
}

// Get returns the live value stored under key
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if c.expired(e, c.now()) {
		delete(c.items, key)
		c.evictions++
		c.misses++
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Set stores value under key, replacing any previous value and resetting its age
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.items[key] = entry[V]{value: value, insertedAt: now}
	if c.capacity > 0 && len(c.items) > c.capacity {
		c.sweepLocked(now)
	}
}

// Delete removes key if present
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Sweep removes every expired entry and returns how many were dropped
func (c *TTL[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.now())
}

// Len returns the number of stored entries, expired ones included
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear drops every entry. Counters are kept.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]entry[V])
	c.mu.Unlock()
}

// Stats returns a snapshot of the counters
func (c *TTL[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   len(c.items),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

func (c *TTL[V]) sweepLocked(now time.Time) int {
	removed := 0
	for k, e := range c.items {
		if c.expired(e, now) {
			delete(c.items, k)
			removed++
		}
	}
	c.evictions += int64(removed)
	return removed
}

func (c *TTL[V]) expired(e entry[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.insertedAt) >= c.ttl
}

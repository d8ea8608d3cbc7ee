package cache

import (
	"context"
	"sync"
	"time"
)

type ttlEntry struct {
	v   any
	exp time.Time
}

// TTLCache is an in-process map with per-entry expiry. Expired entries are
// dropped lazily on read.
type TTLCache struct {
	mu  sync.RWMutex
	m   map[string]ttlEntry
	now func() time.Time
}

func NewTTLCache() *TTLCache {
	return &TTLCache{m: make(map[string]ttlEntry), now: time.Now}
}

// NewTTLCacheWithClock is used by tests to control expiry.
func NewTTLCacheWithClock(now func() time.Time) *TTLCache {
	c := NewTTLCache()
	if now != nil {
		c.now = now
	}
	return c
}

func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && !c.now().Before(e.exp) {
		c.mu.Lock()
		if cur, still := c.m[key]; still && cur.exp.Equal(e.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.v, true
}

func (c *TTLCache) Set(key string, v any, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = ttlEntry{v: v, exp: exp}
	c.mu.Unlock()
}

func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Implement BytesCache
func (c *TTLCache) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	if v, ok := c.Get(key); ok {
		if b, ok2 := v.([]byte); ok2 {
			return b, true, nil
		}
	}
	return nil, false, nil
}

func (c *TTLCache) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.Set(key, value, ttl)
	return nil
}

func (c *TTLCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
	return nil
}

package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const DefaultResultTTL = time.Hour

// Outcomes reported to the observer.
const (
	OutcomeHit    = "hit"
	OutcomeMiss   = "miss"
	OutcomeShared = "shared"
)

// Key identifies one memoized forecast.
type Key struct {
	Symbol  string
	Horizon int
}

func (k Key) String() string { return fmt.Sprintf("%s|%d", k.Symbol, k.Horizon) }

type resultEntry[V any] struct {
	value     V
	createdAt time.Time
}

// ResultCache memoizes computed values per Key for a fixed TTL and allows at
// most one in-flight computation per key. Stale entries are treated as misses
// and replaced on the next store.
type ResultCache[V any] struct {
	mu       sync.RWMutex
	entries  map[Key]resultEntry[V]
	gen      uint64
	ttl      time.Duration
	now      func() time.Time
	observe  func(outcome string)
	inflight singleflight.Group
}

type ResultOption func(*resultOptions)

type resultOptions struct {
	ttl     time.Duration
	now     func() time.Time
	observe func(string)
}

func WithTTL(ttl time.Duration) ResultOption {
	return func(o *resultOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) ResultOption {
	return func(o *resultOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithObserver receives one outcome per GetOrCompute call.
func WithObserver(fn func(outcome string)) ResultOption {
	return func(o *resultOptions) { o.observe = fn }
}

func NewResultCache[V any](opts ...ResultOption) *ResultCache[V] {
	o := resultOptions{ttl: DefaultResultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &ResultCache[V]{
		entries: make(map[Key]resultEntry[V]),
		ttl:     o.ttl,
		now:     o.now,
		observe: o.observe,
	}
}

func (c *ResultCache[V]) TTL() time.Duration { return c.ttl }

// Get returns the stored value when it is younger than the TTL.
func (c *ResultCache[V]) Get(key Key) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.createdAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value, replacing any previous entry for key.
func (c *ResultCache[V]) Put(key Key, value V) {
	c.mu.Lock()
	c.entries[key] = resultEntry[V]{value: value, createdAt: c.now()}
	c.mu.Unlock()
}

func (c *ResultCache[V]) putIfGen(key Key, value V, gen uint64) {
	c.mu.Lock()
	if c.gen == gen {
		c.entries[key] = resultEntry[V]{value: value, createdAt: c.now()}
	}
	c.mu.Unlock()
}

// Clear drops every entry. Computations already running keep delivering to
// their callers but their results are not stored.
func (c *ResultCache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[Key]resultEntry[V])
	c.gen++
	c.mu.Unlock()
}

// Len counts stored entries, stale ones included.
func (c *ResultCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrCompute returns the fresh cached value for key or runs fn to produce it.
// Concurrent callers for the same key share a single run of fn. fn receives a
// context detached from any caller's cancellation; a caller whose ctx ends
// stops waiting and gets ctx.Err() while the run continues and stores its
// result. Errors are returned to every waiter and never stored.
func (c *ResultCache[V]) GetOrCompute(ctx context.Context, key Key, fn func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		c.report(OutcomeHit)
		return v, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.inflight.DoChan(key.String(), func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()

		v, err := c.run(detached, fn)
		if err != nil {
			return nil, err
		}
		c.putIfGen(key, v, gen)
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.report(OutcomeShared)
		} else {
			c.report(OutcomeMiss)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

func (c *ResultCache[V]) run(ctx context.Context, fn func(context.Context) (V, error)) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("computation panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func (c *ResultCache[V]) report(outcome string) {
	if c.observe != nil {
		c.observe(outcome)
	}
}

package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingCache struct {
	*TTLCache
	gets int
	err  error
}

func (c *countingCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	c.gets++
	if c.err != nil {
		return nil, false, c.err
	}
	return c.TTLCache.GetBytes(ctx, key)
}

func TestLayeredCacheFillsL1FromL2(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	l2 := &countingCache{TTLCache: NewTTLCacheWithClock(clock)}
	lc := newLayeredCache(NewTTLCacheWithClock(clock), l2, 30*time.Second)
	ctx := context.Background()

	_ = l2.SetBytes(ctx, "k", []byte("v"), time.Hour)
	for i := 0; i < 3; i++ {
		b, ok, err := lc.GetBytes(ctx, "k")
		if err != nil || !ok || string(b) != "v" {
			t.Fatalf("get %d: %q %v %v", i, b, ok, err)
		}
	}
	if l2.gets != 1 {
		t.Fatalf("expected one L2 read, got %d", l2.gets)
	}

	now = now.Add(31 * time.Second)
	if _, ok, _ := lc.GetBytes(ctx, "k"); !ok || l2.gets != 2 {
		t.Fatalf("expired L1 entry should be refetched from L2, gets=%d", l2.gets)
	}
}

func TestLayeredCacheWriteAndDelete(t *testing.T) {
	l2 := &countingCache{TTLCache: NewTTLCache()}
	lc := NewLayeredCache(l2, time.Minute)
	ctx := context.Background()

	if err := lc.SetBytes(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := l2.TTLCache.GetBytes(ctx, "k"); !ok {
		t.Fatalf("write must reach L2")
	}
	if err := lc.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := lc.GetBytes(ctx, "k"); ok {
		t.Fatalf("deleted key still visible")
	}
}

func TestLayeredCacheReportsL2Errors(t *testing.T) {
	l2 := &countingCache{TTLCache: NewTTLCache(), err: errors.New("redis down")}
	lc := NewLayeredCache(l2, time.Minute)
	if _, _, err := lc.GetBytes(context.Background(), "k"); err == nil {
		t.Fatalf("expected L2 error")
	}
}

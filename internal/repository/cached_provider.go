package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
	domainrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/service/cache"
	applogger "PriceCast/pkg/logger"
)

// CachedProvider keeps provider responses in a byte cache for ttl.
// Cache read or write errors degrade to a miss.
type CachedProvider struct {
	next  domainrepo.MarketDataProvider
	cache cache.BytesCache
	ttl   time.Duration
	l     *applogger.Logger
}

func NewCachedProvider(next domainrepo.MarketDataProvider, c cache.BytesCache, ttl time.Duration, l *applogger.Logger) *CachedProvider {
	if l == nil {
		l = applogger.NewNop()
	}
	return &CachedProvider{next: next, cache: c, ttl: ttl, l: l}
}

func (p *CachedProvider) FetchHistory(ctx context.Context, symbol, period string) (models.PriceSeries, error) {
	key := fmt.Sprintf("history:%s:%s", symbol, period)
	var cached models.PriceSeries
	if p.load(ctx, key, &cached) {
		return cached, nil
	}
	bars, err := p.next.FetchHistory(ctx, symbol, period)
	if err != nil {
		return nil, err
	}
	// an empty answer may be a transient upstream gap
	if len(bars) > 0 {
		p.store(ctx, key, bars)
	}
	return bars, nil
}

func (p *CachedProvider) FetchMetadata(ctx context.Context, symbol string) (models.StockInfo, error) {
	key := "meta:" + symbol
	var cached models.StockInfo
	if p.load(ctx, key, &cached) {
		return cached, nil
	}
	info, err := p.next.FetchMetadata(ctx, symbol)
	if err != nil {
		return info, err
	}
	p.store(ctx, key, info)
	return info, nil
}

func (p *CachedProvider) load(ctx context.Context, key string, dst any) bool {
	b, ok, err := p.cache.GetBytes(ctx, key)
	if err != nil {
		p.l.Warn("provider cache read failed", applogger.String("key", key), applogger.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		p.l.Warn("provider cache entry corrupt", applogger.String("key", key), applogger.Error(err))
		_ = p.cache.Delete(ctx, key)
		return false
	}
	return true
}

func (p *CachedProvider) store(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := p.cache.SetBytes(ctx, key, b, p.ttl); err != nil {
		p.l.Warn("provider cache write failed", applogger.String("key", key), applogger.Error(err))
	}
}

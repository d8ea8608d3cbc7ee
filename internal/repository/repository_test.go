package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/service/cache"
)

type stubProvider struct {
	bars     models.PriceSeries
	err      error
	histHits int
	metaHits int
}

func (s *stubProvider) FetchHistory(context.Context, string, string) (models.PriceSeries, error) {
	s.histHits++
	return s.bars, s.err
}

func (s *stubProvider) FetchMetadata(_ context.Context, symbol string) (models.StockInfo, error) {
	s.metaHits++
	return models.StockInfo{Symbol: symbol}, nil
}

func sampleBars() models.PriceSeries {
	d := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	return models.PriceSeries{
		{Date: d, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Date: d.AddDate(0, 0, 1), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 12},
	}
}

func TestCachedProviderServesSecondCallFromCache(t *testing.T) {
	up := &stubProvider{bars: sampleBars()}
	p := NewCachedProvider(up, cache.NewTTLCache(), time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := p.FetchHistory(ctx, "AAPL", "2y")
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if len(got) != 2 || got[1].Close != 2 {
			t.Fatalf("fetch %d: unexpected bars %+v", i, got)
		}
	}
	if up.histHits != 1 {
		t.Fatalf("expected one upstream call, got %d", up.histHits)
	}

	if _, err := p.FetchMetadata(ctx, "AAPL"); err != nil {
		t.Fatalf("meta: %v", err)
	}
	if _, err := p.FetchMetadata(ctx, "AAPL"); err != nil {
		t.Fatalf("meta: %v", err)
	}
	if up.metaHits != 1 {
		t.Fatalf("expected one upstream metadata call, got %d", up.metaHits)
	}
}

func TestCachedProviderDoesNotCacheEmptyHistory(t *testing.T) {
	up := &stubProvider{}
	p := NewCachedProvider(up, cache.NewTTLCache(), time.Minute, nil)
	for i := 0; i < 2; i++ {
		if _, err := p.FetchHistory(context.Background(), "NOPE", "2y"); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}
	if up.histHits != 2 {
		t.Fatalf("empty history must not be cached, upstream hits=%d", up.histHits)
	}
}

type failingCache struct{}

func (failingCache) GetBytes(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}
func (failingCache) SetBytes(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}
func (failingCache) Delete(context.Context, string) error { return nil }

func TestCachedProviderDegradesOnCacheErrors(t *testing.T) {
	up := &stubProvider{bars: sampleBars()}
	p := NewCachedProvider(up, failingCache{}, time.Minute, nil)
	got, err := p.FetchHistory(context.Background(), "AAPL", "2y")
	if err != nil || len(got) != 2 {
		t.Fatalf("expected upstream result despite cache failure, got %v %v", got, err)
	}
}

func TestCachedProviderPassesUpstreamError(t *testing.T) {
	up := &stubProvider{err: errors.New("boom")}
	p := NewCachedProvider(up, cache.NewTTLCache(), time.Minute, nil)
	if _, err := p.FetchHistory(context.Background(), "AAPL", "2y"); err == nil {
		t.Fatalf("expected error")
	}
}

type recordingStore struct {
	symbol string
	n      int
	err    error
}

func (r *recordingStore) StoreBars(_ context.Context, symbol string, bars models.PriceSeries) error {
	r.symbol = symbol
	r.n = len(bars)
	return r.err
}

func TestArchivingProviderStoresFetchedBars(t *testing.T) {
	store := &recordingStore{}
	p := NewArchivingProvider(&stubProvider{bars: sampleBars()}, store, nil)
	if _, err := p.FetchHistory(context.Background(), "MSFT", "1y"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if store.symbol != "MSFT" || store.n != 2 {
		t.Fatalf("unexpected archive call %+v", store)
	}
}

func TestArchivingProviderIgnoresStoreFailure(t *testing.T) {
	store := &recordingStore{err: errors.New("insert failed")}
	p := NewArchivingProvider(&stubProvider{bars: sampleBars()}, store, nil)
	got, err := p.FetchHistory(context.Background(), "MSFT", "1y")
	if err != nil || len(got) != 2 {
		t.Fatalf("archive failure leaked: %v %v", got, err)
	}
}

type capturingProducer struct {
	topic string
	key   []byte
	value interface{}
}

func (c *capturingProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	c.topic, c.key, c.value = topic, key, value
	return nil
}
func (c *capturingProducer) Close() error { return nil }

func TestKafkaForecastPublisherKeysBySymbol(t *testing.T) {
	cp := &capturingProducer{}
	p := &KafkaForecastPublisher{producer: cp, topic: "forecasts"}
	err := p.Publish(context.Background(), &models.ForecastResult{
		Symbol: "AAPL", Model: "trend", Horizon: 5, Recommendation: "BUY",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if cp.topic != "forecasts" || string(cp.key) != "AAPL" {
		t.Fatalf("unexpected topic/key %s/%s", cp.topic, cp.key)
	}
	ev, ok := cp.value.(forecastEvent)
	if !ok || ev.Recommendation != "BUY" || ev.Horizon != 5 {
		t.Fatalf("unexpected event %#v", cp.value)
	}
	if err := p.Publish(context.Background(), nil); err != nil {
		t.Fatalf("nil forecast should be ignored: %v", err)
	}
}

func TestCHHistoryRejectsUnsafeTableName(t *testing.T) {
	if _, err := newCHHistory(nil, "bars; DROP TABLE x", nil); err == nil {
		t.Fatalf("expected invalid table name error")
	}
	s, err := newCHHistory(nil, "market.daily_bars", nil)
	if err != nil {
		t.Fatalf("valid table rejected: %v", err)
	}
	if !strings.Contains(s.historyQuery(), "FROM market.daily_bars") {
		t.Fatalf("table not used in query: %s", s.historyQuery())
	}
	if ddl := BarsSchema("market.daily_bars"); len(ddl) != 1 || !strings.Contains(ddl[0], "ReplacingMergeTree") {
		t.Fatalf("unexpected ddl %v", ddl)
	}
}

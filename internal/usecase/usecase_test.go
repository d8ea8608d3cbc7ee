package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PriceCast/internal/domain/models"
	domsvc "PriceCast/internal/domain/service"
	"PriceCast/internal/service/cache"
	"PriceCast/internal/service/chart"
	"PriceCast/internal/services/forecast"
)

type fakeProvider struct {
	mu       sync.Mutex
	bars     models.PriceSeries
	histErr  error
	metaErr  error
	tickers  []string
	histHits int32
}

func (f *fakeProvider) FetchHistory(_ context.Context, symbol, _ string) (models.PriceSeries, error) {
	atomic.AddInt32(&f.histHits, 1)
	f.mu.Lock()
	f.tickers = append(f.tickers, symbol)
	f.mu.Unlock()
	return f.bars, f.histErr
}

func (f *fakeProvider) FetchMetadata(_ context.Context, symbol string) (models.StockInfo, error) {
	if f.metaErr != nil {
		return models.StockInfo{}, f.metaErr
	}
	name := symbol + " Corp"
	return models.StockInfo{Symbol: symbol, Name: &name}, nil
}

type fakeRenderer struct{ err error }

func (r fakeRenderer) Render(context.Context, domsvc.ChartInput) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("png"), nil
}

type fakePublisher struct {
	n   int32
	err error
}

func (p *fakePublisher) Publish(context.Context, *models.ForecastResult) error {
	atomic.AddInt32(&p.n, 1)
	return p.err
}
func (p *fakePublisher) Close() error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordCacheRequest(string)                {}
func (nopMetrics) RecordForecastDuration(string, float64)   {}
func (nopMetrics) RecordError(string)                       {}
func (nopMetrics) RecordLastPredictedPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)            {}

func flatBars(n int, v float64) models.PriceSeries {
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(models.PriceSeries, n)
	for i := range out {
		out[i] = models.Bar{Date: d.AddDate(0, 0, i), Open: v, High: v, Low: v, Close: v, Volume: 1000}
	}
	return out
}

func newPredict(t *testing.T, p *fakeProvider, r domsvc.ChartRenderer, pub *fakePublisher, workers int, queue time.Duration) *PredictUseCase {
	t.Helper()
	engine := forecast.NewEngine(forecast.NewTrendModel(), forecast.WithLookBack(10), forecast.WithMaxHorizon(30))
	return NewPredictUseCase(
		PredictConfig{Workers: workers, QueueTimeout: queue, Aliases: map[string]string{"TECHCORP": "AAPL"}},
		p, engine, r, pub,
		cache.NewResultCache[*models.Prediction](cache.WithTTL(time.Minute)),
		nopMetrics{}, nil,
	)
}

func TestPredictResolvesAliasAndCaches(t *testing.T) {
	p := &fakeProvider{bars: flatBars(300, 50)}
	pub := &fakePublisher{}
	uc := newPredict(t, p, fakeRenderer{}, pub, 2, time.Second)

	pred, err := uc.Predict(context.Background(), " techcorp ", 5)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.Forecast.Symbol != "TECHCORP" || pred.Info.Ticker != "AAPL" || p.tickers[0] != "AAPL" {
		t.Fatalf("alias not resolved: forecast=%s ticker=%s fetched=%v", pred.Forecast.Symbol, pred.Info.Ticker, p.tickers)
	}
	if len(pred.Forecast.Path) != 5 || pred.Forecast.Recommendation != forecast.Hold {
		t.Fatalf("unexpected forecast %+v", pred.Forecast)
	}
	if len(pred.History) != historyPoints {
		t.Fatalf("expected %d history points, got %d", historyPoints, len(pred.History))
	}
	if pred.ChartFallback || pred.Chart != base64.StdEncoding.EncodeToString([]byte("png")) {
		t.Fatalf("unexpected chart %q fallback=%v", pred.Chart, pred.ChartFallback)
	}
	if pred.Info.Name == nil || *pred.Info.Name != "AAPL Corp" || pred.Info.CurrentPrice == nil {
		t.Fatalf("metadata not merged: %+v", pred.Info)
	}

	again, err := uc.Predict(context.Background(), "TECHCORP", 5)
	if err != nil {
		t.Fatalf("predict again: %v", err)
	}
	if again != pred {
		t.Fatalf("second call should return the cached prediction")
	}
	if n := atomic.LoadInt32(&p.histHits); n != 1 {
		t.Fatalf("expected 1 provider call, got %d", n)
	}
	if n := atomic.LoadInt32(&pub.n); n != 1 {
		t.Fatalf("expected 1 publish, got %d", n)
	}
	if uc.CacheEntries() != 1 {
		t.Fatalf("expected 1 cache entry, got %d", uc.CacheEntries())
	}
	uc.ClearCache()
	if uc.CacheEntries() != 0 {
		t.Fatalf("cache not cleared")
	}
}

func TestPredictConcurrentCallersShareComputation(t *testing.T) {
	p := &fakeProvider{bars: flatBars(120, 10)}
	uc := newPredict(t, p, fakeRenderer{}, &fakePublisher{}, 4, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := uc.Predict(context.Background(), "MSFT", 3); err != nil {
				t.Errorf("predict: %v", err)
			}
		}()
	}
	wg.Wait()
	if n := atomic.LoadInt32(&p.histHits); n != 1 {
		t.Fatalf("expected one computation, provider called %d times", n)
	}
}

func TestPredictEmptyHistoryIsNotCached(t *testing.T) {
	p := &fakeProvider{}
	uc := newPredict(t, p, fakeRenderer{}, &fakePublisher{}, 1, time.Second)

	for i := 0; i < 2; i++ {
		_, err := uc.Predict(context.Background(), "NOPE", 5)
		var de *forecast.DataUnavailableError
		if !errors.As(err, &de) || de.Symbol != "NOPE" {
			t.Fatalf("expected DataUnavailableError, got %v", err)
		}
	}
	if n := atomic.LoadInt32(&p.histHits); n != 2 {
		t.Fatalf("failed result must not be cached, provider hits=%d", n)
	}
}

func TestPredictShortHistory(t *testing.T) {
	uc := newPredict(t, &fakeProvider{bars: flatBars(10, 5)}, fakeRenderer{}, &fakePublisher{}, 1, time.Second)
	_, err := uc.Predict(context.Background(), "AAPL", 5)
	var ie *forecast.InsufficientDataError
	if !errors.As(err, &ie) || ie.Required != 11 || ie.Got != 10 {
		t.Fatalf("expected InsufficientDataError{11,10}, got %v", err)
	}
}

func TestPredictInvalidHorizon(t *testing.T) {
	uc := newPredict(t, &fakeProvider{bars: flatBars(50, 5)}, fakeRenderer{}, &fakePublisher{}, 1, time.Second)
	for _, h := range []int{0, 31} {
		if _, err := uc.Predict(context.Background(), "AAPL", h); !errors.Is(err, ErrInvalidHorizon) {
			t.Fatalf("horizon %d: expected ErrInvalidHorizon, got %v", h, err)
		}
	}
}

func TestPredictRenderFailureUsesPlaceholder(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	uc := newPredict(t, &fakeProvider{bars: flatBars(50, 5), metaErr: errors.New("meta down")},
		fakeRenderer{err: &chart.RenderError{Symbol: "AAPL", Err: errors.New("font")}}, pub, 1, time.Second)

	pred, err := uc.Predict(context.Background(), "AAPL", 2)
	if err != nil {
		t.Fatalf("render, metadata and publish failures must not fail the request: %v", err)
	}
	if !pred.ChartFallback || pred.Chart != base64.StdEncoding.EncodeToString(chart.Placeholder()) {
		t.Fatalf("expected placeholder chart")
	}
	if pred.Info.Ticker != "AAPL" || pred.Info.Name != nil {
		t.Fatalf("expected bare metadata, got %+v", pred.Info)
	}
}

func TestPredictQueueTimeout(t *testing.T) {
	uc := newPredict(t, &fakeProvider{bars: flatBars(50, 5)}, fakeRenderer{}, &fakePublisher{}, 1, 20*time.Millisecond)
	if err := uc.pool.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer uc.pool.Release(1)

	_, err := uc.Predict(context.Background(), "AAPL", 2)
	var ce *forecast.ComputationError
	if !errors.As(err, &ce) || ce.Op != "queue" {
		t.Fatalf("expected queue ComputationError, got %v", err)
	}
	if uc.CacheEntries() != 0 {
		t.Fatalf("timeout must not be cached")
	}
}

func TestStockSnapshot(t *testing.T) {
	bars := flatBars(40, 100)
	bars[len(bars)-1] = models.Bar{Date: bars[len(bars)-1].Date, Open: 101, High: 112, Low: 99, Close: 110, Volume: 5}
	uc := NewStockUseCase(&fakeProvider{bars: bars}, map[string]string{"FINBANK": "JPM"}, nil)

	snap, err := uc.GetStock(context.Background(), "finbank", "1mo")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if snap.Ticker != "JPM" || snap.Symbol != "FINBANK" {
		t.Fatalf("alias not resolved %s/%s", snap.Symbol, snap.Ticker)
	}
	if snap.CurrentPrice != 110 || snap.Open != 101 || snap.High != 112 || snap.Low != 99 {
		t.Fatalf("unexpected last bar %+v", snap)
	}
	if snap.Change != 10 || snap.ChangePercent != 10 {
		t.Fatalf("unexpected change %v %v", snap.Change, snap.ChangePercent)
	}
	if len(snap.Closes) != snapshotPoints || len(snap.Dates) != snapshotPoints || len(snap.Volumes) != snapshotPoints {
		t.Fatalf("expected %d points, got %d", snapshotPoints, len(snap.Closes))
	}
	if snap.Volatility <= 0 {
		t.Fatalf("expected positive volatility after a jump, got %v", snap.Volatility)
	}
	if snap.Info.Name != "JPM Corp" || snap.Info.Sector != "Unknown" || snap.Info.Currency != "USD" {
		t.Fatalf("unexpected info %+v", snap.Info)
	}
}

func TestStockSnapshotNoData(t *testing.T) {
	uc := NewStockUseCase(&fakeProvider{}, nil, nil)
	_, err := uc.GetStock(context.Background(), "ZZZ", "1mo")
	var de *forecast.DataUnavailableError
	if !errors.As(err, &de) {
		t.Fatalf("expected DataUnavailableError, got %v", err)
	}
}

type scriptedPredictor struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *scriptedPredictor) Predict(_ context.Context, symbol string, horizon int) (*models.Prediction, error) {
	s.mu.Lock()
	s.calls = append(s.calls, symbol)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &models.Prediction{}, nil
}

func TestWarmerRunOnce(t *testing.T) {
	p := &scriptedPredictor{}
	w, err := NewWarmer(p, "0 */30 * * * *", []string{"AAPL", "MSFT"}, []int{30, 90}, nil)
	if err != nil {
		t.Fatalf("new warmer: %v", err)
	}
	if ok := w.RunOnce(context.Background()); ok != 4 {
		t.Fatalf("expected 4 warmed, got %d", ok)
	}
	if len(p.calls) != 4 {
		t.Fatalf("expected 4 calls, got %v", p.calls)
	}
	w.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestWarmerRejectsBadSchedule(t *testing.T) {
	if _, err := NewWarmer(&scriptedPredictor{}, "not a cron", nil, nil, nil); err == nil {
		t.Fatalf("expected schedule error")
	}
}

func TestWarmupHandler(t *testing.T) {
	p := &scriptedPredictor{}
	h := NewWarmupHandler("warmup", p, 90, nil)
	if h.Topic() != "warmup" {
		t.Fatalf("unexpected topic %s", h.Topic())
	}
	if err := h.Handle(context.Background(), []byte("{not json")); err != nil {
		t.Fatalf("malformed message should be dropped: %v", err)
	}
	if err := h.Handle(context.Background(), []byte(`{"symbol":"AAPL"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(p.calls) != 1 || p.calls[0] != "AAPL" {
		t.Fatalf("unexpected calls %v", p.calls)
	}

	p.err = &forecast.DataUnavailableError{Symbol: "X"}
	if err := h.Handle(context.Background(), []byte(`{"symbol":"X","days":5}`)); err != nil {
		t.Fatalf("data errors are not retried: %v", err)
	}
	p.err = &forecast.ComputationError{Op: "fit", Err: errors.New("nan")}
	if err := h.Handle(context.Background(), []byte(`{"symbol":"X","days":5}`)); err == nil {
		t.Fatalf("computation errors must be returned for retry")
	}
}

func TestOverviewSkipsFailingSymbols(t *testing.T) {
	p := &symbolProvider{bars: map[string]models.PriceSeries{
		"AAPL": flatBars(5, 100),
		"MSFT": {{Close: 200}, {Close: 210}},
	}}
	uc := NewStockUseCase(p, map[string]string{"DATASOFT": "MSFT"}, nil)
	got, err := uc.Overview(context.Background(), []string{"AAPL", "NOPE", "datasoft"})
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if len(got) != 2 || got[0].Symbol != "AAPL" || got[1].Symbol != "DATASOFT" {
		t.Fatalf("unexpected entries %+v", got)
	}
	if got[1].Change != 10 || got[1].ChangePercent != 5 || got[1].Sector != "Unknown" {
		t.Fatalf("unexpected entry %+v", got[1])
	}
}

type symbolProvider struct {
	bars map[string]models.PriceSeries
}

func (p *symbolProvider) FetchHistory(_ context.Context, symbol, _ string) (models.PriceSeries, error) {
	return p.bars[symbol], nil
}

func (p *symbolProvider) FetchMetadata(_ context.Context, symbol string) (models.StockInfo, error) {
	return models.StockInfo{Symbol: symbol}, nil
}

package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	domsvc "PriceCast/internal/domain/service"
	"PriceCast/internal/service/cache"
	"PriceCast/internal/service/chart"
	"PriceCast/internal/services/forecast"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

// historyPoints is how many dated closes a prediction keeps for display.
const historyPoints = 180

// ErrInvalidHorizon is returned for a horizon outside the engine's range.
var ErrInvalidHorizon = errors.New("invalid forecast horizon")

// Predictor produces memoized predictions. Implemented by PredictUseCase.
type Predictor interface {
	Predict(ctx context.Context, symbol string, horizon int) (*models.Prediction, error)
}

type PredictConfig struct {
	Workers       int
	QueueTimeout  time.Duration
	HistoryPeriod string
	Aliases       map[string]string
}

// PredictUseCase answers forecast requests. Identical concurrent requests
// share one computation and results are reused until the cache TTL expires.
type PredictUseCase struct {
	provider  domrepo.MarketDataProvider
	engine    *forecast.Engine
	renderer  domsvc.ChartRenderer
	publisher domrepo.ForecastPublisher
	results   *cache.ResultCache[*models.Prediction]
	metrics   domrepo.Metrics
	l         *applogger.Logger

	pool          *semaphore.Weighted
	queueTimeout  time.Duration
	historyPeriod string
	aliases       map[string]string
}

func NewPredictUseCase(
	cfg PredictConfig,
	provider domrepo.MarketDataProvider,
	engine *forecast.Engine,
	renderer domsvc.ChartRenderer,
	publisher domrepo.ForecastPublisher,
	results *cache.ResultCache[*models.Prediction],
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *PredictUseCase {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = 30 * time.Second
	}
	if cfg.HistoryPeriod == "" {
		cfg.HistoryPeriod = "2y"
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &PredictUseCase{
		provider:      provider,
		engine:        engine,
		renderer:      renderer,
		publisher:     publisher,
		results:       results,
		metrics:       metrics,
		l:             l,
		pool:          semaphore.NewWeighted(int64(cfg.Workers)),
		queueTimeout:  cfg.QueueTimeout,
		historyPeriod: cfg.HistoryPeriod,
		aliases:       cfg.Aliases,
	}
}

// Predict returns the forecast for symbol over horizon trading days.
// The returned value is shared with the cache and must not be modified.
func (uc *PredictUseCase) Predict(ctx context.Context, symbol string, horizon int) (*models.Prediction, error) {
	sym := util.NormalizeSymbol(symbol)
	if sym == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if horizon < 1 || horizon > uc.engine.MaxHorizon() {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidHorizon, horizon, uc.engine.MaxHorizon())
	}
	return uc.results.GetOrCompute(ctx, cache.Key{Symbol: sym, Horizon: horizon}, func(ctx context.Context) (*models.Prediction, error) {
		return uc.compute(ctx, sym, horizon)
	})
}

// ClearCache drops every memoized prediction.
func (uc *PredictUseCase) ClearCache() { uc.results.Clear() }

// CacheEntries reports how many predictions are memoized.
func (uc *PredictUseCase) CacheEntries() int { return uc.results.Len() }

func (uc *PredictUseCase) compute(ctx context.Context, symbol string, horizon int) (*models.Prediction, error) {
	qctx, cancel := context.WithTimeout(ctx, uc.queueTimeout)
	err := uc.pool.Acquire(qctx, 1)
	cancel()
	if err != nil {
		uc.metrics.RecordError("queue_timeout")
		return nil, &forecast.ComputationError{Op: "queue", Err: err}
	}
	defer uc.pool.Release(1)

	start := time.Now()
	ticker := util.ResolveAlias(symbol, uc.aliases)

	series, err := uc.provider.FetchHistory(ctx, ticker, uc.historyPeriod)
	uc.metrics.RecordLatency("provider_history", time.Since(start).Seconds())
	if err != nil {
		uc.metrics.RecordError("provider")
		return nil, fmt.Errorf("fetch history for %s: %w", ticker, err)
	}
	if len(series) == 0 {
		uc.metrics.RecordError("no_data")
		return nil, &forecast.DataUnavailableError{Symbol: symbol}
	}

	closes := series.Closes()
	fstart := time.Now()
	res, err := uc.engine.Run(ctx, symbol, closes, horizon)
	if err != nil {
		uc.recordEngineError(err)
		return nil, err
	}
	uc.metrics.RecordForecastDuration(res.Model, time.Since(fstart).Seconds())
	uc.metrics.RecordLastPredictedPrice(symbol, res.PredictedEndPrice)

	pred := &models.Prediction{
		Forecast: *res,
		Info:     uc.metadata(ctx, symbol, ticker, res.CurrentPrice),
		History:  historyTail(series, historyPoints),
	}
	png, err := uc.renderer.Render(ctx, domsvc.ChartInput{
		Symbol:  symbol,
		History: closes,
		Path:    res.Path,
		Horizon: horizon,
	})
	if err != nil {
		uc.metrics.RecordError("chart")
		uc.l.Warn("chart render failed, using placeholder",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		png = chart.Placeholder()
		pred.ChartFallback = true
	}
	pred.Chart = base64.StdEncoding.EncodeToString(png)

	uc.publish(ctx, res)

	uc.l.Info("forecast computed",
		applogger.String("symbol", symbol),
		applogger.String("ticker", ticker),
		applogger.String("model", res.Model),
		applogger.Int("horizon", horizon),
		applogger.String("recommendation", res.Recommendation),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return pred, nil
}

// metadata is best effort: any failure yields a bare StockInfo.
func (uc *PredictUseCase) metadata(ctx context.Context, symbol, ticker string, current float64) models.StockInfo {
	info, err := uc.provider.FetchMetadata(ctx, ticker)
	if err != nil {
		uc.l.Warn("metadata fetch failed",
			applogger.String("ticker", ticker),
			applogger.Error(err),
		)
		info = models.StockInfo{}
	}
	info.Symbol = symbol
	info.Ticker = ticker
	if info.CurrentPrice == nil {
		info.CurrentPrice = &current
	}
	return info
}

func (uc *PredictUseCase) publish(ctx context.Context, res *models.ForecastResult) {
	if uc.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := uc.publisher.Publish(pctx, res); err != nil {
		uc.metrics.RecordError("publish")
		uc.l.Warn("forecast publish failed",
			applogger.String("symbol", res.Symbol),
			applogger.Error(err),
		)
	}
}

func (uc *PredictUseCase) recordEngineError(err error) {
	var (
		insufficient *forecast.InsufficientDataError
		unavailable  *forecast.DataUnavailableError
		computation  *forecast.ComputationError
	)
	switch {
	case errors.As(err, &insufficient):
		uc.metrics.RecordError("insufficient_data")
	case errors.As(err, &unavailable):
		uc.metrics.RecordError("no_data")
	case errors.As(err, &computation):
		uc.metrics.RecordError("computation")
		uc.l.Error("forecast computation failed",
			applogger.String("op", computation.Op),
			applogger.Error(err),
		)
	default:
		uc.metrics.RecordError("engine")
	}
}

func historyTail(series models.PriceSeries, n int) []models.HistoryPoint {
	tail := series.Tail(n)
	out := make([]models.HistoryPoint, len(tail))
	for i, b := range tail {
		out[i] = models.HistoryPoint{Date: b.Date, Close: b.Close}
	}
	return out
}

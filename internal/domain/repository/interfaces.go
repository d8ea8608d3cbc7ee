package repository

import (
	"context"

	"PriceCast/internal/domain/models"
)

// MarketDataProvider supplies daily history and instrument metadata.
// Symbols reaching a provider are already alias-resolved.
type MarketDataProvider interface {
	FetchHistory(ctx context.Context, symbol, period string) (models.PriceSeries, error)
	FetchMetadata(ctx context.Context, symbol string) (models.StockInfo, error)
}

// ForecastPublisher announces finished forecasts to downstream consumers.
type ForecastPublisher interface {
	Publish(ctx context.Context, f *models.ForecastResult) error
	Close() error
}

type Metrics interface {
	RecordCacheRequest(result string)
	RecordForecastDuration(model string, seconds float64)
	RecordError(kind string)
	RecordLastPredictedPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}

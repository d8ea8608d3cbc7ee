//go:build wireinject
// +build wireinject

package di

import (
	"PriceCast/pkg/config"
	"PriceCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// The returned cleanup closes infrastructure clients in reverse order.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideHistoryCache,

		// Repositories and services
		ProvideMarketDataProvider,
		ProvideForecastPublisher,
		ProvideEngine,
		ProvideResultCache,
		ProvideChartRenderer,
		ProvideRateLimiter,

		// Use cases
		ProvidePredictUseCase,
		ProvideStockUseCase,
		ProvideWarmer,
		ProvideKafkaConsumer,

		// Transport and application
		ProvideForecastHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

package di

import (
	"context"
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/repository"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/handler/api"
	internalrepo "PriceCast/internal/repository"
	"PriceCast/internal/service/cache"
	"PriceCast/internal/service/chart"
	endpointmetrics "PriceCast/internal/service/metrics"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/service/yahoo"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/usecase"
	pkgch "PriceCast/pkg/clickhouse"
	"PriceCast/pkg/config"
	xhttp "PriceCast/pkg/http"
	pkgkafka "PriceCast/pkg/kafka"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/metrics"
	"PriceCast/pkg/server"
)

// ProvideLogger creates the process logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  "stdout",
		Service: "pricecast",
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	endpointmetrics.Register()
	return metrics.New()
}

// ProvideClickHouseClient connects to ClickHouse when the bar table is used,
// either as the history source or as the archive. Returns nil otherwise.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if cfg.Provider.Type != "clickhouse" && !cfg.ClickHouse.Archive {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.BarsSchema(cfg.ClickHouse.BarsTable)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready",
		applogger.String("database", cfg.ClickHouse.Database),
		applogger.String("table", cfg.ClickHouse.BarsTable),
	)
	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}, nil
}

// ProvideKafkaProducer creates a Kafka producer and, when configured, routes
// aggregated error logs through it. Returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	if cfg.Log.Collector.Enabled {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.FlushInterval,
			CountThreshold: cfg.Log.Collector.MaxBatchSize,
			Topic:          cfg.Kafka.LogTopic,
			Service:        "pricecast",
			Publisher:      producer,
		})
	}
	return producer, func() {
		l.RemoveCollector()
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}, nil
}

// ProvideHistoryCache returns the byte cache for provider responses: Redis
// behind an in-process layer when enabled, otherwise in-process only.
// An unreachable Redis falls back to the in-process cache.
func ProvideHistoryCache(cfg *config.Config, l *applogger.Logger) (cache.BytesCache, func(), error) {
	if !cfg.Redis.Enabled {
		return cache.NewTTLCache(), func() {}, nil
	}
	rc := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		l.Warn("redis unreachable, using in-process history cache",
			applogger.String("addr", cfg.Redis.Addr),
			applogger.Error(err),
		)
		_ = rc.Close()
		return cache.NewTTLCache(), func() {}, nil
	}
	return cache.NewLayeredCache(rc, time.Minute), func() { _ = rc.Close() }, nil
}

// ProvideMarketDataProvider builds the configured history source and wraps
// it with archiving and caching.
func ProvideMarketDataProvider(
	cfg *config.Config,
	ch *pkgch.Client,
	bytesCache cache.BytesCache,
	l *applogger.Logger,
) (repository.MarketDataProvider, error) {
	var base repository.MarketDataProvider
	switch cfg.Provider.Type {
	case "clickhouse":
		store, err := internalrepo.NewCHHistory(ch, cfg.ClickHouse.BarsTable, l)
		if err != nil {
			return nil, err
		}
		base = store
	default:
		base = yahoo.New(cfg.Provider.YahooBaseURL, cfg.Provider.Timeout, l)
		if cfg.ClickHouse.Archive && ch != nil {
			store, err := internalrepo.NewCHHistory(ch, cfg.ClickHouse.BarsTable, l)
			if err != nil {
				return nil, err
			}
			base = internalrepo.NewArchivingProvider(base, store, l)
		}
	}
	return internalrepo.NewCachedProvider(base, bytesCache, cfg.Provider.HistoryTTL, l), nil
}

// ProvideForecastPublisher publishes to Kafka when a producer exists.
func ProvideForecastPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ForecastPublisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaForecastPublisher(producer, cfg.Kafka.ForecastTopic)
}

// ProvideEngine builds the forecast engine for the configured model.
func ProvideEngine(cfg *config.Config) (*forecast.Engine, error) {
	f := cfg.Forecast
	model, err := forecast.NewModel(f.Model, forecast.ModelOptions{
		Epochs:       f.Epochs,
		HiddenSize:   f.HiddenSize,
		LearningRate: f.LearningRate,
	})
	if err != nil {
		return nil, err
	}
	return forecast.NewEngine(model,
		forecast.WithLookBack(f.LookBack),
		forecast.WithTrainRatio(f.TrainRatio),
		forecast.WithMaxHorizon(f.HorizonMax),
		forecast.WithSeed(f.Seed),
	), nil
}

func ProvideResultCache(cfg *config.Config, m repository.Metrics) *cache.ResultCache[*models.Prediction] {
	return cache.NewResultCache[*models.Prediction](
		cache.WithTTL(cfg.Forecast.CacheTTL),
		cache.WithObserver(m.RecordCacheRequest),
	)
}

func ProvideChartRenderer() service.ChartRenderer {
	return chart.NewRenderer()
}

func ProvidePredictUseCase(
	cfg *config.Config,
	provider repository.MarketDataProvider,
	engine *forecast.Engine,
	renderer service.ChartRenderer,
	publisher repository.ForecastPublisher,
	results *cache.ResultCache[*models.Prediction],
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.PredictUseCase {
	return usecase.NewPredictUseCase(usecase.PredictConfig{
		Workers:       cfg.Forecast.Workers,
		QueueTimeout:  cfg.Forecast.QueueTimeout,
		HistoryPeriod: cfg.Forecast.HistoryPeriod,
		Aliases:       cfg.Provider.Aliases,
	}, provider, engine, renderer, publisher, results, m, l)
}

func ProvideStockUseCase(cfg *config.Config, provider repository.MarketDataProvider, l *applogger.Logger) *usecase.StockUseCase {
	return usecase.NewStockUseCase(provider, cfg.Provider.Aliases, l)
}

func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

func ProvideForecastHandler(
	cfg *config.Config,
	l *applogger.Logger,
	predict *usecase.PredictUseCase,
	stock *usecase.StockUseCase,
	limiter *ratelimit.Limiter,
) *api.ForecastHandler {
	return api.NewForecastHandler(l, predict, stock, limiter, api.RateLimit{
		Enabled:  cfg.RateLimit.Enabled,
		Capacity: cfg.RateLimit.Capacity,
		Refill:   cfg.RateLimit.Refill,
	}, cfg.Market.OverviewSymbols)
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.ForecastHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true, cfg.Server.AllowedOrigins),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideWarmer returns nil when warm-up is disabled.
func ProvideWarmer(cfg *config.Config, predict *usecase.PredictUseCase, l *applogger.Logger) (*usecase.Warmer, error) {
	if !cfg.Warmup.Enabled {
		return nil, nil
	}
	return usecase.NewWarmer(predict, cfg.Warmup.Cron, cfg.Warmup.Symbols, cfg.Warmup.Horizons, l)
}

// ProvideKafkaConsumer creates the warm-up request consumer. Returns nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, predict *usecase.PredictUseCase, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	kc := cfg.Kafka.Consumer
	if !cfg.Kafka.Enabled || !kc.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(kc.GroupID),
		pkgkafka.WithConsumerWorkers(kc.Workers),
		pkgkafka.WithConsumerRetry(kc.RetryMax, kc.BackoffMin, kc.BackoffMax),
		pkgkafka.WithConsumerDLQ(kc.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewWarmupHandler(cfg.Kafka.WarmupTopic, predict, cfg.Forecast.HorizonDefault, l))
	return consumer, nil
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	warmer *usecase.Warmer,
	consumer *pkgkafka.Consumer,
	limiter *ratelimit.Limiter,
) *server.App {
	return server.New(cfg, l, srv, warmer, consumer, limiter)
}

package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/usecase"
	"PriceCast/pkg/config"
	xhttp "PriceCast/pkg/http"
	pkgkafka "PriceCast/pkg/kafka"
	applogger "PriceCast/pkg/logger"
)

const limiterIdleTTL = 10 * time.Minute

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	warmer     *usecase.Warmer
	consumer   *pkgkafka.Consumer
	limiter    *ratelimit.Limiter
}

// New creates an App. warmer and consumer are nil when disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	warmer *usecase.Warmer,
	consumer *pkgkafka.Consumer,
	limiter *ratelimit.Limiter,
) *App {
	if log == nil {
		log = applogger.NewNop()
	}
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		warmer:     warmer,
		consumer:   consumer,
		limiter:    limiter,
	}
}

// Run starts the application and blocks until interrupted or the HTTP server fails.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	bg, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.consumer != nil {
		if err := a.consumer.Start(bg); err != nil {
			return err
		}
	}
	if a.warmer != nil {
		a.warmer.Start()
	}
	if a.limiter != nil {
		go a.sweepLimiter(bg)
	}

	errCh := a.httpServer.Start()
	a.log.Info("pricecast started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("model", a.cfg.Forecast.Model),
		applogger.String("provider", a.cfg.Provider.Type),
		applogger.Bool("warmup", a.warmer != nil),
		applogger.Bool("consumer", a.consumer != nil),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("http server error", applogger.Error(err))
			runErr = err
		}
	}
	cancel()
	a.shutdown()
	return runErr
}

// shutdown stops intake first, then background work.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.warmer != nil {
		if err := a.warmer.Stop(ctx); err != nil {
			a.log.Warn("warmup stop error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}

func (a *App) sweepLimiter(ctx context.Context) {
	t := time.NewTicker(limiterIdleTTL)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Sweep(limiterIdleTTL); n > 0 {
				a.log.Debug("rate limiter buckets swept", applogger.Int("removed", n))
			}
		}
	}
}

package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	applogger "PriceCast/pkg/logger"
)

// Warmer precomputes predictions on a cron schedule so the first user
// request for a popular symbol is a cache hit.
type Warmer struct {
	predictor Predictor
	symbols   []string
	horizons  []int
	cron      *cron.Cron
	l         *applogger.Logger
	timeout   time.Duration
}

// NewWarmer parses schedule with a leading seconds field, e.g. "0 */30 * * * *".
func NewWarmer(p Predictor, schedule string, symbols []string, horizons []int, l *applogger.Logger) (*Warmer, error) {
	if l == nil {
		l = applogger.NewNop()
	}
	w := &Warmer{
		predictor: p,
		symbols:   symbols,
		horizons:  horizons,
		cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		l:         l,
		timeout:   10 * time.Minute,
	}
	if _, err := w.cron.AddFunc(schedule, w.tick); err != nil {
		return nil, fmt.Errorf("warmup schedule %q: %w", schedule, err)
	}
	return w, nil
}

func (w *Warmer) Start() {
	w.cron.Start()
	w.l.Info("warmup scheduler started",
		applogger.Strings("symbols", w.symbols),
		applogger.Int("horizons", len(w.horizons)),
	)
}

// Stop prevents new runs and waits for a running one, bounded by ctx.
func (w *Warmer) Stop(ctx context.Context) error {
	done := w.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Warmer) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	w.RunOnce(ctx)
}

// RunOnce warms every symbol and horizon pair and returns how many succeeded.
func (w *Warmer) RunOnce(ctx context.Context) int {
	start := time.Now()
	ok := 0
	for _, s := range w.symbols {
		for _, h := range w.horizons {
			if ctx.Err() != nil {
				return ok
			}
			if _, err := w.predictor.Predict(ctx, s, h); err != nil {
				w.l.Warn("warmup prediction failed",
					applogger.String("symbol", s),
					applogger.Int("horizon", h),
					applogger.Error(err),
				)
				continue
			}
			ok++
		}
	}
	w.l.Info("warmup run finished",
		applogger.Int("ok", ok),
		applogger.Int("total", len(w.symbols)*len(w.horizons)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return ok
}

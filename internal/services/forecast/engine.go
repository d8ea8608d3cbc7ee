package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"PriceCast/internal/domain/models"
)

const (
	DefaultLookBack   = 60
	DefaultTrainRatio = 0.8
	DefaultMaxHorizon = 365
	DefaultSeed       = 42
)

// Engine runs the full forecast pipeline for one closing-price series.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	model      Model
	lookBack   int
	trainRatio float64
	maxHorizon int
	seed       int64
	now        func() time.Time
}

type EngineOption func(*Engine)

func WithLookBack(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.lookBack = n
		}
	}
}

func WithTrainRatio(r float64) EngineOption {
	return func(e *Engine) {
		if r > 0 && r < 1 {
			e.trainRatio = r
		}
	}
}

func WithMaxHorizon(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxHorizon = n
		}
	}
}

func WithSeed(seed int64) EngineOption {
	return func(e *Engine) { e.seed = seed }
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(model Model, opts ...EngineOption) *Engine {
	e := &Engine{
		model:      model,
		lookBack:   DefaultLookBack,
		trainRatio: DefaultTrainRatio,
		maxHorizon: DefaultMaxHorizon,
		seed:       DefaultSeed,
		now:        time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) ModelName() string { return e.model.Name() }
func (e *Engine) LookBack() int     { return e.lookBack }
func (e *Engine) MaxHorizon() int   { return e.maxHorizon }

// Run forecasts horizon closes past the end of closes.
func (e *Engine) Run(ctx context.Context, symbol string, closes []float64, horizon int) (*models.ForecastResult, error) {
	if horizon < 1 || horizon > e.maxHorizon {
		return nil, fmt.Errorf("horizon %d outside [1, %d]", horizon, e.maxHorizon)
	}
	if len(closes) == 0 {
		return nil, &DataUnavailableError{Symbol: symbol}
	}
	if len(closes) < e.lookBack+1 {
		return nil, &InsufficientDataError{Required: e.lookBack + 1, Got: len(closes)}
	}
	for i, c := range closes {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, computationErr("normalize", fmt.Errorf("non-finite close at index %d", i))
		}
	}

	scaled, scaler, err := FitTransform(closes)
	if err != nil {
		return nil, err
	}
	windows, err := BuildWindows(scaled, e.lookBack)
	if err != nil {
		return nil, err
	}
	train, eval := SplitWindows(windows, e.trainRatio)

	rng := rand.New(rand.NewSource(e.seed))
	fitted, err := e.model.Fit(ctx, FitInput{Train: train, Scaler: scaler, Horizon: horizon, Rand: rng})
	if err != nil {
		return nil, err
	}
	metrics, err := Evaluate(fitted, eval)
	if err != nil {
		return nil, err
	}

	seed := scaled[len(scaled)-e.lookBack:]
	scaledPath, err := Rollout(fitted, seed, horizon)
	if err != nil {
		return nil, computationErr("rollout", err)
	}
	path := InverseTransform(scaledPath, scaler)

	current := closes[len(closes)-1]
	end := path[len(path)-1]
	change := end - current
	pct := 0.0
	if current != 0 {
		pct = change / current * 100
	}
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return nil, computationErr("rollout", fmt.Errorf("non-finite price change %v", pct))
	}
	rec := Classify(pct)

	return &models.ForecastResult{
		Symbol:              symbol,
		Model:               e.model.Name(),
		Horizon:             horizon,
		CurrentPrice:        current,
		PredictedEndPrice:   end,
		PriceChange:         change,
		PriceChangePercent:  pct,
		Path:                path,
		Recommendation:      rec.Label,
		RecommendationColor: rec.Color,
		Metrics:             models.FitMetrics{MSE: metrics.MSE, R2: metrics.R2},
		CreatedAt:           e.now(),
	}, nil
}

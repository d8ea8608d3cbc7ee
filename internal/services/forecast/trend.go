package forecast

import (
	"context"
	"errors"
	"math/rand"

	"PriceCast/internal/services/features"
)

const (
	shortAvgWindow      = 20
	longAvgWindow       = 60
	momentumLag         = 20
	volatilityWindow    = 30
	volatilityFallback  = 0.02
	momentumDamping     = 0.3
	noiseVolatilityFrac = 0.1
)

// TrendModel is the deterministic momentum heuristic. It has no training phase;
// Fit only captures the scaler, the horizon and the seeded random source.
type TrendModel struct{}

func NewTrendModel() *TrendModel { return &TrendModel{} }

func (m *TrendModel) Name() string { return ModelTrend }

func (m *TrendModel) Fit(_ context.Context, in FitInput) (Fitted, error) {
	if in.Rand == nil {
		return nil, computationErr("fit", errors.New("nil random source"))
	}
	horizon := in.Horizon
	if horizon < 1 {
		horizon = 1
	}
	return &trendFitted{scaler: in.Scaler, horizon: horizon, rng: in.Rand}, nil
}

// TrendStats are the closed-form statistics behind one heuristic step.
type TrendStats struct {
	Current    float64
	ShortAvg   float64
	LongAvg    float64
	Momentum   float64
	Volatility float64
}

// ComputeTrendStats derives the heuristic statistics from a price window.
func ComputeTrendStats(prices []float64) TrendStats {
	if len(prices) == 0 {
		return TrendStats{Volatility: volatilityFallback}
	}
	return TrendStats{
		Current:    prices[len(prices)-1],
		ShortAvg:   features.Mean(features.Tail(prices, shortAvgWindow)),
		LongAvg:    features.Mean(features.Tail(prices, longAvgWindow)),
		Momentum:   features.Momentum(prices, momentumLag),
		Volatility: features.CoefficientOfVariation(prices, volatilityWindow, volatilityFallback),
	}
}

// NextPrice applies one heuristic step using noise drawn from rng.
func (s TrendStats) NextPrice(horizon int, rng *rand.Rand) float64 {
	trendFactor := 1 + s.Momentum*momentumDamping
	dailyTrend := (trendFactor - 1) / float64(horizon)
	noise := rng.NormFloat64() * s.Volatility * noiseVolatilityFrac
	return s.Current * (1 + dailyTrend) * (1 + noise)
}

type trendFitted struct {
	scaler  ScalerState
	horizon int
	rng     *rand.Rand
}

func (f *trendFitted) PredictNext(window []float64) (float64, error) {
	if len(window) == 0 {
		return 0, computationErr("predict", errors.New("empty input window"))
	}
	prices := InverseTransform(window, f.scaler)
	next := ComputeTrendStats(prices).NextPrice(f.horizon, f.rng)
	return f.scaler.Transform(next), nil
}

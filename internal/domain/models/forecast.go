package models

import "time"

// FitMetrics are held-out fit statistics, computed on scaled values.
type FitMetrics struct {
	MSE float64 `json:"mse"`
	R2  float64 `json:"r2"`
}

// ForecastResult is the immutable outcome of one (symbol, horizon) computation.
// Cached instances are shared between readers and must not be mutated.
type ForecastResult struct {
	Symbol              string     `json:"symbol"`
	Model               string     `json:"model"`
	Horizon             int        `json:"horizon"`
	CurrentPrice        float64    `json:"current_price"`
	PredictedEndPrice   float64    `json:"predicted_end_price"`
	PriceChange         float64    `json:"price_change"`
	PriceChangePercent  float64    `json:"price_change_percent"`
	Path                []float64  `json:"path"`
	Recommendation      string     `json:"recommendation"`
	RecommendationColor string     `json:"recommendation_color"`
	Metrics             FitMetrics `json:"metrics"`
	CreatedAt           time.Time  `json:"created_at"`
}

// HistoryPoint is a dated close kept alongside a prediction for charting.
type HistoryPoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Prediction is what the result cache stores per (symbol, horizon).
type Prediction struct {
	Forecast      ForecastResult `json:"forecast"`
	Info          StockInfo      `json:"info"`
	History       []HistoryPoint `json:"history"`
	Chart         string         `json:"chart"`
	ChartFallback bool           `json:"chart_fallback"`
}

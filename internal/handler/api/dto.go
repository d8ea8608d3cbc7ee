package api

import (
	"time"

	"github.com/shopspring/decimal"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/usecase"
)

func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func roundAll(vs []float64, places int32) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = round(v, places)
	}
	return out
}

type PredictionResponse struct {
	Symbol     string                   `json:"symbol"`
	StockInfo  models.ResolvedStockInfo `json:"stock_info"`
	Prediction ForecastDTO              `json:"prediction"`
	Metrics    MetricsDTO               `json:"model_metrics"`
	History    HistoryDTO               `json:"historical"`
	Chart      string                   `json:"chart"`
	// ChartFallback is set when the chart is a placeholder image.
	ChartFallback bool      `json:"chart_fallback,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type ForecastDTO struct {
	Days                int       `json:"days"`
	Model               string    `json:"model"`
	CurrentPrice        float64   `json:"current_price"`
	PredictedPrice      float64   `json:"predicted_price"`
	PriceChange         float64   `json:"price_change"`
	PriceChangePercent  float64   `json:"price_change_percent"`
	Predictions         []float64 `json:"predictions"`
	Recommendation      string    `json:"recommendation"`
	RecommendationColor string    `json:"recommendation_color"`
}

type MetricsDTO struct {
	MSE float64 `json:"mse"`
	R2  float64 `json:"r2_score"`
}

type HistoryDTO struct {
	Dates   []string  `json:"dates"`
	Prices  []float64 `json:"prices"`
	Volumes []int64   `json:"volumes,omitempty"`
}

func newPredictionResponse(p *models.Prediction) PredictionResponse {
	f := p.Forecast
	info := p.Info.Resolve()
	info.CurrentPrice = round(info.CurrentPrice, 2)

	hist := HistoryDTO{
		Dates:  make([]string, len(p.History)),
		Prices: make([]float64, len(p.History)),
	}
	for i, h := range p.History {
		hist.Dates[i] = h.Date.Format(time.DateOnly)
		hist.Prices[i] = round(h.Close, 2)
	}

	return PredictionResponse{
		Symbol:    f.Symbol,
		StockInfo: info,
		Prediction: ForecastDTO{
			Days:                f.Horizon,
			Model:               f.Model,
			CurrentPrice:        round(f.CurrentPrice, 2),
			PredictedPrice:      round(f.PredictedEndPrice, 2),
			PriceChange:         round(f.PriceChange, 2),
			PriceChangePercent:  round(f.PriceChangePercent, 2),
			Predictions:         roundAll(f.Path, 2),
			Recommendation:      f.Recommendation,
			RecommendationColor: f.RecommendationColor,
		},
		Metrics:       MetricsDTO{MSE: round(f.Metrics.MSE, 6), R2: round(f.Metrics.R2, 4)},
		History:       hist,
		Chart:         p.Chart,
		ChartFallback: p.ChartFallback,
		CreatedAt:     f.CreatedAt,
	}
}

type StockResponse struct {
	StockInfo models.ResolvedStockInfo `json:"stock_info"`
	PriceData PriceDataDTO             `json:"price_data"`
	History   HistoryDTO               `json:"historical"`
}

type PriceDataDTO struct {
	Current            float64 `json:"current"`
	Open               float64 `json:"open"`
	High               float64 `json:"high"`
	Low                float64 `json:"low"`
	DailyChange        float64 `json:"daily_change"`
	DailyChangePercent float64 `json:"daily_change_percent"`
	Volatility         float64 `json:"volatility"`
}

func newStockResponse(s *usecase.StockSnapshot) StockResponse {
	hist := HistoryDTO{
		Dates:   make([]string, len(s.Dates)),
		Prices:  roundAll(s.Closes, 2),
		Volumes: make([]int64, len(s.Volumes)),
	}
	for i, d := range s.Dates {
		hist.Dates[i] = d.Format(time.DateOnly)
	}
	for i, v := range s.Volumes {
		hist.Volumes[i] = int64(v)
	}
	info := s.Info
	info.CurrentPrice = round(info.CurrentPrice, 2)
	return StockResponse{
		StockInfo: info,
		PriceData: PriceDataDTO{
			Current:            round(s.CurrentPrice, 2),
			Open:               round(s.Open, 2),
			High:               round(s.High, 2),
			Low:                round(s.Low, 2),
			DailyChange:        round(s.Change, 2),
			DailyChangePercent: round(s.ChangePercent, 2),
			Volatility:         round(s.Volatility, 4),
		},
		History: hist,
	}
}

type OverviewStock struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Sector        string  `json:"sector"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	MarketCap     float64 `json:"market_cap"`
}

type OverviewResponse struct {
	Stocks      []OverviewStock `json:"stocks"`
	LastUpdated time.Time       `json:"last_updated"`
}

func newOverviewResponse(entries []usecase.OverviewEntry, now time.Time) OverviewResponse {
	out := OverviewResponse{Stocks: make([]OverviewStock, len(entries)), LastUpdated: now}
	for i, e := range entries {
		out.Stocks[i] = OverviewStock{
			Symbol:        e.Symbol,
			Name:          e.Name,
			Sector:        e.Sector,
			Price:         round(e.Price, 2),
			Change:        round(e.Change, 2),
			ChangePercent: round(e.ChangePercent, 2),
			Volume:        e.Volume,
			MarketCap:     e.MarketCap,
		}
	}
	return out
}

type HealthResponse struct {
	Status       string `json:"status"`
	Service      string `json:"service"`
	CacheEntries int    `json:"cache_entries"`
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/usecase"
)

type stubPredict struct {
	pred    *models.Prediction
	err     error
	symbol  string
	horizon int
	cleared bool
}

func (s *stubPredict) Predict(_ context.Context, symbol string, horizon int) (*models.Prediction, error) {
	s.symbol, s.horizon = symbol, horizon
	return s.pred, s.err
}
func (s *stubPredict) ClearCache()       { s.cleared = true }
func (s *stubPredict) CacheEntries() int { return 3 }

type stubStock struct {
	snap *usecase.StockSnapshot
	err  error
}

func (s *stubStock) GetStock(context.Context, string, string) (*usecase.StockSnapshot, error) {
	return s.snap, s.err
}

func (s *stubStock) Overview(_ context.Context, symbols []string) ([]usecase.OverviewEntry, error) {
	return []usecase.OverviewEntry{{Symbol: symbols[0], Price: 1.23456}}, nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, h *ForecastHandler, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func samplePrediction() *models.Prediction {
	return &models.Prediction{
		Forecast: models.ForecastResult{
			Symbol: "AAPL", Model: "trend", Horizon: 2,
			CurrentPrice: 100.004, PredictedEndPrice: 106.126, PriceChange: 6.122, PriceChangePercent: 6.1217,
			Path: []float64{103.333, 106.126}, Recommendation: forecast.Buy, RecommendationColor: "green",
			Metrics: models.FitMetrics{MSE: 0.00123456789, R2: 0.912345},
		},
		History: []models.HistoryPoint{{Date: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), Close: 99.999}},
		Chart:   "cG5n",
	}
}

func TestPredictReturnsRoundedForecast(t *testing.T) {
	sp := &stubPredict{pred: samplePrediction()}
	rec, env := serve(t, newForecastHandler(nil, sp, &stubStock{}, nil, RateLimit{}, nil), http.MethodGet, "/api/predict/AAPL?days=2")
	if rec.Code != http.StatusOK || env.Status != http.StatusOK {
		t.Fatalf("unexpected status %d body=%s", rec.Code, rec.Body.String())
	}
	if sp.symbol != "AAPL" || sp.horizon != 2 {
		t.Fatalf("unexpected call %s/%d", sp.symbol, sp.horizon)
	}
	var got PredictionResponse
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Prediction.CurrentPrice != 100 || got.Prediction.PredictedPrice != 106.13 || got.Prediction.PriceChangePercent != 6.12 {
		t.Fatalf("prices not rounded: %+v", got.Prediction)
	}
	if got.Prediction.Predictions[0] != 103.33 || got.Metrics.MSE != 0.001235 || got.Metrics.R2 != 0.9123 {
		t.Fatalf("path or metrics not rounded: %+v %+v", got.Prediction.Predictions, got.Metrics)
	}
	if got.History.Dates[0] != "2025-03-04" || got.History.Prices[0] != 100 {
		t.Fatalf("unexpected history %+v", got.History)
	}
	if got.StockInfo.Sector != "Unknown" || got.StockInfo.Currency != "USD" {
		t.Fatalf("metadata defaults missing: %+v", got.StockInfo)
	}
}

func TestPredictDefaultsDays(t *testing.T) {
	sp := &stubPredict{pred: samplePrediction()}
	serve(t, newForecastHandler(nil, sp, &stubStock{}, nil, RateLimit{}, nil), http.MethodGet, "/api/predict/AAPL")
	if sp.horizon != 90 {
		t.Fatalf("expected default horizon 90, got %d", sp.horizon)
	}
}

func TestPredictRejectsBadDays(t *testing.T) {
	for _, q := range []string{"?days=0", "?days=366", "?days=abc"} {
		sp := &stubPredict{pred: samplePrediction()}
		rec, _ := serve(t, newForecastHandler(nil, sp, &stubStock{}, nil, RateLimit{}, nil), http.MethodGet, "/api/predict/AAPL"+q)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rec.Code)
		}
		if sp.symbol != "" {
			t.Fatalf("%s: use case must not be called", q)
		}
	}
}

func TestPredictErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		body string
	}{
		{&forecast.DataUnavailableError{Symbol: "NOPE"}, http.StatusBadRequest, "ERR_NO_DATA"},
		{&forecast.InsufficientDataError{Required: 61, Got: 10}, http.StatusBadRequest, "ERR_INSUFFICIENT_DATA"},
		{&forecast.ComputationError{Op: "fit", Err: errors.New("secret nan detail")}, http.StatusInternalServerError, "forecast computation failed"},
		{errors.New("boom"), http.StatusInternalServerError, "Something went wrong"},
	}
	for _, tc := range cases {
		h := newForecastHandler(nil, &stubPredict{err: tc.err}, &stubStock{}, nil, RateLimit{}, nil)
		rec, _ := serve(t, h, http.MethodGet, "/api/predict/X?days=5")
		if rec.Code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, rec.Code)
		}
		body := rec.Body.String()
		if !strings.Contains(body, tc.body) {
			t.Fatalf("%v: body %s lacks %q", tc.err, body, tc.body)
		}
		if strings.Contains(body, "secret") {
			t.Fatalf("computation cause leaked: %s", body)
		}
	}
}

func TestPredictRateLimited(t *testing.T) {
	now := time.Unix(0, 0)
	lim := ratelimit.NewWithClock(func() time.Time { return now })
	h := newForecastHandler(nil, &stubPredict{pred: samplePrediction()}, &stubStock{}, lim, RateLimit{Enabled: true, Capacity: 1, Refill: 0.01}, nil)
	if rec, _ := serve(t, h, http.MethodGet, "/api/predict/AAPL?days=2"); rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}
	if rec, _ := serve(t, h, http.MethodGet, "/api/predict/AAPL?days=2"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", rec.Code)
	}
}

func TestStockEndpoint(t *testing.T) {
	snap := &usecase.StockSnapshot{
		Symbol: "AAPL", Ticker: "AAPL", CurrentPrice: 190.456, Open: 189, High: 191, Low: 188,
		Change: 1.456, ChangePercent: 0.7702,
		Dates: []time.Time{time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)}, Closes: []float64{190.456}, Volumes: []float64{12345},
		Info: models.StockInfo{Symbol: "AAPL"}.Resolve(),
	}
	rec, env := serve(t, newForecastHandler(nil, &stubPredict{}, &stubStock{snap: snap}, nil, RateLimit{}, nil), http.MethodGet, "/api/stock/AAPL")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var got StockResponse
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PriceData.Current != 190.46 || got.PriceData.DailyChangePercent != 0.77 || got.History.Volumes[0] != 12345 {
		t.Fatalf("unexpected stock response %+v", got)
	}

	rec, _ = serve(t, newForecastHandler(nil, &stubPredict{}, &stubStock{snap: snap}, nil, RateLimit{}, nil), http.MethodGet, "/api/stock/AAPL?period=10y")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid period should be rejected, got %d", rec.Code)
	}
}

func TestOverviewEndpoint(t *testing.T) {
	rec, env := serve(t, newForecastHandler(nil, &stubPredict{}, &stubStock{}, nil, RateLimit{}, []string{"MSFT"}), http.MethodGet, "/api/market/overview")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var got OverviewResponse
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Stocks) != 1 || got.Stocks[0].Symbol != "MSFT" || got.Stocks[0].Price != 1.23 {
		t.Fatalf("unexpected overview %+v", got)
	}
}

func TestHealthAndClear(t *testing.T) {
	sp := &stubPredict{}
	h := newForecastHandler(nil, sp, &stubStock{}, nil, RateLimit{}, nil)
	rec, _ := serve(t, h, http.MethodGet, "/health")
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "healthy" || health.Service != "pricecast" || health.CacheEntries != 3 {
		t.Fatalf("unexpected health %+v", health)
	}
	if rec, _ := serve(t, h, http.MethodPost, "/api/cache/clear"); rec.Code != http.StatusOK || !sp.cleared {
		t.Fatalf("cache clear failed: %d cleared=%v", rec.Code, sp.cleared)
	}
}

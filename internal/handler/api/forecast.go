package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/service/metrics"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/usecase"
	xhttp "PriceCast/pkg/http"
	xlogger "PriceCast/pkg/logger"
)

const serviceName = "pricecast"

type predictService interface {
	Predict(ctx context.Context, symbol string, horizon int) (*models.Prediction, error)
	ClearCache()
	CacheEntries() int
}

type stockService interface {
	GetStock(ctx context.Context, symbol, period string) (*usecase.StockSnapshot, error)
	Overview(ctx context.Context, symbols []string) ([]usecase.OverviewEntry, error)
}

// RateLimit bounds forecast requests per client IP.
type RateLimit struct {
	Enabled  bool
	Capacity float64
	Refill   float64
}

type ForecastHandler struct {
	logger          *xlogger.Logger
	predict         predictService
	stock           stockService
	limiter         *ratelimit.Limiter
	limit           RateLimit
	overviewSymbols []string
	now             func() time.Time
}

func NewForecastHandler(
	logger *xlogger.Logger,
	predict *usecase.PredictUseCase,
	stock *usecase.StockUseCase,
	limiter *ratelimit.Limiter,
	limit RateLimit,
	overviewSymbols []string,
) *ForecastHandler {
	return newForecastHandler(logger, predict, stock, limiter, limit, overviewSymbols)
}

func newForecastHandler(logger *xlogger.Logger, p predictService, s stockService, limiter *ratelimit.Limiter, limit RateLimit, overview []string) *ForecastHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	if limiter == nil {
		limiter = ratelimit.New()
	}
	if len(overview) == 0 {
		overview = usecase.DefaultOverviewSymbols
	}
	return &ForecastHandler{
		logger:          logger,
		predict:         p,
		stock:           s,
		limiter:         limiter,
		limit:           limit,
		overviewSymbols: overview,
		now:             time.Now,
	}
}

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api")
	g.GET("/predict/:symbol", h.Predict)
	g.GET("/stock/:symbol", h.Stock)
	g.GET("/market/overview", h.Overview)
	g.POST("/cache/clear", h.ClearCache)
}

func (h *ForecastHandler) Predict(c echo.Context) error {
	const endpoint = "predict"
	start := time.Now()
	defer func() { metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if h.limit.Enabled && !h.limiter.Allow(c.RealIP(), h.limit.Capacity, h.limit.Refill) {
		metrics.RateLimited.WithLabelValues(endpoint).Inc()
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many forecast requests, retry later"))
	}

	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.EndpointErrors.WithLabelValues(endpoint, "validation").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	pred, err := h.predict.Predict(c.Request().Context(), req.Symbol, req.Days)
	if err != nil {
		return h.errorResponse(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, newPredictionResponse(pred))
}

func (h *ForecastHandler) Stock(c echo.Context) error {
	const endpoint = "stock"
	start := time.Now()
	defer func() { metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.StockRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.EndpointErrors.WithLabelValues(endpoint, "validation").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, err := h.stock.GetStock(c.Request().Context(), req.Symbol, req.Period)
	if err != nil {
		return h.errorResponse(c, endpoint, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, newStockResponse(snap))
}

func (h *ForecastHandler) Overview(c echo.Context) error {
	const endpoint = "overview"
	start := time.Now()
	defer func() { metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	entries, err := h.stock.Overview(c.Request().Context(), h.overviewSymbols)
	if err != nil {
		return h.errorResponse(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, newOverviewResponse(entries, h.now()))
}

func (h *ForecastHandler) ClearCache(c echo.Context) error {
	n := h.predict.CacheEntries()
	h.predict.ClearCache()
	h.logger.Info("forecast cache cleared", xlogger.Int("entries", n))
	return xhttp.SuccessResponse(c, map[string]int{"cleared": n})
}

// Health answers with the bare body load balancers expect, outside the envelope.
func (h *ForecastHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		Service:      serviceName,
		CacheEntries: h.predict.CacheEntries(),
	})
}

func (h *ForecastHandler) errorResponse(c echo.Context, endpoint string, err error) error {
	appErr, kind := toAppError(err)
	metrics.EndpointErrors.WithLabelValues(endpoint, kind).Inc()
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			xlogger.String("endpoint", endpoint),
			xlogger.String("kind", kind),
			xlogger.Error(err),
		)
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps a use case error onto the API error and a metric label.
// Computation causes stay in logs.
func toAppError(err error) (*xhttp.AppError, string) {
	var (
		unavailable  *forecast.DataUnavailableError
		insufficient *forecast.InsufficientDataError
		computation  *forecast.ComputationError
	)
	switch {
	case errors.As(err, &unavailable):
		return xhttp.NewAppError("ERR_NO_DATA", "symbol", unavailable.Error(), http.StatusBadRequest).
			WithParam("symbol", unavailable.Symbol), "no_data"
	case errors.As(err, &insufficient):
		return xhttp.NewAppError("ERR_INSUFFICIENT_DATA", "symbol", insufficient.Error(), http.StatusBadRequest).
			WithParam("required", insufficient.Required).
			WithParam("got", insufficient.Got), "insufficient_data"
	case errors.Is(err, usecase.ErrInvalidHorizon):
		return xhttp.BadRequestError(err.Error()).WithError(err), "validation"
	case errors.As(err, &computation):
		return xhttp.InternalError("forecast computation failed").WithError(err), "computation"
	default:
		return xhttp.InternalError("Something went wrong").WithError(err), "internal"
	}
}

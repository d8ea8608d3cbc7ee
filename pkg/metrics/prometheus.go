package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cacheRequests    *prometheus.CounterVec
	forecastDuration *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
	lastPredicted    *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
}

// New registers the recorder on the default registry. Call it once per process.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder on reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cacheRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_cache_requests_total",
				Help: "Result cache lookups by outcome (hit, miss, shared)",
			},
			[]string{"result"},
		),
		forecastDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricecast_forecast_duration_seconds",
				Help:    "Time spent computing one forecast",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"model"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPredicted: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricecast_last_predicted_price",
				Help: "Predicted end price of the latest forecast per symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricecast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordCacheRequest(result string) {
	r.cacheRequests.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordForecastDuration(model string, seconds float64) {
	r.forecastDuration.WithLabelValues(model).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastPredictedPrice(symbol string, price float64) {
	r.lastPredicted.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

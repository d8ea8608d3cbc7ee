package repository

import (
	"context"
	"time"

	"PriceCast/internal/domain/models"
	domainrepo "PriceCast/internal/domain/repository"
	pkgkafka "PriceCast/pkg/kafka"
)

// forecastEvent is the wire form of a finished forecast.
type forecastEvent struct {
	Symbol             string            `json:"symbol"`
	Model              string            `json:"model"`
	Horizon            int               `json:"horizon"`
	CurrentPrice       float64           `json:"current_price"`
	PredictedEndPrice  float64           `json:"predicted_end_price"`
	PriceChangePercent float64           `json:"price_change_percent"`
	Recommendation     string            `json:"recommendation"`
	Metrics            models.FitMetrics `json:"metrics"`
	CreatedAt          time.Time         `json:"created_at"`
}

type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaForecastPublisher writes forecast events keyed by symbol.
type KafkaForecastPublisher struct {
	producer producer
	topic    string
}

func NewKafkaForecastPublisher(p *pkgkafka.Producer, topic string) domainrepo.ForecastPublisher {
	return &KafkaForecastPublisher{producer: p, topic: topic}
}

func (p *KafkaForecastPublisher) Publish(ctx context.Context, f *models.ForecastResult) error {
	if f == nil {
		return nil
	}
	return p.producer.Publish(ctx, p.topic, []byte(f.Symbol), forecastEvent{
		Symbol:             f.Symbol,
		Model:              f.Model,
		Horizon:            f.Horizon,
		CurrentPrice:       f.CurrentPrice,
		PredictedEndPrice:  f.PredictedEndPrice,
		PriceChangePercent: f.PriceChangePercent,
		Recommendation:     f.Recommendation,
		Metrics:            f.Metrics,
		CreatedAt:          f.CreatedAt,
	})
}

func (p *KafkaForecastPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopPublisher drops every forecast. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *models.ForecastResult) error { return nil }
func (NoopPublisher) Close() error                                          { return nil }

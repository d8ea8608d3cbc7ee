package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"PriceCast/internal/services/forecast"
	applogger "PriceCast/pkg/logger"
)

// WarmupHandler consumes warm-up requests from Kafka.
// incoming message schema: {symbol, days}
type WarmupHandler struct {
	topic          string
	predictor      Predictor
	defaultHorizon int
	l              *applogger.Logger
}

func NewWarmupHandler(topic string, p Predictor, defaultHorizon int, l *applogger.Logger) *WarmupHandler {
	if l == nil {
		l = applogger.NewNop()
	}
	return &WarmupHandler{topic: topic, predictor: p, defaultHorizon: defaultHorizon, l: l}
}

func (h *WarmupHandler) Topic() string { return h.topic }

// Handle returns an error only for failures worth retrying. Bad requests
// and symbols without usable history are logged and acknowledged.
func (h *WarmupHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string `json:"symbol"`
		Days   int    `json:"days"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.l.Warn("warmup message malformed", applogger.Error(err))
		return nil
	}
	if m.Days == 0 {
		m.Days = h.defaultHorizon
	}

	_, err := h.predictor.Predict(ctx, m.Symbol, m.Days)
	if err == nil {
		return nil
	}
	var (
		unavailable  *forecast.DataUnavailableError
		insufficient *forecast.InsufficientDataError
	)
	if errors.Is(err, ErrInvalidHorizon) || errors.As(err, &unavailable) || errors.As(err, &insufficient) || m.Symbol == "" {
		h.l.Warn("warmup request dropped",
			applogger.String("symbol", m.Symbol),
			applogger.Int("days", m.Days),
			applogger.Error(err),
		)
		return nil
	}
	return err
}

package forecast

import (
	"context"
	"fmt"
	"math/rand"
)

const (
	ModelLSTM  = "lstm"
	ModelTrend = "trend"
)

// FitInput carries everything a model may need to fit.
// Rand is owned by the caller and is the only source of randomness a model uses.
type FitInput struct {
	Train   []Window
	Scaler  ScalerState
	Horizon int
	Rand    *rand.Rand
}

// Model is a forecasting strategy. Implementations must be safe to Fit concurrently
// from different goroutines; the returned Fitted is used by a single goroutine.
type Model interface {
	Name() string
	Fit(ctx context.Context, in FitInput) (Fitted, error)
}

// Fitted predicts the next scaled value from a window of scaled values.
type Fitted interface {
	PredictNext(features []float64) (float64, error)
}

// ModelOptions configures the strategy returned by NewModel.
type ModelOptions struct {
	Epochs       int
	HiddenSize   int
	LearningRate float64
}

// NewModel returns the strategy named by kind.
func NewModel(kind string, opts ModelOptions) (Model, error) {
	switch kind {
	case ModelLSTM, "neural":
		return NewLSTMModel(opts.Epochs, opts.HiddenSize, opts.LearningRate), nil
	case ModelTrend, "heuristic":
		return NewTrendModel(), nil
	default:
		return nil, fmt.Errorf("unknown forecast model %q", kind)
	}
}

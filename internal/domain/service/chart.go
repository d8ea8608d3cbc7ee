package service

import "context"

// ChartInput is everything needed to draw one forecast chart.
type ChartInput struct {
	Symbol  string
	History []float64
	Path    []float64
	Horizon int
}

// ChartRenderer produces PNG bytes for a forecast.
type ChartRenderer interface {
	Render(ctx context.Context, in ChartInput) ([]byte, error)
}

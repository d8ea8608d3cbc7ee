package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Metrics are fit-quality statistics on the held-out windows, in scaled units.
type Metrics struct {
	MSE float64
	R2  float64
}

// Evaluate scores fitted on the evaluation windows. A constant target slice
// yields R2 = 0, and an empty slice yields zero metrics.
func Evaluate(fitted Fitted, eval []Window) (Metrics, error) {
	if len(eval) == 0 {
		return Metrics{}, nil
	}
	predicted := make([]float64, len(eval))
	actual := make([]float64, len(eval))
	ssRes := 0.0
	for i, w := range eval {
		p, err := fitted.PredictNext(w.Features)
		if err != nil {
			return Metrics{}, fmt.Errorf("evaluate window %d: %w", i, err)
		}
		predicted[i] = p
		actual[i] = w.Target
		d := w.Target - p
		ssRes += d * d
	}

	m := Metrics{MSE: ssRes / float64(len(eval))}
	mean := stat.Mean(actual, nil)
	ssTot := 0.0
	for _, a := range actual {
		ssTot += (a - mean) * (a - mean)
	}
	if ssTot > 0 {
		m.R2 = stat.RSquaredFrom(predicted, actual, nil)
	}
	if math.IsNaN(m.MSE) || math.IsInf(m.MSE, 0) || math.IsNaN(m.R2) || math.IsInf(m.R2, 0) {
		return Metrics{}, computationErr("evaluate", fmt.Errorf("non-finite metrics mse=%v r2=%v", m.MSE, m.R2))
	}
	return m, nil
}

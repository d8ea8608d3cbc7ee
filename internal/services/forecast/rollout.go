package forecast

import (
	"errors"
	"fmt"
)

// Rollout drives fitted autoregressively for horizon steps starting from seed.
// After the seed is exhausted every input is a previous prediction, so error
// compounds along the path. Steps are strictly sequential.
func Rollout(fitted Fitted, seed []float64, horizon int) ([]float64, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("horizon must be >= 1, got %d", horizon)
	}
	if len(seed) == 0 {
		return nil, errors.New("empty seed window")
	}

	buf := make([]float64, len(seed))
	copy(buf, seed)
	path := make([]float64, 0, horizon)
	for step := 0; step < horizon; step++ {
		next, err := fitted.PredictNext(buf)
		if err != nil {
			return nil, fmt.Errorf("rollout step %d: %w", step+1, err)
		}
		path = append(path, next)
		copy(buf, buf[1:])
		buf[len(buf)-1] = next
	}
	return path, nil
}

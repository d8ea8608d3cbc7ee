package forecast

import "gonum.org/v1/gonum/floats"

// degenerateMidpoint is the scaled value every price maps to when the series is constant.
const degenerateMidpoint = 0.5

// ScalerState holds a min-max scale fitted to a price series.
type ScalerState struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Degenerate reports whether the fitted series was constant.
func (s ScalerState) Degenerate() bool { return s.Max == s.Min }

// Transform maps a price into the fitted [0,1] range.
func (s ScalerState) Transform(p float64) float64 {
	if s.Degenerate() {
		return degenerateMidpoint
	}
	return (p - s.Min) / (s.Max - s.Min)
}

// Inverse maps a scaled value back to price.
func (s ScalerState) Inverse(v float64) float64 {
	if s.Degenerate() {
		return s.Min
	}
	return v*(s.Max-s.Min) + s.Min
}

// FitTransform fits a scaler to series and returns the scaled copy.
func FitTransform(series []float64) ([]float64, ScalerState, error) {
	if len(series) == 0 {
		return nil, ScalerState{}, &InsufficientDataError{Required: 1, Got: 0}
	}
	state := ScalerState{Min: floats.Min(series), Max: floats.Max(series)}
	scaled := make([]float64, len(series))
	for i, p := range series {
		scaled[i] = state.Transform(p)
	}
	return scaled, state, nil
}

// InverseTransform maps scaled values back to prices.
func InverseTransform(scaled []float64, state ScalerState) []float64 {
	out := make([]float64, len(scaled))
	for i, v := range scaled {
		out[i] = state.Inverse(v)
	}
	return out
}

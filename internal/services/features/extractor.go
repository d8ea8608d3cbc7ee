package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear annualizes daily statistics.
const TradingDaysPerYear = 252

// Tail returns the last n values of xs, or all of xs when shorter.
func Tail(xs []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// PopStdDev returns the population standard deviation, 0 for fewer than two values.
func PopStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	v := stat.PopVariance(xs, nil)
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}

// Momentum is the relative change between the last price and the price n bars back.
// With fewer than n prices the oldest one is used. A zero base yields 0.
func Momentum(prices []float64, n int) float64 {
	if len(prices) == 0 || n <= 0 {
		return 0
	}
	last := prices[len(prices)-1]
	base := Tail(prices, n)[0]
	if base == 0 {
		return 0
	}
	return (last - base) / base
}

// CoefficientOfVariation returns std/mean over the last n prices, or fallback if the mean is 0.
func CoefficientOfVariation(prices []float64, n int, fallback float64) float64 {
	w := Tail(prices, n)
	m := Mean(w)
	if m == 0 {
		return fallback
	}
	return PopStdDev(w) / m
}

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(closes)-1, or nil if insufficient data.
func ComputeLogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		cur := closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over the trailing window
// of log returns. Returns 0 when the window is not filled.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	v := stat.Variance(logReturns[len(logReturns)-window:], nil)
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	return math.Sqrt(v * barsPerYear)
}

package features

import (
	"math"
	"testing"
)

func TestTailAndMean(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	if got := Tail(xs, 2); len(got) != 2 || got[0] != 4 {
		t.Fatalf("unexpected tail %v", got)
	}
	if got := Tail(xs, 10); len(got) != 5 {
		t.Fatalf("short input should be returned whole, got %v", got)
	}
	if Mean(nil) != 0 {
		t.Fatalf("mean of empty must be 0")
	}
	if Mean(xs) != 3 {
		t.Fatalf("unexpected mean %v", Mean(xs))
	}
}

func TestPopStdDev(t *testing.T) {
	got := PopStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2) > 1e-12 {
		t.Fatalf("expected 2, got %v", got)
	}
	if PopStdDev([]float64{3}) != 0 {
		t.Fatalf("single value has zero deviation")
	}
}

func TestMomentum(t *testing.T) {
	if got := Momentum([]float64{50, 100}, 20); got != 1 {
		t.Fatalf("short series should use oldest price, got %v", got)
	}
	if got := Momentum([]float64{0, 10}, 2); got != 0 {
		t.Fatalf("zero base should yield 0, got %v", got)
	}
}

func TestComputeLogReturns(t *testing.T) {
	lr := ComputeLogReturns([]float64{100, 110, 0, 121})
	if len(lr) != 3 {
		t.Fatalf("expected 3 returns, got %d", len(lr))
	}
	if math.Abs(lr[0]-math.Log(1.1)) > 1e-12 {
		t.Fatalf("unexpected first return %v", lr[0])
	}
	if lr[1] != 0 || lr[2] != 0 {
		t.Fatalf("non-positive prices should yield 0 returns, got %v", lr)
	}
	if ComputeLogReturns([]float64{1}) != nil {
		t.Fatalf("expected nil for single close")
	}
}

func TestRealizedVolatility(t *testing.T) {
	if RealizedVolatility([]float64{0.01}, 5, TradingDaysPerYear) != 0 {
		t.Fatalf("unfilled window should yield 0")
	}
	flat := []float64{0.01, 0.01, 0.01, 0.01}
	if got := RealizedVolatility(flat, 4, TradingDaysPerYear); got > 1e-12 {
		t.Fatalf("constant returns should have ~0 volatility, got %v", got)
	}
	if got := RealizedVolatility([]float64{0.01, -0.01, 0.02, -0.02}, 4, TradingDaysPerYear); got <= 0 {
		t.Fatalf("expected positive volatility, got %v", got)
	}
}

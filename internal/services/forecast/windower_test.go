package forecast

import (
	"errors"
	"testing"
)

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestBuildWindowsCountAndContent(t *testing.T) {
	ws, err := BuildWindows(seq(10), 3)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(ws) != 7 {
		t.Fatalf("expected 7 windows, got %d", len(ws))
	}
	first := ws[0]
	if len(first.Features) != 3 || first.Features[0] != 0 || first.Features[2] != 2 || first.Target != 3 {
		t.Fatalf("unexpected first window %+v", first)
	}
	last := ws[len(ws)-1]
	if last.Features[0] != 6 || last.Target != 9 {
		t.Fatalf("unexpected last window %+v", last)
	}
}

func TestBuildWindowsFeaturesAreIsolated(t *testing.T) {
	ws, _ := BuildWindows(seq(5), 2)
	f := append(ws[0].Features, 99)
	if ws[1].Features[0] != 1 || f[2] != 99 {
		t.Fatalf("appending to a window leaked into its neighbour")
	}
}

func TestBuildWindowsInsufficient(t *testing.T) {
	_, err := BuildWindows(seq(60), 60)
	var ie *InsufficientDataError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if ie.Required != 61 || ie.Got != 60 {
		t.Fatalf("unexpected error fields %+v", ie)
	}
	if _, err := BuildWindows(seq(61), 60); err != nil {
		t.Fatalf("L+1 values should produce one window: %v", err)
	}
}

func TestSplitWindows(t *testing.T) {
	ws, _ := BuildWindows(seq(15), 5)
	train, eval := SplitWindows(ws, 0.8)
	if len(train) != 8 || len(eval) != 2 {
		t.Fatalf("expected 8/2 split, got %d/%d", len(train), len(eval))
	}
	if eval[0].Target != train[len(train)-1].Target+1 {
		t.Fatalf("evaluation windows must follow training windows")
	}

	one, _ := BuildWindows(seq(6), 5)
	train, eval = SplitWindows(one, 0.8)
	if len(train) != 1 || len(eval) != 0 {
		t.Fatalf("single window should train, got %d/%d", len(train), len(eval))
	}
}

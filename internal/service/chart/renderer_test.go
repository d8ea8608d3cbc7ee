package chart

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"math"
	"testing"

	"PriceCast/internal/domain/service"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestRenderProducesPNG(t *testing.T) {
	hist := make([]float64, 60)
	for i := range hist {
		hist[i] = 100 + float64(i%5)
	}
	out, err := NewRenderer().Render(context.Background(), service.ChartInput{
		Symbol:  "AAPL",
		History: hist,
		Path:    []float64{104, 105, 106, 107},
		Horizon: 4,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out, pngMagic) {
		t.Fatalf("output is not a PNG")
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	r := NewRenderer()
	_, err := r.Render(context.Background(), service.ChartInput{Symbol: "X"})
	var re *RenderError
	if !errors.As(err, &re) || re.Symbol != "X" {
		t.Fatalf("expected RenderError for empty path, got %v", err)
	}
	_, err = r.Render(context.Background(), service.ChartInput{Symbol: "X", Path: []float64{math.NaN()}})
	if !errors.As(err, &re) {
		t.Fatalf("expected RenderError for NaN, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Render(ctx, service.ChartInput{Symbol: "X", Path: []float64{1}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPlaceholderIsValidPNG(t *testing.T) {
	b := Placeholder()
	if _, err := png.Decode(bytes.NewReader(b)); err != nil {
		t.Fatalf("placeholder does not decode: %v", err)
	}
	if &Placeholder()[0] != &b[0] {
		t.Fatalf("placeholder should be built once")
	}
}

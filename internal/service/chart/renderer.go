package chart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"PriceCast/internal/domain/service"
)

const (
	historyPoints = 30
	bandFraction  = 0.10
)

// RenderError reports a failed chart render. Callers fall back to Placeholder.
type RenderError struct {
	Symbol string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render chart for %s: %v", e.Symbol, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer draws forecast charts as PNG.
type Renderer struct {
	Width  int
	Height int
}

var _ service.ChartRenderer = (*Renderer)(nil)

func NewRenderer() *Renderer {
	return &Renderer{Width: 1000, Height: 500}
}

// Render draws the last 30 closes, the forecast path and a ±10% band around it.
// History is plotted on days -29..0 and the forecast on days 1..H.
func (r *Renderer) Render(ctx context.Context, in service.ChartInput) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &RenderError{Symbol: in.Symbol, Err: err}
	}
	if len(in.Path) == 0 {
		return nil, &RenderError{Symbol: in.Symbol, Err: errors.New("empty forecast path")}
	}

	hist := in.History
	if len(hist) > historyPoints {
		hist = hist[len(hist)-historyPoints:]
	}
	histX := make([]float64, len(hist))
	for i := range hist {
		histX[i] = float64(i - len(hist) + 1)
	}

	predX := make([]float64, 0, len(in.Path)+1)
	predY := make([]float64, 0, len(in.Path)+1)
	if len(hist) > 0 {
		// join the forecast line to the last close
		predX = append(predX, 0)
		predY = append(predY, hist[len(hist)-1])
	}
	upper := make([]float64, len(in.Path))
	lower := make([]float64, len(in.Path))
	bandX := make([]float64, len(in.Path))
	for i, p := range in.Path {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, &RenderError{Symbol: in.Symbol, Err: fmt.Errorf("non-finite forecast value at step %d", i+1)}
		}
		predX = append(predX, float64(i+1))
		predY = append(predY, p)
		bandX[i] = float64(i + 1)
		upper[i] = p * (1 + bandFraction)
		lower[i] = p * (1 - bandFraction)
	}

	series := []gochart.Series{}
	if len(hist) > 0 {
		series = append(series, gochart.ContinuousSeries{
			Name:    "Historical",
			XValues: histX,
			YValues: hist,
			Style:   gochart.Style{StrokeColor: drawing.ColorFromHex("1f77b4"), StrokeWidth: 2},
		})
	}
	series = append(series,
		gochart.ContinuousSeries{
			Name:    "Predicted",
			XValues: predX,
			YValues: predY,
			Style:   gochart.Style{StrokeColor: drawing.ColorFromHex("d62728"), StrokeWidth: 2, StrokeDashArray: []float64{6, 4}},
		},
		gochart.ContinuousSeries{
			Name:    "Upper band",
			XValues: bandX,
			YValues: upper,
			Style:   gochart.Style{StrokeColor: drawing.ColorFromHex("d62728").WithAlpha(90), StrokeWidth: 1},
		},
		gochart.ContinuousSeries{
			Name:    "Lower band",
			XValues: bandX,
			YValues: lower,
			Style:   gochart.Style{StrokeColor: drawing.ColorFromHex("d62728").WithAlpha(90), StrokeWidth: 1},
		},
	)

	graph := gochart.Chart{
		Title:  fmt.Sprintf("%s price forecast (%d days)", in.Symbol, in.Horizon),
		Width:  r.Width,
		Height: r.Height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis:  gochart.XAxis{Name: "Days"},
		YAxis:  gochart.YAxis{Name: "Price"},
		Series: series,
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, &RenderError{Symbol: in.Symbol, Err: err}
	}
	return buf.Bytes(), nil
}

var (
	placeholderOnce sync.Once
	placeholderPNG  []byte
)

// Placeholder returns a small neutral PNG used when rendering fails.
func Placeholder() []byte {
	placeholderOnce.Do(func() {
		img := image.NewGray(image.Rect(0, 0, 8, 8))
		for i := range img.Pix {
			img.Pix[i] = 0xee
		}
		img.SetGray(0, 0, color.Gray{Y: 0xcc})
		var buf bytes.Buffer
		_ = png.Encode(&buf, img)
		placeholderPNG = buf.Bytes()
	})
	return placeholderPNG
}

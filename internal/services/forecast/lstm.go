package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	defaultEpochs       = 20
	defaultHiddenSize   = 16
	defaultLearningRate = 0.01

	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8
	maxGradNorm = 5.0
)

// LSTMModel is a single-layer LSTM regressor with a linear head.
// It trains full-batch with Adam for exactly Epochs epochs.
type LSTMModel struct {
	Epochs       int
	HiddenSize   int
	LearningRate float64
}

// NewLSTMModel builds an LSTM strategy; non-positive arguments fall back to defaults.
func NewLSTMModel(epochs, hidden int, lr float64) *LSTMModel {
	if epochs <= 0 {
		epochs = defaultEpochs
	}
	if hidden <= 0 {
		hidden = defaultHiddenSize
	}
	if lr <= 0 {
		lr = defaultLearningRate
	}
	return &LSTMModel{Epochs: epochs, HiddenSize: hidden, LearningRate: lr}
}

func (m *LSTMModel) Name() string { return ModelLSTM }

// Fit trains a fresh network on in.Train.
func (m *LSTMModel) Fit(ctx context.Context, in FitInput) (Fitted, error) {
	if len(in.Train) == 0 {
		return nil, computationErr("fit", errors.New("no training windows"))
	}
	if in.Rand == nil {
		return nil, computationErr("fit", errors.New("nil random source"))
	}

	net := newLSTMNet(m.HiddenSize)
	bound := 1 / math.Sqrt(float64(m.HiddenSize))
	for i := range net.theta {
		net.theta[i] = (in.Rand.Float64()*2 - 1) * bound
	}

	grad := make([]float64, len(net.theta))
	adamM := make([]float64, len(net.theta))
	adamV := make([]float64, len(net.theta))
	cache := &seqCache{}
	n := float64(len(in.Train))

	for epoch := 1; epoch <= m.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, computationErr("fit", err)
		}
		for i := range grad {
			grad[i] = 0
		}
		loss := 0.0
		for _, w := range in.Train {
			y := net.forward(w.Features, cache)
			diff := y - w.Target
			loss += diff * diff
			net.backward(w.Features, cache, 2*diff/n, grad)
		}
		loss /= n
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return nil, computationErr("fit", fmt.Errorf("non-finite loss at epoch %d", epoch))
		}

		if norm := floats.Norm(grad, 2); norm > maxGradNorm {
			floats.Scale(maxGradNorm/norm, grad)
		}
		c1 := 1 - math.Pow(adamBeta1, float64(epoch))
		c2 := 1 - math.Pow(adamBeta2, float64(epoch))
		for i, g := range grad {
			adamM[i] = adamBeta1*adamM[i] + (1-adamBeta1)*g
			adamV[i] = adamBeta2*adamV[i] + (1-adamBeta2)*g*g
			net.theta[i] -= m.LearningRate * (adamM[i] / c1) / (math.Sqrt(adamV[i]/c2) + adamEpsilon)
		}
	}

	return &lstmFitted{net: net, cache: &seqCache{}}, nil
}

type lstmFitted struct {
	net   *lstmNet
	cache *seqCache
}

func (f *lstmFitted) PredictNext(features []float64) (float64, error) {
	if len(features) == 0 {
		return 0, computationErr("predict", errors.New("empty input window"))
	}
	y := f.net.forward(features, f.cache)
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, computationErr("predict", errors.New("non-finite prediction"))
	}
	return y, nil
}

// lstmNet stores every parameter in one flat slice:
// W (4H x (1+H), gate order i,f,g,o; column 0 is the input) | B (4H) | Wy (H) | By (1).
type lstmNet struct {
	h     int
	theta []float64
	w     []float64
	b     []float64
	wy    []float64
}

func newLSTMNet(h int) *lstmNet {
	nw := 4 * h * (h + 1)
	theta := make([]float64, nw+4*h+h+1)
	return &lstmNet{
		h:     h,
		theta: theta,
		w:     theta[:nw],
		b:     theta[nw : nw+4*h],
		wy:    theta[nw+4*h : nw+5*h],
	}
}

func (n *lstmNet) by() float64 { return n.theta[len(n.theta)-1] }

func (n *lstmNet) row(params []float64, r int) []float64 {
	stride := n.h + 1
	return params[r*stride : (r+1)*stride]
}

// seqCache keeps per-step activations for backpropagation through time.
type seqCache struct {
	in    [][]float64 // [x_t, h_{t-1}]
	gates [][]float64 // activated i,f,g,o
	c     [][]float64
	hs    [][]float64
}

func (c *seqCache) ensure(steps, h int) {
	for len(c.in) < steps {
		c.in = append(c.in, make([]float64, h+1))
		c.gates = append(c.gates, make([]float64, 4*h))
		c.c = append(c.c, make([]float64, h))
		c.hs = append(c.hs, make([]float64, h))
	}
}

func (n *lstmNet) forward(xs []float64, cache *seqCache) float64 {
	h := n.h
	cache.ensure(len(xs), h)
	hPrev := make([]float64, h)
	cPrev := make([]float64, h)

	for t, x := range xs {
		in := cache.in[t]
		in[0] = x
		copy(in[1:], hPrev)

		gates := cache.gates[t]
		for r := 0; r < 4*h; r++ {
			gates[r] = n.b[r] + floats.Dot(n.row(n.w, r), in)
		}
		ct, ht := cache.c[t], cache.hs[t]
		for j := 0; j < h; j++ {
			i := sigmoid(gates[j])
			f := sigmoid(gates[h+j])
			g := math.Tanh(gates[2*h+j])
			o := sigmoid(gates[3*h+j])
			gates[j], gates[h+j], gates[2*h+j], gates[3*h+j] = i, f, g, o
			ct[j] = f*cPrev[j] + i*g
			ht[j] = o * math.Tanh(ct[j])
		}
		hPrev, cPrev = ht, ct
	}
	return n.by() + floats.Dot(n.wy, hPrev)
}

// backward accumulates dLoss/dTheta into grad for the sequence last passed to forward.
func (n *lstmNet) backward(xs []float64, cache *seqCache, dy float64, grad []float64) {
	h := n.h
	nw := len(n.w)
	gW := grad[:nw]
	gB := grad[nw : nw+4*h]
	gWy := grad[nw+4*h : nw+5*h]
	last := len(xs) - 1

	floats.AddScaled(gWy, dy, cache.hs[last])
	grad[len(grad)-1] += dy

	dh := make([]float64, h)
	floats.AddScaled(dh, dy, n.wy)
	dc := make([]float64, h)
	dz := make([]float64, 4*h)
	zero := make([]float64, h)

	for t := last; t >= 0; t-- {
		gates := cache.gates[t]
		ct := cache.c[t]
		cPrev := zero
		if t > 0 {
			cPrev = cache.c[t-1]
		}
		for j := 0; j < h; j++ {
			i, f, g, o := gates[j], gates[h+j], gates[2*h+j], gates[3*h+j]
			tc := math.Tanh(ct[j])
			dO := dh[j] * tc
			dC := dc[j] + dh[j]*o*(1-tc*tc)
			dc[j] = dC * f
			dz[j] = dC * g * i * (1 - i)
			dz[h+j] = dC * cPrev[j] * f * (1 - f)
			dz[2*h+j] = dC * i * (1 - g*g)
			dz[3*h+j] = dO * o * (1 - o)
		}

		in := cache.in[t]
		for j := range dh {
			dh[j] = 0
		}
		for r := 0; r < 4*h; r++ {
			floats.AddScaled(n.row(gW, r), dz[r], in)
			gB[r] += dz[r]
			floats.AddScaled(dh, dz[r], n.row(n.w, r)[1:])
		}
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

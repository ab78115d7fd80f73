package graph

import (
	"errors"
	"math"
	"math/rand"
)

// Supported activation functions
const (
	Linear  = "linear"
	ReLU    = "relu"
	Sigmoid = "sigmoid"
	Tanh    = "tanh"
	Softmax = "softmax"
)

// Supported weight initialization schemes
const (
	Uniform       = "uniform"
	GlorotUniform = "glorot_uniform"
	GlorotNormal  = "glorot_normal"
)

// activate applies the named activation in place to a layer's pre-activations
func activate(name string, v []float32) {
	switch name {
	case Linear:
	case ReLU:
		for i := range v {
			if v[i] < 0 {
				v[i] = 0
			}
		}
	case Sigmoid:
		for i := range v {
			v[i] = float32(1 / (1 + math.Exp(-float64(v[i]))))
		}
	case Tanh:
		for i := range v {
			v[i] = float32(math.Tanh(float64(v[i])))
		}
	case Softmax:
		// Shift by the max for numerical stability
		max := v[0]
		for _, x := range v[1:] {
			if x > max {
				max = x
			}
		}
		var sum float32
		for i := range v {
			v[i] = float32(math.Exp(float64(v[i] - max)))
			sum += v[i]
		}
		for i := range v {
			v[i] /= sum
		}
	}
}

// derive returns the derivative of the named activation expressed in terms of the
// activation's output. Softmax heads never go through here, their delta is computed
// jointly with the loss
func derive(name string, y float32) float32 {
	switch name {
	case ReLU:
		if y > 0 {
			return 1
		}
		return 0
	case Sigmoid:
		return y * (1 - y)
	case Tanh:
		return 1 - y*y
	default:
		return 1
	}
}

func validActivation(name string) bool {
	switch name {
	case Linear, ReLU, Sigmoid, Tanh, Softmax:
		return true
	}
	return false
}

// initialWeight draws a single weight for a layer with the given fan in and out
func initialWeight(scheme string, rng *rand.Rand, fanIn, fanOut int) (float32, error) {
	switch scheme {
	case Uniform:
		return rng.Float32()*0.1 - 0.05, nil
	case GlorotUniform:
		limit := float32(math.Sqrt(6 / float64(fanIn+fanOut)))
		return rng.Float32()*2*limit - limit, nil
	case GlorotNormal:
		dev := math.Sqrt(2 / float64(fanIn+fanOut))
		return float32(rng.NormFloat64() * dev), nil
	default:
		return 0, errors.New(scheme + " is not a valid init scheme")
	}
}

// dense is a fully connected layer, weights are stored [width][fanIn]
type dense struct {
	spec LayerSpec
	w    [][]float32
	b    []float32
}

// forward computes the layer's activations for a single input vector
func (d *dense) forward(in []float32) []float32 {
	out := make([]float32, d.spec.Width)
	for j := range d.w {
		sum := d.b[j]
		for i, x := range in {
			sum += d.w[j][i] * x
		}
		out[j] = sum
	}
	activate(d.spec.Activation, out)
	return out
}

// denseGrads accumulates weight and bias gradients for a dense layer over a batch
type denseGrads struct {
	w [][]float32
	b []float32
}

func newDenseGrads(d *dense) *denseGrads {
	g := denseGrads{
		w: make([][]float32, len(d.w)),
		b: make([]float32, len(d.b)),
	}
	for j := range d.w {
		g.w[j] = make([]float32, len(d.w[j]))
	}
	return &g
}

// add folds in the contribution of one sample given the layer's input vector and the
// error at its pre-activations
func (g *denseGrads) add(in, delta []float32) {
	for j, dj := range delta {
		g.b[j] += dj
		for i, x := range in {
			g.w[j][i] += dj * x
		}
	}
}

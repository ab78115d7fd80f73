// Package graph implements a small computation graph engine for multilayer perceptrons
// with a shared trunk and any number of independently connected, named output heads.
// Models are described by a serializable Config, trained with minibatch SGD and
// evaluated one named output at a time
package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// InputSpec declares a named entry point of the graph and its width
type InputSpec struct {
	Name  string `json:"name"`
	Width int    `json:"width"`
}

// LayerSpec is the serializable description of a single layer. Width, Activation and
// Init only apply to dense layers, Rate only to dropout layers
type LayerSpec struct {
	Type       string  `json:"type"`
	Name       string  `json:"name"`
	Input      string  `json:"input"`
	Width      int     `json:"width,omitempty"`
	Activation string  `json:"activation,omitempty"`
	Init       string  `json:"init,omitempty"`
	Rate       float32 `json:"rate,omitempty"`
}

// Layer types
const (
	DenseLayer   = "dense"
	DropoutLayer = "dropout"
)

// OutputSpec exposes a node of the graph under a stable output name
type OutputSpec struct {
	Name  string `json:"name"`
	Input string `json:"input"`
}

// SGD holds the configuration of the shared stochastic gradient descent optimizer. The
// effective learning rate decays as lr / (1 + decay*step)
type SGD struct {
	LearningRate float32 `json:"learning_rate"`
	Decay        float32 `json:"decay"`
	Momentum     float32 `json:"momentum"`
	Nesterov     bool    `json:"nesterov"`
}

// Config is the architecture description of a graph, enough to rebuild it from scratch
// (with fresh weights) independently of the learned parameter values
type Config struct {
	Inputs    []InputSpec       `json:"inputs"`
	Layers    []LayerSpec       `json:"layers"`
	Outputs   []OutputSpec      `json:"outputs"`
	Optimizer SGD               `json:"optimizer"`
	Losses    map[string]string `json:"losses"`
}

// Graph is a compiled network. It owns its weights and optimizer state and is not safe
// for concurrent use
type Graph struct {
	cfg    Config
	widths map[string]int
	dense  map[string]*dense
	heads  map[string]string // node name -> output name, for loss bound heads
	vel    map[string]*denseGrads
	step   int
	rng    *rand.Rand
}

// Builder accumulates an architecture description before compilation
type Builder struct {
	cfg Config
}

// NewBuilder returns an empty graph builder
func NewBuilder() *Builder {
	return &Builder{}
}

// AddInput declares a named input of the given width
func (b *Builder) AddInput(name string, width int) *Builder {
	b.cfg.Inputs = append(b.cfg.Inputs, InputSpec{Name: name, Width: width})
	return b
}

// AddDense appends a fully connected layer reading from the named upstream node
func (b *Builder) AddDense(name, input string, width int, init, activation string) *Builder {
	b.cfg.Layers = append(b.cfg.Layers, LayerSpec{
		Type:       DenseLayer,
		Name:       name,
		Input:      input,
		Width:      width,
		Activation: activation,
		Init:       init,
	})
	return b
}

// AddDropout appends a dropout layer. The mask is only applied during training
func (b *Builder) AddDropout(name, input string, rate float32) *Builder {
	b.cfg.Layers = append(b.cfg.Layers, LayerSpec{Type: DropoutLayer, Name: name, Input: input, Rate: rate})
	return b
}

// AddOutput exposes the named node as an output of the graph
func (b *Builder) AddOutput(name, input string) *Builder {
	b.cfg.Outputs = append(b.cfg.Outputs, OutputSpec{Name: name, Input: input})
	return b
}

// Compile validates the accumulated description, attaches the optimizer and per-output
// losses and materializes the weights
func (b *Builder) Compile(opt SGD, losses map[string]string) (*Graph, error) {
	b.cfg.Optimizer = opt
	b.cfg.Losses = losses
	return compile(b.cfg)
}

// FromConfig rebuilds a graph from an architecture description. The weights are freshly
// initialized, use SetWeights to restore learned values
func FromConfig(cfg Config) (*Graph, error) {
	return compile(cfg)
}

// FromArchitecture rebuilds a graph from the JSON form of its architecture description
func FromArchitecture(raw []byte) (*Graph, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("invalid architecture description (%s)", err.Error())
	}
	return compile(cfg)
}

func compile(cfg Config) (*Graph, error) {
	if len(cfg.Inputs) == 0 {
		return nil, errors.New("a graph needs at least one input")
	}
	if len(cfg.Outputs) == 0 {
		return nil, errors.New("a graph needs at least one output")
	}
	g := Graph{
		cfg:    cfg,
		widths: map[string]int{},
		dense:  map[string]*dense{},
		heads:  map[string]string{},
		vel:    map[string]*denseGrads{},
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, in := range cfg.Inputs {
		if in.Width <= 0 {
			return nil, errors.New("input " + in.Name + " must have a positive width")
		}
		if _, dup := g.widths[in.Name]; dup {
			return nil, errors.New("duplicate node name " + in.Name)
		}
		g.widths[in.Name] = in.Width
	}
	for _, spec := range cfg.Layers {
		if _, dup := g.widths[spec.Name]; dup {
			return nil, errors.New("duplicate node name " + spec.Name)
		}
		fanIn, found := g.widths[spec.Input]
		if !found {
			return nil, errors.New("layer " + spec.Name + " reads from unknown node " + spec.Input)
		}
		switch spec.Type {
		case DenseLayer:
			if spec.Width <= 0 {
				return nil, errors.New("dense layer " + spec.Name + " must have a positive width")
			}
			if !validActivation(spec.Activation) {
				return nil, errors.New(spec.Activation + " is not a valid activation function")
			}
			d := dense{spec: spec, w: make([][]float32, spec.Width), b: make([]float32, spec.Width)}
			for j := range d.w {
				d.w[j] = make([]float32, fanIn)
				for i := range d.w[j] {
					weight, err := initialWeight(spec.Init, g.rng, fanIn, spec.Width)
					if err != nil {
						return nil, err
					}
					d.w[j][i] = weight
				}
			}
			g.dense[spec.Name] = &d
			g.widths[spec.Name] = spec.Width
		case DropoutLayer:
			if spec.Rate < 0 || spec.Rate >= 1 {
				return nil, errors.New("dropout layer " + spec.Name + " must have a rate in [0, 1)")
			}
			g.widths[spec.Name] = fanIn
		default:
			return nil, errors.New(spec.Type + " is not a valid layer type")
		}
	}
	for _, out := range cfg.Outputs {
		if _, found := g.dense[out.Input]; !found {
			return nil, errors.New("output " + out.Name + " is not backed by a dense layer")
		}
		if _, dup := g.heads[out.Input]; dup {
			return nil, errors.New("node " + out.Input + " is exposed as more than one output")
		}
		kind, found := cfg.Losses[out.Name]
		if !found {
			return nil, errors.New("no loss configured for output " + out.Name)
		}
		if !validLoss(kind) {
			return nil, errors.New(kind + " is not a valid loss function")
		}
		act := g.dense[out.Input].spec.Activation
		if kind == LossBinaryCrossentropy && act != Softmax && act != Sigmoid {
			return nil, errors.New("binary_crossentropy requires a softmax or sigmoid head, got " + act)
		}
		if kind == LossMeanSquaredError && act == Softmax {
			return nil, errors.New("mean_squared_error does not support softmax heads")
		}
		g.heads[out.Input] = out.Name
	}
	if len(cfg.Losses) != len(cfg.Outputs) {
		return nil, errors.New("every loss must be bound to an output")
	}
	// Softmax derivatives are only handled at loss bound heads
	for name, d := range g.dense {
		if d.spec.Activation == Softmax {
			if _, isHead := g.heads[name]; !isHead {
				return nil, errors.New("softmax is only supported on output heads")
			}
		}
	}
	return &g, nil
}

// Config returns a copy of the graph's architecture description
func (g *Graph) Config() Config {
	cfg := g.cfg
	cfg.Inputs = append([]InputSpec{}, g.cfg.Inputs...)
	cfg.Layers = append([]LayerSpec{}, g.cfg.Layers...)
	cfg.Outputs = append([]OutputSpec{}, g.cfg.Outputs...)
	cfg.Losses = map[string]string{}
	for name, kind := range g.cfg.Losses {
		cfg.Losses[name] = kind
	}
	return cfg
}

// Architecture returns the JSON form of the graph's architecture description
func (g *Graph) Architecture() ([]byte, error) {
	return json.Marshal(g.cfg)
}

// forward runs a single sample through the graph. When training is true, dropout masks
// are drawn and recorded so that backpropagation can reuse them
func (g *Graph) forward(sample map[string][]float32, training bool) (values, masks map[string][]float32) {
	values = map[string][]float32{}
	masks = map[string][]float32{}
	for _, in := range g.cfg.Inputs {
		values[in.Name] = sample[in.Name]
	}
	for _, spec := range g.cfg.Layers {
		switch spec.Type {
		case DenseLayer:
			values[spec.Name] = g.dense[spec.Name].forward(values[spec.Input])
		case DropoutLayer:
			in := values[spec.Input]
			if !training || spec.Rate == 0 {
				values[spec.Name] = in
				continue
			}
			out := make([]float32, len(in))
			mask := make([]float32, len(in))
			scale := 1 / (1 - spec.Rate)
			for i := range in {
				if g.rng.Float32() >= spec.Rate {
					mask[i] = scale
					out[i] = in[i] * scale
				}
			}
			values[spec.Name] = out
			masks[spec.Name] = mask
		}
	}
	return values, masks
}

// backward propagates the head deltas of a single sample down to every dense layer,
// folding the weight gradients into grads. deltas is keyed by head node name and holds
// the error at each head's pre-activations
func (g *Graph) backward(values, masks map[string][]float32, deltas map[string][]float32, grads map[string]*denseGrads) {
	// Gradient with respect to each node's outputs, filled in reverse order. Consumers
	// always appear after their input node, so one reverse pass is enough
	dOut := map[string][]float32{}
	for i := len(g.cfg.Layers) - 1; i >= 0; i-- {
		spec := g.cfg.Layers[i]
		switch spec.Type {
		case DenseLayer:
			d := g.dense[spec.Name]
			delta := deltas[spec.Name]
			if downstream, found := dOut[spec.Name]; found {
				if delta == nil {
					delta = make([]float32, spec.Width)
				}
				out := values[spec.Name]
				for j := range delta {
					delta[j] += downstream[j] * derive(spec.Activation, out[j])
				}
			}
			if delta == nil {
				continue
			}
			grads[spec.Name].add(values[spec.Input], delta)
			up := dOut[spec.Input]
			if up == nil {
				up = make([]float32, len(values[spec.Input]))
				dOut[spec.Input] = up
			}
			for j, dj := range delta {
				for k, wkj := range d.w[j] {
					up[k] += wkj * dj
				}
			}
		case DropoutLayer:
			downstream, found := dOut[spec.Name]
			if !found {
				continue
			}
			mask := masks[spec.Name]
			up := dOut[spec.Input]
			if up == nil {
				up = make([]float32, len(downstream))
				dOut[spec.Input] = up
			}
			for k, dk := range downstream {
				if mask == nil {
					up[k] += dk
				} else {
					up[k] += dk * mask[k]
				}
			}
		}
	}
}

// TrainOnBatch performs one optimizer step over the given batch. data maps input and
// output names to tensors (labels for width-1 heads may be one dimensional) and
// sampleWeight optionally maps output names to per-sample loss weights. It returns the
// weighted mean loss per output plus their sum under "loss"
func (g *Graph) TrainOnBatch(data map[string]Tensor, sampleWeight map[string][]float32) (map[string]float32, error) {
	n, err := g.batchSize(data)
	if err != nil {
		return nil, err
	}
	targets := map[string]Tensor{}
	for _, out := range g.cfg.Outputs {
		t, found := data[out.Name]
		if !found {
			return nil, errors.New("no labels provided for output " + out.Name)
		}
		if t.Rows() != n {
			return nil, fmt.Errorf("output %s has %d label rows, expected %d", out.Name, t.Rows(), n)
		}
		if t.Cols() != g.widths[out.Input] {
			return nil, fmt.Errorf("output %s expects labels of width %d, got %d", out.Name, g.widths[out.Input], t.Cols())
		}
		targets[out.Name] = t
	}

	grads := map[string]*denseGrads{}
	for name, d := range g.dense {
		grads[name] = newDenseGrads(d)
	}
	losses := map[string]float32{}
	weightSums := map[string]float32{}
	for i := 0; i < n; i++ {
		sample := map[string][]float32{}
		for _, in := range g.cfg.Inputs {
			sample[in.Name] = data[in.Name].Row(i)
		}
		values, masks := g.forward(sample, true)
		deltas := map[string][]float32{}
		for _, out := range g.cfg.Outputs {
			kind := g.cfg.Losses[out.Name]
			head := g.dense[out.Input]
			p := values[out.Input]
			t := targets[out.Name].Row(i)
			sw := float32(1)
			if weights, found := sampleWeight[out.Name]; found {
				if len(weights) != n {
					return nil, fmt.Errorf("output %s has %d sample weights, expected %d", out.Name, len(weights), n)
				}
				sw = weights[i]
			}
			losses[out.Name] += lossValue(kind, p, t) * sw
			weightSums[out.Name] += sw
			deltas[out.Input] = lossDelta(kind, head.spec.Activation, p, t, sw)
		}
		g.backward(values, masks, deltas, grads)
	}

	g.apply(grads, n)

	var total float32
	for _, out := range g.cfg.Outputs {
		if weightSums[out.Name] > 0 {
			losses[out.Name] /= weightSums[out.Name]
		}
		total += losses[out.Name]
	}
	losses["loss"] = total
	return losses, nil
}

// apply performs the SGD update with the mean gradients of the batch
func (g *Graph) apply(grads map[string]*denseGrads, n int) {
	opt := g.cfg.Optimizer
	lr := opt.LearningRate / (1 + opt.Decay*float32(g.step))
	g.step++
	scale := 1 / float32(n)
	for name, d := range g.dense {
		vel, found := g.vel[name]
		if !found {
			vel = newDenseGrads(d)
			g.vel[name] = vel
		}
		grad := grads[name]
		for j := range d.w {
			for i := range d.w[j] {
				gij := grad.w[j][i] * scale
				vel.w[j][i] = opt.Momentum*vel.w[j][i] - lr*gij
				if opt.Nesterov {
					d.w[j][i] += opt.Momentum*vel.w[j][i] - lr*gij
				} else {
					d.w[j][i] += vel.w[j][i]
				}
			}
			gj := grad.b[j] * scale
			vel.b[j] = opt.Momentum*vel.b[j] - lr*gj
			if opt.Nesterov {
				d.b[j] += opt.Momentum*vel.b[j] - lr*gj
			} else {
				d.b[j] += vel.b[j]
			}
		}
	}
}

// PredictOnBatch runs a forward pass over the batch and returns one [n, width] tensor
// per named output. Dropout is disabled
func (g *Graph) PredictOnBatch(data map[string]Tensor) (map[string]Tensor, error) {
	n, err := g.batchSize(data)
	if err != nil {
		return nil, err
	}
	preds := map[string]Tensor{}
	for _, out := range g.cfg.Outputs {
		preds[out.Name] = NewTensor(n, g.widths[out.Input])
	}
	for i := 0; i < n; i++ {
		sample := map[string][]float32{}
		for _, in := range g.cfg.Inputs {
			sample[in.Name] = data[in.Name].Row(i)
		}
		values, _ := g.forward(sample, false)
		for _, out := range g.cfg.Outputs {
			copy(preds[out.Name].Row(i), values[out.Input])
		}
	}
	return preds, nil
}

// batchSize checks the input tensors against the graph's declared inputs and returns
// the number of samples in the batch
func (g *Graph) batchSize(data map[string]Tensor) (int, error) {
	n := -1
	for _, in := range g.cfg.Inputs {
		t, found := data[in.Name]
		if !found {
			return 0, errors.New("no data provided for input " + in.Name)
		}
		if t.Cols() != in.Width {
			return 0, fmt.Errorf("input %s expects width %d, got %d", in.Name, in.Width, t.Cols())
		}
		if n == -1 {
			n = t.Rows()
		} else if t.Rows() != n {
			return 0, fmt.Errorf("input %s has %d rows, other inputs have %d", in.Name, t.Rows(), n)
		}
	}
	if n <= 0 {
		return 0, errors.New("empty batch")
	}
	return n, nil
}

package models

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/evanfeinberg/deepchem/api/types"
	"github.com/evanfeinberg/deepchem/internal/graph"
)

// weightEps is added to every sample weight before a training step so no (sample, task)
// pair carries exactly zero total weight, which would make the minibatch numerically
// degenerate inside the engine
const weightEps = 0.001

// kindSpec describes how one task kind shapes its head and its data. Keeping the whole
// behaviour in one table means a new kind can't be half supported
type kindSpec struct {
	headWidth  int
	activation string
	loss       string
	// encode turns one label column into the tensor the engine expects for the head
	encode func(col []float32) graph.Tensor
	// reduce turns one row of raw head output into a flat prediction
	reduce func(row []float32) float32
}

var kindSpecs = map[TaskKind]kindSpec{
	Classification: {
		headWidth:  2,
		activation: graph.Softmax,
		loss:       graph.LossBinaryCrossentropy,
		encode:     OneHot,
		reduce:     argmax,
	},
	Regression: {
		headWidth:  1,
		activation: graph.Linear,
		loss:       graph.LossMeanSquaredError,
		encode:     graph.FromVector,
		reduce:     func(row []float32) float32 { return row[0] },
	},
}

// OneHot transforms a binary label vector of length n into an [n, 2] indicator tensor,
// 0 becomes [1, 0] and 1 becomes [0, 1].
//
// Any other label value leaves its row at [0, 0] instead of failing, matching the
// historical behaviour of this model family. Callers that want strict labels must check
// before encoding (see DESIGN.md)
func OneHot(col []float32) graph.Tensor {
	hot := graph.NewTensor(len(col), 2)
	for i, v := range col {
		if v == 0 {
			hot.Set(i, 0, 1)
		} else if v == 1 {
			hot.Set(i, 1, 1)
		}
	}
	return hot
}

func argmax(row []float32) float32 {
	best := 0
	for j := 1; j < len(row); j++ {
		if row[j] > row[best] {
			best = j
		}
	}
	return float32(best)
}

// MultiTaskDNN wraps a shared trunk, multi headed perceptron: one dense plus dropout
// trunk and one output head per task. The single task variant is the same model under a
// different registered type name
type MultiTaskDNN struct {
	id     string
	nType  string
	tasks  TaskSpec
	sorted []string
	params types.ModelParams
	raw    *graph.Graph
}

// NewMultiTaskDNN builds a multitask network for the given task spec and
// hyperparameters. With initialize false the network construction is skipped so that a
// persisted one can be loaded into the instance instead
func NewMultiTaskDNN(id string, tasks TaskSpec, params types.ModelParams, initialize bool) (*MultiTaskDNN, error) {
	if len(tasks) == 0 {
		return nil, errors.New("a multitask model needs at least one task")
	}
	if err := validateParams(params); err != nil {
		return nil, err
	}
	m := MultiTaskDNN{
		id:     id,
		nType:  MultiTaskDNNType,
		tasks:  tasks,
		sorted: tasks.Sorted(),
		params: params,
	}
	if initialize {
		raw, err := m.build()
		if err != nil {
			return nil, err
		}
		m.raw = raw
	}
	return &m, nil
}

// NewSingleTaskDNN is the single task restriction of the multitask network. It only
// exists to provide a distinct registered type name, all behaviour is shared
func NewSingleTaskDNN(id string, tasks TaskSpec, params types.ModelParams, initialize bool) (*MultiTaskDNN, error) {
	if len(tasks) != 1 {
		return nil, errors.New("a singletask model needs exactly one task")
	}
	m, err := NewMultiTaskDNN(id, tasks, params, initialize)
	if err != nil {
		return nil, err
	}
	m.nType = SingleTaskDNNType
	return m, nil
}

// build compiles the network: a shared input, dense and dropout trunk plus one
// independently connected dense head and named output per task, in sorted ID order
func (m *MultiTaskDNN) build() (*graph.Graph, error) {
	p := m.params
	b := graph.NewBuilder().
		AddInput("input", p.NInputs).
		AddDense("dense", "input", p.NHidden, p.Init, p.Activation).
		AddDropout("dropout", "dense", p.Dropout)
	losses := map[string]string{}
	for i, id := range m.sorted {
		ks := kindSpecs[m.tasks[id]]
		head := fmt.Sprintf("dense_head%d", i)
		output := fmt.Sprintf("task%d", i)
		b.AddDense(head, "dropout", ks.headWidth, p.Init, ks.activation)
		b.AddOutput(output, head)
		losses[output] = ks.loss
	}
	opt := graph.SGD{
		LearningRate: p.LearningRate,
		Decay:        p.Decay,
		Momentum:     p.Momentum,
		Nesterov:     p.Nesterov,
	}
	return b.Compile(opt, losses)
}

// ID is a getter for the ID field
func (m *MultiTaskDNN) ID() string {
	return m.id
}

// Type returns the registered type name the model was built as
func (m *MultiTaskDNN) Type() string {
	return m.nType
}

// Tasks returns the model's task spec
func (m *MultiTaskDNN) Tasks() TaskSpec {
	return m.tasks
}

// Brief returns a standard summarized version of the model (not enough to rebuild it
// but enough to list and compare it)
func (m *MultiTaskDNN) Brief() *types.BriefModel {
	return &types.BriefModel{
		ID:        m.id,
		Type:      m.nType,
		Tasks:     m.tasks.Strings(),
		Params:    m.params,
		UpdatedAt: time.Now().Unix(),
	}
}

// DataDict wraps a batch in the named arrays the engine expects: the features under
// "input" and, when labels are given, one entry per task in sorted ID order with
// classification columns one hot encoded and regression columns passed through
func (m *MultiTaskDNN) DataDict(X, y [][]float32) map[string]graph.Tensor {
	data := map[string]graph.Tensor{"input": graph.FromMatrix(X)}
	if y == nil {
		return data
	}
	for i, id := range m.sorted {
		ks := kindSpecs[m.tasks[id]]
		data[fmt.Sprintf("task%d", i)] = ks.encode(column(y, i))
	}
	return data
}

// SampleWeights splits a per sample, per task weight matrix into the per output vectors
// the engine expects, in sorted task ID order
func (m *MultiTaskDNN) SampleWeights(w [][]float32) map[string][]float32 {
	weights := map[string][]float32{}
	for i := range m.sorted {
		weights[fmt.Sprintf("task%d", i)] = column(w, i)
	}
	return weights
}

// addWeightEpsilon returns a copy of w with weightEps added to every entry
func addWeightEpsilon(w [][]float32) [][]float32 {
	adjusted := make([][]float32, len(w))
	for i, row := range w {
		adjusted[i] = make([]float32, len(row))
		for j, v := range row {
			adjusted[i][j] = v + weightEps
		}
	}
	return adjusted
}

// FitOnBatch updates the model with one optimizer step over the given batch and returns
// the engine's per head losses unchanged. Label and weight rows must carry exactly one
// value per task, the remaining shape mismatches against the construction time
// configuration surface as engine errors
func (m *MultiTaskDNN) FitOnBatch(X, y, w [][]float32) (map[string]float32, error) {
	if m.raw == nil {
		return nil, errors.New("model " + m.id + " has no compiled network")
	}
	if err := m.checkWidth("label", y); err != nil {
		return nil, err
	}
	if err := m.checkWidth("weight", w); err != nil {
		return nil, err
	}
	return m.raw.TrainOnBatch(m.DataDict(X, y), m.SampleWeights(addWeightEpsilon(w)))
}

// checkWidth rejects rows that don't hold exactly one value per task, the column split
// can't index them safely
func (m *MultiTaskDNN) checkWidth(kind string, rows [][]float32) error {
	for i, row := range rows {
		if len(row) != len(m.sorted) {
			return fmt.Errorf(
				"%s row %d holds %d values, model %s expects one per task (%d)",
				kind, i, len(row), m.id, len(m.sorted),
			)
		}
	}
	return nil
}

// PredictOnBatch runs inference over the batch and flattens the raw per head outputs
// into an [n, tasks] tensor: the most likely class for classification heads and the
// squeezed scalar for regression heads. Row order follows the input, column order the
// sorted task IDs. For a single task the result collapses to shape [n]
func (m *MultiTaskDNN) PredictOnBatch(X [][]float32) (graph.Tensor, error) {
	if m.raw == nil {
		return graph.Tensor{}, errors.New("model " + m.id + " has no compiled network")
	}
	preds, err := m.raw.PredictOnBatch(m.DataDict(X, nil))
	if err != nil {
		return graph.Tensor{}, err
	}
	out := graph.NewTensor(len(X), len(m.sorted))
	for i, id := range m.sorted {
		ks := kindSpecs[m.tasks[id]]
		raw := preds[fmt.Sprintf("task%d", i)]
		for row := 0; row < raw.Rows(); row++ {
			out.Set(row, i, ks.reduce(raw.Row(row)))
		}
	}
	return out.Squeeze(), nil
}

// Save persists the model to a directory: the generic metadata through the base save
// hook, then the architecture description as <base>.json and the weight blob as
// <base>.h5, overwriting existing artifacts. A crash mid save can leave an inconsistent
// pair, there is no partial write recovery
func (m *MultiTaskDNN) Save(dir string) error {
	if m.raw == nil {
		return errors.New("model " + m.id + " has no compiled network to save")
	}
	err := saveMeta(dir, meta{ID: m.id, Type: m.nType, Tasks: m.tasks, Params: m.params})
	if err != nil {
		return err
	}
	base := artifactBase(dir)
	arch, err := m.raw.Architecture()
	if err != nil {
		return err
	}
	if err = writeFile(base+".json", arch); err != nil {
		return err
	}
	blob, err := graph.EncodeWeights(m.raw.Weights())
	if err != nil {
		return err
	}
	return writeFile(base+".h5", blob)
}

// Load reads the artifact pair back: the architecture description is used to rebuild a
// network and the weight blob is then installed into it, shape checked against the
// architecture. The reconstructed network replaces the active one wholesale
func (m *MultiTaskDNN) Load(dir string) error {
	base := artifactBase(dir)
	arch, err := ioutil.ReadFile(base + ".json")
	if err != nil {
		return err
	}
	g, err := graph.FromArchitecture(arch)
	if err != nil {
		return err
	}
	blob, err := ioutil.ReadFile(base + ".h5")
	if err != nil {
		return err
	}
	tensors, err := graph.DecodeWeights(blob)
	if err != nil {
		return err
	}
	if err = g.SetWeights(tensors); err != nil {
		return err
	}
	m.raw = g
	return nil
}

func writeFile(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err = f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// column copies the ith column of a matrix
func column(m [][]float32, i int) []float32 {
	col := make([]float32, len(m))
	for row := range m {
		col[row] = m[row][i]
	}
	return col
}

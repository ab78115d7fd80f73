// Package models provides a standard interface for building, training and persisting
// multitask neural network models
package models

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanfeinberg/deepchem/api/types"
	"github.com/evanfeinberg/deepchem/internal/graph"
)

// Registered model type names
const (
	MultiTaskDNNType  = "multitask-dnn"
	SingleTaskDNNType = "singletask-dnn"
)

// TaskKind is the closed set of supported prediction target kinds
type TaskKind int

// Supported task kinds
const (
	Classification TaskKind = iota
	Regression
)

func (k TaskKind) String() string {
	if k == Classification {
		return "classification"
	}
	return "regression"
}

// ParseTaskKind maps the wire representation of a task kind to its tag
func ParseTaskKind(s string) (TaskKind, error) {
	switch s {
	case "classification":
		return Classification, nil
	case "regression":
		return Regression, nil
	default:
		return 0, errors.New(s + " is not a valid task kind")
	}
}

// MarshalJSON serializes a task kind as its wire name
func (k TaskKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses a task kind from its wire name, rejecting unknown values
func (k *TaskKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	kind, err := ParseTaskKind(s)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// TaskSpec maps task IDs to their kind. It is fixed at model construction time
type TaskSpec map[string]TaskKind

// ParseTaskSpec converts the API representation of a task spec, failing on unknown kinds
func ParseTaskSpec(raw map[string]string) (TaskSpec, error) {
	ts := TaskSpec{}
	for id, kind := range raw {
		k, err := ParseTaskKind(kind)
		if err != nil {
			return nil, err
		}
		ts[id] = k
	}
	return ts, nil
}

// Sorted returns the task IDs in ascending lexicographic order. This order fixes the
// mapping between tasks and head, output and label/weight column indices, so every part
// of the model must use it
func (ts TaskSpec) Sorted() []string {
	ids := make([]string, 0, len(ts))
	for id := range ts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Strings returns the API representation of the task spec
func (ts TaskSpec) Strings() map[string]string {
	raw := make(map[string]string, len(ts))
	for id, kind := range ts {
		raw[id] = kind.String()
	}
	return raw
}

// validateParams checks the construction contract for model hyperparameters. Whether
// the init scheme and activation names are known is left to the graph compiler
func validateParams(p types.ModelParams) error {
	if p.NInputs < 1 {
		return errors.New("a model needs at least one input feature")
	}
	if p.NHidden < 1 {
		return errors.New("a model needs a positive hidden layer width")
	}
	if p.Dropout < 0 || p.Dropout >= 1 {
		return errors.New("dropout must be in [0, 1)")
	}
	if p.LearningRate <= 0 {
		return errors.New("learning rate must be positive")
	}
	if p.Decay < 0 {
		return errors.New("decay must be non-negative")
	}
	if p.Momentum < 0 {
		return errors.New("momentum must be non-negative")
	}
	if p.Init == "" || p.Activation == "" {
		return errors.New("init scheme and activation are required")
	}
	return nil
}

// Model is the behaviour shared by every registered model type
type Model interface {
	ID() string
	Type() string
	Tasks() TaskSpec
	Brief() *types.BriefModel
	// FitOnBatch performs one optimizer step per epoch configured by the caller, y and w
	// have one column per task in sorted ID order
	FitOnBatch(X, y, w [][]float32) (map[string]float32, error)
	// PredictOnBatch returns an [n, tasks] tensor, squeezed to [n] for single task models
	PredictOnBatch(X [][]float32) (graph.Tensor, error)
	Save(dir string) error
	Load(dir string) error
}

// Constructor builds a model of one registered type. When initialize is false the
// network construction is skipped, leaving the instance ready to receive a loaded one
type Constructor func(id string, tasks TaskSpec, params types.ModelParams, initialize bool) (Model, error)

// registry maps type names to constructors. It is populated explicitly through Register
// during process initialization, not by import side effects
var registry = map[string]Constructor{}

// Register adds a model type to the registry, replacing any previous entry of the same
// name. Not safe for use once the process is serving requests
func Register(name string, c Constructor) {
	registry[name] = c
}

// RegisterDefaults populates the registry with the built in model types
func RegisterDefaults() {
	Register(MultiTaskDNNType, func(id string, tasks TaskSpec, params types.ModelParams, initialize bool) (Model, error) {
		return NewMultiTaskDNN(id, tasks, params, initialize)
	})
	Register(SingleTaskDNNType, func(id string, tasks TaskSpec, params types.ModelParams, initialize bool) (Model, error) {
		return NewSingleTaskDNN(id, tasks, params, initialize)
	})
}

// New builds and initializes a model of the requested registered type
func New(nType, id string, tasks TaskSpec, params types.ModelParams) (Model, error) {
	c, found := registry[nType]
	if !found {
		return nil, errors.New(nType + " is not a valid model type")
	}
	return c(id, tasks, params, true)
}

// Load rebuilds a model from a model directory, the metadata selects the registered
// type and the instance then restores its network from the persisted artifact pair
func Load(dir string) (Model, error) {
	md, err := loadMeta(dir)
	if err != nil {
		return nil, err
	}
	c, found := registry[md.Type]
	if !found {
		return nil, errors.New(md.Type + " is not a valid model type")
	}
	m, err := c(md.ID, md.Tasks, md.Params, false)
	if err != nil {
		return nil, err
	}
	if err := m.Load(dir); err != nil {
		return nil, err
	}
	return m, nil
}

// ModelFilename returns the conventional metadata filename inside a model directory.
// The artifact pair produced by save shares its base name
func ModelFilename(dir string) string {
	return filepath.Join(dir, "model.meta")
}

// artifactBase strips the extension from the conventional model filename, the
// architecture description and weight blob hang off this base
func artifactBase(dir string) string {
	filename := ModelFilename(dir)
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// meta is the generic part of a persisted model, written by the base save hook
type meta struct {
	ID     string            `json:"id"`
	Type   string            `json:"type"`
	Tasks  TaskSpec          `json:"tasks"`
	Params types.ModelParams `json:"params"`
}

// saveMeta is the base save hook, it creates the model directory and persists the
// generic metadata
func saveMeta(dir string, md meta) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return err
	}
	f, err := os.Create(ModelFilename(dir))
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err = f.Write(raw); err != nil {
		return err
	}
	return f.Sync()
}

func loadMeta(dir string) (meta, error) {
	var md meta
	raw, err := ioutil.ReadFile(ModelFilename(dir))
	if err != nil {
		return md, err
	}
	err = json.Unmarshal(raw, &md)
	return md, err
}

// Package types contains most of the objects that the API reads or writes
package types

// SampleBatchEvent is the cloud event type used for shipping training samples into the
// service, both through Kafka and through the REST ingestion endpoint
const SampleBatchEvent = "org.deepchem.samplebatch"

// PagedRes is a wrapper for a paged response where next can be provided as offset for the subsequent request and last
// can be used to determine when there is nothing left to read
type PagedRes struct {
	Last    bool        `json:"last"`
	Next    int         `json:"next"`
	Results interface{} `json:"results"`
}

// SimpleRes is used for errors and those cases where the response code would be sufficient but a JSON response helps
// consistency and user friendliness
type SimpleRes struct {
	Result string `json:"result"` // Possible values are "error" and "ok"
	Msg    string `json:"message"`
}

// NewOkRes is a shortcut for building a SimpleRes for a successful result
func NewOkRes(msg string) *SimpleRes {
	return &SimpleRes{Result: "ok", Msg: msg}
}

// NewErrorRes is a shortcut for building a SimpleRes for a failed result
func NewErrorRes(msg string) *SimpleRes {
	return &SimpleRes{Result: "error", Msg: msg}
}

// ModelParams bundles the hyperparameters needed to build a multitask network. All of
// them are required at construction time
type ModelParams struct {
	NInputs      int     `json:"nInputs"`      // Width of the feature vectors
	NHidden      int     `json:"nHidden"`      // Width of the shared hidden layer
	Init         string  `json:"init"`         // Weight initialization scheme
	Activation   string  `json:"activation"`   // Activation of the shared hidden layer
	Dropout      float32 `json:"dropout"`      // Dropout rate applied after the hidden layer
	LearningRate float32 `json:"learningRate"`
	Decay        float32 `json:"decay"`    // Learning rate decay per optimizer step
	Momentum     float32 `json:"momentum"`
	Nesterov     bool    `json:"nesterov"`
}

// BriefModel is a lightweight and standardized representation of a trained model, enough
// to list and compare models but not to rebuild them
type BriefModel struct {
	ID        string             `json:"id"`
	Type      string             `json:"type"`
	Tasks     map[string]string  `json:"tasks"` // Task ID to "classification" or "regression"
	Params    ModelParams        `json:"params"`
	Losses    map[string]float32 `json:"losses,omitempty"` // Per head losses from the last training call
	UpdatedAt int64              `json:"updatedAt"`
}

// ModelReq is the body of a model creation request
type ModelReq struct {
	ID     string            `json:"id"`   // Optional, generated when absent
	Type   string            `json:"type"` // Optional, defaults to the multitask network
	Tasks  map[string]string `json:"tasks"`
	Params ModelParams       `json:"params"`
}

// Batch carries one minibatch worth of training data. Y and W have one column per task,
// in ascending lexicographic task ID order
type Batch struct {
	X [][]float32 `json:"x"`
	Y [][]float32 `json:"y"`
	W [][]float32 `json:"w"`
}

// PredictReq is the body of a prediction request
type PredictReq struct {
	X [][]float32 `json:"x"`
}

// Sample is a single training example for a given model, the label and weight columns
// follow sorted task ID order just like Batch
type Sample struct {
	Features  []float32 `json:"features"`
	Labels    []float32 `json:"labels"`
	Weights   []float32 `json:"weights"`
	TimeStamp int64     `json:"timestamp"`
}

// Consistent checks the internal agreement of a sample, one weight per label and at
// least one feature. Agreement with a concrete model's shape is left to the engine
func (s Sample) Consistent() bool {
	return len(s.Features) > 0 && len(s.Labels) > 0 && len(s.Labels) == len(s.Weights)
}

// SampleBatch bundles training samples for one model, it is the payload of a
// SampleBatchEvent
type SampleBatch struct {
	ModelID string   `json:"modelID"`
	Samples []Sample `json:"samples"`
}

// BriefSampleSet is a lightweight representation of the samples accumulated for one model
type BriefSampleSet struct {
	ModelID string `json:"modelID"`
	Count   int    `json:"count"`
}

// FitRequest as its name implies, is used to ask the training service to update a model
// with the samples accumulated in the sample store
type FitRequest struct {
	ModelID  string `json:"modelID"`
	Required int    `json:"required"` // Number of samples to train with
}

package graph

import (
	"math"
	"testing"
)

// twoHeadGraph builds the smallest shared trunk topology with one softmax head and one
// linear head, in a known weight state
func twoHeadGraph(t *testing.T) *Graph {
	g, err := NewBuilder().
		AddInput("input", 2).
		AddDense("dense", "input", 2, GlorotUniform, Sigmoid).
		AddDropout("dropout", "dense", 0).
		AddDense("dense_head0", "dropout", 2, GlorotUniform, Softmax).
		AddDense("dense_head1", "dropout", 1, GlorotUniform, Linear).
		AddOutput("task0", "dense_head0").
		AddOutput("task1", "dense_head1").
		Compile(
			SGD{LearningRate: 0.1, Momentum: 0.9, Nesterov: true},
			map[string]string{"task0": LossBinaryCrossentropy, "task1": LossMeanSquaredError},
		)
	if err != nil {
		t.Fatalf("Failed to compile test graph (%s)", err.Error())
	}
	err = g.SetWeights([]WeightTensor{
		{Name: "dense/kernel", Shape: []int{2, 2}, Data: []float32{0.4, 0.7, -0.2, 0.6}},
		{Name: "dense/bias", Shape: []int{2}, Data: []float32{0, 0}},
		{Name: "dense_head0/kernel", Shape: []int{2, 2}, Data: []float32{0, 0, 0, 0}},
		{Name: "dense_head0/bias", Shape: []int{2}, Data: []float32{0, 1.0986123}},
		{Name: "dense_head1/kernel", Shape: []int{1, 2}, Data: []float32{0.5, -0.25}},
		{Name: "dense_head1/bias", Shape: []int{1}, Data: []float32{0.1}},
	})
	if err != nil {
		t.Fatalf("Failed to install test weights (%s)", err.Error())
	}
	return g
}

func TestPredictOnBatch(t *testing.T) {
	g := twoHeadGraph(t)
	preds, err := g.PredictOnBatch(map[string]Tensor{"input": FromMatrix([][]float32{{1, -1}})})
	if err != nil {
		t.Fatalf("Failed to predict on batch (%s)", err.Error())
	}

	// With a zero kernel the softmax head only sees its bias, softmax([0, ln(3)]) = [0.25, 0.75]
	task0 := preds["task0"]
	if task0.Rows() != 1 || task0.Cols() != 2 {
		t.Fatalf("Expected task0 predictions of shape [1 2], got %v", task0.Shape)
	}
	if math.Abs(float64(task0.At(0, 0)-0.25)) > 1e-5 || math.Abs(float64(task0.At(0, 1)-0.75)) > 1e-5 {
		t.Errorf("Expected task0 probabilities [0.25 0.75], got %v", task0.Row(0))
	}

	// The trunk is deterministic, sigmoid(0.4-0.7) and sigmoid(-0.2-0.6)
	h0 := 1 / (1 + math.Exp(0.3))
	h1 := 1 / (1 + math.Exp(0.8))
	want := 0.5*h0 - 0.25*h1 + 0.1
	task1 := preds["task1"]
	if math.Abs(float64(task1.At(0, 0))-want) > 1e-5 {
		t.Errorf("Expected task1 prediction %f, got %f", want, task1.At(0, 0))
	}
}

func TestTrainOnBatch(t *testing.T) {
	g := twoHeadGraph(t)
	data := map[string]Tensor{
		"input": FromMatrix([][]float32{{1, -1}, {-1, 1}, {1, 1}, {-1, -1}}),
		"task0": FromMatrix([][]float32{{1, 0}, {0, 1}, {1, 0}, {0, 1}}),
		"task1": FromVector([]float32{0.5, -0.5, 1, -1}),
	}
	weights := map[string][]float32{
		"task0": {1, 1, 1, 1},
		"task1": {1, 1, 1, 1},
	}

	losses, err := g.TrainOnBatch(data, weights)
	if err != nil {
		t.Fatalf("Failed to train on batch (%s)", err.Error())
	}
	if losses["loss"] != losses["task0"]+losses["task1"] {
		t.Errorf("Total loss should be the sum of the per head losses, got %v", losses)
	}

	first := losses["loss"]
	for i := 0; i < 50; i++ {
		losses, err = g.TrainOnBatch(data, weights)
		if err != nil {
			t.Fatalf("Failed to train on batch (%s)", err.Error())
		}
	}
	if losses["loss"] >= first {
		t.Errorf("Expected the loss to decrease with training, went from %f to %f", first, losses["loss"])
	}
}

func TestTrainOnBatchZeroWeight(t *testing.T) {
	g := twoHeadGraph(t)
	data := map[string]Tensor{
		"input": FromMatrix([][]float32{{1, -1}}),
		"task0": FromMatrix([][]float32{{1, 0}}),
		"task1": FromVector([]float32{0.5}),
	}
	// A fully masked head must not move its weights
	before := g.Weights()
	_, err := g.TrainOnBatch(data, map[string][]float32{"task0": {0}, "task1": {0}})
	if err != nil {
		t.Fatalf("Failed to train on batch (%s)", err.Error())
	}
	after := g.Weights()
	for i := range before {
		for j := range before[i].Data {
			if before[i].Data[j] != after[i].Data[j] {
				t.Fatalf("Tensor %s changed under an all zero sample weight batch", before[i].Name)
			}
		}
	}
}

func TestTrainOnBatchMissingLabels(t *testing.T) {
	g := twoHeadGraph(t)
	data := map[string]Tensor{
		"input": FromMatrix([][]float32{{1, -1}}),
		"task0": FromMatrix([][]float32{{1, 0}}),
	}
	_, err := g.TrainOnBatch(data, nil)
	if err == nil {
		t.Errorf("Expected an error when labels are missing for an output")
	}
}

func TestArchitectureRoundTrip(t *testing.T) {
	g := twoHeadGraph(t)
	arch, err := g.Architecture()
	if err != nil {
		t.Fatalf("Failed to marshal the architecture description (%s)", err.Error())
	}

	rebuilt, err := FromArchitecture(arch)
	if err != nil {
		t.Fatalf("Failed to rebuild the graph from its architecture description (%s)", err.Error())
	}
	err = rebuilt.SetWeights(g.Weights())
	if err != nil {
		t.Fatalf("Failed to install the original weights (%s)", err.Error())
	}

	data := map[string]Tensor{"input": FromMatrix([][]float32{{0.3, -1.2}, {2, 0.1}})}
	want, err := g.PredictOnBatch(data)
	if err != nil {
		t.Fatalf("Failed to predict with the original graph (%s)", err.Error())
	}
	got, err := rebuilt.PredictOnBatch(data)
	if err != nil {
		t.Fatalf("Failed to predict with the rebuilt graph (%s)", err.Error())
	}
	for name, wt := range want {
		for i, v := range wt.Data {
			if got[name].Data[i] != v {
				t.Errorf("Rebuilt graph diverges on %s, expected %f got %f", name, v, got[name].Data[i])
			}
		}
	}
}

func TestCompileValidation(t *testing.T) {
	_, err := NewBuilder().
		AddInput("input", 2).
		AddDense("dense", "missing", 2, GlorotUniform, Sigmoid).
		AddOutput("task0", "dense").
		Compile(SGD{LearningRate: 0.1}, map[string]string{"task0": LossMeanSquaredError})
	if err == nil {
		t.Errorf("Expected an error for a layer reading from an unknown node")
	}

	_, err = NewBuilder().
		AddInput("input", 2).
		AddDense("dense", "input", 2, GlorotUniform, Softmax).
		AddOutput("task0", "dense").
		Compile(SGD{LearningRate: 0.1}, map[string]string{"task0": LossMeanSquaredError})
	if err == nil {
		t.Errorf("Expected an error for mean_squared_error on a softmax head")
	}

	_, err = NewBuilder().
		AddInput("input", 2).
		AddDense("dense", "input", 2, "not-a-scheme", Sigmoid).
		AddOutput("task0", "dense").
		Compile(SGD{LearningRate: 0.1}, map[string]string{"task0": LossMeanSquaredError})
	if err == nil {
		t.Errorf("Expected an error for an unknown init scheme")
	}
}

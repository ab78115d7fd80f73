package graph

import "fmt"

// Tensor is a dense float32 array with an explicit shape. Row-major, at most two
// dimensions are used in practice (batches of vectors)
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor returns a zero filled tensor with the given shape
func NewTensor(shape ...int) Tensor {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return Tensor{Shape: shape, Data: make([]float32, size)}
}

// FromMatrix copies a [][]float32 into a [rows, cols] tensor
func FromMatrix(m [][]float32) Tensor {
	rows := len(m)
	cols := 0
	if rows > 0 {
		cols = len(m[0])
	}
	t := NewTensor(rows, cols)
	for i, row := range m {
		copy(t.Data[i*cols:(i+1)*cols], row)
	}
	return t
}

// FromVector wraps a []float32 in a one dimensional tensor
func FromVector(v []float32) Tensor {
	return Tensor{Shape: []int{len(v)}, Data: v}
}

// Rows returns the size of the first dimension (0 for an empty tensor)
func (t Tensor) Rows() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// Cols returns the size of the second dimension (1 for a vector)
func (t Tensor) Cols() int {
	if len(t.Shape) < 2 {
		return 1
	}
	return t.Shape[1]
}

// At returns the value at row i, column j
func (t Tensor) At(i, j int) float32 {
	return t.Data[i*t.Cols()+j]
}

// Set writes the value at row i, column j
func (t *Tensor) Set(i, j int, v float32) {
	t.Data[i*t.Cols()+j] = v
}

// Row returns the ith row as a slice backed by the tensor's data. For one dimensional
// tensors this is the single element [t.Data[i]]
func (t Tensor) Row(i int) []float32 {
	cols := t.Cols()
	return t.Data[i*cols : (i+1)*cols]
}

// Squeeze drops a trailing dimension of size one, [n, 1] becomes [n]
func (t Tensor) Squeeze() Tensor {
	if len(t.Shape) == 2 && t.Shape[1] == 1 {
		return Tensor{Shape: []int{t.Shape[0]}, Data: t.Data}
	}
	return t
}

func (t Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.Shape)
}

package graph

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WeightTensor is a single named parameter tensor as it appears in a weight blob
type WeightTensor struct {
	Name  string
	Shape []int
	Data  []float32
}

var blobMagic = [4]byte{'D', 'C', 'W', 'B'}

const blobVersion uint16 = 1

// Weights returns the graph's learned parameters as named tensors, kernels as
// [width, fanIn] and biases as [width], in layer declaration order
func (g *Graph) Weights() []WeightTensor {
	var tensors []WeightTensor
	for _, spec := range g.cfg.Layers {
		if spec.Type != DenseLayer {
			continue
		}
		d := g.dense[spec.Name]
		fanIn := len(d.w[0])
		kernel := WeightTensor{
			Name:  spec.Name + "/kernel",
			Shape: []int{spec.Width, fanIn},
			Data:  make([]float32, 0, spec.Width*fanIn),
		}
		for j := range d.w {
			kernel.Data = append(kernel.Data, d.w[j]...)
		}
		bias := WeightTensor{
			Name:  spec.Name + "/bias",
			Shape: []int{spec.Width},
			Data:  append([]float32{}, d.b...),
		}
		tensors = append(tensors, kernel, bias)
	}
	return tensors
}

// SetWeights installs a set of named tensors into the graph, replacing the current
// parameter values. Every dense layer must be covered and every shape must match the
// compiled architecture
func (g *Graph) SetWeights(tensors []WeightTensor) error {
	byName := make(map[string]WeightTensor, len(tensors))
	for _, wt := range tensors {
		byName[wt.Name] = wt
	}
	count := 0
	for _, spec := range g.cfg.Layers {
		if spec.Type != DenseLayer {
			continue
		}
		d := g.dense[spec.Name]
		fanIn := len(d.w[0])
		kernel, found := byName[spec.Name+"/kernel"]
		if !found {
			return errors.New("weight blob is missing tensor " + spec.Name + "/kernel")
		}
		if len(kernel.Shape) != 2 || kernel.Shape[0] != spec.Width || kernel.Shape[1] != fanIn {
			return fmt.Errorf("tensor %s/kernel has shape %v, architecture expects [%d %d]", spec.Name, kernel.Shape, spec.Width, fanIn)
		}
		bias, found := byName[spec.Name+"/bias"]
		if !found {
			return errors.New("weight blob is missing tensor " + spec.Name + "/bias")
		}
		if len(bias.Shape) != 1 || bias.Shape[0] != spec.Width {
			return fmt.Errorf("tensor %s/bias has shape %v, architecture expects [%d]", spec.Name, bias.Shape, spec.Width)
		}
		for j := range d.w {
			copy(d.w[j], kernel.Data[j*fanIn:(j+1)*fanIn])
		}
		copy(d.b, bias.Data)
		count += 2
	}
	if count != len(tensors) {
		return fmt.Errorf("weight blob holds %d tensors, architecture expects %d", len(tensors), count)
	}
	return nil
}

// EncodeWeights serializes named tensors into the binary blob format
func EncodeWeights(tensors []WeightTensor) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(blobMagic[:])
	binary.Write(&buf, binary.LittleEndian, blobVersion)
	binary.Write(&buf, binary.LittleEndian, uint32(len(tensors)))
	for _, wt := range tensors {
		size := 1
		for _, dim := range wt.Shape {
			size *= dim
		}
		if size != len(wt.Data) {
			return nil, fmt.Errorf("tensor %s declares shape %v but holds %d values", wt.Name, wt.Shape, len(wt.Data))
		}
		binary.Write(&buf, binary.LittleEndian, uint16(len(wt.Name)))
		buf.WriteString(wt.Name)
		binary.Write(&buf, binary.LittleEndian, uint8(len(wt.Shape)))
		for _, dim := range wt.Shape {
			binary.Write(&buf, binary.LittleEndian, uint32(dim))
		}
		binary.Write(&buf, binary.LittleEndian, wt.Data)
	}
	return buf.Bytes(), nil
}

// DecodeWeights parses a binary weight blob back into named tensors
func DecodeWeights(raw []byte) ([]WeightTensor, error) {
	buf := bytes.NewReader(raw)
	var magic [4]byte
	if _, err := io.ReadFull(buf, magic[:]); err != nil || magic != blobMagic {
		return nil, errors.New("not a valid weight blob")
	}
	var version uint16
	if err := binary.Read(buf, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != blobVersion {
		return nil, fmt.Errorf("unsupported weight blob version %d", version)
	}
	var count uint32
	if err := binary.Read(buf, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	tensors := make([]WeightTensor, 0, count)
	for i := uint32(0); i < count; i++ {
		var nameLen uint16
		if err := binary.Read(buf, binary.LittleEndian, &nameLen); err != nil {
			return nil, err
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(buf, name); err != nil {
			return nil, err
		}
		var nDims uint8
		if err := binary.Read(buf, binary.LittleEndian, &nDims); err != nil {
			return nil, err
		}
		shape := make([]int, nDims)
		size := 1
		for d := range shape {
			var dim uint32
			if err := binary.Read(buf, binary.LittleEndian, &dim); err != nil {
				return nil, err
			}
			shape[d] = int(dim)
			size *= int(dim)
		}
		data := make([]float32, size)
		if err := binary.Read(buf, binary.LittleEndian, data); err != nil {
			return nil, err
		}
		tensors = append(tensors, WeightTensor{Name: string(name), Shape: shape, Data: data})
	}
	return tensors, nil
}

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/evanfeinberg/deepchem/api/types"
)

// FileCollector extracts training samples from lines in a delimited file. The first inN
// columns of each line are features, the rest are labels (one per task, in sorted task
// ID order) with every weight set to 1
type FileCollector struct {
	err  error
	InN  int
	Out  chan types.Sample
	Path string
	Sep  string
}

// NewFileCollector creates a new file collector instance
func NewFileCollector(inN int, out chan types.Sample, path, sep string) *FileCollector {
	return &FileCollector{
		InN:  inN,
		Out:  out,
		Path: path,
		Sep:  sep,
	}
}

// Collect reads the file at the configured path and returns samples through the
// collector's channel
func (fc *FileCollector) Collect() {
	file, err := os.Open(fc.Path)
	if err != nil {
		fc.err = err
		close(fc.Out)
		return
	}
	defer file.Close()

	// Get file mod time for autogenerating the sample timestamps
	info, err := os.Stat(fc.Path)
	if err != nil {
		fc.err = err
		close(fc.Out)
		return
	}
	ts := info.ModTime().Unix()

	scanner := bufio.NewScanner(file)

	for line := 0; scanner.Scan(); line++ {
		fields := strings.Split(scanner.Text(), fc.Sep)
		if len(fields) <= fc.InN {
			fmt.Println("WARNING: Not enough columns for a label on line " + strconv.Itoa(line+1))
			continue
		}
		features := make([]float32, 0, fc.InN)
		labels := make([]float32, 0, len(fields)-fc.InN)
		ok := true
		for i := range fields {
			value, err := strconv.ParseFloat(fields[i], 32)
			if err != nil {
				fmt.Println("WARNING: Encountered incorrectly formatted float on line " + strconv.Itoa(line+1))
				ok = false
				break
			}
			if i < fc.InN {
				features = append(features, float32(value))
			} else {
				labels = append(labels, float32(value))
			}
		}
		if !ok {
			continue
		}
		weights := make([]float32, len(labels))
		for i := range weights {
			weights[i] = 1
		}
		fc.Out <- types.Sample{
			Features:  features,
			Labels:    labels,
			Weights:   weights,
			TimeStamp: ts,
		}
		ts++
	}
	if err := scanner.Err(); err != nil {
		fc.err = err
	}
	close(fc.Out)
}

// Err returns the last recorded error during collection or nil if none were encountered
func (fc *FileCollector) Err() error {
	return fc.err
}

package samplestores

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/evanfeinberg/deepchem/api/types"
)

// Sample is a single stored training example. The label and weight columns follow the
// owning model's sorted task ID order
type Sample struct {
	Features  []float32
	Labels    []float32
	Weights   []float32
	TimeStamp int64
}

// FromAPI converts the wire representation of a sample into its stored form
func FromAPI(s types.Sample) Sample {
	return Sample{
		Features:  s.Features,
		Labels:    s.Labels,
		Weights:   s.Weights,
		TimeStamp: s.TimeStamp,
	}
}

// ID generates a string that uniquely identifies a sample. Useful for deduplication
func (s Sample) ID() string {
	hash := sha256.New()
	hash.Write([]byte(strconv.FormatInt(s.TimeStamp, 10)))
	for _, v := range s.Features {
		hash.Write([]byte(strconv.FormatFloat(float64(v), 'g', -1, 32)))
	}
	for _, v := range s.Labels {
		hash.Write([]byte(strconv.FormatFloat(float64(v), 'g', -1, 32)))
	}

	raw := hash.Sum(nil)
	id := make([]byte, hex.EncodedLen(len(raw)))
	hex.Encode(id, raw)

	return string(id)
}

// sampleDoc is the document layout shared by every adapter, with the timestamp exposed
// the way Elasticsearch expects it
type sampleDoc struct {
	TimeStamp int64     `json:"@timestamp"`
	Features  []float32 `json:"features"`
	Labels    []float32 `json:"labels"`
	Weights   []float32 `json:"weights"`
}

// MarshalJSON renders the sample as a store document
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleDoc{
		TimeStamp: s.TimeStamp,
		Features:  s.Features,
		Labels:    s.Labels,
		Weights:   s.Weights,
	})
}

// UnmarshalJSON recovers a sample from a store document
func (s *Sample) UnmarshalJSON(data []byte) error {
	var doc sampleDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	s.TimeStamp = doc.TimeStamp
	s.Features = doc.Features
	s.Labels = doc.Labels
	s.Weights = doc.Weights
	return nil
}

// Matrices rebuilds the flat feature, label and weight matrices from a set of samples.
// Every sample must agree on the feature and task counts, whether those counts match a
// concrete model is for the engine to decide
func Matrices(samples []Sample) (X, y, w [][]float32, err error) {
	if len(samples) == 0 {
		return nil, nil, nil, errors.New("can't build matrices from an empty sample set")
	}
	nFeatures := len(samples[0].Features)
	nTasks := len(samples[0].Labels)
	X = make([][]float32, len(samples))
	y = make([][]float32, len(samples))
	w = make([][]float32, len(samples))
	for i, s := range samples {
		if len(s.Features) != nFeatures || len(s.Labels) != nTasks || len(s.Weights) != nTasks {
			return nil, nil, nil, errors.New("sample " + s.ID() + " doesn't agree with the rest of the set")
		}
		X[i] = s.Features
		y[i] = s.Labels
		w[i] = s.Weights
	}
	return X, y, w, nil
}

// Package samplestores contains the implementation of all the supported storage
// adapters for training samples
package samplestores

import (
	"errors"

	"github.com/evanfeinberg/deepchem/api/types"
	"github.com/evanfeinberg/deepchem/internal/config"
)

const prefix string = "deepchem-"

// SampleStore is an abstraction over the storage service that accumulates training
// samples until there are enough of them to fit a model
type SampleStore interface {
	// Adds a sample to a model's set, should create the set if it doesn't exist
	AddSample(modelID string, s Sample) error
	// Create a new sample set
	AddSet(modelID string, sample Sample) error
	// Delete a sample set
	DeleteSet(modelID string) error
	Exists(modelID string) (bool, error)
	GetCount(modelID string) (int, error)
	GetLastN(modelID string, n int) ([]Sample, error)
	// Get list of available sample sets
	ListSets() ([]types.BriefSampleSet, error)
}

// New returns an initialized sample store of the type specified in the configuration
func New(conf config.Config) (SampleStore, error) {
	switch conf.Training.StoreType {
	case config.FileSampleStore:
		return NewFileAdapter(conf.Training.StoreParams)
	case config.ElasticsearchSampleStore:
		return NewElasticAdapter(conf.Training)
	default:
		return nil, errors.New(conf.Training.StoreType + " is not a valid sample store type")
	}
}

// Package modelstores contains the implementation of all the supported storage adapters
// for model summaries. The heavy artifacts (architecture plus weights) stay on disk in
// the model directory, these stores only hold the lightweight records the API lists
package modelstores

import (
	"encoding/json"
	"errors"

	"github.com/evanfeinberg/deepchem/api/types"
	"github.com/evanfeinberg/deepchem/internal/config"
	"github.com/evanfeinberg/deepchem/internal/logger"
)

const prefix string = "deepchem-model-"

// Record serves to ensure that anything kept in a model store comes with instructions
// for writing and reading it
type Record interface {
	Marshal() ([]byte, error)
	Unmarshal(b []byte) error
}

// BriefRecord is the stored form of a model summary
type BriefRecord struct {
	types.BriefModel
}

// Marshal is used to tell the store how to write a model summary
func (br *BriefRecord) Marshal() ([]byte, error) {
	return json.Marshal(br.BriefModel)
}

// Unmarshal is used to tell the store how to read a model summary
func (br *BriefRecord) Unmarshal(b []byte) error {
	return json.Unmarshal(b, &br.BriefModel)
}

func (br BriefRecord) String() string {
	data, err := br.Marshal()
	if err != nil {
		logger.Error("There was an error marshalling the model record", err)
		return ""
	}
	return string(data)
}

// ModelStore is an abstraction over the storage service that shares model summaries
// between instances. It should allow queries by ID and be fairly performant (Redis is a
// good option here but it's good to have flexibility)
type ModelStore interface {
	Delete(id string) error
	// Returns a page of model IDs plus the cursor for the next page (0 when exhausted)
	List(offset, limit int, pattern string) ([]string, int, error)
	// Load retrieves the record for a model, will return true and a nil error if found
	Load(id string, r Record) (bool, error)
	Save(id string, r Record) error
}

// New creates and returns the corresponding type of model store for the given
// configuration
func New(conf config.Config) (ModelStore, error) {
	switch conf.Models.StoreType {
	case config.FileModelStore:
		return NewFileAdapter(conf.Models.StoreParams)
	case config.RedisModelStore:
		return NewRedisAdapter(conf.Models.StoreParams)
	default:
		return nil, errors.New(conf.Models.StoreType + " is not a valid model store type")
	}
}

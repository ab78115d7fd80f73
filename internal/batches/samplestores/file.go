package samplestores

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/evanfeinberg/deepchem/api/types"
)

// FileAdapter is a sample store implementation that uses the filesystem. Its main
// purpose is to facilitate testing, given its low performance it is strongly
// discouraged for production use
type FileAdapter struct {
	Path string
}

// NewFileAdapter returns an initialized file sample store object
func NewFileAdapter(conf map[string]interface{}) (*FileAdapter, error) {
	return &FileAdapter{Path: conf["Path"].(string)}, nil
}

func (fa FileAdapter) setDir(modelID string) string {
	return filepath.Join(fa.Path, prefix+strings.ToLower(modelID))
}

// AddSample creates a new file with the JSON representation of the sample in the
// subdirectory that corresponds to the given model
func (fa FileAdapter) AddSample(modelID string, s Sample) error {
	dir := fa.setDir(modelID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err = fa.AddSet(modelID, s); err != nil {
			return err
		}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, s.ID())
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err = f.Write(raw); err != nil {
		return err
	}
	f.Sync()
	ts := time.Unix(s.TimeStamp, 0)
	os.Chtimes(path, ts, ts)
	return nil
}

// AddSet creates a directory to hold a model's samples
func (fa FileAdapter) AddSet(modelID string, sample Sample) error {
	return os.Mkdir(fa.setDir(modelID), 0755)
}

// DeleteSet removes the subdirectory used to store a model's samples
func (fa FileAdapter) DeleteSet(modelID string) error {
	return os.RemoveAll(fa.setDir(modelID))
}

// Exists returns true if a directory is present for the specified model, false if not
// or in case of error
func (fa FileAdapter) Exists(modelID string) (bool, error) {
	_, err := os.Stat(fa.setDir(modelID))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetCount retrieves the number of samples recorded for the given model (returns 0 if
// the set doesn't exist)
func (fa FileAdapter) GetCount(modelID string) (int, error) {
	files, err := ioutil.ReadDir(fa.setDir(modelID))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// GetLastN returns the n most recent samples for the given model
func (fa FileAdapter) GetLastN(modelID string, n int) ([]Sample, error) {
	dir := fa.setDir(modelID)
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	if len(files) < n {
		n = len(files)
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[j].ModTime().Before(files[i].ModTime())
	})

	var samples []Sample
	for _, file := range files[:n] {
		raw, err := ioutil.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, err
		}
		var s Sample
		if err = json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}

	return samples, nil
}

// ListSets returns a list of all the available sample sets in the configured directory
func (fa FileAdapter) ListSets() ([]types.BriefSampleSet, error) {
	files, err := ioutil.ReadDir(fa.Path)
	if err != nil {
		return nil, err
	}
	var sets []types.BriefSampleSet
	for _, file := range files {
		if !file.IsDir() || !strings.HasPrefix(file.Name(), prefix) {
			continue
		}
		modelID := strings.TrimPrefix(file.Name(), prefix)
		count, err := fa.GetCount(modelID)
		if err != nil {
			return nil, err
		}
		sets = append(sets, types.BriefSampleSet{ModelID: modelID, Count: count})
	}

	return sets, nil
}

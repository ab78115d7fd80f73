package samplestores

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/evanfeinberg/deepchem/internal/config"
)

func getTestFileStore() (SampleStore, error) {
	var storeParams map[string]interface{}
	json.Unmarshal([]byte(`{"Path": "."}`), &storeParams)
	conf := config.Config{
		Training: config.TrainingParams{
			StoreType:   config.FileSampleStore,
			StoreParams: storeParams,
		},
	}
	return New(conf)
}

func initFileStoreTest(modelID string) (SampleStore, error) {
	ss, err := getTestFileStore()
	if err != nil {
		return FileAdapter{}, err
	}

	sec := int64(777808800)
	s1 := Sample{[]float32{1, 0, 0}, []float32{0, 1.5}, []float32{1, 1}, sec}
	s2 := Sample{[]float32{0, 1, 0}, []float32{1, 2.0}, []float32{1, 1}, sec + 60}

	err = ss.AddSample(modelID, s1)
	if err != nil {
		return FileAdapter{}, err
	}
	err = ss.AddSample(modelID, s2)
	if err != nil {
		return FileAdapter{}, err
	}

	return ss, nil
}

func TestGetLastNFile(t *testing.T) {
	ss, err := initFileStoreTest(t.Name())
	if err != nil {
		t.Fatalf("Failed to initialize sample store (%s)", err.Error())
	}
	defer ss.DeleteSet(t.Name())

	samples, err := ss.GetLastN(t.Name(), 4)
	if err != nil {
		t.Fatalf("Failed to get latest 4 samples from store (%s)", err.Error())
	}
	if len(samples) != 2 {
		t.Fatalf("Number of samples doesn't match current count, expected 2, got %d", len(samples))
	}
	s2 := Sample{[]float32{0, 1, 0}, []float32{1, 2.0}, []float32{1, 1}, int64(777808800) + 60}
	if samples[0].ID() != s2.ID() {
		t.Errorf("Samples should come back in most recent first order")
	}
}

func TestGetCountFile(t *testing.T) {
	ss, err := initFileStoreTest(t.Name())
	if err != nil {
		t.Fatalf("Failed to initialize sample store (%s)", err.Error())
	}
	defer ss.DeleteSet(t.Name())

	count, err := ss.GetCount(t.Name())
	if err != nil {
		t.Fatalf("Failed to get sample count from store (%s)", err.Error())
	}
	if count != 2 {
		t.Errorf("Sample count doesn't match the number of stored samples, expected 2, got %d", count)
	}

	count, err = ss.GetCount("no-such-model")
	if err != nil {
		t.Fatalf("Counting a missing set shouldn't fail (%s)", err.Error())
	}
	if count != 0 {
		t.Errorf("A missing set should report 0 samples, got %d", count)
	}
}

func TestExistsFile(t *testing.T) {
	ss, err := initFileStoreTest(t.Name())
	if err != nil {
		t.Fatalf("Failed to initialize sample store (%s)", err.Error())
	}
	defer ss.DeleteSet(t.Name())

	found, err := ss.Exists(t.Name())
	if err != nil {
		t.Fatalf("Failed to check if the set exists (%s)", err.Error())
	}
	if !found {
		t.Errorf("Exists should be true for a set with samples in it")
	}

	found, err = ss.Exists("no-such-model")
	if err != nil {
		t.Fatalf("Checking a missing set shouldn't fail (%s)", err.Error())
	}
	if found {
		t.Errorf("Exists should be false for a set that was never created")
	}
}

func TestListSetsFile(t *testing.T) {
	ss, err := initFileStoreTest(t.Name())
	if err != nil {
		t.Fatalf("Failed to initialize sample store (%s)", err.Error())
	}
	defer ss.DeleteSet(t.Name())

	sets, err := ss.ListSets()
	if err != nil {
		t.Fatalf("Failed to list sample sets (%s)", err.Error())
	}
	found := false
	for _, set := range sets {
		if set.ModelID == strings.ToLower(t.Name()) && set.Count == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("The test set should show up in the listing with its sample count")
	}
}

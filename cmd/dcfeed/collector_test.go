package main

import (
	"testing"

	"github.com/evanfeinberg/deepchem/api/types"
)

func TestCollect(t *testing.T) {
	out := make(chan types.Sample, 10)
	fc := NewFileCollector(3, out, "../../test/toxicity_test_data.txt", " ")
	samples := []types.Sample{}

	go fc.Collect()
	for sample := range out {
		samples = append(samples, sample)
	}
	if fc.Err() != nil {
		t.Fatalf("Failed to collect data from file (%s)", fc.Err().Error())
	}

	if len(samples) != 40 {
		t.Errorf("Expected to extract 40 samples, got: %d instead", len(samples))
	}
	for _, s := range samples {
		if len(s.Features) != 3 || len(s.Labels) != 2 || len(s.Weights) != 2 {
			t.Fatalf("Expected 3 features and 2 labels per sample, got %d and %d", len(s.Features), len(s.Labels))
		}
		if !s.Consistent() {
			t.Fatalf("Collected samples should be internally consistent")
		}
	}
	if samples[0].TimeStamp+1 != samples[1].TimeStamp {
		t.Errorf("Sample timestamps should increase by one per line")
	}
}

package types

import "testing"

func TestConsistent(t *testing.T) {
	good := Sample{
		Features:  []float32{1, 2, 3},
		Labels:    []float32{0, 1.5},
		Weights:   []float32{1, 1},
		TimeStamp: int64(777808800),
	}
	if !good.Consistent() {
		t.Errorf("Expected a well formed sample to be consistent")
	}

	noFeatures := Sample{Labels: []float32{0}, Weights: []float32{1}}
	if noFeatures.Consistent() {
		t.Errorf("A sample without features should not be consistent")
	}

	lopsided := Sample{Features: []float32{1}, Labels: []float32{0, 1}, Weights: []float32{1}}
	if lopsided.Consistent() {
		t.Errorf("A sample with more labels than weights should not be consistent")
	}

	noLabels := Sample{Features: []float32{1}}
	if noLabels.Consistent() {
		t.Errorf("A sample without labels should not be consistent")
	}
}

package producer

import (
	"encoding/json"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/evanfeinberg/deepchem/api/types"
)

func TestEnvelope(t *testing.T) {
	sb := types.SampleBatch{
		ModelID: "test-model",
		Samples: []types.Sample{
			{Features: []float32{1, 0, 0}, Labels: []float32{1, 0.5}, Weights: []float32{1, 1}, TimeStamp: 777808800},
		},
	}
	raw, err := envelope("dcfeed", "dataset.txt", &sb)
	if err != nil {
		t.Fatalf("Failed to wrap a sample batch (%s)", err.Error())
	}

	event := cloudevents.NewEvent()
	if err = json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("Failed to unmarshal the produced event (%s)", err.Error())
	}
	if event.Type() != types.SampleBatchEvent {
		t.Errorf("Expected the event type %s, got %s", types.SampleBatchEvent, event.Type())
	}
	if event.Source() != "dcfeed" {
		t.Errorf("Expected the collector name as the event source, got %s", event.Source())
	}
	if event.Subject() != "dataset.txt" {
		t.Errorf("Expected the dataset as the event subject, got %s", event.Subject())
	}
	if event.ID() == "" {
		t.Errorf("Every event should carry a generated ID")
	}
	var decoded types.SampleBatch
	if err = event.DataAs(&decoded); err != nil {
		t.Fatalf("Failed to extract the batch from the event (%s)", err.Error())
	}
	if decoded.ModelID != sb.ModelID || len(decoded.Samples) != 1 {
		t.Errorf("The batch should survive the envelope unchanged, got %v", decoded)
	}
}

func TestCleanHostPort(t *testing.T) {
	addrs := [][]string{
		{"https://example.com", "example.com:443"},
		{"http://example.com", "example.com:80"},
		{"http://example.com:5500", "example.com:5500"},
		{"example.com:5500", "example.com:5500"},
		{"127.0.0.1:5500", "127.0.0.1:5500"},
		{"https://127.0.0.1:5500", "127.0.0.1:5500"},
		{"http://127.0.0.1:5500", "127.0.0.1:5500"},
	}
	for _, addr := range addrs {
		res, err := cleanHostPort(addr[0])
		if err != nil {
			t.Errorf("Failed to parse %s (%s)", addr[0], err.Error())
			continue
		}
		if res != addr[1] {
			t.Errorf("Wanted %s, got %s", addr[1], res)
			continue
		}
	}
}

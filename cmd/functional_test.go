// +build functional

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/evanfeinberg/deepchem/api/types"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	deepchem    testcontainers.Container
	deepchemURL string
)

func startDeepchem(ctx context.Context) (err error) {
	req := testcontainers.ContainerRequest{
		FromDockerfile: testcontainers.FromDockerfile{Context: "../"},
		ExposedPorts:   []string{"5500/tcp"},
		WaitingFor:     wait.ForHTTP("/api/v1/health/startup").WithPort("5500/tcp"),
	}
	deepchem, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return err
	}
	deepchemURL, err = deepchem.Endpoint(ctx, "")
	if err != nil {
		return err
	}
	deepchemURL = "http://" + deepchemURL
	return nil
}

func createModel(mr types.ModelReq) error {
	raw, _ := json.Marshal(mr)
	resp, err := http.Post(deepchemURL+"/api/v1/models", "application/json", bytes.NewBuffer(raw))
	if err != nil {
		return err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	if resp.StatusCode != http.StatusCreated {
		return errors.New(resp.Status)
	}
	return nil
}

func predict(id string, X [][]float32) ([]int, error) {
	raw, _ := json.Marshal(types.PredictReq{X: X})
	resp, err := http.Post(deepchemURL+"/api/v1/models/"+id+"/predict", "application/json", bytes.NewBuffer(raw))
	if err != nil {
		return nil, err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(resp.Status)
	}
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out struct {
		Shape       []int           `json:"shape"`
		Predictions json.RawMessage `json:"predictions"`
	}
	err = json.Unmarshal(body, &out)
	if err != nil {
		return nil, err
	}
	return out.Shape, nil
}

func listModels() ([]types.BriefModel, error) {
	resp, err := http.Get(deepchemURL + "/api/v1/models")
	if err != nil {
		return nil, err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(resp.Status)
	}
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var page struct {
		Last    bool               `json:"last"`
		Next    int                `json:"next"`
		Results []types.BriefModel `json:"results"`
	}
	err = json.Unmarshal(body, &page)
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}

func TestQuickStart(t *testing.T) {
	ctx := context.Background()
	id := "toxicity-demo"

	// Create the model first so the background fit has something to load
	err := createModel(types.ModelReq{
		ID:    id,
		// Task IDs sort alphabetically onto the label columns, the test set holds the
		// binary class first and the potency value second
		Tasks: map[string]string{"class": "classification", "potency": "regression"},
		Params: types.ModelParams{
			NInputs:      3,
			NHidden:      8,
			Init:         "glorot_uniform",
			Activation:   "relu",
			LearningRate: 0.01,
		},
	})
	if err != nil {
		t.Fatalf("Failed to create the model (%s)", err.Error())
	}

	// Load test set
	err = deepchem.CopyFileToContainer(ctx, "../test/toxicity_test_data.txt", "/dataset.txt", 0777)
	if err != nil {
		t.Fatalf("Failed to copy test set into the container (%s)", err.Error())
	}
	exitCode, err := deepchem.Exec(ctx, []string{
		"/opt/docker/dcfeed",
		"-batch", "40",
		"-in", "3",
		"-model", id,
		"-targets", "http://localhost:5500",
		"/dataset.txt",
	})
	if err != nil {
		t.Fatalf("Failed to run dcfeed (%s)", err.Error())
	}
	if exitCode != 0 {
		t.Fatalf("dcfeed returned an error exit code (%d)", exitCode)
	}

	// The ingested batch crosses the default training threshold, give the background
	// fit a moment to finish
	time.Sleep(2 * time.Second)

	// Predictions should come back as one row per input and one column per task
	shape, err := predict(id, [][]float32{{0.62, 0.38, 0.27}, {0.09, 0.87, 0.45}})
	if err != nil {
		t.Fatalf("Failed to predict on the fitted model (%s)", err.Error())
	}
	if len(shape) != 2 || shape[0] != 2 || shape[1] != 2 {
		t.Errorf("Expected a [2, 2] prediction tensor, got %v", shape)
	}

	// The background fit should have refreshed the shared record with its losses
	briefs, err := listModels()
	if err != nil {
		t.Fatalf("Failed to list models (%s)", err.Error())
	}
	found := false
	for _, brief := range briefs {
		if brief.ID != id {
			continue
		}
		found = true
		if _, ok := brief.Losses["loss"]; !ok {
			t.Errorf("Expected the record to hold the losses of the last fit, got %v", brief.Losses)
		}
	}
	if !found {
		t.Errorf("The created model should appear in the listing")
	}
}

func TestMain(m *testing.M) {
	// Setup
	ctx := context.Background()
	err := startDeepchem(ctx)
	if err != nil {
		fmt.Printf("Error starting test deepchem container (%s)", err.Error())
		os.Exit(1)
	}
	// Run
	code := m.Run()
	// Teardown
	if err == nil {
		deepchem.Terminate(ctx)
	}
	os.Exit(code)
}

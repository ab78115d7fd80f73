package api

import (
	"io/ioutil"
	"net/http"
	"testing"
)

func TestHealthProbes(t *testing.T) {
	_, ts := testAPI(t)

	resp, err := http.Get(ts.URL + "/api/v1/health/startup")
	if err != nil {
		t.Fatalf("Failed to reach the startup probe (%s)", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected a 200 from the startup probe, got %d", resp.StatusCode)
	}
	body, _ := ioutil.ReadAll(resp.Body)
	if string(body) != "UP" {
		t.Errorf("Expected the startup probe to answer UP, got %s", string(body))
	}

	resp, err = http.Get(ts.URL + "/api/v1/health/ready")
	if err != nil {
		t.Fatalf("Failed to reach the readiness probe (%s)", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected a 200 from the readiness probe with a working store, got %d", resp.StatusCode)
	}
}

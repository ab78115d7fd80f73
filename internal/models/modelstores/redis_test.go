package modelstores

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/evanfeinberg/deepchem/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testRedisStore ModelStore

func getTestStore(url string) (ModelStore, error) {
	var storeParams map[string]interface{}
	json.Unmarshal([]byte(`{"URL": "`+url+`"}`), &storeParams)
	conf := config.Config{
		Models: config.ModelsParams{
			StoreType:   config.RedisModelStore,
			StoreParams: storeParams,
		},
	}
	return New(conf)
}

func startRedis(ctx context.Context) (redis testcontainers.Container, url string, err error) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:6.0.10-alpine3.13",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	redis, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", err
	}
	endpoint, err := redis.Endpoint(ctx, "")
	if err != nil {
		return nil, "", err
	}
	return redis, endpoint, nil
}

func TestList(t *testing.T) {
	id, err := initTest(testRedisStore)
	if err != nil {
		t.Fatalf("Failed to initialize model store (%s)", err.Error())
	}
	defer testRedisStore.Delete(id)

	var res []string
	cursor := 0
	ids := []string{}
	for {
		res, cursor, err = testRedisStore.List(cursor, 10, "*")
		ids = append(ids, res...)
		if cursor == 0 {
			break
		}
	}

	if len(ids) != 1 {
		t.Fatalf("Expected List to return one ID, got %d instead", len(ids))
	}
	if ids[0] != id {
		t.Fatalf("Expected List to return ID %s, got %s instead", id, ids[0])
	}
}

func TestLoad(t *testing.T) {
	id, err := initTest(testRedisStore)
	if err != nil {
		t.Fatalf("Failed to initialize model store (%s)", err.Error())
	}
	defer testRedisStore.Delete(id)

	var record BriefRecord
	found, err := testRedisStore.Load("does-not-exist", &record)
	if err != nil {
		t.Fatalf("Failed to load model record from store (%s)", err.Error())
	}
	if found {
		t.Error("Found non-existent model")
	}

	found, err = testRedisStore.Load(id, &record)
	if err != nil {
		t.Fatalf("Failed to load model record from store (%s)", err.Error())
	}
	if !found {
		t.Fatal("Failed to find existing model")
	}
	if record.Tasks["affinity"] != "regression" {
		t.Errorf("Incorrect task spec for retrieved record, got %v", record.Tasks)
	}
}

func TestMain(m *testing.M) {
	// Setup
	ctx := context.Background()
	redis, url, err := startRedis(ctx)
	if err != nil {
		fmt.Printf("Error starting test Redis container (%s)", err.Error())
		os.Exit(1)
	}
	testRedisStore, err = getTestStore(url)
	if err != nil {
		fmt.Printf("Failed to get model store (%s)", err.Error())
		os.Exit(1)
	}
	// Run
	code := m.Run()
	// Teardown
	if err == nil {
		redis.Terminate(ctx)
	}
	os.Exit(code)
}

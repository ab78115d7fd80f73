package config

import (
	"os"
	"testing"
)

func TestGetenv(t *testing.T) {
	got := Getenv("VAR_THAT_DOES_NOT_EXIST", "default value")
	if got != "default value" {
		t.Errorf("Getenv(\"VAR_THAT_DOES_NOT_EXIST\", \"default value\") = %s; want default value", got)
	}
}

func TestNew(t *testing.T) {
	os.Setenv("SD_KAFKA", "localhost:9092")
	defer os.Unsetenv("SD_KAFKA")

	conf, err := New()
	if err != nil {
		t.Fatalf("Failed to load config from a minimal environment (%s)", err.Error())
	}
	if conf.Training.BatchSize != 32 {
		t.Errorf("Expected the default batch size to be 32, got %d", conf.Training.BatchSize)
	}
	if conf.Models.StoreType != FileModelStore {
		t.Errorf("Expected the default model store to be %s, got %s", FileModelStore, conf.Models.StoreType)
	}

	os.Setenv("TRAINING_BATCH_SIZE", "0")
	defer os.Unsetenv("TRAINING_BATCH_SIZE")
	if _, err = New(); err == nil {
		t.Errorf("Expected an error for a batch size below 1")
	}
}

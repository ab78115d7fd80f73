// Package config centralizes the parsing of application configuration
package config

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
)

// Model store types
const (
	FileModelStore  = "file"
	RedisModelStore = "redis"
)

// Sample store types
const (
	FileSampleStore          = "file"
	ElasticsearchSampleStore = "elasticsearch"
)

// Kafka holds the necessary configuration to set up the connection to a Kafka cluster
type Kafka struct {
	Brokers []string
	GroupID string
	Topic   string
}

// LoggerParams holds the necessary configuration to initialize the logger
type LoggerParams struct {
	ArtifactID  string
	Level       string
	ServiceName string
}

// ModelsParams determines where trained model artifacts and their summaries are kept
type ModelsParams struct {
	Dir         string
	StoreType   string
	StoreParams map[string]interface{}
}

// TrainingParams holds the parameters that determine how training batches are ingested,
// stored and consumed
type TrainingParams struct {
	BatchSize   int
	Epochs      int
	FailLimit   int
	Source      Kafka
	StoreType   string
	StoreParams map[string]interface{}
	StorePass   string
	StoreUser   string
}

// Config holds all the configuration for the app
type Config struct {
	AppVersion string
	Logger     LoggerParams
	Models     ModelsParams
	Training   TrainingParams
}

// New generates a Config object populated with values from the environment
func New() (*Config, error) {
	conf := Config{}

	// Take care of logging params first in case the app has to report a config related error
	conf.AppVersion = Getenv("VERSION", "unknown")
	conf.Logger.Level = Getenv("LOG_LEVEL", "INFO")
	conf.Logger.ArtifactID = Getenv("MARATHON_APP_DOCKER_IMAGE", "deepchem:"+conf.AppVersion+"?")
	conf.Logger.ServiceName = Getenv("SERVICE_5500_NAME", Getenv("SERVICE_NAME", "deepchem"))

	// Model params
	conf.Models.Dir = Getenv("MODELS_DIR", ".")
	conf.Models.StoreType = Getenv("MODELS_STORE_TYPE", FileModelStore)
	defModelStoreParams := `{"Path": "."}`
	redis := os.Getenv("SD_REDIS")
	if redis != "" {
		defModelStoreParams = `{"URL": "` + redis + `"}`
	}
	err := json.Unmarshal([]byte(Getenv("MODELS_STORE_PARAMS", defModelStoreParams)), &conf.Models.StoreParams)
	if err != nil {
		return &conf, err
	}

	// Training params
	conf.Training.BatchSize, err = strconv.Atoi(Getenv("TRAINING_BATCH_SIZE", "32"))
	if err != nil {
		return &conf, err
	}
	if conf.Training.BatchSize < 1 {
		return &conf, errors.New("training batch size must be at least 1")
	}
	conf.Training.Epochs, err = strconv.Atoi(Getenv("TRAINING_EPOCHS", "10"))
	if err != nil {
		return &conf, err
	}
	if conf.Training.Epochs < 1 {
		return &conf, errors.New("training epochs must be at least 1")
	}
	conf.Training.FailLimit, err = strconv.Atoi(Getenv("TRAINING_FAIL_LIMIT", "5"))
	if err != nil {
		return &conf, err
	}
	brokers := os.Getenv("SD_KAFKA")
	if brokers == "" {
		return &conf, errors.New("no value found for required variable SD_KAFKA")
	}
	conf.Training.Source = Kafka{
		Brokers: strings.Split(brokers, ","),
		GroupID: Getenv("TRAINING_KAFKA_GROUP", "deepchem"),
		Topic:   Getenv("TRAINING_KAFKA_TOPIC", "deepchem-batches"),
	}
	conf.Training.StoreType = Getenv("SAMPLES_STORE_TYPE", FileSampleStore)
	defSampleStoreParams := `{"Path": "."}`
	esNodes := os.Getenv("SD_ELASTICSEARCH")
	if esNodes != "" {
		defSampleStoreParams = `{"URLs": "` + esNodes + `"}`
	}
	err = json.Unmarshal([]byte(Getenv("SAMPLES_STORE_PARAMS", defSampleStoreParams)), &conf.Training.StoreParams)
	if err != nil {
		return &conf, err
	}
	conf.Training.StorePass = os.Getenv("SAMPLES_STORE_PASS")
	conf.Training.StoreUser = os.Getenv("SAMPLES_STORE_USER")

	return &conf, nil
}

// Getenv is useful for retrieving the value of an env var with a default
func Getenv(env, fallback string) string {
	value := os.Getenv(env)
	if value == "" {
		return fallback
	}
	return value
}

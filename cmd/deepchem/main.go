package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/evanfeinberg/deepchem/api"
	"github.com/evanfeinberg/deepchem/api/types"
	"github.com/evanfeinberg/deepchem/internal/batches"
	"github.com/evanfeinberg/deepchem/internal/config"
	"github.com/evanfeinberg/deepchem/internal/logger"
	"github.com/evanfeinberg/deepchem/internal/models"
	"github.com/oklog/run"
	"github.com/segmentio/kafka-go"
)

func main() {
	// Get config
	conf, err := config.New()
	// Initialize logger (even if the previous statement returns an error, the logging part should be filled in)
	logger.Init(*conf)
	logger.Info("Initializing component")
	if err != nil {
		logger.Error("Error encountered while loading configuration", err)
		return
	}

	models.RegisterDefaults()

	var g run.Group

	// Initialize training service
	fServ := make(chan types.FitRequest, 10)
	g.Add(func() error { return models.Trainer(fServ, *conf) }, func(error) { close(fServ) })

	// Initialize consumer
	consumer := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  conf.Training.Source.Brokers,
		GroupID:  conf.Training.Source.GroupID,
		Topic:    conf.Training.Source.Topic,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	g.Add(func() error { return batches.Consumer(consumer, fServ, *conf) }, func(error) { consumer.Close() })

	// Initialize API
	api, err := api.New(fServ, *conf)
	if err != nil {
		logger.Error("Error encountered initializing API", err)
		return
	}
	srv := &http.Server{
		Addr:    ":5500",
		Handler: api.Router,
	}
	g.Add(func() error {
		return srv.ListenAndServe()
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server forced to shutdown", err)
			os.Exit(1)
		}
	})

	err = g.Run()
	if err != nil {
		logger.Error("Critical error encountered, exiting", err)
	}
}

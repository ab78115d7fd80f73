package models

import (
	"path/filepath"
	"time"

	"github.com/evanfeinberg/deepchem/api/types"
	"github.com/evanfeinberg/deepchem/internal/batches/samplestores"
	"github.com/evanfeinberg/deepchem/internal/config"
	"github.com/evanfeinberg/deepchem/internal/logger"
	"github.com/evanfeinberg/deepchem/internal/models/modelstores"
)

// Trainer listens for requests to fit models with freshly ingested samples
func Trainer(c chan types.FitRequest, conf config.Config) error {
	// Set up model store
	ms, err := modelstores.New(conf)
	if err != nil {
		logger.Error("Failed to initialize model store for the training service", err)
		return err
	}
	// Set up sample store
	ss, err := samplestores.New(conf)
	if err != nil {
		logger.Error("Failed to initialize sample store for the training service", err)
		return err
	}
	logger.Info("Training service initialized")
	for fr := range c {
		logger.Info("Fitting model " + fr.ModelID)
		dir := filepath.Join(conf.Models.Dir, fr.ModelID)
		model, err := Load(dir)
		if err != nil {
			logger.Error("Error loading model "+fr.ModelID+" from disk", err)
			continue // We can't kill the whole service every time one model is broken
		}
		// Get samples
		samples, err := ss.GetLastN(fr.ModelID, fr.Required)
		if err != nil {
			logger.Error("Error retrieving samples from store for model "+fr.ModelID, err)
			return err
		}
		X, y, w, err := samplestores.Matrices(samples)
		if err != nil {
			logger.Error("Error assembling training matrices for model "+fr.ModelID, err)
			continue
		}
		var losses map[string]float32
		for epoch := 0; epoch < conf.Training.Epochs; epoch++ {
			losses, err = model.FitOnBatch(X, y, w)
			if err != nil {
				break
			}
		}
		if err != nil {
			logger.Error("Error fitting model "+fr.ModelID, err)
			continue
		}
		if err = model.Save(dir); err != nil {
			logger.Error("Error persisting fitted model "+fr.ModelID, err)
			continue
		}
		// Refresh the shared summary so every instance sees the new losses
		brief := model.Brief()
		brief.Losses = losses
		brief.UpdatedAt = time.Now().Unix()
		if err = ms.Save(fr.ModelID, &modelstores.BriefRecord{BriefModel: *brief}); err != nil {
			logger.Error("Error updating the record for model "+fr.ModelID, err)
			continue
		}
		logger.Info("Fit for model " + fr.ModelID + " completed")
	}
	return nil
}

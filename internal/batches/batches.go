// Package batches contains the logic that ingests training sample batches into the system
package batches

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/evanfeinberg/deepchem/api/types"
	"github.com/evanfeinberg/deepchem/internal/batches/samplestores"
	"github.com/evanfeinberg/deepchem/internal/config"
	"github.com/evanfeinberg/deepchem/internal/logger"
)

// ProcessBatch serves to separate the cloud event processing logic from that which is Kafka specific, that way
// allowing for training data to be ingested into the system through other channels
func ProcessBatch(event event.Event, ss samplestores.SampleStore, fServ chan types.FitRequest, conf config.Config) error {
	switch event.Type() {
	case types.SampleBatchEvent:
		// Unmarshal
		var sb types.SampleBatch
		err := json.Unmarshal(event.Data(), &sb)
		if err != nil {
			return err
		}
		if sb.ModelID == "" {
			return errors.New("a sample batch must reference the model it belongs to")
		}
		if len(sb.Samples) == 0 {
			return errors.New("a sample batch must contain at least one sample")
		}
		for _, s := range sb.Samples {
			if !s.Consistent() {
				return errors.New("every sample must have one weight per label")
			}
		}
		// Get current count
		count, err := ss.GetCount(sb.ModelID)
		if err != nil {
			return err
		}

		// Persist
		for _, s := range sb.Samples {
			err = ss.AddSample(sb.ModelID, samplestores.FromAPI(s))
			if err != nil {
				logger.Error("Error encountered while persisting sample to store", err)
				return err
			}
		}
		// Queue up training if enough samples are available
		req := conf.Training.BatchSize
		logger.Trace(fmt.Sprintf("Got %d samples for %s, %d required for training", count+len(sb.Samples), sb.ModelID, req))
		if count < req && count+len(sb.Samples) >= req {
			if conf.Training.StoreType == config.ElasticsearchSampleStore {
				// Pause for refresh, otherwise the samples might not be readable yet and/or the next call might
				// see the old count again
				time.Sleep(1 * time.Second)
			}
			fServ <- types.FitRequest{
				ModelID:  sb.ModelID,
				Required: req,
			}
		}

		return nil
	default:
		logger.Warning("Received cloud event with unsupported type (" + event.Type() + ") from " + event.Source())
		return errors.New("unsupported event type")
	}
}

package modelstores

import (
	"github.com/evanfeinberg/deepchem/api/types"
	"github.com/evanfeinberg/deepchem/internal/graph"
)

func initTest(ms ModelStore) (string, error) {
	id := "7f31f05e-0bc6-476f-b0ef-62bee39b36b1"
	record := BriefRecord{
		BriefModel: types.BriefModel{
			ID:   id,
			Type: "multitask-dnn",
			Tasks: map[string]string{
				"affinity": "regression",
				"toxicity": "classification",
			},
			Params: types.ModelParams{
				NInputs:      3,
				NHidden:      4,
				Init:         graph.GlorotUniform,
				Activation:   graph.ReLU,
				LearningRate: 0.01,
			},
			Losses:    map[string]float32{"task0": 0.35, "task1": 0.12, "loss": 0.47},
			UpdatedAt: 777808800,
		},
	}
	return id, ms.Save(id, &record)
}

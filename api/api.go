package api

import (
	"github.com/evanfeinberg/deepchem/api/types"
	"github.com/evanfeinberg/deepchem/internal/batches/samplestores"
	"github.com/evanfeinberg/deepchem/internal/config"
	"github.com/evanfeinberg/deepchem/internal/logger"
	"github.com/evanfeinberg/deepchem/internal/models/modelstores"
	"github.com/gin-gonic/gin"
)

// Handler holds the API's state
type Handler struct {
	Conf   config.Config
	MS     modelstores.ModelStore
	SS     samplestores.SampleStore
	Router *gin.Engine
	FServ  chan types.FitRequest
}

// @title Deepchem
// @version 1.0
// @description Deepchem provides multitask deep learning as a service.

// @host localhost:5500
// @BasePath /api/v1

// New initializes the Gin rest api and returns a handler
func New(fServ chan types.FitRequest, conf config.Config) (*Handler, error) {
	// Set up model store
	ms, err := modelstores.New(conf)
	if err != nil {
		logger.Error("Failed to initialize model store for the API", err)
		return nil, err
	}

	// Set up sample store
	ss, err := samplestores.New(conf)
	if err != nil {
		logger.Error("Failed to initialize sample store for the API", err)
		return nil, err
	}

	router := gin.New()

	h := Handler{
		Conf:   conf,
		MS:     ms,
		SS:     ss,
		Router: router,
		FServ:  fServ,
	}

	// Global middleware
	router.Use(gin.LoggerWithFormatter(logger.GinFormatter))
	router.Use(gin.Recovery())

	// Routes
	v1 := router.Group("/api/v1")
	{
		health := v1.Group("/health")
		{
			health.GET("/startup", StartupCheck)
			health.GET("/ready", h.ReadyCheck)
		}
		models := v1.Group("/models")
		{
			models.GET("", h.ListModels)
			models.POST("", h.CreateModel)
			models.DELETE("/:id", h.DeleteModel)
			models.POST("/:id/fit", h.Fit)
			models.POST("/:id/predict", h.Predict)
		}
		batches := v1.Group("/batches")
		{
			batches.GET("", h.ListBatches)
			batches.DELETE("/:id", h.DeleteBatch)
			batches.POST("/process", h.AddBatch)
		}
	}

	logger.Info("API initialized")
	return &h, nil
}

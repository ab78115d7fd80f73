package api

import (
	"net/http"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/gin-gonic/gin"

	"github.com/evanfeinberg/deepchem/api/types"
	"github.com/evanfeinberg/deepchem/internal/batches"
	"github.com/evanfeinberg/deepchem/internal/logger"
)

// AddBatch godoc
// @Summary Sample ingestion endpoint
// @Description Will persist the samples in the given batch event and queue up training
// @Description when enough of them have accumulated
// @Accept json
// @Produce json
// @Success 202
// @Failure 400 {object} types.SimpleRes "When the request body is formatted incorrectly"
// @Failure 500 {object} types.SimpleRes "When there is an error processing the batch"
// @Router /batches/process [post]
func (h *Handler) AddBatch(c *gin.Context) {
	event := cloudevents.NewEvent()

	err := c.ShouldBind(&event)
	if err != nil {
		logger.Debug("Failed to unmarshal message (" + err.Error() + ")")
		c.JSON(http.StatusBadRequest, types.NewErrorRes("Wrong format"))
		return
	}

	err = batches.ProcessBatch(event, h.SS, h.FServ, h.Conf)
	if err != nil {
		logger.Error("Failed to process message", err)
		c.JSON(http.StatusInternalServerError, types.NewErrorRes("Error processing batch, see logs for more info"))
		return
	}

	c.String(http.StatusAccepted, "")
}

// DeleteBatch godoc
// @Summary Sample set deletion endpoint
// @Description Will delete the accumulated samples for the model with the specified ID
// @Produce json
// @Param id path string true "Model ID"
// @Success 200
// @Failure 404 {object} types.SimpleRes "When the sample set doesn't exist"
// @Failure 500 {object} types.SimpleRes "When there is an error deleting the sample set"
// @Router /batches/{id} [delete]
func (h *Handler) DeleteBatch(c *gin.Context) {
	id := c.Param("id")
	delErr := types.NewErrorRes("Error deleting sample set, see logs for more info")
	found, err := h.SS.Exists(id)
	if err != nil {
		logger.Error("Failed to check if the sample set for model "+id+" exists in the store", err)
		c.JSON(http.StatusInternalServerError, delErr)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, types.NewErrorRes("Sample set for model "+id+" could not be found"))
		return
	}
	err = h.SS.DeleteSet(id)
	if err != nil {
		logger.Error("Failed to delete sample set for model "+id, err)
		c.JSON(http.StatusInternalServerError, delErr)
		return
	}
	c.JSON(http.StatusOK, "")
}

// ListBatches godoc
// @Summary Retrieve list of sample sets
// @Description Will return the list of sample sets in the system
// @Produce json
// @Success 200 {array} types.BriefSampleSet
// @Failure 500 {object} types.SimpleRes "When there is an error fetching the list of sample sets"
// @Router /batches [get]
func (h *Handler) ListBatches(c *gin.Context) {
	sets, err := h.SS.ListSets()
	if err != nil {
		logger.Error("Failed to get list of sample sets", err)
		c.JSON(http.StatusInternalServerError, types.NewErrorRes("Error getting list of sample sets, see logs for more info"))
		return
	}
	c.JSON(http.StatusOK, sets)
}

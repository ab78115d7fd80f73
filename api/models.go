package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/evanfeinberg/deepchem/api/types"
	"github.com/evanfeinberg/deepchem/internal/logger"
	"github.com/evanfeinberg/deepchem/internal/models"
	"github.com/evanfeinberg/deepchem/internal/models/modelstores"
)

// modelDir returns the directory that holds a model's persisted artifacts
func (h *Handler) modelDir(id string) string {
	return filepath.Join(h.Conf.Models.Dir, id)
}

// CreateModel godoc
// @Summary Model creation endpoint
// @Description Will build a model of the requested type, persist it and register it
// @Accept json
// @Produce json
// @Success 201 {object} types.BriefModel
// @Failure 400 {object} types.SimpleRes "When the request body is formatted incorrectly"
// @Failure 500 {object} types.SimpleRes "When there is an error building or persisting the model"
// @Router /models [post]
func (h *Handler) CreateModel(c *gin.Context) {
	var req types.ModelReq
	err := c.ShouldBind(&req)
	if err != nil {
		logger.Debug("Failed to unmarshal message (" + err.Error() + ")")
		c.JSON(http.StatusBadRequest, types.NewErrorRes("Wrong format"))
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Type == "" {
		req.Type = models.MultiTaskDNNType
	}
	tasks, err := models.ParseTaskSpec(req.Tasks)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorRes(err.Error()))
		return
	}

	model, err := models.New(req.Type, req.ID, tasks, req.Params)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorRes(err.Error()))
		return
	}
	if err = model.Save(h.modelDir(req.ID)); err != nil {
		logger.Error("Failed to persist model "+req.ID, err)
		c.JSON(http.StatusInternalServerError, types.NewErrorRes("Error persisting model, see logs for more info"))
		return
	}
	brief := model.Brief()
	if err = h.MS.Save(req.ID, &modelstores.BriefRecord{BriefModel: *brief}); err != nil {
		logger.Error("Failed to register model "+req.ID, err)
		c.JSON(http.StatusInternalServerError, types.NewErrorRes("Error registering model, see logs for more info"))
		return
	}
	c.JSON(http.StatusCreated, brief)
}

// DeleteModel godoc
// @Summary Model deletion endpoint
// @Description Will delete the artifacts and record of the model with the specified ID
// @Produce json
// @Param id path string true "Model ID"
// @Success 200 {object} types.SimpleRes
// @Failure 500 {object} types.SimpleRes "When there is an error deleting the model"
// @Router /models/{id} [delete]
func (h *Handler) DeleteModel(c *gin.Context) {
	id := c.Param("id")
	err := os.RemoveAll(h.modelDir(id))
	if err != nil {
		logger.Error("Failed to delete artifacts for model "+id, err)
		c.JSON(http.StatusInternalServerError, types.NewErrorRes("Error deleting model "+id+", see logs for more info"))
		return
	}
	if err = h.MS.Delete(id); err != nil {
		logger.Error("Failed to delete record for model "+id, err)
		c.JSON(http.StatusInternalServerError, types.NewErrorRes("Error deleting model "+id+", see logs for more info"))
		return
	}
	c.JSON(http.StatusOK, types.NewOkRes("Model "+id+" was successfully deleted"))
}

// Fit godoc
// @Summary Inline training endpoint
// @Description Will update the model with one optimizer step over the given batch
// @Accept json
// @Produce json
// @Param id path string true "Model ID"
// @Success 200 {object} map[string]float32
// @Failure 400 {object} types.SimpleRes "When the request body is formatted incorrectly"
// @Failure 404 {object} types.SimpleRes "When the provided model ID isn't found"
// @Failure 500 {object} types.SimpleRes "When there is an error fitting or persisting the model"
// @Router /models/{id}/fit [post]
func (h *Handler) Fit(c *gin.Context) {
	id := c.Param("id")
	var batch types.Batch
	err := c.ShouldBind(&batch)
	if err != nil {
		logger.Debug("Failed to unmarshal message (" + err.Error() + ")")
		c.JSON(http.StatusBadRequest, types.NewErrorRes("Wrong format"))
		return
	}

	model, err := models.Load(h.modelDir(id))
	if os.IsNotExist(err) {
		c.JSON(http.StatusNotFound, types.NewErrorRes("Model with ID "+id+" could not be found"))
		return
	}
	if err != nil {
		logger.Error("Failed to load model "+id, err)
		c.JSON(http.StatusInternalServerError, types.NewErrorRes("Error loading model, see logs for more info"))
		return
	}
	losses, err := model.FitOnBatch(batch.X, batch.Y, batch.W)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorRes("Error fitting on batch ("+err.Error()+")"))
		return
	}
	if err = model.Save(h.modelDir(id)); err != nil {
		logger.Error("Failed to persist model "+id+" after fitting", err)
		c.JSON(http.StatusInternalServerError, types.NewErrorRes("Error persisting model, see logs for more info"))
		return
	}
	brief := model.Brief()
	brief.Losses = losses
	brief.UpdatedAt = time.Now().Unix()
	if err = h.MS.Save(id, &modelstores.BriefRecord{BriefModel: *brief}); err != nil {
		logger.Error("Failed to update record for model "+id, err)
		c.JSON(http.StatusInternalServerError, types.NewErrorRes("Error updating model record, see logs for more info"))
		return
	}
	c.JSON(http.StatusOK, losses)
}

// ListModels godoc
// @Summary Models endpoint
// @Description Will return the paginated list of models in the system
// @Produce json
// @Param offset query int false "Offset to fetch" default(0)
// @Param limit query int false "How many models to fetch, the service might return more in some cases" default(10) maximum(50)
// @Success 200 {object} types.PagedRes
// @Failure 400 {object} types.SimpleRes "When the request params are formatted incorrectly"
// @Failure 500 {object} types.SimpleRes "When there is an error retrieving the list of models"
// @Router /models [get]
func (h *Handler) ListModels(c *gin.Context) {
	raw := c.DefaultQuery("offset", "0")
	offset, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorRes("offset must be a valid integer"))
		return
	}
	raw = c.DefaultQuery("limit", "10")
	limit, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorRes("limit must be a valid integer"))
		return
	}
	if limit > 50 {
		limit = 50 // Till there is a better solution in place, this is so things won't get too much out of control
	}

	ids, cursor, err := h.MS.List(offset, limit, "*")
	if err != nil {
		logger.Error("Failed to get list of models", err)
		c.JSON(http.StatusInternalServerError, types.NewErrorRes("Error getting list of models, see logs for more info"))
		return
	}
	briefs := []types.BriefModel{}
	for _, id := range ids {
		var record modelstores.BriefRecord
		found, err := h.MS.Load(id, &record)
		if err != nil {
			logger.Error("Failed to load record for model "+id, err)
			c.JSON(http.StatusInternalServerError, types.NewErrorRes("Error getting list of models, see logs for more info"))
			return
		}
		if found {
			briefs = append(briefs, record.BriefModel)
		}
	}
	c.JSON(http.StatusOK, types.PagedRes{Last: cursor == 0, Next: cursor, Results: briefs})
}

// Predict godoc
// @Summary Inference endpoint
// @Description Will return the model's predictions for the given feature matrix, one row
// @Description per input row with one column per task (flattened for single task models)
// @Accept json
// @Produce json
// @Param id path string true "Model ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} types.SimpleRes "When the request body is formatted incorrectly"
// @Failure 404 {object} types.SimpleRes "When the provided model ID isn't found"
// @Failure 500 {object} types.SimpleRes "When there is an error loading the model"
// @Router /models/{id}/predict [post]
func (h *Handler) Predict(c *gin.Context) {
	id := c.Param("id")
	var req types.PredictReq
	err := c.ShouldBind(&req)
	if err != nil {
		logger.Debug("Failed to unmarshal message (" + err.Error() + ")")
		c.JSON(http.StatusBadRequest, types.NewErrorRes("Wrong format"))
		return
	}

	model, err := models.Load(h.modelDir(id))
	if os.IsNotExist(err) {
		c.JSON(http.StatusNotFound, types.NewErrorRes("Model with ID "+id+" could not be found"))
		return
	}
	if err != nil {
		logger.Error("Failed to load model "+id, err)
		c.JSON(http.StatusInternalServerError, types.NewErrorRes("Error loading model, see logs for more info"))
		return
	}
	preds, err := model.PredictOnBatch(req.X)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorRes("Error predicting on batch ("+err.Error()+")"))
		return
	}
	if len(preds.Shape) == 1 {
		c.JSON(http.StatusOK, gin.H{"shape": preds.Shape, "predictions": preds.Data})
		return
	}
	rows := make([][]float32, preds.Rows())
	for i := range rows {
		rows[i] = preds.Row(i)
	}
	c.JSON(http.StatusOK, gin.H{"shape": preds.Shape, "predictions": rows})
}

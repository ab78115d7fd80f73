package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StartupCheck godoc
// @Summary Kubernetes startup probe endpoint
// @Description Answers as soon as the router is serving, before any model has been loaded
// @Produce plain
// @Success 200 {string} string
// @Router /health/startup [get]
func StartupCheck(c *gin.Context) {
	c.String(http.StatusOK, "UP")
}

// ReadyCheck godoc
// @Summary Kubernetes readiness probe endpoint
// @Description Verifies that the shared model record store can be queried
// @Produce plain
// @Success 200 {string} string
// @Failure 503 {string} string
// @Router /health/ready [get]
func (h *Handler) ReadyCheck(c *gin.Context) {
	if _, _, err := h.MS.List(0, 1, "*"); err != nil {
		c.String(http.StatusServiceUnavailable, "model store unreachable")
		return
	}
	c.String(http.StatusOK, "READY")
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hwlab/labtrack-api/internal/service"
	"github.com/hwlab/labtrack-api/pkg/response"
)

// StatusHandler serves the aggregated runtime snapshot for site admins.
type StatusHandler struct {
	metrics *service.MetricsService
}

// NewStatusHandler constructs StatusHandler.
func NewStatusHandler(metrics *service.MetricsService) *StatusHandler {
	return &StatusHandler{metrics: metrics}
}

// Status godoc
// @Summary Runtime metrics snapshot
// @Tags Status
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /status [get]
func (h *StatusHandler) Status(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot())
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hwlab/labtrack-api/internal/service"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
	"github.com/hwlab/labtrack-api/pkg/response"
)

// ExperimentHandler exposes the course structure endpoints.
type ExperimentHandler struct {
	experiments *service.ExperimentService
}

// NewExperimentHandler constructs ExperimentHandler.
func NewExperimentHandler(experiments *service.ExperimentService) *ExperimentHandler {
	return &ExperimentHandler{experiments: experiments}
}

// List godoc
// @Summary List experiments of a year with their tasks
// @Tags Experiments
// @Produce json
// @Param year path int true "Year"
// @Success 200 {object} response.Envelope
// @Router /years/{year}/experiments [get]
func (h *ExperimentHandler) List(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	experiments, err := h.experiments.ListByYear(c.Request.Context(), principalFromContext(c), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, experiments)
}

// Create godoc
// @Summary Add an experiment to a year
// @Tags Experiments
// @Accept json
// @Produce json
// @Param year path int true "Year"
// @Param payload body service.CreateExperimentRequest true "Experiment"
// @Success 201 {object} response.Envelope
// @Router /years/{year}/experiments [post]
func (h *ExperimentHandler) Create(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	var req service.CreateExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid experiment payload"))
		return
	}

	experiment, err := h.experiments.Create(c.Request.Context(), principalFromContext(c), year, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, experiment)
}

// Delete godoc
// @Summary Delete an experiment
// @Tags Experiments
// @Produce json
// @Param id path int true "Experiment ID"
// @Success 204 "deleted"
// @Router /experiments/{id} [delete]
func (h *ExperimentHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid experiment id"))
		return
	}

	if err := h.experiments.Delete(c.Request.Context(), principalFromContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateTask godoc
// @Summary Add a task to an experiment
// @Tags Experiments
// @Accept json
// @Produce json
// @Param id path int true "Experiment ID"
// @Param payload body service.CreateTaskRequest true "Task"
// @Success 201 {object} response.Envelope
// @Router /experiments/{id}/tasks [post]
func (h *ExperimentHandler) CreateTask(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid experiment id"))
		return
	}

	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload"))
		return
	}

	task, err := h.experiments.CreateTask(c.Request.Context(), principalFromContext(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, task)
}

// DeleteTask godoc
// @Summary Delete a task
// @Tags Experiments
// @Produce json
// @Param id path int true "Task ID"
// @Success 204 "deleted"
// @Router /tasks/{id} [delete]
func (h *ExperimentHandler) DeleteTask(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid task id"))
		return
	}

	if err := h.experiments.DeleteTask(c.Request.Context(), principalFromContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

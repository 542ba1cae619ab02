package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hwlab/labtrack-api/internal/service"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
	"github.com/hwlab/labtrack-api/pkg/response"
)

// ScheduleHandler exposes lab day and experiment plan endpoints.
type ScheduleHandler struct {
	schedule *service.ScheduleService
}

// NewScheduleHandler constructs ScheduleHandler.
func NewScheduleHandler(schedule *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule}
}

// ListDays godoc
// @Summary List lab days of a year
// @Tags Schedule
// @Produce json
// @Param year path int true "Year"
// @Success 200 {object} response.Envelope
// @Router /years/{year}/days [get]
func (h *ScheduleHandler) ListDays(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	days, err := h.schedule.ListDays(c.Request.Context(), principalFromContext(c), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, days)
}

// CreateDay godoc
// @Summary Add a lab day to a year
// @Tags Schedule
// @Accept json
// @Produce json
// @Param year path int true "Year"
// @Param payload body service.CreateDayRequest true "Day"
// @Success 201 {object} response.Envelope
// @Router /years/{year}/days [post]
func (h *ScheduleHandler) CreateDay(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	var req service.CreateDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid day payload"))
		return
	}

	day, err := h.schedule.CreateDay(c.Request.Context(), principalFromContext(c), year, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, day)
}

// DeleteDay godoc
// @Summary Delete a lab day
// @Tags Schedule
// @Produce json
// @Param id path int true "Day ID"
// @Success 204 "deleted"
// @Router /days/{id} [delete]
func (h *ScheduleHandler) DeleteDay(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid day id"))
		return
	}

	if err := h.schedule.DeleteDay(c.Request.Context(), principalFromContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListEvents godoc
// @Summary List the experiment plan of a year
// @Tags Schedule
// @Produce json
// @Param year path int true "Year"
// @Success 200 {object} response.Envelope
// @Router /years/{year}/events [get]
func (h *ScheduleHandler) ListEvents(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	events, err := h.schedule.ListEvents(c.Request.Context(), principalFromContext(c), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events)
}

// ScheduleEvent godoc
// @Summary Schedule an experiment on a day
// @Tags Schedule
// @Accept json
// @Produce json
// @Param id path int true "Day ID"
// @Param payload body service.ScheduleEventRequest true "Event"
// @Success 204 "scheduled"
// @Router /days/{id}/events [put]
func (h *ScheduleHandler) ScheduleEvent(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid day id"))
		return
	}

	var req service.ScheduleEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload"))
		return
	}

	if err := h.schedule.ScheduleEvent(c.Request.Context(), principalFromContext(c), id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteEvent godoc
// @Summary Remove an experiment from a day's plan
// @Tags Schedule
// @Produce json
// @Param id path int true "Day ID"
// @Param experimentId path int true "Experiment ID"
// @Success 204 "removed"
// @Router /days/{id}/events/{experimentId} [delete]
func (h *ScheduleHandler) DeleteEvent(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid day id"))
		return
	}
	experimentID, err := idParam(c, "experimentId")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid experiment id"))
		return
	}

	if err := h.schedule.DeleteEvent(c.Request.Context(), principalFromContext(c), id, experimentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

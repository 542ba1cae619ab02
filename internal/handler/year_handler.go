package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hwlab/labtrack-api/internal/service"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
	"github.com/hwlab/labtrack-api/pkg/response"
)

// YearHandler exposes year lifecycle endpoints.
type YearHandler struct {
	years *service.YearService
}

// NewYearHandler constructs YearHandler.
func NewYearHandler(years *service.YearService) *YearHandler {
	return &YearHandler{years: years}
}

type createYearRequest struct {
	Year int `json:"year" binding:"required"`
}

// List godoc
// @Summary List years
// @Tags Years
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /years [get]
func (h *YearHandler) List(c *gin.Context) {
	years, err := h.years.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, years)
}

// Create godoc
// @Summary Create a new writable year
// @Tags Years
// @Accept json
// @Produce json
// @Param payload body createYearRequest true "Year"
// @Success 201 {object} response.Envelope
// @Router /years [post]
func (h *YearHandler) Create(c *gin.Context) {
	var req createYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid year payload"))
		return
	}

	year, err := h.years.Create(c.Request.Context(), principalFromContext(c), req.Year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, year)
}

// Close godoc
// @Summary Close a year for modifications
// @Tags Years
// @Produce json
// @Param year path int true "Year"
// @Success 204 "closed"
// @Router /years/{year}/close [post]
func (h *YearHandler) Close(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	if err := h.years.Close(c.Request.Context(), principalFromContext(c), year); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a year and everything scoped to it
// @Tags Years
// @Produce json
// @Param year path int true "Year"
// @Success 204 "deleted"
// @Router /years/{year} [delete]
func (h *YearHandler) Delete(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	if err := h.years.Delete(c.Request.Context(), principalFromContext(c), year); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

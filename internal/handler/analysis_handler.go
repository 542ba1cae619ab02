package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hwlab/labtrack-api/internal/service"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
	"github.com/hwlab/labtrack-api/pkg/response"
)

// AnalysisHandler exposes the progress analysis endpoints.
type AnalysisHandler struct {
	analysis *service.AnalysisService
}

// NewAnalysisHandler constructs AnalysisHandler.
func NewAnalysisHandler(analysis *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysis: analysis}
}

func boolQuery(c *gin.Context, name string) *bool {
	switch c.Query(name) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}

// Tasks godoc
// @Summary Per-student task completion matrix
// @Tags Analysis
// @Produce json
// @Param year path int true "Year"
// @Param extra query bool false "Include extra tasks"
// @Success 200 {object} response.Envelope
// @Router /years/{year}/analysis/tasks [get]
func (h *AnalysisHandler) Tasks(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	matrix, err := h.analysis.TasksByStudent(c.Request.Context(), principalFromContext(c), year, c.Query("extra") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, matrix)
}

// Elaborations godoc
// @Summary Per-student elaboration matrix under a state filter
// @Tags Analysis
// @Produce json
// @Param year path int true "Year"
// @Param rework query bool false "Filter by rework-required flag"
// @Param accepted query bool false "Filter by accepted flag"
// @Success 200 {object} response.Envelope
// @Router /years/{year}/analysis/elaborations [get]
func (h *AnalysisHandler) Elaborations(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	matrix, err := h.analysis.ElaborationsByStudent(c.Request.Context(), principalFromContext(c), year, boolQuery(c, "rework"), boolQuery(c, "accepted"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, matrix)
}

// Eligible godoc
// @Summary Students eligible for the course certificate
// @Tags Analysis
// @Produce json
// @Param year path int true "Year"
// @Success 200 {object} response.Envelope
// @Router /years/{year}/analysis/eligible [get]
func (h *AnalysisHandler) Eligible(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	students, err := h.analysis.EligibleStudents(c.Request.Context(), principalFromContext(c), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students)
}

// MissingReworks godoc
// @Summary Students who still owe a rework
// @Tags Analysis
// @Produce json
// @Param year path int true "Year"
// @Success 200 {object} response.Envelope
// @Router /years/{year}/analysis/missing-reworks [get]
func (h *AnalysisHandler) MissingReworks(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	missing, err := h.analysis.MissingReworks(c.Request.Context(), principalFromContext(c), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, missing)
}

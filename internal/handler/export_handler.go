package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/hwlab/labtrack-api/internal/service"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
	"github.com/hwlab/labtrack-api/pkg/response"
)

// ExportHandler serves downloadable CSV and PDF renderings of analysis
// results.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// TaskMatrixCSV godoc
// @Summary Download the completion matrix as CSV
// @Tags Export
// @Produce text/csv
// @Param year path int true "Year"
// @Param extra query bool false "Include extra tasks"
// @Success 200 {string} string "CSV content"
// @Router /years/{year}/export/tasks.csv [get]
func (h *ExportHandler) TaskMatrixCSV(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	content, err := h.exports.TaskMatrixCSV(c.Request.Context(), principalFromContext(c), year, c.Query("extra") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, fmt.Sprintf("tasks-%d.csv", year), "text/csv", content)
}

// ResultsCSV godoc
// @Summary Download the full year results as CSV
// @Tags Export
// @Produce text/csv
// @Param year path int true "Year"
// @Success 200 {string} string "CSV content"
// @Router /years/{year}/export/results.csv [get]
func (h *ExportHandler) ResultsCSV(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	content, err := h.exports.ResultsCSV(c.Request.Context(), principalFromContext(c), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, fmt.Sprintf("results-%d.csv", year), "text/csv", content)
}

// EligibleCSV godoc
// @Summary Download the full pass list as CSV
// @Tags Export
// @Produce text/csv
// @Param year path int true "Year"
// @Success 200 {string} string "CSV content"
// @Router /years/{year}/export/eligible.csv [get]
func (h *ExportHandler) EligibleCSV(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	content, err := h.exports.EligibleCSV(c.Request.Context(), principalFromContext(c), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, fmt.Sprintf("eligible-%d.csv", year), "text/csv", content)
}

// EligiblePDF godoc
// @Summary Download the full pass list as PDF
// @Tags Export
// @Produce application/pdf
// @Param year path int true "Year"
// @Success 200 {string} string "PDF content"
// @Router /years/{year}/export/eligible.pdf [get]
func (h *ExportHandler) EligiblePDF(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	content, err := h.exports.EligiblePDF(c.Request.Context(), principalFromContext(c), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, fmt.Sprintf("eligible-%d.pdf", year), "application/pdf", content)
}

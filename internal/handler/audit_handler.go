package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hwlab/labtrack-api/internal/models"
	"github.com/hwlab/labtrack-api/internal/service"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
	"github.com/hwlab/labtrack-api/pkg/response"
)

// AuditHandler exposes the change history endpoints.
type AuditHandler struct {
	audit *service.AuditService
}

// NewAuditHandler constructs AuditHandler.
func NewAuditHandler(audit *service.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List godoc
// @Summary Query the change history
// @Tags Audit
// @Produce json
// @Param year query int false "Restrict to a year"
// @Param q query string false "Terms matched against the change text"
// @Param group query int false "Restrict to a group"
// @Param author query string false "Exact author match"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter := models.AuditFilter{
		Search: strings.TrimSpace(c.Query("q")),
		Author: c.Query("author"),
	}
	if raw := c.Query("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
			return
		}
		filter.Year = &year
	}
	if raw := c.Query("group"); raw != "" {
		group, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group"))
			return
		}
		filter.Group = &group
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid limit"))
			return
		}
		filter.Limit = limit
	}

	entries, err := h.audit.Query(c.Request.Context(), principalFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries)
}

// Authors godoc
// @Summary List distinct audit authors
// @Tags Audit
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /audit/authors [get]
func (h *AuditHandler) Authors(c *gin.Context) {
	authors, err := h.audit.Authors(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, authors)
}

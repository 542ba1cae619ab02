package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hwlab/labtrack-api/internal/service"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
	"github.com/hwlab/labtrack-api/pkg/response"
)

// WhitelistHandler exposes the login IP whitelist endpoints.
type WhitelistHandler struct {
	whitelist *service.WhitelistService
}

// NewWhitelistHandler constructs WhitelistHandler.
func NewWhitelistHandler(whitelist *service.WhitelistService) *WhitelistHandler {
	return &WhitelistHandler{whitelist: whitelist}
}

// List godoc
// @Summary List whitelist entries of a year
// @Tags Whitelist
// @Produce json
// @Param year path int true "Year"
// @Success 200 {object} response.Envelope
// @Router /years/{year}/whitelist [get]
func (h *WhitelistHandler) List(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	entries, err := h.whitelist.ListByYear(c.Request.Context(), principalFromContext(c), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries)
}

// Create godoc
// @Summary Allow logins from a network range for a year
// @Tags Whitelist
// @Accept json
// @Produce json
// @Param year path int true "Year"
// @Param payload body service.CreateWhitelistRequest true "Entry"
// @Success 201 {object} response.Envelope
// @Router /years/{year}/whitelist [post]
func (h *WhitelistHandler) Create(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	var req service.CreateWhitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid whitelist payload"))
		return
	}

	entry, err := h.whitelist.Create(c.Request.Context(), principalFromContext(c), year, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Delete godoc
// @Summary Remove a whitelist entry
// @Tags Whitelist
// @Produce json
// @Param id path int true "Entry ID"
// @Success 204 "removed"
// @Router /whitelist/{id} [delete]
func (h *WhitelistHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid entry id"))
		return
	}

	if err := h.whitelist.Delete(c.Request.Context(), principalFromContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

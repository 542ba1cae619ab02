package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hwlab/labtrack-api/internal/service"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
	"github.com/hwlab/labtrack-api/pkg/response"
)

// TutorHandler exposes tutor membership endpoints.
type TutorHandler struct {
	tutors *service.TutorService
}

// NewTutorHandler constructs TutorHandler.
func NewTutorHandler(tutors *service.TutorService) *TutorHandler {
	return &TutorHandler{tutors: tutors}
}

type adminRequest struct {
	IsAdmin bool `json:"is_admin"`
}

// List godoc
// @Summary List tutors of a year
// @Tags Tutors
// @Produce json
// @Param year path int true "Year"
// @Success 200 {object} response.Envelope
// @Router /years/{year}/tutors [get]
func (h *TutorHandler) List(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	tutors, err := h.tutors.ListByYear(c.Request.Context(), principalFromContext(c), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutors)
}

// Create godoc
// @Summary Grant tutor rights for a year
// @Tags Tutors
// @Accept json
// @Produce json
// @Param year path int true "Year"
// @Param payload body service.CreateTutorRequest true "Tutor"
// @Success 201 {object} response.Envelope
// @Router /years/{year}/tutors [post]
func (h *TutorHandler) Create(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	var req service.CreateTutorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tutor payload"))
		return
	}

	tutor, err := h.tutors.Create(c.Request.Context(), principalFromContext(c), year, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tutor)
}

// Delete godoc
// @Summary Revoke a tutor membership
// @Tags Tutors
// @Produce json
// @Param id path int true "Tutor ID"
// @Success 204 "revoked"
// @Router /tutors/{id} [delete]
func (h *TutorHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid tutor id"))
		return
	}

	if err := h.tutors.Delete(c.Request.Context(), principalFromContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetAdmin godoc
// @Summary Grant or revoke per-year admin for a membership
// @Tags Tutors
// @Accept json
// @Produce json
// @Param id path int true "Tutor ID"
// @Param payload body adminRequest true "Flag"
// @Success 204 "updated"
// @Router /tutors/{id}/admin [put]
func (h *TutorHandler) SetAdmin(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid tutor id"))
		return
	}

	var req adminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}

	if err := h.tutors.SetAdmin(c.Request.Context(), principalFromContext(c), id, req.IsAdmin); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hwlab/labtrack-api/internal/models"
	"github.com/hwlab/labtrack-api/internal/service"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
	"github.com/hwlab/labtrack-api/pkg/response"
)

// GroupHandler exposes the tutor-facing mutation surface: groups,
// memberships, completions and elaborations.
type GroupHandler struct {
	groups *service.GroupService
}

// NewGroupHandler constructs GroupHandler.
func NewGroupHandler(groups *service.GroupService) *GroupHandler {
	return &GroupHandler{groups: groups}
}

type createGroupRequest struct {
	DayID   int64  `json:"day_id" binding:"required"`
	Desk    int    `json:"desk" binding:"required"`
	Comment string `json:"comment"`
}

type commentRequest struct {
	Comment string `json:"comment"`
}

type deskRequest struct {
	Desk int `json:"desk" binding:"required"`
}

type elaborationRequest struct {
	ReworkRequired bool `json:"rework_required"`
	Accepted       bool `json:"accepted"`
}

// ListByDay godoc
// @Summary List groups of a day with members and progress
// @Tags Groups
// @Produce json
// @Param id path int true "Day ID"
// @Success 200 {object} response.Envelope
// @Router /days/{id}/groups [get]
func (h *GroupHandler) ListByDay(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid day id"))
		return
	}

	groups, err := h.groups.ListByDay(c.Request.Context(), principalFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups)
}

// Get godoc
// @Summary Get one group with members and progress
// @Tags Groups
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id} [get]
func (h *GroupHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group id"))
		return
	}

	group, err := h.groups.Detail(c.Request.Context(), principalFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group)
}

// Create godoc
// @Summary Create a group on a day
// @Tags Groups
// @Accept json
// @Produce json
// @Param payload body createGroupRequest true "Group"
// @Success 201 {object} response.Envelope
// @Router /groups [post]
func (h *GroupHandler) Create(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload"))
		return
	}

	group, err := h.groups.Create(c.Request.Context(), principalFromContext(c), models.Group{
		DayID:   req.DayID,
		Desk:    req.Desk,
		Comment: req.Comment,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// UpdateComment godoc
// @Summary Replace the comment of a group
// @Tags Groups
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param payload body commentRequest true "Comment"
// @Success 204 "updated"
// @Router /groups/{id}/comment [put]
func (h *GroupHandler) UpdateComment(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group id"))
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload"))
		return
	}

	if err := h.groups.UpdateComment(c.Request.Context(), principalFromContext(c), id, req.Comment); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateDesk godoc
// @Summary Move a group to another desk
// @Tags Groups
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param payload body deskRequest true "Desk"
// @Success 204 "updated"
// @Router /groups/{id}/desk [put]
func (h *GroupHandler) UpdateDesk(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group id"))
		return
	}

	var req deskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid desk payload"))
		return
	}

	if err := h.groups.UpdateDesk(c.Request.Context(), principalFromContext(c), id, req.Desk); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a group, optionally with its recorded progress
// @Tags Groups
// @Produce json
// @Param id path int true "Group ID"
// @Param force query bool false "Delete even with recorded progress"
// @Success 204 "deleted"
// @Router /groups/{id} [delete]
func (h *GroupHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group id"))
		return
	}
	force := c.Query("force") == "true"

	if err := h.groups.Delete(c.Request.Context(), principalFromContext(c), id, force); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddStudent godoc
// @Summary Add a student to a group
// @Tags Groups
// @Produce json
// @Param id path int true "Group ID"
// @Param studentId path int true "Student ID"
// @Success 204 "added"
// @Router /groups/{id}/students/{studentId} [put]
func (h *GroupHandler) AddStudent(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group id"))
		return
	}
	studentID, err := idParam(c, "studentId")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student id"))
		return
	}

	if err := h.groups.AddStudent(c.Request.Context(), principalFromContext(c), studentID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveStudent godoc
// @Summary Remove a student from a group
// @Tags Groups
// @Produce json
// @Param id path int true "Group ID"
// @Param studentId path int true "Student ID"
// @Success 204 "removed"
// @Router /groups/{id}/students/{studentId} [delete]
func (h *GroupHandler) RemoveStudent(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group id"))
		return
	}
	studentID, err := idParam(c, "studentId")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student id"))
		return
	}

	if err := h.groups.RemoveStudent(c.Request.Context(), principalFromContext(c), studentID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetCompletion godoc
// @Summary Mark a task as completed for a group
// @Tags Groups
// @Produce json
// @Param id path int true "Group ID"
// @Param taskId path int true "Task ID"
// @Success 204 "marked"
// @Router /groups/{id}/completions/{taskId} [put]
func (h *GroupHandler) SetCompletion(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group id"))
		return
	}
	taskID, err := idParam(c, "taskId")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid task id"))
		return
	}

	if err := h.groups.SetCompletion(c.Request.Context(), principalFromContext(c), id, taskID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteCompletion godoc
// @Summary Withdraw a completed task from a group
// @Tags Groups
// @Produce json
// @Param id path int true "Group ID"
// @Param taskId path int true "Task ID"
// @Success 204 "withdrawn"
// @Router /groups/{id}/completions/{taskId} [delete]
func (h *GroupHandler) DeleteCompletion(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group id"))
		return
	}
	taskID, err := idParam(c, "taskId")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid task id"))
		return
	}

	if err := h.groups.DeleteCompletion(c.Request.Context(), principalFromContext(c), id, taskID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetElaboration godoc
// @Summary Record or update the elaboration state of a group
// @Tags Groups
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param experimentId path int true "Experiment ID"
// @Param payload body elaborationRequest true "State"
// @Success 204 "recorded"
// @Router /groups/{id}/elaborations/{experimentId} [put]
func (h *GroupHandler) SetElaboration(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group id"))
		return
	}
	experimentID, err := idParam(c, "experimentId")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid experiment id"))
		return
	}

	var req elaborationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid elaboration payload"))
		return
	}

	err = h.groups.SetElaboration(c.Request.Context(), principalFromContext(c), models.Elaboration{
		GroupID:        id,
		ExperimentID:   experimentID,
		ReworkRequired: req.ReworkRequired,
		Accepted:       req.Accepted,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteElaboration godoc
// @Summary Remove the elaboration record of a group
// @Tags Groups
// @Produce json
// @Param id path int true "Group ID"
// @Param experimentId path int true "Experiment ID"
// @Success 204 "removed"
// @Router /groups/{id}/elaborations/{experimentId} [delete]
func (h *GroupHandler) DeleteElaboration(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group id"))
		return
	}
	experimentID, err := idParam(c, "experimentId")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid experiment id"))
		return
	}

	if err := h.groups.DeleteElaboration(c.Request.Context(), principalFromContext(c), id, experimentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Search godoc
// @Summary Search groups of a year by member name or matrikel
// @Tags Groups
// @Produce json
// @Param year path int true "Year"
// @Param q query string true "Search terms"
// @Success 200 {object} response.Envelope
// @Router /years/{year}/groups/search [get]
func (h *GroupHandler) Search(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	groups, err := h.groups.Search(c.Request.Context(), principalFromContext(c), year, strings.TrimSpace(c.Query("q")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups)
}

package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hwlab/labtrack-api/internal/service"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
	"github.com/hwlab/labtrack-api/pkg/response"
)

// StudentHandler exposes the roster endpoints.
type StudentHandler struct {
	students *service.StudentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students *service.StudentService) *StudentHandler {
	return &StudentHandler{students: students}
}

type instructedRequest struct {
	Instructed bool `json:"instructed"`
}

// List godoc
// @Summary List or search students of a year
// @Tags Students
// @Produce json
// @Param year path int true "Year"
// @Param q query string false "Search terms"
// @Success 200 {object} response.Envelope
// @Router /years/{year}/students [get]
func (h *StudentHandler) List(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	principal := principalFromContext(c)

	if query != "" {
		students, err := h.students.Search(c.Request.Context(), principal, year, query)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, students)
		return
	}

	students, err := h.students.ListByYear(c.Request.Context(), principal, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students)
}

// Create godoc
// @Summary Register a student in a year
// @Tags Students
// @Accept json
// @Produce json
// @Param year path int true "Year"
// @Param payload body service.CreateStudentRequest true "Student"
// @Success 201 {object} response.Envelope
// @Router /years/{year}/students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	var req service.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload"))
		return
	}

	student, err := h.students.Create(c.Request.Context(), principalFromContext(c), year, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Delete godoc
// @Summary Delete a student not mapped into any group
// @Tags Students
// @Produce json
// @Param id path int true "Student ID"
// @Success 204 "deleted"
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student id"))
		return
	}

	if err := h.students.Delete(c.Request.Context(), principalFromContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetInstructed godoc
// @Summary Record the safety instruction state of a student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path int true "Student ID"
// @Param payload body instructedRequest true "State"
// @Success 204 "updated"
// @Router /students/{id}/instructed [put]
func (h *StudentHandler) SetInstructed(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student id"))
		return
	}

	var req instructedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}

	if err := h.students.SetInstructed(c.Request.Context(), principalFromContext(c), id, req.Instructed); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Import godoc
// @Summary Bulk-import students from CSV
// @Tags Students
// @Accept text/csv
// @Produce json
// @Param year path int true "Year"
// @Success 200 {object} response.Envelope
// @Router /years/{year}/students/import [post]
func (h *StudentHandler) Import(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	content, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read request body"))
		return
	}

	count, err := h.students.ImportCSV(c.Request.Context(), principalFromContext(c), year, content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"imported": count})
}

package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/academia-dev/academia-api/internal/models"
	"github.com/academia-dev/academia-api/internal/service"
	appErrors "github.com/academia-dev/academia-api/pkg/errors"
	"github.com/academia-dev/academia-api/pkg/response"
)

// AssignmentHandler exposes teaching assignment endpoints.
type AssignmentHandler struct {
	service *service.AssignmentService
}

// NewAssignmentHandler constructs an assignment handler.
func NewAssignmentHandler(svc *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// List godoc
// @Summary List assignments
// @Tags Assignments
// @Produce json
// @Param academic_year_id query string false "Filter by academic year"
// @Param period_id query string false "Filter by period"
// @Param teacher_id query string false "Filter by teacher"
// @Param group_id query string false "Filter by group"
// @Param subject_id query string false "Filter by subject"
// @Param time_slot_id query string false "Filter by time slot"
// @Param day_of_week query string false "Filter by day"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	var filter models.AssignmentFilter
	filter.AcademicYearID = c.Query("academic_year_id")
	filter.PeriodID = c.Query("period_id")
	filter.TeacherID = c.Query("teacher_id")
	filter.GroupID = c.Query("group_id")
	filter.SubjectID = c.Query("subject_id")
	filter.TimeSlotID = c.Query("time_slot_id")
	filter.DayOfWeek = models.DayOfWeek(strings.ToUpper(c.Query("day_of_week")))
	filter.Status = models.AssignmentStatus(strings.ToUpper(c.Query("status")))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	assignments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, pagination)
}

// Get godoc
// @Summary Get assignment detail
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body service.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope "Schedule conflict"
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req service.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Update godoc
// @Summary Update assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body service.UpdateAssignmentRequest true "Assignment patch"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope "Schedule conflict"
// @Router /assignments/{id} [patch]
func (h *AssignmentHandler) Update(c *gin.Context) {
	var req service.UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Conflicts godoc
// @Summary System-wide conflict report
// @Tags Assignments
// @Produce json
// @Param academic_year_id query string false "Scope to one academic year"
// @Success 200 {object} response.Envelope
// @Router /assignments/conflicts [get]
func (h *AssignmentHandler) Conflicts(c *gin.Context) {
	report, err := h.service.SystemConflicts(c.Request.Context(), c.Query("academic_year_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ExportConflicts godoc
// @Summary Export the conflict report
// @Tags Assignments
// @Produce text/csv
// @Produce application/pdf
// @Param academic_year_id query string false "Scope to one academic year"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /assignments/conflicts/export [get]
func (h *AssignmentHandler) ExportConflicts(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	data, contentType, err := h.service.ExportConflicts(c.Request.Context(), c.Query("academic_year_id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	ext := "csv"
	if contentType == "application/pdf" {
		ext = "pdf"
	}
	filename := fmt.Sprintf("assignment-conflicts-%s.%s", time.Now().UTC().Format("20060102"), ext)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

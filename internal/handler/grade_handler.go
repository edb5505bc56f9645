package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/internal/service"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
	"github.com/noah-isme/sma-gradebook-api/pkg/response"
)

type gradeService interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, *models.Pagination, error)
	Upsert(ctx context.Context, req service.UpsertGradeRequest) (*models.Grade, error)
	BulkUpsert(ctx context.Context, req service.BulkGradesRequest) (*service.BulkGradesResult, error)
	SubjectSheet(ctx context.Context, query service.SheetQuery) (*models.GradeSheet, error)
	RecalculateClass(ctx context.Context, req service.RecalculateRequest) (*service.RecalculateResult, error)
}

// GradeHandler exposes grade endpoints.
type GradeHandler struct {
	grades gradeService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades gradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// List godoc
// @Summary List grade entries
// @Tags Grades
// @Produce json
// @Param class_id query string false "Filter by class"
// @Param subject_id query string false "Filter by subject"
// @Param student_id query string false "Filter by student"
// @Param semester query string false "Semester (1 or 2)"
// @Param academic_year query string false "Academic year, e.g. 2024/2025"
// @Param page query int false "Page"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	filter := models.GradeFilter{
		ClassID:      c.Query("class_id"),
		SubjectID:    c.Query("subject_id"),
		StudentID:    c.Query("student_id"),
		Semester:     c.Query("semester"),
		AcademicYear: c.Query("academic_year"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", c.Query("limit"))); err == nil {
		filter.PageSize = size
	}
	grades, pagination, err := h.grades.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, pagination)
}

// Upsert godoc
// @Summary Save the scores of one student in one subject
// @Description Replaces every component score; omitted components are cleared. The final grade is computed once all six components are present.
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.UpsertGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Upsert(c *gin.Context) {
	var req service.UpsertGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grade, err := h.grades.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Bulk godoc
// @Summary Bulk save grades
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.BulkGradesRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /grades/bulk [put]
func (h *GradeHandler) Bulk(c *gin.Context) {
	var req service.BulkGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.grades.BulkUpsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if len(result.Failures) > 0 {
		status = http.StatusMultiStatus
	}
	response.JSON(c, status, result, nil)
}

// Sheet godoc
// @Summary Grade sheet of one subject in a class
// @Tags Grades
// @Produce json
// @Param class_id query string true "Class ID"
// @Param subject_id query string true "Subject ID"
// @Param semester query string false "Semester (1 or 2)"
// @Param academic_year query string false "Academic year"
// @Success 200 {object} response.Envelope
// @Router /grades/sheet [get]
func (h *GradeHandler) Sheet(c *gin.Context) {
	var query service.SheetQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	sheet, err := h.grades.SubjectSheet(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// Recalculate godoc
// @Summary Recalculate the stored final grades of a class
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.RecalculateRequest true "Scope payload"
// @Success 200 {object} response.Envelope
// @Router /grades/recalculate [post]
func (h *GradeHandler) Recalculate(c *gin.Context) {
	var req service.RecalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.grades.RecalculateClass(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-gradebook-api/internal/middleware"
	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/internal/service"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
	"github.com/noah-isme/sma-gradebook-api/pkg/response"
)

type recapService interface {
	Build(ctx context.Context, query service.RecapQuery) (*models.ClassRecap, bool, error)
	ExportPDF(ctx context.Context, query service.RecapQuery) ([]byte, string, error)
}

// RecapHandler serves ranked class recaps.
type RecapHandler struct {
	recaps recapService
}

// NewRecapHandler constructs RecapHandler.
func NewRecapHandler(recaps recapService) *RecapHandler {
	return &RecapHandler{recaps: recaps}
}

// Get godoc
// @Summary Ranked recap of a class
// @Description Averages every student's final grades, ranks the class and reports statistics and the grade distribution. Without a classId path segment the class is resolved from class_id or homeroom_teacher_id.
// @Tags Recap
// @Produce json
// @Param classId path string false "Class ID"
// @Param class_id query string false "Class ID"
// @Param homeroom_teacher_id query string false "Homeroom teacher ID"
// @Param semester query string false "Semester (1 or 2)"
// @Param academic_year query string false "Academic year"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /recap/{classId} [get]
// @Router /recap [get]
func (h *RecapHandler) Get(c *gin.Context) {
	query, ok := bindRecapQuery(c)
	if !ok {
		return
	}
	recap, cached, err := h.recaps.Build(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, recap, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download the class recap as PDF
// @Tags Recap
// @Produce application/pdf
// @Param classId path string true "Class ID"
// @Param semester query string false "Semester (1 or 2)"
// @Param academic_year query string false "Academic year"
// @Success 200 {file} file
// @Router /recap/{classId}/export [get]
func (h *RecapHandler) Export(c *gin.Context) {
	query, ok := bindRecapQuery(c)
	if !ok {
		return
	}
	payload, filename, err := h.recaps.ExportPDF(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "application/pdf", payload)
}

func bindRecapQuery(c *gin.Context) (service.RecapQuery, bool) {
	var query service.RecapQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return query, false
	}
	if id := c.Param("classId"); id != "" {
		query.ClassID = id
	}
	return query, true
}

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

type dashboardService interface {
	Summary(ctx context.Context, query service.DashboardQuery) (*models.DashboardSummary, bool, error)
}

// DashboardHandler serves the school-wide grading overview.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(svc dashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Summary godoc
// @Summary Grading dashboard
// @Description Record totals, grading completion per class and the distribution of final grades for one term.
// @Tags Dashboard
// @Produce json
// @Param semester query string false "Semester (1 or 2)"
// @Param academic_year query string false "Academic year"
// @Param homeroom_teacher_id query string false "Also list this teacher's homeroom classes"
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	var query service.DashboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	summary, cached, err := h.service.Summary(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

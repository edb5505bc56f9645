package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/middleware"
	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/internal/service"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type dashboardServiceMock struct {
	lastQuery service.DashboardQuery
	cached    bool
	err       error
}

func (m *dashboardServiceMock) Summary(_ context.Context, query service.DashboardQuery) (*models.DashboardSummary, bool, error) {
	m.lastQuery = query
	if m.err != nil {
		return nil, false, m.err
	}
	return &models.DashboardSummary{
		Term:           models.Term{Semester: "1", AcademicYear: "2024/2025"},
		Totals:         models.DashboardTotals{Students: 30, Classes: 1, Subjects: 2},
		GradedCount:    45,
		ExpectedCount:  60,
		CompletionRate: 75,
		Classes:        []models.DashboardClass{{ClassID: "class-7a", CompletionRate: 75}},
	}, m.cached, nil
}

func TestDashboardHandlerSummary(t *testing.T) {
	mock := &dashboardServiceMock{cached: true}
	router := newTestRouter()
	router.GET("/dashboard", NewDashboardHandler(mock).Summary)

	w := perform(router, http.MethodGet, "/dashboard?semester=2&homeroom_teacher_id=teacher-1", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, service.DashboardQuery{Semester: "2", HomeroomTeacherID: "teacher-1"}, mock.lastQuery)
	assert.Equal(t, "HIT", w.Header().Get(middleware.CacheHeader))

	env := decode(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
	var summary models.DashboardSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 30, summary.Totals.Students)
	assert.Equal(t, 75, summary.CompletionRate)
	require.Len(t, summary.Classes, 1)
}

func TestDashboardHandlerPropagatesValidationError(t *testing.T) {
	mock := &dashboardServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "invalid dashboard query")}
	router := newTestRouter()
	router.GET("/dashboard", NewDashboardHandler(mock).Summary)

	w := perform(router, http.MethodGet, "/dashboard?semester=3", nil)
	requireStatus(t, w, http.StatusBadRequest)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, w).Error.Code)
}

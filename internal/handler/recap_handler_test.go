package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/middleware"
	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/internal/service"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type recapServiceMock struct {
	lastQuery service.RecapQuery
	cached    bool
	err       error
}

func (m *recapServiceMock) Build(_ context.Context, query service.RecapQuery) (*models.ClassRecap, bool, error) {
	m.lastQuery = query
	if m.err != nil {
		return nil, false, m.err
	}
	rank := 1
	avg := 91.25
	return &models.ClassRecap{
		Class: models.Class{ID: query.ClassID, Name: "7A"},
		Term:  models.Term{Semester: "1", AcademicYear: "2024/2025"},
		Recap: models.RecapResult{Rows: []models.StudentRecapRow{{Student: models.Student{ID: "stu-1"}, Average: &avg, Rank: &rank, Predicate: "Sangat Baik"}}},
	}, m.cached, nil
}

func (m *recapServiceMock) ExportPDF(_ context.Context, query service.RecapQuery) ([]byte, string, error) {
	m.lastQuery = query
	if m.err != nil {
		return nil, "", m.err
	}
	return []byte("%PDF-1.3"), "rekap-7a-s1-2024-2025.pdf", nil
}

func recapRouter(mock *recapServiceMock) *gin.Engine {
	router := newTestRouter()
	h := NewRecapHandler(mock)
	router.GET("/recap", h.Get)
	router.GET("/recap/:classId", h.Get)
	router.GET("/recap/:classId/export", h.Export)
	return router
}

func TestRecapHandlerGet(t *testing.T) {
	mock := &recapServiceMock{cached: true}
	w := perform(recapRouter(mock), http.MethodGet, "/recap/class-7a?semester=2&class_id=ignored", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "class-7a", mock.lastQuery.ClassID)
	assert.Equal(t, "2", mock.lastQuery.Semester)
	assert.Equal(t, "HIT", w.Header().Get(middleware.CacheHeader))

	env := decode(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
	var recap models.ClassRecap
	require.NoError(t, json.Unmarshal(env.Data, &recap))
	require.Len(t, recap.Recap.Rows, 1)
	assert.Equal(t, 91.25, *recap.Recap.Rows[0].Average)
}

func TestRecapHandlerResolvesByHomeroomTeacher(t *testing.T) {
	mock := &recapServiceMock{}
	w := perform(recapRouter(mock), http.MethodGet, "/recap?homeroom_teacher_id=teacher-1", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "teacher-1", mock.lastQuery.HomeroomTeacherID)
	assert.Empty(t, mock.lastQuery.ClassID)
	assert.Equal(t, "MISS", w.Header().Get(middleware.CacheHeader))
}

func TestRecapHandlerNotFound(t *testing.T) {
	mock := &recapServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "class not found")}
	w := perform(recapRouter(mock), http.MethodGet, "/recap/ghost", nil)
	requireStatus(t, w, http.StatusNotFound)
	assert.Equal(t, "class not found", decode(t, w).Error.Message)
}

func TestRecapHandlerExport(t *testing.T) {
	mock := &recapServiceMock{}
	w := perform(recapRouter(mock), http.MethodGet, "/recap/class-7a/export?academic_year=2024/2025", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "rekap-7a-s1-2024-2025.pdf")
	assert.Equal(t, "%PDF-1.3", w.Body.String())
	assert.Equal(t, "class-7a", mock.lastQuery.ClassID)
}

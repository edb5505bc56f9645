package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/internal/service"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type gradeServiceMock struct {
	lastFilter  models.GradeFilter
	lastUpsert  service.UpsertGradeRequest
	lastBulk    service.BulkGradesRequest
	lastSheet   service.SheetQuery
	lastRecalc  service.RecalculateRequest
	upsertErr   error
	bulkResult  *service.BulkGradesResult
	recalcValue *service.RecalculateResult
}

func (m *gradeServiceMock) List(_ context.Context, filter models.GradeFilter) ([]models.Grade, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.Grade{{ID: "g1", StudentID: filter.StudentID}}, models.NewPagination(filter.Page, filter.PageSize, 41), nil
}

func (m *gradeServiceMock) Upsert(_ context.Context, req service.UpsertGradeRequest) (*models.Grade, error) {
	m.lastUpsert = req
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	final := 84.5
	return &models.Grade{ID: "g1", StudentID: req.StudentID, SubjectID: req.SubjectID, FinalGrade: &final}, nil
}

func (m *gradeServiceMock) BulkUpsert(_ context.Context, req service.BulkGradesRequest) (*service.BulkGradesResult, error) {
	m.lastBulk = req
	return m.bulkResult, nil
}

func (m *gradeServiceMock) SubjectSheet(_ context.Context, query service.SheetQuery) (*models.GradeSheet, error) {
	m.lastSheet = query
	return &models.GradeSheet{Rows: []models.GradeSheetRow{}}, nil
}

func (m *gradeServiceMock) RecalculateClass(_ context.Context, req service.RecalculateRequest) (*service.RecalculateResult, error) {
	m.lastRecalc = req
	return m.recalcValue, nil
}

func gradeRouter(mock *gradeServiceMock) *gin.Engine {
	router := newTestRouter()
	h := NewGradeHandler(mock)
	router.GET("/grades", h.List)
	router.POST("/grades", h.Upsert)
	router.PUT("/grades/bulk", h.Bulk)
	router.GET("/grades/sheet", h.Sheet)
	router.POST("/grades/recalculate", h.Recalculate)
	return router
}

func TestGradeHandlerUpsert(t *testing.T) {
	mock := &gradeServiceMock{}
	router := newTestRouter()
	router.POST("/grades", NewGradeHandler(mock).Upsert)

	w := perform(router, http.MethodPost, "/grades", map[string]interface{}{
		"student_id": "stu-1",
		"subject_id": "math",
		"midterm":    75,
		"final_exam": 95.5,
	})
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "stu-1", mock.lastUpsert.StudentID)
	require.NotNil(t, mock.lastUpsert.Midterm)
	assert.Equal(t, 95.5, *mock.lastUpsert.FinalExam)
	assert.Nil(t, mock.lastUpsert.Quiz1)

	var grade models.Grade
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &grade))
	assert.Equal(t, 84.5, *grade.FinalGrade)
}

func TestGradeHandlerUpsertErrors(t *testing.T) {
	mock := &gradeServiceMock{}
	router := newTestRouter()
	router.POST("/grades", NewGradeHandler(mock).Upsert)

	w := perform(router, http.MethodPost, "/grades", "{not json")
	requireStatus(t, w, http.StatusBadRequest)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, w).Error.Code)

	mock.upsertErr = appErrors.Clone(appErrors.ErrScoreOutOfRange, "Quiz1 must be between 0 and 100")
	w = perform(router, http.MethodPost, "/grades", map[string]interface{}{"student_id": "stu-1", "subject_id": "math", "quiz1": 120})
	requireStatus(t, w, http.StatusBadRequest)
	assert.Equal(t, appErrors.ErrScoreOutOfRange.Code, decode(t, w).Error.Code)
}

func TestGradeHandlerList(t *testing.T) {
	mock := &gradeServiceMock{}
	router := gradeRouter(mock)
	w := perform(router, http.MethodGet, "/grades?class_id=c1&student_id=stu-1&semester=2", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, models.GradeFilter{ClassID: "c1", StudentID: "stu-1", Semester: "2", Page: 1}, mock.lastFilter)

	w = perform(router, http.MethodGet, "/grades?class_id=c1&page=3&page_size=10", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, 3, mock.lastFilter.Page)
	assert.Equal(t, 10, mock.lastFilter.PageSize)
	var body struct {
		Pagination models.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.Pagination{Page: 3, PageSize: 10, TotalCount: 41}, body.Pagination)

	perform(router, http.MethodGet, "/grades?limit=5", nil)
	assert.Equal(t, 5, mock.lastFilter.PageSize)
}

func TestGradeHandlerBulkReportsPartialFailures(t *testing.T) {
	mock := &gradeServiceMock{bulkResult: &service.BulkGradesResult{SuccessCount: 2}}
	router := gradeRouter(mock)

	body := map[string]interface{}{
		"mode": "partialOnError",
		"grades": []map[string]interface{}{
			{"student_id": "stu-1", "subject_id": "math", "quiz1": 80},
			{"student_id": "stu-2", "subject_id": "math"},
		},
	}
	w := perform(router, http.MethodPut, "/grades/bulk", body)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, service.BulkModePartialOnError, mock.lastBulk.Mode)
	require.Len(t, mock.lastBulk.Grades, 2)
	assert.Equal(t, 80.0, *mock.lastBulk.Grades[0].Quiz1)

	mock.bulkResult = &service.BulkGradesResult{SuccessCount: 1, Failures: []service.BulkGradeFailure{{Index: 1, Reason: "student not found"}}}
	w = perform(router, http.MethodPut, "/grades/bulk", body)
	requireStatus(t, w, http.StatusMultiStatus)
}

func TestGradeHandlerSheetBindsQuery(t *testing.T) {
	mock := &gradeServiceMock{}
	w := perform(gradeRouter(mock), http.MethodGet, "/grades/sheet?class_id=c1&subject_id=math&academic_year=2023/2024", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, service.SheetQuery{ClassID: "c1", SubjectID: "math", AcademicYear: "2023/2024"}, mock.lastSheet)
}

func TestGradeHandlerRecalculate(t *testing.T) {
	mock := &gradeServiceMock{recalcValue: &service.RecalculateResult{ClassID: "c1", Scanned: 4, Updated: 1}}
	w := perform(gradeRouter(mock), http.MethodPost, "/grades/recalculate", map[string]string{"class_id": "c1", "semester": "2"})
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "2", mock.lastRecalc.Semester)

	var result service.RecalculateResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	assert.Equal(t, 1, result.Updated)
}

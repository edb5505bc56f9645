package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
	"github.com/noah-isme/sma-gradebook-api/pkg/export"
)

type captureRenderer struct {
	doc export.Document
	err error
}

func (r *captureRenderer) Render(doc export.Document) ([]byte, error) {
	r.doc = doc
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.3"), nil
}

func seedRecapGrades(fx gradebookFixture) {
	put := func(student, subject string, final *float64) {
		fx.grades.put(models.Grade{StudentID: student, SubjectID: subject, ClassID: "class-7a", Semester: "1", AcademicYear: "2024/2025", FinalGrade: final})
	}
	put("stu-1", "math", ptrFloat(80))
	put("stu-1", "ipa", ptrFloat(90))
	put("stu-2", "math", ptrFloat(95))
	put("stu-2", "ipa", nil)
	put("stu-3", "math", ptrFloat(85))
	put("stu-3", "ipa", ptrFloat(85))
}

func newTestRecapService(fx gradebookFixture, cache *CacheService, metrics *MetricsService, pdf documentRenderer) *RecapService {
	return NewRecapService(fx.classes, fx.students, fx.subjects, fx.grades, cache, metrics, pdf,
		RecapServiceConfig{DefaultTerm: defaultTestTerm, CacheTTL: time.Minute, SchoolName: "SMP Harapan"}, nil, nil)
}

func TestRecapServiceBuildRanksClass(t *testing.T) {
	fx := newGradebookFixture()
	seedRecapGrades(fx)
	svc := newTestRecapService(fx, nil, nil, nil)

	recap, cached, err := svc.Build(context.Background(), RecapQuery{ClassID: "class-7a"})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, defaultTestTerm, recap.Term)
	require.Len(t, recap.Subjects, 2)

	rows := recap.Recap.Rows
	require.Len(t, rows, 3)
	// stu-2 averages only the defined math grade.
	assert.Equal(t, "stu-2", rows[0].Student.ID)
	assert.Equal(t, 95.0, *rows[0].Average)
	assert.Equal(t, "stu-1", rows[1].Student.ID)
	assert.Equal(t, "stu-3", rows[2].Student.ID)
	assert.Equal(t, 2, *rows[2].Rank)
	assert.Equal(t, 2, *rows[1].Rank)
	assert.Equal(t, 3, recap.Recap.Statistics.GradedStudents)
	assert.Equal(t, 88.33, *recap.Recap.Statistics.Mean)
}

func TestRecapServiceResolvesHomeroomTeacher(t *testing.T) {
	fx := newGradebookFixture()
	svc := newTestRecapService(fx, nil, nil, nil)

	recap, _, err := svc.Build(context.Background(), RecapQuery{HomeroomTeacherID: "teacher-1", Semester: "2"})
	require.NoError(t, err)
	assert.Equal(t, "class-7a", recap.Class.ID)
	assert.Equal(t, "2", recap.Term.Semester)
	for _, row := range recap.Recap.Rows {
		assert.Nil(t, row.Rank)
	}

	_, _, err = svc.Build(context.Background(), RecapQuery{HomeroomTeacherID: "nobody"})
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)

	_, _, err = svc.Build(context.Background(), RecapQuery{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, _, err = svc.Build(context.Background(), RecapQuery{ClassID: "ghost"})
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestRecapServiceServesFromCache(t *testing.T) {
	fx := newGradebookFixture()
	seedRecapGrades(fx)
	metrics := NewMetricsService()
	store := newMemoryCache()
	cache := NewCacheService(store, metrics, time.Minute, nil, true)
	svc := newTestRecapService(fx, cache, metrics, nil)
	ctx := context.Background()

	first, cached, err := svc.Build(ctx, RecapQuery{ClassID: "class-7a"})
	require.NoError(t, err)
	assert.False(t, cached)
	loads := fx.grades.listCalls

	second, cached, err := svc.Build(ctx, RecapQuery{ClassID: "class-7a"})
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, loads, fx.grades.listCalls)
	assert.Equal(t, *first.Recap.Rows[0].Average, *second.Recap.Rows[0].Average)

	snapshot := metrics.Snapshot()
	assert.EqualValues(t, 2, snapshot.RecapBuilds)
	assert.EqualValues(t, 1, snapshot.CacheHits)
}

func TestRecapServiceSeesGradeWritesAfterInvalidation(t *testing.T) {
	fx := newGradebookFixture()
	seedRecapGrades(fx)
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, nil, true)
	recaps := newTestRecapService(fx, cache, nil, nil)
	grades := newTestGradeService(fx, cache, nil)
	ctx := context.Background()

	_, _, err := recaps.Build(ctx, RecapQuery{ClassID: "class-7a"})
	require.NoError(t, err)

	_, err = grades.Upsert(ctx, UpsertGradeRequest{StudentID: "stu-2", SubjectID: "ipa", ScoresPayload: completeScores(50, 50, 50, 50, 50, 50)})
	require.NoError(t, err)

	recap, cached, err := recaps.Build(ctx, RecapQuery{ClassID: "class-7a"})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, []string{"stu-1", "stu-3", "stu-2"}, []string{
		recap.Recap.Rows[0].Student.ID, recap.Recap.Rows[1].Student.ID, recap.Recap.Rows[2].Student.ID,
	})
	assert.Equal(t, 72.5, *recap.Recap.Rows[2].Average)
}

func TestRecapServiceExportPDF(t *testing.T) {
	fx := newGradebookFixture()
	seedRecapGrades(fx)
	renderer := &captureRenderer{}
	svc := newTestRecapService(fx, nil, nil, renderer)

	payload, filename, err := svc.ExportPDF(context.Background(), RecapQuery{ClassID: "class-7a"})
	require.NoError(t, err)
	assert.NotEmpty(t, payload)
	assert.Equal(t, "rekap-7a-s1-2024-2025.pdf", filename)

	doc := renderer.doc
	assert.Equal(t, "Rekap Nilai Kelas 7A", doc.Title)
	assert.Contains(t, doc.Subtitles, "SMP Harapan")
	assert.Equal(t, []string{"Rank", "NIS", "Name", "MTK", "IPA", "Average", "Predicate"}, doc.Table.Headers)
	require.Len(t, doc.Table.Rows, 3)
	assert.Equal(t, "1", doc.Table.Rows[0]["Rank"])
	assert.Equal(t, "-", doc.Table.Rows[0]["IPA"])
	assert.Equal(t, "95.00", doc.Table.Rows[0]["Average"])
	assert.Equal(t, "Sangat Baik", doc.Table.Rows[0]["Predicate"])

	renderer.err = errors.New("font missing")
	_, _, err = svc.ExportPDF(context.Background(), RecapQuery{ClassID: "class-7a"})
	assert.Equal(t, http.StatusInternalServerError, appErrors.FromError(err).Status)
}

// interleavedGrades runs during once, right after the first grade read of a
// recap build returns its rows.
type interleavedGrades struct {
	*gradeStore
	once   sync.Once
	during func()
}

func (g *interleavedGrades) ListByClass(ctx context.Context, classID string, term models.Term) ([]models.Grade, error) {
	rows, err := g.gradeStore.ListByClass(ctx, classID, term)
	g.once.Do(g.during)
	return rows, err
}

func TestRecapServiceDoesNotCacheSnapshotOverlappingGradeWrite(t *testing.T) {
	fx := newGradebookFixture()
	seedRecapGrades(fx)
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, nil, true)
	grades := newTestGradeService(fx, cache, nil)
	ctx := context.Background()

	reader := &interleavedGrades{gradeStore: fx.grades}
	reader.during = func() {
		_, err := grades.Upsert(ctx, UpsertGradeRequest{StudentID: "stu-1", SubjectID: "math", ScoresPayload: completeScores(95, 95, 95, 95, 95, 95)})
		require.NoError(t, err)
	}
	recaps := NewRecapService(fx.classes, fx.students, fx.subjects, reader, cache, nil, nil,
		RecapServiceConfig{DefaultTerm: defaultTestTerm, CacheTTL: time.Minute}, nil, nil)

	stale, cached, err := recaps.Build(ctx, RecapQuery{ClassID: "class-7a"})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 80.0, *findRow(t, stale, "stu-1").Grades["math"])

	fresh, cached, err := recaps.Build(ctx, RecapQuery{ClassID: "class-7a"})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 95.0, *findRow(t, fresh, "stu-1").Grades["math"])

	_, cached, err = recaps.Build(ctx, RecapQuery{ClassID: "class-7a"})
	require.NoError(t, err)
	assert.True(t, cached)
}

func findRow(t *testing.T, recap *models.ClassRecap, studentID string) models.StudentRecapRow {
	t.Helper()
	for _, row := range recap.Recap.Rows {
		if row.Student.ID == studentID {
			return row
		}
	}
	t.Fatalf("student %s not in recap", studentID)
	return models.StudentRecapRow{}
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

func newTestDashboardService(fx gradebookFixture, cache *CacheService) *DashboardService {
	return NewDashboardService(DashboardServiceParams{
		Classes:  fx.classes,
		Students: fx.students,
		Subjects: fx.subjects,
		Grades:   fx.grades,
		Cache:    cache,
		Config:   DashboardServiceConfig{DefaultTerm: defaultTestTerm},
	})
}

func seedDashboardGrades(fx gradebookFixture) {
	final := func(studentID, subjectID, classID string, v float64) models.Grade {
		return models.Grade{
			StudentID:    studentID,
			SubjectID:    subjectID,
			ClassID:      classID,
			Semester:     defaultTestTerm.Semester,
			AcademicYear: defaultTestTerm.AcademicYear,
			FinalGrade:   ptrFloat(v),
		}
	}
	fx.grades.put(final("stu-1", "math", "class-7a", 90))
	fx.grades.put(final("stu-1", "ipa", "class-7a", 80))
	fx.grades.put(final("stu-2", "math", "class-7a", 70))
	fx.grades.put(final("stu-9", "fis", "class-10", 60))
	// incomplete entry
	fx.grades.put(models.Grade{StudentID: "stu-3", SubjectID: "math", ClassID: "class-7a", Semester: "1", AcademicYear: "2024/2025"})
	// subject of another level
	fx.grades.put(final("stu-3", "fis", "class-7a", 100))
	// other term
	fx.grades.put(models.Grade{StudentID: "stu-3", SubjectID: "ipa", ClassID: "class-7a", Semester: "2", AcademicYear: "2024/2025", FinalGrade: ptrFloat(55)})
}

func TestDashboardServiceSummary(t *testing.T) {
	fx := newGradebookFixture()
	seedDashboardGrades(fx)
	svc := newTestDashboardService(fx, nil)

	summary, hit, err := svc.Summary(context.Background(), DashboardQuery{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, defaultTestTerm, summary.Term)
	assert.Equal(t, models.DashboardTotals{Students: 4, Classes: 2, Subjects: 3}, summary.Totals)

	// 3 students x 2 SMP subjects plus 1 student x 1 MA subject
	assert.Equal(t, 7, summary.ExpectedCount)
	assert.Equal(t, 4, summary.GradedCount)
	assert.Equal(t, 57, summary.CompletionRate)

	require.NotNil(t, summary.Statistics.Highest)
	assert.Equal(t, 90.0, *summary.Statistics.Highest)
	assert.Equal(t, 60.0, *summary.Statistics.Lowest)
	assert.Equal(t, 75.0, *summary.Statistics.Mean)
	assert.Equal(t, models.Distribution{Excellent: 1, VeryGood: 1, Good: 1, Fair: 1}, summary.Distribution)

	require.Len(t, summary.Classes, 2)
	smp := summary.Classes[0]
	assert.Equal(t, "class-7a", smp.ClassID)
	assert.Equal(t, 3, smp.StudentCount)
	assert.Equal(t, 3, smp.GradedCount)
	assert.Equal(t, 6, smp.ExpectedCount)
	assert.Equal(t, 50, smp.CompletionRate)
	assert.Equal(t, 100, summary.Classes[1].CompletionRate)
	assert.Nil(t, summary.HomeroomClasses)
}

func TestDashboardServiceSummaryIgnoresInactiveStudents(t *testing.T) {
	fx := newGradebookFixture()
	seedDashboardGrades(fx)
	fx.students.students[1].Active = false
	svc := newTestDashboardService(fx, nil)

	summary, _, err := svc.Summary(context.Background(), DashboardQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Totals.Students)
	assert.Equal(t, 2, summary.Classes[0].GradedCount)
	assert.Equal(t, 4, summary.Classes[0].ExpectedCount)
}

func TestDashboardServiceSummaryCachesPerTerm(t *testing.T) {
	fx := newGradebookFixture()
	seedDashboardGrades(fx)
	store := newMemoryCache()
	cache := NewCacheService(store, nil, 0, nil, true)
	svc := newTestDashboardService(fx, cache)
	ctx := context.Background()

	first, hit, err := svc.Summary(ctx, DashboardQuery{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, store.has(DashboardCacheKey(defaultTestTerm)))
	calls := fx.grades.listCalls

	second, hit, err := svc.Summary(ctx, DashboardQuery{HomeroomTeacherID: "teacher-1"})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, calls, fx.grades.listCalls)
	assert.Equal(t, first.GradedCount, second.GradedCount)
	require.Len(t, second.HomeroomClasses, 1)
	assert.Equal(t, "class-7a", second.HomeroomClasses[0].ClassID)

	// the cached entry holds no homeroom selection
	third, _, err := svc.Summary(ctx, DashboardQuery{HomeroomTeacherID: "teacher-9"})
	require.NoError(t, err)
	assert.Empty(t, third.HomeroomClasses)

	other, hit, err := svc.Summary(ctx, DashboardQuery{Semester: "2"})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, other.GradedCount)
}

func TestDashboardServiceRejectsInvalidTerm(t *testing.T) {
	svc := newTestDashboardService(newGradebookFixture(), nil)
	_, _, err := svc.Summary(context.Background(), DashboardQuery{Semester: "3"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

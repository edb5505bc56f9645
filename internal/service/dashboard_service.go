package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/grading"
	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type subjectLister interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error)
}

// DashboardQuery selects the term of the dashboard. A homeroom teacher id
// adds that teacher's classes to the response.
type DashboardQuery struct {
	HomeroomTeacherID string `form:"homeroom_teacher_id"`
	Semester          string `form:"semester" validate:"omitempty,oneof=1 2"`
	AcademicYear      string `form:"academic_year" validate:"omitempty,len=9"`
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	DefaultTerm models.Term
	CacheTTL    time.Duration
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Classes   classReader
	Students  studentReader
	Subjects  subjectLister
	Grades    recapGradeReader
	Cache     *CacheService
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    DashboardServiceConfig
}

// DashboardService summarises grading progress across every class. Summaries
// are cached for a short TTL and are not invalidated by grade writes.
type DashboardService struct {
	classes   classReader
	students  studentReader
	subjects  subjectLister
	grades    recapGradeReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		classes:   params.Classes,
		students:  params.Students,
		subjects:  params.Subjects,
		grades:    params.Grades,
		cache:     params.Cache,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// DashboardCacheKey is the cache key of the school-wide summary of a term.
func DashboardCacheKey(term models.Term) string {
	return fmt.Sprintf("dashboard:%s:%s", term.Semester, term.AcademicYear)
}

// Summary returns the grading overview of a term and whether it came from cache.
func (s *DashboardService) Summary(ctx context.Context, query DashboardQuery) (*models.DashboardSummary, bool, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, false, validationError(err, "invalid dashboard query")
	}
	term := resolveTerm(query.Semester, query.AcademicYear, s.cfg.DefaultTerm)
	key := DashboardCacheKey(term)

	summary, hit := s.tryCache(ctx, key)
	if !hit {
		composed, err := s.compose(ctx, term)
		if err != nil {
			return nil, false, err
		}
		s.cache.Set(ctx, key, composed, s.cfg.CacheTTL)
		summary = composed
	}

	if teacher := strings.TrimSpace(query.HomeroomTeacherID); teacher != "" {
		summary.HomeroomClasses = homeroomClasses(summary.Classes, teacher)
	}
	return summary, hit, nil
}

func (s *DashboardService) tryCache(ctx context.Context, key string) (*models.DashboardSummary, bool) {
	var cached models.DashboardSummary
	if !s.cache.Get(ctx, key, &cached) {
		return nil, false
	}
	return &cached, true
}

func (s *DashboardService) compose(ctx context.Context, term models.Term) (*models.DashboardSummary, error) {
	classes, err := s.classes.List(ctx, models.ClassFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	subjects, err := s.subjects.List(ctx, models.SubjectFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	byLevel := map[models.Level]map[string]struct{}{}
	for _, subject := range subjects {
		if byLevel[subject.Level] == nil {
			byLevel[subject.Level] = map[string]struct{}{}
		}
		byLevel[subject.Level][subject.ID] = struct{}{}
	}

	summary := &models.DashboardSummary{
		Term:    term,
		Totals:  models.DashboardTotals{Classes: len(classes), Subjects: len(subjects)},
		Classes: make([]models.DashboardClass, 0, len(classes)),
	}
	var finals []float64
	for _, class := range classes {
		line, classFinals, err := s.classLine(ctx, class, byLevel[class.Level], term)
		if err != nil {
			return nil, err
		}
		summary.Classes = append(summary.Classes, line)
		summary.Totals.Students += line.StudentCount
		summary.GradedCount += line.GradedCount
		summary.ExpectedCount += line.ExpectedCount
		finals = append(finals, classFinals...)
	}

	summary.Statistics, summary.Distribution = grading.Summarize(finals, summary.ExpectedCount)
	summary.CompletionRate = summary.Statistics.CompletionPercentage

	s.logger.Debug("dashboard composed",
		zap.String("semester", term.Semester),
		zap.String("academic_year", term.AcademicYear),
		zap.Int("classes", len(classes)),
		zap.Int("graded", summary.GradedCount),
	)
	return summary, nil
}

// classLine counts the final grades of a class roster in the subjects of its
// level. Grades of inactive students or other levels' subjects are ignored.
func (s *DashboardService) classLine(ctx context.Context, class models.Class, subjects map[string]struct{}, term models.Term) (models.DashboardClass, []float64, error) {
	line := models.DashboardClass{
		ClassID:           class.ID,
		Name:              class.Name,
		Level:             class.Level,
		HomeroomTeacherID: class.HomeroomTeacherID,
	}
	students, err := s.students.ListByClass(ctx, class.ID)
	if err != nil {
		return line, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	grades, err := s.grades.ListByClass(ctx, class.ID, term)
	if err != nil {
		return line, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	roster := make(map[string]struct{}, len(students))
	for _, student := range students {
		roster[student.ID] = struct{}{}
	}
	var finals []float64
	for _, grade := range grades {
		if grade.FinalGrade == nil {
			continue
		}
		if _, ok := roster[grade.StudentID]; !ok {
			continue
		}
		if _, ok := subjects[grade.SubjectID]; !ok {
			continue
		}
		finals = append(finals, *grade.FinalGrade)
	}

	line.StudentCount = len(students)
	line.GradedCount = len(finals)
	line.ExpectedCount = len(students) * len(subjects)
	stats, _ := grading.Summarize(finals, line.ExpectedCount)
	line.CompletionRate = stats.CompletionPercentage
	return line, finals, nil
}

func homeroomClasses(classes []models.DashboardClass, teacherID string) []models.DashboardClass {
	result := []models.DashboardClass{}
	for _, class := range classes {
		if class.HomeroomTeacherID != nil && *class.HomeroomTeacherID == teacherID {
			result = append(result, class)
		}
	}
	return result
}

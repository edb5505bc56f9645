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
	"github.com/noah-isme/sma-gradebook-api/pkg/export"
)

type recapGradeReader interface {
	ListByClass(ctx context.Context, classID string, term models.Term) ([]models.Grade, error)
}

type documentRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// RecapQuery selects a class recap. The class is identified directly or via
// its homeroom teacher.
type RecapQuery struct {
	ClassID           string `form:"class_id"`
	HomeroomTeacherID string `form:"homeroom_teacher_id"`
	Semester          string `form:"semester" validate:"omitempty,oneof=1 2"`
	AcademicYear      string `form:"academic_year" validate:"omitempty,len=9"`
}

// RecapServiceConfig tunes recap building.
type RecapServiceConfig struct {
	DefaultTerm models.Term
	CacheTTL    time.Duration
	SchoolName  string
}

// RecapService assembles ranked class recaps from stored final grades.
type RecapService struct {
	classes   classReader
	students  studentReader
	subjects  subjectReader
	grades    recapGradeReader
	cache     *CacheService
	metrics   *MetricsService
	pdf       documentRenderer
	cfg       RecapServiceConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRecapService constructs RecapService.
func NewRecapService(classes classReader, students studentReader, subjects subjectReader, grades recapGradeReader, cache *CacheService, metrics *MetricsService, pdf documentRenderer, cfg RecapServiceConfig, validate *validator.Validate, logger *zap.Logger) *RecapService {
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecapService{
		classes:   classes,
		students:  students,
		subjects:  subjects,
		grades:    grades,
		cache:     cache,
		metrics:   metrics,
		pdf:       pdf,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
	}
}

// Build returns the recap of a class for one term and whether it was served
// from cache.
func (s *RecapService) Build(ctx context.Context, query RecapQuery) (*models.ClassRecap, bool, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, false, validationError(err, "invalid recap query")
	}
	start := time.Now()
	class, err := s.resolveClass(ctx, query)
	if err != nil {
		return nil, false, err
	}
	term := resolveTerm(query.Semester, query.AcademicYear, s.cfg.DefaultTerm)

	key := RecapCacheKey(class.ID, term)
	var cached models.ClassRecap
	if s.cache.Get(ctx, key, &cached) {
		s.metrics.ObserveRecapBuild(true, len(cached.Recap.Rows), time.Since(start))
		return &cached, true, nil
	}

	version, versioned := s.cache.RecapVersion(ctx, class.ID)
	students, err := s.students.ListByClass(ctx, class.ID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	subjects, err := s.subjects.ListByLevel(ctx, class.Level)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	queryStart := time.Now()
	grades, err := s.grades.ListByClass(ctx, class.ID, term)
	s.metrics.ObserveDBQuery("grade_list_class", time.Since(queryStart))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	table := make(grading.GradeTable, len(grades))
	for _, grade := range grades {
		table.Set(grade.StudentID, grade.SubjectID, grade.FinalGrade)
	}

	recap := &models.ClassRecap{
		Class:    *class,
		Term:     term,
		Subjects: subjects,
		Recap:    grading.BuildRecap(students, subjects, table),
	}
	if versioned && !s.cache.StoreRecap(ctx, class.ID, version, key, recap, s.cfg.CacheTTL) {
		s.logger.Debug("recap invalidated while building, not cached", zap.String("class_id", class.ID))
	}
	s.metrics.ObserveRecapBuild(false, len(students), time.Since(start))

	s.logger.Debug("recap built",
		zap.String("class_id", class.ID),
		zap.Int("students", len(students)),
		zap.Int("subjects", len(subjects)),
		zap.Int("grades", len(grades)),
	)
	return recap, false, nil
}

// ExportPDF renders the recap of a class as a printable PDF and returns the
// payload with a suggested file name.
func (s *RecapService) ExportPDF(ctx context.Context, query RecapQuery) ([]byte, string, error) {
	recap, _, err := s.Build(ctx, query)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.pdf.Render(recapDocument(recap, s.cfg.SchoolName))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render recap")
	}
	return payload, recapFilename(recap), nil
}

func (s *RecapService) resolveClass(ctx context.Context, query RecapQuery) (*models.Class, error) {
	if id := strings.TrimSpace(query.ClassID); id != "" {
		class, err := s.classes.FindByID(ctx, id)
		if err != nil {
			return nil, lookupError(err, "class not found", "failed to load class")
		}
		return class, nil
	}
	teacherID := strings.TrimSpace(query.HomeroomTeacherID)
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class_id or homeroom_teacher_id is required")
	}
	classes, err := s.classes.List(ctx, models.ClassFilter{HomeroomTeacherID: teacherID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes")
	}
	if len(classes) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no class assigned to homeroom teacher")
	}
	return &classes[0], nil
}

func recapDocument(recap *models.ClassRecap, schoolName string) export.Document {
	headers := []string{"Rank", "NIS", "Name"}
	for _, subject := range recap.Subjects {
		headers = append(headers, subject.Code)
	}
	headers = append(headers, "Average", "Predicate")

	rows := make([]map[string]string, 0, len(recap.Recap.Rows))
	for _, row := range recap.Recap.Rows {
		line := map[string]string{
			"Rank":      grading.FormatRank(row.Rank),
			"NIS":       row.Student.NIS,
			"Name":      row.Student.FullName,
			"Average":   grading.FormatScore(row.Average),
			"Predicate": row.Predicate,
		}
		for _, subject := range recap.Subjects {
			line[subject.Code] = grading.FormatScore(row.Grades[subject.ID])
		}
		rows = append(rows, line)
	}

	stats := recap.Recap.Statistics
	dist := recap.Recap.Distribution
	return export.Document{
		Title: "Rekap Nilai Kelas " + recap.Class.Name,
		Subtitles: []string{
			schoolName,
			fmt.Sprintf("Semester %s - Tahun Ajaran %s", recap.Term.Semester, recap.Term.AcademicYear),
		},
		Table: export.Dataset{Headers: headers, Rows: rows},
		Footer: [][2]string{
			{"Highest", grading.FormatScore(stats.Highest)},
			{"Lowest", grading.FormatScore(stats.Lowest)},
			{"Mean", grading.FormatScore(stats.Mean)},
			{"Graded", fmt.Sprintf("%d / %d (%d%%)", stats.GradedStudents, stats.TotalStudents, stats.CompletionPercentage)},
			{"Distribution", fmt.Sprintf("A %d, B %d, C %d, D %d, E %d", dist.Excellent, dist.VeryGood, dist.Good, dist.Fair, dist.Poor)},
		},
		Landscape: len(recap.Subjects) > 6,
	}
}

func recapFilename(recap *models.ClassRecap) string {
	name := strings.ToLower(strings.Join(strings.Fields(recap.Class.Name), "-"))
	year := strings.ReplaceAll(recap.Term.AcademicYear, "/", "-")
	return fmt.Sprintf("rekap-%s-s%s-%s.pdf", name, recap.Term.Semester, year)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/grading"
	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

const (
	BulkModeAtomic         = "atomic"
	BulkModePartialOnError = "partialOnError"
)

type gradeRepository interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, int, error)
	ListByClass(ctx context.Context, classID string, term models.Term) ([]models.Grade, error)
	ListByClassSubject(ctx context.Context, classID, subjectID string, term models.Term) ([]models.Grade, error)
	Upsert(ctx context.Context, grade *models.Grade) error
	BulkUpsert(ctx context.Context, grades []*models.Grade) error
}

// recapWarmer schedules a rebuild of a class recap whose cache entry was dropped.
type recapWarmer interface {
	Warm(classID string, term models.Term)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListByClass(ctx context.Context, classID string) ([]models.Student, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ListByLevel(ctx context.Context, level models.Level) ([]models.Subject, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, error)
}

// ScoresPayload carries the six component scores of a grade entry. Omitted
// components are stored as unset.
type ScoresPayload struct {
	Assignment1 *float64 `json:"assignment1" validate:"omitempty,min=0,max=100"`
	Assignment2 *float64 `json:"assignment2" validate:"omitempty,min=0,max=100"`
	Quiz1       *float64 `json:"quiz1" validate:"omitempty,min=0,max=100"`
	Quiz2       *float64 `json:"quiz2" validate:"omitempty,min=0,max=100"`
	Midterm     *float64 `json:"midterm" validate:"omitempty,min=0,max=100"`
	FinalExam   *float64 `json:"final_exam" validate:"omitempty,min=0,max=100"`
}

// ScoreSet converts the payload into the stored score set.
func (p ScoresPayload) ScoreSet() models.ScoreSet {
	return models.ScoreSet{
		Assignment1: p.Assignment1,
		Assignment2: p.Assignment2,
		Quiz1:       p.Quiz1,
		Quiz2:       p.Quiz2,
		Midterm:     p.Midterm,
		FinalExam:   p.FinalExam,
	}
}

// precisionError reports the first score with more decimal places than the
// grades table stores.
func (p ScoresPayload) precisionError() error {
	scores := p.ScoreSet()
	for _, component := range models.ScoreComponents {
		if v := scores.Value(component); v != nil && !grading.WithinPrecision(*v) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must have at most %d decimal places", component, grading.ScoreDecimals))
		}
	}
	return nil
}

// UpsertGradeRequest represents a single grade entry payload.
type UpsertGradeRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	SubjectID    string `json:"subject_id" validate:"required"`
	Semester     string `json:"semester" validate:"omitempty,oneof=1 2"`
	AcademicYear string `json:"academic_year" validate:"omitempty,len=9"`
	ScoresPayload
}

// BulkGradesRequest saves many grade entries at once.
type BulkGradesRequest struct {
	Mode   string               `json:"mode" validate:"omitempty,oneof=atomic partialOnError"`
	Grades []UpsertGradeRequest `json:"grades" validate:"required,min=1"`
}

// BulkGradesResult summarises a bulk save.
type BulkGradesResult struct {
	SuccessCount int                `json:"success_count"`
	Grades       []models.Grade     `json:"grades"`
	Failures     []BulkGradeFailure `json:"failures,omitempty"`
}

// BulkGradeFailure captures a rejected entry of a partialOnError bulk save.
type BulkGradeFailure struct {
	Index     int    `json:"index"`
	StudentID string `json:"student_id"`
	SubjectID string `json:"subject_id"`
	Reason    string `json:"reason"`
}

// SheetQuery selects the grade sheet of one subject in one class.
type SheetQuery struct {
	ClassID      string `form:"class_id" validate:"required"`
	SubjectID    string `form:"subject_id" validate:"required"`
	Semester     string `form:"semester" validate:"omitempty,oneof=1 2"`
	AcademicYear string `form:"academic_year" validate:"omitempty,len=9"`
}

// RecalculateRequest selects the class whose final grades are recomputed.
type RecalculateRequest struct {
	ClassID      string `json:"class_id" validate:"required"`
	Semester     string `json:"semester" validate:"omitempty,oneof=1 2"`
	AcademicYear string `json:"academic_year" validate:"omitempty,len=9"`
}

// RecalculateResult reports how many stored final grades changed.
type RecalculateResult struct {
	ClassID string      `json:"class_id"`
	Term    models.Term `json:"term"`
	Scanned int         `json:"scanned"`
	Updated int         `json:"updated"`
}

// GradeServiceConfig tunes grade entry.
type GradeServiceConfig struct {
	DefaultTerm    models.Term
	MaxBulkEntries int
}

// GradeService orchestrates grade entry and final grade calculation.
type GradeService struct {
	grades    gradeRepository
	students  studentReader
	subjects  subjectReader
	classes   classReader
	cache     *CacheService
	metrics   *MetricsService
	cfg       GradeServiceConfig
	validator *validator.Validate
	logger    *zap.Logger
	warmer    recapWarmer
}

// NewGradeService constructs GradeService.
func NewGradeService(grades gradeRepository, students studentReader, subjects subjectReader, classes classReader, cache *CacheService, metrics *MetricsService, cfg GradeServiceConfig, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBulkEntries <= 0 {
		cfg.MaxBulkEntries = 500
	}
	return &GradeService{
		grades:    grades,
		students:  students,
		subjects:  subjects,
		classes:   classes,
		cache:     cache,
		metrics:   metrics,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
	}
}

// ComputeFinal runs the calculator and records its outcome.
func (s *GradeService) ComputeFinal(scores models.ScoreSet) *float64 {
	final := grading.ComputeFinalGrade(scores)
	s.metrics.RecordFinalGrade(final != nil)
	return final
}

// List returns a page of grade entries. Semester and academic year are not
// defaulted so callers can list across terms.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, *models.Pagination, error) {
	grades, total, err := s.grades.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Upsert stores the raw scores of one student in one subject and the final
// grade computed from them.
func (s *GradeService) Upsert(ctx context.Context, req UpsertGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid grade payload")
	}
	grade, err := s.prepare(ctx, req, newGradeLookups())
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = s.grades.Upsert(ctx, grade)
	s.metrics.ObserveDBQuery("grade_upsert", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade")
	}
	s.metrics.RecordGradeWrites("single", 1)
	s.refreshRecaps(ctx, scopeOf(grade))

	s.logger.Debug("grade saved",
		zap.String("student_id", grade.StudentID),
		zap.String("subject_id", grade.SubjectID),
		zap.Bool("complete", grade.FinalGrade != nil),
	)
	return grade, nil
}

// BulkUpsert saves many grade entries. In atomic mode (the default) any
// invalid entry or write failure aborts the whole batch; in partialOnError
// mode failing entries are reported and the rest are saved.
func (s *GradeService) BulkUpsert(ctx context.Context, req BulkGradesRequest) (*BulkGradesResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid bulk payload")
	}
	if len(req.Grades) > s.cfg.MaxBulkEntries {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d grades per request", s.cfg.MaxBulkEntries))
	}
	if req.Mode == BulkModePartialOnError {
		return s.bulkPartial(ctx, req.Grades), nil
	}
	return s.bulkAtomic(ctx, req.Grades)
}

func (s *GradeService) bulkAtomic(ctx context.Context, items []UpsertGradeRequest) (*BulkGradesResult, error) {
	lookups := newGradeLookups()
	prepared := make([]*models.Grade, 0, len(items))
	for i, item := range items {
		grade, err := s.prepareItem(ctx, item, lookups)
		if err != nil {
			return nil, prefixError(err, fmt.Sprintf("grade %d", i))
		}
		prepared = append(prepared, grade)
	}

	start := time.Now()
	err := s.grades.BulkUpsert(ctx, prepared)
	s.metrics.ObserveDBQuery("grade_bulk_upsert", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grades")
	}
	s.metrics.RecordGradeWrites(BulkModeAtomic, len(prepared))

	result := &BulkGradesResult{SuccessCount: len(prepared), Grades: make([]models.Grade, 0, len(prepared))}
	scopes := make([]recapScope, 0, len(prepared))
	for _, grade := range prepared {
		result.Grades = append(result.Grades, *grade)
		scopes = append(scopes, scopeOf(grade))
	}
	s.refreshRecaps(ctx, scopes...)
	return result, nil
}

func (s *GradeService) bulkPartial(ctx context.Context, items []UpsertGradeRequest) *BulkGradesResult {
	lookups := newGradeLookups()
	result := &BulkGradesResult{Grades: []models.Grade{}}
	var scopes []recapScope
	fail := func(i int, item UpsertGradeRequest, err error) {
		result.Failures = append(result.Failures, BulkGradeFailure{Index: i, StudentID: item.StudentID, SubjectID: item.SubjectID, Reason: reason(err)})
	}
	for i, item := range items {
		grade, err := s.prepareItem(ctx, item, lookups)
		if err != nil {
			fail(i, item, err)
			continue
		}
		start := time.Now()
		err = s.grades.Upsert(ctx, grade)
		s.metrics.ObserveDBQuery("grade_upsert", time.Since(start))
		if err != nil {
			s.logger.Warn("bulk grade row failed", zap.Int("index", i), zap.Error(err))
			fail(i, item, appErrors.Clone(appErrors.ErrInternal, "failed to save grade"))
			continue
		}
		result.SuccessCount++
		result.Grades = append(result.Grades, *grade)
		scopes = append(scopes, scopeOf(grade))
	}
	s.metrics.RecordGradeWrites(BulkModePartialOnError, result.SuccessCount)
	s.refreshRecaps(ctx, scopes...)
	return result
}

func (s *GradeService) prepareItem(ctx context.Context, item UpsertGradeRequest, lookups *gradeLookups) (*models.Grade, error) {
	if err := s.validator.Struct(item); err != nil {
		return nil, validationError(err, "invalid grade payload")
	}
	return s.prepare(ctx, item, lookups)
}

// prepare resolves the student, subject and class of a request and builds the
// grade row with its computed final grade.
func (s *GradeService) prepare(ctx context.Context, req UpsertGradeRequest, lookups *gradeLookups) (*models.Grade, error) {
	if err := req.precisionError(); err != nil {
		return nil, err
	}
	student, err := lookups.student(ctx, s.students, req.StudentID)
	if err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}
	subject, err := lookups.subject(ctx, s.subjects, req.SubjectID)
	if err != nil {
		return nil, lookupError(err, "subject not found", "failed to load subject")
	}
	class, err := lookups.class(ctx, s.classes, student.ClassID)
	if err != nil {
		return nil, lookupError(err, "class of student not found", "failed to load class")
	}
	if subject.Level != class.Level {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %s is not taught at level %s", subject.Code, class.Level))
	}

	term := resolveTerm(req.Semester, req.AcademicYear, s.cfg.DefaultTerm)
	grade := &models.Grade{
		StudentID:    student.ID,
		SubjectID:    subject.ID,
		ClassID:      class.ID,
		Semester:     term.Semester,
		AcademicYear: term.AcademicYear,
		ScoreSet:     req.ScoreSet(),
	}
	grade.FinalGrade = s.ComputeFinal(grade.ScoreSet)
	return grade, nil
}

// SubjectSheet returns every student of a class with their scores in one
// subject, plus statistics over the subject's final grades.
func (s *GradeService) SubjectSheet(ctx context.Context, query SheetQuery) (*models.GradeSheet, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, validationError(err, "invalid sheet query")
	}
	class, err := s.classes.FindByID(ctx, query.ClassID)
	if err != nil {
		return nil, lookupError(err, "class not found", "failed to load class")
	}
	subject, err := s.subjects.FindByID(ctx, query.SubjectID)
	if err != nil {
		return nil, lookupError(err, "subject not found", "failed to load subject")
	}
	if subject.Level != class.Level {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %s is not taught at level %s", subject.Code, class.Level))
	}
	term := resolveTerm(query.Semester, query.AcademicYear, s.cfg.DefaultTerm)

	students, err := s.students.ListByClass(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	grades, err := s.grades.ListByClassSubject(ctx, class.ID, subject.ID, term)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	byStudent := make(map[string]models.Grade, len(grades))
	for _, grade := range grades {
		byStudent[grade.StudentID] = grade
	}

	rows := make([]models.GradeSheetRow, 0, len(students))
	finals := make([]float64, 0, len(students))
	for _, student := range students {
		row := models.GradeSheetRow{Student: student}
		if grade, ok := byStudent[student.ID]; ok {
			id := grade.ID
			row.GradeID = &id
			row.Scores = grade.ScoreSet
			row.FilledComponents = grade.Filled()
			row.FinalGrade = grade.FinalGrade
		}
		if row.FinalGrade != nil {
			finals = append(finals, *row.FinalGrade)
		}
		row.Predicate = grading.Predicate(row.FinalGrade)
		rows = append(rows, row)
	}
	stats, distribution := grading.Summarize(finals, len(students))

	return &models.GradeSheet{
		Class:        *class,
		Subject:      *subject,
		Term:         term,
		Rows:         rows,
		Statistics:   stats,
		Distribution: distribution,
	}, nil
}

// RecalculateClass recomputes the final grade of every stored grade row of a
// class from its raw scores and persists the ones that changed.
func (s *GradeService) RecalculateClass(ctx context.Context, req RecalculateRequest) (*RecalculateResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid recalculation payload")
	}
	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		return nil, lookupError(err, "class not found", "failed to load class")
	}
	term := resolveTerm(req.Semester, req.AcademicYear, s.cfg.DefaultTerm)

	grades, err := s.grades.ListByClass(ctx, class.ID, term)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	changed := make([]*models.Grade, 0)
	for i := range grades {
		final := s.ComputeFinal(grades[i].ScoreSet)
		if sameGrade(final, grades[i].FinalGrade) {
			continue
		}
		grades[i].FinalGrade = final
		changed = append(changed, &grades[i])
	}
	if len(changed) > 0 {
		if err := s.grades.BulkUpsert(ctx, changed); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store recalculated grades")
		}
		s.metrics.RecordGradeWrites("recalculate", len(changed))
		s.refreshRecaps(ctx, recapScope{classID: class.ID, term: term})
	}

	s.logger.Info("class grades recalculated",
		zap.String("class_id", class.ID),
		zap.String("semester", term.Semester),
		zap.String("academic_year", term.AcademicYear),
		zap.Int("updated", len(changed)),
	)
	return &RecalculateResult{ClassID: class.ID, Term: term, Scanned: len(grades), Updated: len(changed)}, nil
}

// SetRecapWarmer registers a warmer that rebuilds recaps after grade writes.
func (s *GradeService) SetRecapWarmer(w recapWarmer) {
	s.warmer = w
}

// recapScope identifies the cached recap a grade write affects.
type recapScope struct {
	classID string
	term    models.Term
}

func scopeOf(grade *models.Grade) recapScope {
	return recapScope{classID: grade.ClassID, term: grade.Term()}
}

// refreshRecaps drops the cached recaps of every touched class and, when a
// warmer is registered, schedules one rebuild per class and term.
func (s *GradeService) refreshRecaps(ctx context.Context, scopes ...recapScope) {
	classIDs := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		classIDs = append(classIDs, scope.classID)
	}
	s.cache.InvalidateClassRecaps(ctx, classIDs...)
	if s.warmer == nil {
		return
	}
	seen := make(map[recapScope]struct{}, len(scopes))
	for _, scope := range scopes {
		if _, ok := seen[scope]; ok {
			continue
		}
		seen[scope] = struct{}{}
		s.warmer.Warm(scope.classID, scope.term)
	}
}

// gradeLookups memoises reference data while a batch is prepared.
type gradeLookups struct {
	students map[string]*models.Student
	subjects map[string]*models.Subject
	classes  map[string]*models.Class
}

func newGradeLookups() *gradeLookups {
	return &gradeLookups{
		students: map[string]*models.Student{},
		subjects: map[string]*models.Subject{},
		classes:  map[string]*models.Class{},
	}
}

func (l *gradeLookups) student(ctx context.Context, repo studentReader, id string) (*models.Student, error) {
	if v, ok := l.students[id]; ok {
		return v, nil
	}
	v, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	l.students[id] = v
	return v, nil
}

func (l *gradeLookups) subject(ctx context.Context, repo subjectReader, id string) (*models.Subject, error) {
	if v, ok := l.subjects[id]; ok {
		return v, nil
	}
	v, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	l.subjects[id] = v
	return v, nil
}

func (l *gradeLookups) class(ctx context.Context, repo classReader, id string) (*models.Class, error) {
	if v, ok := l.classes[id]; ok {
		return v, nil
	}
	v, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	l.classes[id] = v
	return v, nil
}

func resolveTerm(semester, academicYear string, defaults models.Term) models.Term {
	term := models.Term{Semester: strings.TrimSpace(semester), AcademicYear: strings.TrimSpace(academicYear)}
	if term.Semester == "" {
		term.Semester = defaults.Semester
	}
	if term.AcademicYear == "" {
		term.AcademicYear = defaults.AcademicYear
	}
	return term
}

func sameGrade(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func lookupError(err error, notFound, failure string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, failure)
}

// validationError maps validator failures on numeric bounds to the score range
// error and everything else to a generic validation error.
func validationError(err error, message string) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if (fe.Tag() == "min" || fe.Tag() == "max") && fe.Kind() == reflect.Float64 {
				return appErrors.Wrap(err, appErrors.ErrScoreOutOfRange.Code, appErrors.ErrScoreOutOfRange.Status, fmt.Sprintf("%s must be between 0 and 100", fe.Field()))
			}
		}
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func prefixError(err error, prefix string) error {
	appErr := appErrors.FromError(err)
	clone := *appErr
	clone.Message = prefix + ": " + appErr.Message
	return &clone
}

func reason(err error) string {
	return appErrors.FromError(err).Message
}

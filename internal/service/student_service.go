package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type studentRepository interface {
	studentReader
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
}

// CreateStudentRequest captures the payload to enrol a student in a class.
type CreateStudentRequest struct {
	ID       string `json:"id"`
	NIS      string `json:"nis" validate:"required"`
	FullName string `json:"full_name" validate:"required"`
	ClassID  string `json:"class_id" validate:"required"`
}

// UpdateStudentRequest carries the student fields to change. A new class id
// moves the student to that class.
type UpdateStudentRequest struct {
	NIS      string `json:"nis"`
	FullName string `json:"full_name"`
	ClassID  string `json:"class_id"`
}

// StudentService handles class rosters.
type StudentService struct {
	repo      studentRepository
	classes   classReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, classes classReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, classes: classes, cache: cache, validator: validate, logger: logger}
}

// Roster returns the active students of a class.
func (s *StudentService) Roster(ctx context.Context, classID string) ([]models.Student, error) {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		return nil, lookupError(err, "class not found", "failed to load class")
	}
	students, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// Create enrols a student in an existing class.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		return nil, lookupError(err, fmt.Sprintf("class %s not found", req.ClassID), "failed to load class")
	}
	student := &models.Student{
		ID:       strings.TrimSpace(req.ID),
		NIS:      strings.TrimSpace(req.NIS),
		FullName: strings.TrimSpace(req.FullName),
		ClassID:  req.ClassID,
		Active:   true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Debug("student enrolled", zap.String("student_id", student.ID), zap.String("class_id", student.ClassID))
	return student, nil
}

// Update edits a student. Moving the student drops the cached recaps of both
// the old and the new class.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}
	previousClass := student.ClassID

	if nis := strings.TrimSpace(req.NIS); nis != "" {
		student.NIS = nis
	}
	if name := strings.TrimSpace(req.FullName); name != "" {
		student.FullName = name
	}
	if classID := strings.TrimSpace(req.ClassID); classID != "" && classID != student.ClassID {
		if _, err := s.classes.FindByID(ctx, classID); err != nil {
			return nil, lookupError(err, fmt.Sprintf("class %s not found", classID), "failed to load class")
		}
		student.ClassID = classID
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.cache.InvalidateClassRecaps(ctx, previousClass, student.ClassID)
	s.logger.Info("student updated", zap.String("student_id", student.ID), zap.String("class_id", student.ClassID))
	return student, nil
}

// Deactivate removes a student from the class roster. Deactivating an
// inactive student is a no-op.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "student not found", "failed to load student")
	}
	if !student.Active {
		return nil
	}
	student.Active = false
	if err := s.repo.Update(ctx, student); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	s.cache.InvalidateClassRecaps(ctx, student.ClassID)
	s.logger.Info("student deactivated", zap.String("student_id", student.ID), zap.String("class_id", student.ClassID))
	return nil
}

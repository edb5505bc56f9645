package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type classRepository interface {
	classReader
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
}

// ClassQuery captures the list filters accepted over HTTP.
type ClassQuery struct {
	Level             string `form:"level"`
	Jenjang           string `form:"jenjang"`
	HomeroomTeacherID string `form:"homeroom_teacher_id"`
}

// CreateClassRequest captures creation payload.
type CreateClassRequest struct {
	ID                string  `json:"id"`
	Name              string  `json:"name" validate:"required"`
	Level             string  `json:"level" validate:"required"`
	GradeLevel        int     `json:"grade_level" validate:"required,min=7,max=12"`
	HomeroomTeacherID *string `json:"homeroom_teacher_id"`
}

// UpdateClassRequest carries the class fields to change. Empty or nil fields
// are left untouched.
type UpdateClassRequest struct {
	Name              string  `json:"name"`
	Level             string  `json:"level"`
	GradeLevel        *int    `json:"grade_level" validate:"omitempty,min=7,max=12"`
	HomeroomTeacherID *string `json:"homeroom_teacher_id"`
}

// ClassService coordinates class operations.
type ClassService struct {
	repo      classRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns classes, optionally narrowed to one level or homeroom teacher.
func (s *ClassService) List(ctx context.Context, query ClassQuery) ([]models.Class, error) {
	filter := models.ClassFilter{HomeroomTeacherID: strings.TrimSpace(query.HomeroomTeacherID)}
	level, err := levelParam(query.Level, query.Jenjang)
	if err != nil {
		return nil, err
	}
	filter.Level = level

	classes, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// Get returns a class by id.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "class not found", "failed to load class")
	}
	return class, nil
}

// Create registers a class.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	level, err := models.ParseLevel(req.Level)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnknownLevel.Code, appErrors.ErrUnknownLevel.Status, appErrors.ErrUnknownLevel.Message)
	}
	class := &models.Class{
		ID:                strings.TrimSpace(req.ID),
		Name:              strings.TrimSpace(req.Name),
		Level:             level,
		GradeLevel:        req.GradeLevel,
		HomeroomTeacherID: req.HomeroomTeacherID,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.logger.Info("class created", zap.String("class_id", class.ID), zap.String("level", string(class.Level)))
	return class, nil
}

// Update edits a class and drops its cached recaps.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "class not found", "failed to load class")
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		class.Name = name
	}
	if strings.TrimSpace(req.Level) != "" {
		level, err := models.ParseLevel(req.Level)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnknownLevel.Code, appErrors.ErrUnknownLevel.Status, appErrors.ErrUnknownLevel.Message)
		}
		class.Level = level
	}
	if req.GradeLevel != nil {
		class.GradeLevel = *req.GradeLevel
	}
	if req.HomeroomTeacherID != nil {
		teacher := strings.TrimSpace(*req.HomeroomTeacherID)
		if teacher == "" {
			class.HomeroomTeacherID = nil
		} else {
			class.HomeroomTeacherID = &teacher
		}
	}

	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	s.cache.InvalidateClassRecaps(ctx, class.ID)
	s.logger.Info("class updated", zap.String("class_id", class.ID), zap.String("level", string(class.Level)))
	return class, nil
}

// levelParam resolves the level filter from either the level or the legacy
// jenjang parameter. Empty input means no filter.
func levelParam(level, jenjang string) (models.Level, error) {
	raw := strings.TrimSpace(level)
	if raw == "" {
		raw = strings.TrimSpace(jenjang)
	}
	if raw == "" {
		return "", nil
	}
	parsed, err := models.ParseLevel(raw)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnknownLevel.Code, appErrors.ErrUnknownLevel.Status, appErrors.ErrUnknownLevel.Message)
	}
	return parsed, nil
}

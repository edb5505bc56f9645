package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type subjectRepository interface {
	subjectReader
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
	CountGrades(ctx context.Context, id string) (int, error)
}

// SubjectQuery captures the list filters accepted over HTTP. Jenjang is the
// legacy name of level.
type SubjectQuery struct {
	Level   string `form:"level"`
	Jenjang string `form:"jenjang"`
	Search  string `form:"search"`
}

// CreateSubjectRequest payload for subject creation.
type CreateSubjectRequest struct {
	ID    string `json:"id"`
	Code  string `json:"code" validate:"required,max=20"`
	Name  string `json:"name" validate:"required"`
	Level string `json:"level" validate:"required"`
}

// UpdateSubjectRequest changes the fields that are sent; empty fields keep
// their current value.
type UpdateSubjectRequest struct {
	Code  string `json:"code" validate:"omitempty,max=20"`
	Name  string `json:"name"`
	Level string `json:"level"`
}

// SubjectService provides subject operations.
type SubjectService struct {
	repo      subjectRepository
	classes   classReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs SubjectService. Classes are consulted to drop
// the cached recaps a subject change affects.
func NewSubjectService(repo subjectRepository, classes classReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, classes: classes, cache: cache, validator: validate, logger: logger}
}

// List returns subjects ordered by code.
func (s *SubjectService) List(ctx context.Context, query SubjectQuery) ([]models.Subject, error) {
	level, err := levelParam(query.Level, query.Jenjang)
	if err != nil {
		return nil, err
	}
	subjects, err := s.repo.List(ctx, models.SubjectFilter{Level: level, Search: strings.TrimSpace(query.Search)})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// Get returns subject by id.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "subject not found", "failed to load subject")
	}
	return subject, nil
}

// Create registers a subject for one level.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid subject payload")
	}
	level, err := models.ParseLevel(req.Level)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnknownLevel.Code, appErrors.ErrUnknownLevel.Status, appErrors.ErrUnknownLevel.Message)
	}
	subject := &models.Subject{
		ID:    strings.TrimSpace(req.ID),
		Code:  strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:  strings.TrimSpace(req.Name),
		Level: level,
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}

// Update edits a subject. Moving a subject to another level is refused once
// grades were recorded for it.
func (s *SubjectService) Update(ctx context.Context, id string, req UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid subject payload")
	}
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "subject not found", "failed to load subject")
	}
	previous := subject.Level

	if code := strings.TrimSpace(req.Code); code != "" {
		subject.Code = strings.ToUpper(code)
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		subject.Name = name
	}
	if strings.TrimSpace(req.Level) != "" {
		level, err := models.ParseLevel(req.Level)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnknownLevel.Code, appErrors.ErrUnknownLevel.Status, appErrors.ErrUnknownLevel.Message)
		}
		subject.Level = level
	}
	if subject.Level != previous {
		if err := s.ensureUngraded(ctx, subject.ID, "subject level cannot change after grades were recorded"); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	s.invalidateLevels(ctx, previous, subject.Level)
	s.logger.Info("subject updated", zap.String("subject_id", subject.ID), zap.String("level", string(subject.Level)))
	return subject, nil
}

// Delete removes a subject that has no recorded grades.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "subject not found", "failed to load subject")
	}
	if err := s.ensureUngraded(ctx, subject.ID, "subject has recorded grades"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, subject.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	s.invalidateLevels(ctx, subject.Level)
	s.logger.Info("subject deleted", zap.String("subject_id", subject.ID))
	return nil
}

func (s *SubjectService) ensureUngraded(ctx context.Context, id, conflict string) error {
	count, err := s.repo.CountGrades(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject grades")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, conflict)
	}
	return nil
}

// invalidateLevels drops the cached recaps of every class at the levels,
// since their subject columns changed.
func (s *SubjectService) invalidateLevels(ctx context.Context, levels ...models.Level) {
	if !s.cache.Enabled() {
		return
	}
	seen := map[models.Level]struct{}{}
	var classIDs []string
	for _, level := range levels {
		if _, ok := seen[level]; ok {
			continue
		}
		seen[level] = struct{}{}
		classes, err := s.classes.List(ctx, models.ClassFilter{Level: level})
		if err != nil {
			s.logger.Warn("failed to list classes for recap invalidation", zap.String("level", string(level)), zap.Error(err))
			continue
		}
		for _, class := range classes {
			classIDs = append(classIDs, class.ID)
		}
	}
	s.cache.InvalidateClassRecaps(ctx, classIDs...)
}

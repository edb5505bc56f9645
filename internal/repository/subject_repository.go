package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

const subjectColumns = "id, code, name, level, created_at, updated_at"

// SubjectRepository handles persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new repository instance.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns subjects matching filters ordered by code.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error) {
	var conditions []string
	var args []interface{}

	if filter.Level != "" {
		conditions = append(conditions, "level = ?")
		args = append(args, filter.Level)
	}
	if filter.Search != "" {
		conditions = append(conditions, "(LOWER(code) LIKE ? OR LOWER(name) LIKE ?)")
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}

	query := "SELECT " + subjectColumns + " FROM subjects"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY code"

	subjects := []models.Subject{}
	if err := r.db.SelectContext(ctx, &subjects, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// ListByLevel returns every subject taught at the level.
func (r *SubjectRepository) ListByLevel(ctx context.Context, level models.Level) ([]models.Subject, error) {
	return r.List(ctx, models.SubjectFilter{Level: level})
}

// FindByID returns a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := r.db.Rebind("SELECT " + subjectColumns + " FROM subjects WHERE id = ?")
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// Create persists a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, code, name, level, created_at, updated_at) VALUES (:id, :code, :name, :level, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update modifies a subject.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET code = :code, name = :name, level = :level, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

// Delete removes a subject record.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM subjects WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return nil
}

// CountGrades returns the number of grade rows recorded for the subject.
func (r *SubjectRepository) CountGrades(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM grades WHERE subject_id = ?`), id); err != nil {
		return 0, fmt.Errorf("count subject grades: %w", err)
	}
	return count, nil
}

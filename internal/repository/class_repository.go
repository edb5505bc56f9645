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

const classColumns = "id, name, level, grade_level, homeroom_teacher_id, created_at, updated_at"

// ClassRepository manages persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes matching filter criteria ordered by grade level and name.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, error) {
	var conditions []string
	var args []interface{}

	if filter.Level != "" {
		conditions = append(conditions, "level = ?")
		args = append(args, filter.Level)
	}
	if filter.HomeroomTeacherID != "" {
		conditions = append(conditions, "homeroom_teacher_id = ?")
		args = append(args, filter.HomeroomTeacherID)
	}

	query := "SELECT " + classColumns + " FROM classes"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY grade_level, name"

	classes := []models.Class{}
	if err := r.db.SelectContext(ctx, &classes, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// FindByID returns a class record by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := r.db.Rebind("SELECT " + classColumns + " FROM classes WHERE id = ?")
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// Create persists a class record.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, name, level, grade_level, homeroom_teacher_id, created_at, updated_at) VALUES (:id, :name, :level, :grade_level, :homeroom_teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies a class record.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, level = :level, grade_level = :grade_level, homeroom_teacher_id = :homeroom_teacher_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

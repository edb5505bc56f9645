package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

const studentColumns = "id, nis, full_name, class_id, active, created_at, updated_at"

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListByClass returns the active roster of a class ordered by name.
func (r *StudentRepository) ListByClass(ctx context.Context, classID string) ([]models.Student, error) {
	query := r.db.Rebind("SELECT " + studentColumns + " FROM students WHERE class_id = ? AND active = ? ORDER BY full_name, nis")
	students := []models.Student{}
	if err := r.db.SelectContext(ctx, &students, query, classID, true); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := r.db.Rebind("SELECT " + studentColumns + " FROM students WHERE id = ?")
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now

	const query = `INSERT INTO students (id, nis, full_name, class_id, active, created_at, updated_at) VALUES (:id, :nis, :full_name, :class_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update persists the roster fields of a student, including deactivation.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET nis = :nis, full_name = :full_name, class_id = :class_id, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

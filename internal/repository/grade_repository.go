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

const gradeColumns = "g.id, g.student_id, g.subject_id, g.class_id, g.semester, g.academic_year, g.assignment1, g.assignment2, g.quiz1, g.quiz2, g.midterm, g.final_exam, g.final_grade, g.created_at, g.updated_at"

const upsertGradeQuery = `INSERT INTO grades (id, student_id, subject_id, class_id, semester, academic_year, assignment1, assignment2, quiz1, quiz2, midterm, final_exam, final_grade, created_at, updated_at)
        VALUES (:id, :student_id, :subject_id, :class_id, :semester, :academic_year, :assignment1, :assignment2, :quiz1, :quiz2, :midterm, :final_exam, :final_grade, :created_at, :updated_at)
        ON CONFLICT (student_id, subject_id, semester, academic_year)
        DO UPDATE SET class_id = excluded.class_id, assignment1 = excluded.assignment1, assignment2 = excluded.assignment2, quiz1 = excluded.quiz1, quiz2 = excluded.quiz2, midterm = excluded.midterm, final_exam = excluded.final_exam, final_grade = excluded.final_grade, updated_at = excluded.updated_at
        RETURNING id, created_at`

// GradeRepository handles grade entry persistence.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// List returns one page of grade entries matching the filter and the total
// number of matches.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, int, error) {
	base := " FROM grades g"
	var conditions []string
	var args []interface{}
	if filter.ClassID != "" {
		conditions = append(conditions, "g.class_id = ?")
		args = append(args, filter.ClassID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, "g.subject_id = ?")
		args = append(args, filter.SubjectID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, "g.student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.Semester != "" {
		conditions = append(conditions, "g.semester = ?")
		args = append(args, filter.Semester)
	}
	if filter.AcademicYear != "" {
		conditions = append(conditions, "g.academic_year = ?")
		args = append(args, filter.AcademicYear)
	}
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}

	page := models.NewPagination(filter.Page, filter.PageSize, 0)
	query := fmt.Sprintf("SELECT %s%s ORDER BY g.updated_at DESC, g.id LIMIT %d OFFSET %d", gradeColumns, base, page.PageSize, (page.Page-1)*page.PageSize)

	grades := []models.Grade{}
	if err := r.db.SelectContext(ctx, &grades, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list grades: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*)"+base), args...); err != nil {
		return nil, 0, fmt.Errorf("count grades: %w", err)
	}
	return grades, total, nil
}

// ListByClass returns the term's grades of every student currently on the class roster.
func (r *GradeRepository) ListByClass(ctx context.Context, classID string, term models.Term) ([]models.Grade, error) {
	query := r.db.Rebind("SELECT " + gradeColumns + ` FROM grades g
        JOIN students s ON s.id = g.student_id
        WHERE s.class_id = ? AND g.semester = ? AND g.academic_year = ?`)
	grades := []models.Grade{}
	if err := r.db.SelectContext(ctx, &grades, query, classID, term.Semester, term.AcademicYear); err != nil {
		return nil, fmt.Errorf("list class grades: %w", err)
	}
	return grades, nil
}

// ListByClassSubject narrows ListByClass to one subject.
func (r *GradeRepository) ListByClassSubject(ctx context.Context, classID, subjectID string, term models.Term) ([]models.Grade, error) {
	query := r.db.Rebind("SELECT " + gradeColumns + ` FROM grades g
        JOIN students s ON s.id = g.student_id
        WHERE s.class_id = ? AND g.subject_id = ? AND g.semester = ? AND g.academic_year = ?`)
	grades := []models.Grade{}
	if err := r.db.SelectContext(ctx, &grades, query, classID, subjectID, term.Semester, term.AcademicYear); err != nil {
		return nil, fmt.Errorf("list class subject grades: %w", err)
	}
	return grades, nil
}

// Upsert inserts or updates the grade of a student in a subject for a term.
// The stored ID and creation time are written back into grade.
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.Grade) error {
	return upsertGrade(ctx, r.db, grade)
}

// BulkUpsert writes every grade in a single transaction; any failure rolls
// back the whole batch.
func (r *GradeRepository) BulkUpsert(ctx context.Context, grades []*models.Grade) error {
	if len(grades) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grade batch: %w", err)
	}
	for i, grade := range grades {
		if err := upsertGrade(ctx, tx, grade); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("grade batch row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade batch: %w", err)
	}
	return nil
}

func upsertGrade(ctx context.Context, ext sqlx.ExtContext, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now

	query, args, err := sqlx.Named(upsertGradeQuery, grade)
	if err != nil {
		return fmt.Errorf("bind grade: %w", err)
	}
	row := ext.QueryRowxContext(ctx, ext.Rebind(query), args...)
	if err := row.Scan(&grade.ID, &grade.CreatedAt); err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}
	return nil
}

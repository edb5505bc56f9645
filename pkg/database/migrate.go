package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is written in the dialect shared by PostgreSQL and SQLite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS classes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		level TEXT NOT NULL,
		grade_level INTEGER NOT NULL,
		homeroom_teacher_id TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		level TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		nis TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		class_id TEXT NOT NULL REFERENCES classes(id),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS grades (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id),
		subject_id TEXT NOT NULL REFERENCES subjects(id),
		class_id TEXT NOT NULL REFERENCES classes(id),
		semester TEXT NOT NULL,
		academic_year TEXT NOT NULL,
		assignment1 NUMERIC(5,2),
		assignment2 NUMERIC(5,2),
		quiz1 NUMERIC(5,2),
		quiz2 NUMERIC(5,2),
		midterm NUMERIC(5,2),
		final_exam NUMERIC(5,2),
		final_grade NUMERIC(5,2),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (student_id, subject_id, semester, academic_year)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_students_class ON students(class_id)`,
	`CREATE INDEX IF NOT EXISTS idx_subjects_level ON subjects(level)`,
	`CREATE INDEX IF NOT EXISTS idx_grades_class_term ON grades(class_id, semester, academic_year)`,
}

// Migrate creates the gradebook tables when they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

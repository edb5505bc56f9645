package models

import (
	"fmt"
	"strings"
	"time"
)

// Level is the school level (jenjang) a class or subject belongs to.
type Level string

const (
	// LevelSMP is junior high school.
	LevelSMP Level = "SMP"
	// LevelMA is madrasah aliyah (senior high school).
	LevelMA Level = "MA"
)

// ParseLevel normalises a level identifier supplied by clients or legacy records.
func ParseLevel(raw string) (Level, error) {
	switch Level(strings.ToUpper(strings.TrimSpace(raw))) {
	case LevelSMP:
		return LevelSMP, nil
	case LevelMA:
		return LevelMA, nil
	default:
		return "", fmt.Errorf("unknown level %q", raw)
	}
}

// Class represents a homeroom class.
type Class struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Level             Level     `db:"level" json:"level"`
	GradeLevel        int       `db:"grade_level" json:"grade_level"`
	HomeroomTeacherID *string   `db:"homeroom_teacher_id" json:"homeroom_teacher_id,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Level             Level
	HomeroomTeacherID string
}

package models

import "time"

// ScoreComponent identifies one of the six graded components of a subject.
type ScoreComponent string

const (
	ComponentAssignment1 ScoreComponent = "assignment1"
	ComponentAssignment2 ScoreComponent = "assignment2"
	ComponentQuiz1       ScoreComponent = "quiz1"
	ComponentQuiz2       ScoreComponent = "quiz2"
	ComponentMidterm     ScoreComponent = "midterm"
	ComponentFinalExam   ScoreComponent = "final_exam"
)

// ScoreComponents lists every component in weight-table order.
var ScoreComponents = []ScoreComponent{
	ComponentAssignment1,
	ComponentAssignment2,
	ComponentQuiz1,
	ComponentQuiz2,
	ComponentMidterm,
	ComponentFinalExam,
}

// ScoreSet holds the raw component scores of one student in one subject.
// A nil field means the score has not been entered yet.
type ScoreSet struct {
	Assignment1 *float64 `db:"assignment1" json:"assignment1"`
	Assignment2 *float64 `db:"assignment2" json:"assignment2"`
	Quiz1       *float64 `db:"quiz1" json:"quiz1"`
	Quiz2       *float64 `db:"quiz2" json:"quiz2"`
	Midterm     *float64 `db:"midterm" json:"midterm"`
	FinalExam   *float64 `db:"final_exam" json:"final_exam"`
}

// Value returns the score recorded for the component.
func (s ScoreSet) Value(component ScoreComponent) *float64 {
	switch component {
	case ComponentAssignment1:
		return s.Assignment1
	case ComponentAssignment2:
		return s.Assignment2
	case ComponentQuiz1:
		return s.Quiz1
	case ComponentQuiz2:
		return s.Quiz2
	case ComponentMidterm:
		return s.Midterm
	case ComponentFinalExam:
		return s.FinalExam
	default:
		return nil
	}
}

// Filled reports how many components have a score.
func (s ScoreSet) Filled() int {
	n := 0
	for _, component := range ScoreComponents {
		if s.Value(component) != nil {
			n++
		}
	}
	return n
}

// Term scopes grades to a semester of an academic year.
type Term struct {
	Semester     string `json:"semester"`
	AcademicYear string `json:"academic_year"`
}

// Grade stores the raw scores and computed final grade for a student + subject + term.
type Grade struct {
	ID           string `db:"id" json:"id"`
	StudentID    string `db:"student_id" json:"student_id"`
	SubjectID    string `db:"subject_id" json:"subject_id"`
	ClassID      string `db:"class_id" json:"class_id"`
	Semester     string `db:"semester" json:"semester"`
	AcademicYear string `db:"academic_year" json:"academic_year"`
	ScoreSet
	FinalGrade *float64  `db:"final_grade" json:"final_grade"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Term returns the term the grade belongs to.
func (g Grade) Term() Term {
	return Term{Semester: g.Semester, AcademicYear: g.AcademicYear}
}

// GradeFilter allows querying of grade entries.
type GradeFilter struct {
	ClassID      string
	SubjectID    string
	StudentID    string
	Semester     string
	AcademicYear string
	Page         int
	PageSize     int
}

package grading

import (
	"sort"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

// GradeKey identifies the final grade of a student in a subject.
type GradeKey struct {
	StudentID string
	SubjectID string
}

// GradeTable is a lookup of final grades. A missing entry and a nil value both
// mean the student has no final grade in that subject yet.
type GradeTable map[GradeKey]*float64

// Set records the final grade of a student in a subject.
func (t GradeTable) Set(studentID, subjectID string, final *float64) {
	t[GradeKey{StudentID: studentID, SubjectID: subjectID}] = final
}

// Get returns the final grade of a student in a subject.
func (t GradeTable) Get(studentID, subjectID string) *float64 {
	return t[GradeKey{StudentID: studentID, SubjectID: subjectID}]
}

// BuildRecap computes every student's cross-subject average, ranks the class
// and summarises the averages. Rows are ordered by average descending with
// ungraded students last; ties keep roster order and share a rank, and the
// next distinct average takes its 1-based position (95, 90, 90, 80 rank as
// 1, 2, 2, 4).
func BuildRecap(students []models.Student, subjects []models.Subject, grades GradeTable) models.RecapResult {
	rows := make([]models.StudentRecapRow, 0, len(students))
	for _, student := range students {
		row := models.StudentRecapRow{
			Student: student,
			Grades:  make(map[string]*float64, len(subjects)),
		}
		defined := make([]float64, 0, len(subjects))
		for _, subject := range subjects {
			final := clone(grades.Get(student.ID, subject.ID))
			row.Grades[subject.ID] = final
			if final != nil {
				defined = append(defined, *final)
			}
		}
		row.Average = mean(defined)
		row.Predicate = Predicate(row.Average)
		rows = append(rows, row)
	}

	sortByAverage(rows)
	assignRanks(rows)

	averages := make([]float64, 0, len(rows))
	for _, row := range rows {
		if row.Average != nil {
			averages = append(averages, *row.Average)
		}
	}
	stats, distribution := Summarize(averages, len(students))

	return models.RecapResult{
		Rows:         rows,
		Statistics:   stats,
		Distribution: distribution,
		Subjects:     summarizeSubjects(students, subjects, grades),
	}
}

func sortByAverage(rows []models.StudentRecapRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Average, rows[j].Average
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
}

// assignRanks expects rows sorted by sortByAverage.
func assignRanks(rows []models.StudentRecapRow) {
	rank := 0
	var previous *float64
	for i := range rows {
		if rows[i].Average == nil {
			continue
		}
		if previous == nil || *rows[i].Average != *previous {
			rank = i + 1
		}
		r := rank
		rows[i].Rank = &r
		previous = rows[i].Average
	}
}

func summarizeSubjects(students []models.Student, subjects []models.Subject, grades GradeTable) []models.SubjectSummary {
	summaries := make([]models.SubjectSummary, 0, len(subjects))
	for _, subject := range subjects {
		finals := make([]float64, 0, len(students))
		for _, student := range students {
			if final := grades.Get(student.ID, subject.ID); final != nil {
				finals = append(finals, *final)
			}
		}
		stats, distribution := Summarize(finals, len(students))
		summaries = append(summaries, models.SubjectSummary{
			SubjectID:    subject.ID,
			SubjectName:  subject.Name,
			Statistics:   stats,
			Distribution: distribution,
		})
	}
	return summaries
}

func clone(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

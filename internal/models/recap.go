package models

// GradeBand names one of the five distribution buckets.
type GradeBand string

const (
	BandExcellent GradeBand = "excellent"
	BandVeryGood  GradeBand = "very_good"
	BandGood      GradeBand = "good"
	BandFair      GradeBand = "fair"
	BandPoor      GradeBand = "poor"
)

// ClassStatistics summarises a set of grades or averages.
type ClassStatistics struct {
	Highest              *float64 `json:"highest"`
	Lowest               *float64 `json:"lowest"`
	Mean                 *float64 `json:"mean"`
	TotalStudents        int      `json:"total_students"`
	GradedStudents       int      `json:"graded_students"`
	CompletionPercentage int      `json:"completion_percentage"`
}

// Distribution counts graded values per band.
type Distribution struct {
	Excellent int `json:"excellent"`
	VeryGood  int `json:"very_good"`
	Good      int `json:"good"`
	Fair      int `json:"fair"`
	Poor      int `json:"poor"`
}

// Add increments the counter of band.
func (d *Distribution) Add(band GradeBand) {
	switch band {
	case BandExcellent:
		d.Excellent++
	case BandVeryGood:
		d.VeryGood++
	case BandGood:
		d.Good++
	case BandFair:
		d.Fair++
	default:
		d.Poor++
	}
}

// Total returns the number of counted values.
func (d Distribution) Total() int {
	return d.Excellent + d.VeryGood + d.Good + d.Fair + d.Poor
}

// StudentRecapRow is one student's line in a class recap.
type StudentRecapRow struct {
	Student   Student             `json:"student"`
	Grades    map[string]*float64 `json:"grades"`
	Average   *float64            `json:"average"`
	Rank      *int                `json:"rank"`
	Predicate string              `json:"predicate"`
}

// SubjectSummary aggregates one subject's final grades across the class.
type SubjectSummary struct {
	SubjectID    string          `json:"subject_id"`
	SubjectName  string          `json:"subject_name"`
	Statistics   ClassStatistics `json:"statistics"`
	Distribution Distribution    `json:"distribution"`
}

// RecapResult is the ranked recap of a class with its statistics.
type RecapResult struct {
	Rows         []StudentRecapRow `json:"recap"`
	Statistics   ClassStatistics   `json:"statistics"`
	Distribution Distribution      `json:"distribution"`
	Subjects     []SubjectSummary  `json:"subject_summaries"`
}

// ClassRecap wraps a recap with the class, term and subjects it was built for.
type ClassRecap struct {
	Class    Class       `json:"class"`
	Term     Term        `json:"term"`
	Subjects []Subject   `json:"subjects"`
	Recap    RecapResult `json:"result"`
}

// GradeSheetRow is one student's scores for a single subject.
type GradeSheetRow struct {
	Student          Student  `json:"student"`
	GradeID          *string  `json:"grade_id,omitempty"`
	Scores           ScoreSet `json:"scores"`
	FilledComponents int      `json:"filled_components"`
	FinalGrade       *float64 `json:"final_grade"`
	Predicate        string   `json:"predicate"`
}

// GradeSheet is the per-subject grade entry view of a class.
type GradeSheet struct {
	Class        Class           `json:"class"`
	Subject      Subject         `json:"subject"`
	Term         Term            `json:"term"`
	Rows         []GradeSheetRow `json:"rows"`
	Statistics   ClassStatistics `json:"statistics"`
	Distribution Distribution    `json:"distribution"`
}

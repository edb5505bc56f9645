package models

// DashboardTotals counts the records of the whole school.
type DashboardTotals struct {
	Students int `json:"total_students"`
	Classes  int `json:"total_classes"`
	Subjects int `json:"total_subjects"`
}

// DashboardClass is one class line of the dashboard.
type DashboardClass struct {
	ClassID           string  `json:"class_id"`
	Name              string  `json:"name"`
	Level             Level   `json:"level"`
	HomeroomTeacherID *string `json:"homeroom_teacher_id,omitempty"`
	StudentCount      int     `json:"student_count"`
	GradedCount       int     `json:"graded_count"`
	ExpectedCount     int     `json:"expected_count"`
	CompletionRate    int     `json:"completion_rate"`
}

// DashboardSummary is the school-wide grading overview for one term.
type DashboardSummary struct {
	Term            Term             `json:"term"`
	Totals          DashboardTotals  `json:"stats"`
	GradedCount     int              `json:"graded_count"`
	ExpectedCount   int              `json:"expected_count"`
	CompletionRate  int              `json:"completion_rate"`
	Statistics      ClassStatistics  `json:"statistics"`
	Distribution    Distribution     `json:"distribution"`
	Classes         []DashboardClass `json:"classes"`
	HomeroomClasses []DashboardClass `json:"homeroom_classes,omitempty"`
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

func ptrFloat(v float64) *float64 { return &v }

type classStore struct {
	classes map[string]models.Class
}

func (s *classStore) FindByID(_ context.Context, id string) (*models.Class, error) {
	class, ok := s.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &class, nil
}

func (s *classStore) List(_ context.Context, filter models.ClassFilter) ([]models.Class, error) {
	result := make([]models.Class, 0, len(s.classes))
	for _, class := range s.classes {
		if filter.Level != "" && class.Level != filter.Level {
			continue
		}
		if filter.HomeroomTeacherID != "" && (class.HomeroomTeacherID == nil || *class.HomeroomTeacherID != filter.HomeroomTeacherID) {
			continue
		}
		result = append(result, class)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type studentStore struct {
	students []models.Student
}

func (s *studentStore) FindByID(_ context.Context, id string) (*models.Student, error) {
	for _, student := range s.students {
		if student.ID == id {
			return &student, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *studentStore) ListByClass(_ context.Context, classID string) ([]models.Student, error) {
	result := []models.Student{}
	for _, student := range s.students {
		if student.ClassID == classID && student.Active {
			result = append(result, student)
		}
	}
	return result, nil
}

type subjectStore struct {
	subjects    []models.Subject
	gradeCounts map[string]int
}

func (s *subjectStore) FindByID(_ context.Context, id string) (*models.Subject, error) {
	for _, subject := range s.subjects {
		if subject.ID == id {
			return &subject, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *subjectStore) ListByLevel(_ context.Context, level models.Level) ([]models.Subject, error) {
	result := []models.Subject{}
	for _, subject := range s.subjects {
		if subject.Level == level {
			result = append(result, subject)
		}
	}
	return result, nil
}

type gradeStore struct {
	mu        sync.Mutex
	rows      map[string]models.Grade
	failFor   string
	bulkErr   error
	bulkCalls int
	listCalls int
}

func newGradeStore() *gradeStore {
	return &gradeStore{rows: map[string]models.Grade{}}
}

func gradeKey(g models.Grade) string {
	return g.StudentID + "|" + g.SubjectID + "|" + g.Semester + "|" + g.AcademicYear
}

func (s *gradeStore) put(g models.Grade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = "grade-" + g.StudentID + "-" + g.SubjectID
	}
	s.rows[gradeKey(g)] = g
}

func (s *gradeStore) get(studentID, subjectID string, term models.Term) (models.Grade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.rows[studentID+"|"+subjectID+"|"+term.Semester+"|"+term.AcademicYear]
	return g, ok
}

func (s *gradeStore) sorted(match func(models.Grade) bool) []models.Grade {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	result := []models.Grade{}
	for _, g := range s.rows {
		if match(g) {
			result = append(result, g)
		}
	}
	sort.Slice(result, func(i, j int) bool { return gradeKey(result[i]) < gradeKey(result[j]) })
	return result
}

func (s *gradeStore) List(_ context.Context, filter models.GradeFilter) ([]models.Grade, int, error) {
	matches := s.sorted(func(g models.Grade) bool {
		return (filter.ClassID == "" || g.ClassID == filter.ClassID) &&
			(filter.SubjectID == "" || g.SubjectID == filter.SubjectID) &&
			(filter.StudentID == "" || g.StudentID == filter.StudentID) &&
			(filter.Semester == "" || g.Semester == filter.Semester) &&
			(filter.AcademicYear == "" || g.AcademicYear == filter.AcademicYear)
	})
	page := models.NewPagination(filter.Page, filter.PageSize, len(matches))
	start := min((page.Page-1)*page.PageSize, len(matches))
	end := min(start+page.PageSize, len(matches))
	return matches[start:end], len(matches), nil
}

func (s *gradeStore) ListByClass(_ context.Context, classID string, term models.Term) ([]models.Grade, error) {
	return s.sorted(func(g models.Grade) bool {
		return g.ClassID == classID && g.Term() == term
	}), nil
}

func (s *gradeStore) ListByClassSubject(_ context.Context, classID, subjectID string, term models.Term) ([]models.Grade, error) {
	return s.sorted(func(g models.Grade) bool {
		return g.ClassID == classID && g.SubjectID == subjectID && g.Term() == term
	}), nil
}

func (s *gradeStore) Upsert(_ context.Context, grade *models.Grade) error {
	if s.failFor != "" && grade.StudentID == s.failFor {
		return errors.New("write failed")
	}
	if grade.ID == "" {
		grade.ID = "grade-" + grade.StudentID + "-" + grade.SubjectID
	}
	s.put(*grade)
	return nil
}

func (s *gradeStore) BulkUpsert(ctx context.Context, grades []*models.Grade) error {
	s.bulkCalls++
	if s.bulkErr != nil {
		return s.bulkErr
	}
	for _, grade := range grades {
		if err := s.Upsert(ctx, grade); err != nil {
			return err
		}
	}
	return nil
}

// gradebookFixture is a class of three SMP students with two SMP subjects and
// one MA subject.
type gradebookFixture struct {
	classes  *classStore
	students *studentStore
	subjects *subjectStore
	grades   *gradeStore
}

func newGradebookFixture() gradebookFixture {
	teacher := "teacher-1"
	return gradebookFixture{
		classes: &classStore{classes: map[string]models.Class{
			"class-7a": {ID: "class-7a", Name: "7A", Level: models.LevelSMP, GradeLevel: 7, HomeroomTeacherID: &teacher},
			"class-10": {ID: "class-10", Name: "X IPA", Level: models.LevelMA, GradeLevel: 10},
		}},
		students: &studentStore{students: []models.Student{
			{ID: "stu-1", NIS: "001", FullName: "Ahmad", ClassID: "class-7a", Active: true},
			{ID: "stu-2", NIS: "002", FullName: "Budi", ClassID: "class-7a", Active: true},
			{ID: "stu-3", NIS: "003", FullName: "Citra", ClassID: "class-7a", Active: true},
			{ID: "stu-9", NIS: "009", FullName: "Dewi", ClassID: "class-10", Active: true},
		}},
		subjects: &subjectStore{subjects: []models.Subject{
			{ID: "math", Code: "MTK", Name: "Matematika", Level: models.LevelSMP},
			{ID: "ipa", Code: "IPA", Name: "Ilmu Pengetahuan Alam", Level: models.LevelSMP},
			{ID: "fis", Code: "FIS", Name: "Fisika", Level: models.LevelMA},
		}},
		grades: newGradeStore(),
	}
}

var defaultTestTerm = models.Term{Semester: "1", AcademicYear: "2024/2025"}

func completeScores(a1, a2, q1, q2, mid, final float64) ScoresPayload {
	return ScoresPayload{
		Assignment1: ptrFloat(a1),
		Assignment2: ptrFloat(a2),
		Quiz1:       ptrFloat(q1),
		Quiz2:       ptrFloat(q2),
		Midterm:     ptrFloat(mid),
		FinalExam:   ptrFloat(final),
	}
}

func (s *classStore) Create(_ context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = "class-" + class.Name
	}
	s.classes[class.ID] = *class
	return nil
}

func (s *subjectStore) List(_ context.Context, filter models.SubjectFilter) ([]models.Subject, error) {
	result := []models.Subject{}
	for _, subject := range s.subjects {
		if filter.Level != "" && subject.Level != filter.Level {
			continue
		}
		result = append(result, subject)
	}
	return result, nil
}

func (s *subjectStore) Create(_ context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = "subject-" + subject.Code
	}
	s.subjects = append(s.subjects, *subject)
	return nil
}

func (s *studentStore) Create(_ context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = "student-" + student.NIS
	}
	s.students = append(s.students, *student)
	return nil
}

func (s *classStore) Update(_ context.Context, class *models.Class) error {
	if _, ok := s.classes[class.ID]; !ok {
		return sql.ErrNoRows
	}
	s.classes[class.ID] = *class
	return nil
}

func (s *subjectStore) Update(_ context.Context, subject *models.Subject) error {
	for i := range s.subjects {
		if s.subjects[i].ID == subject.ID {
			s.subjects[i] = *subject
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *subjectStore) Delete(_ context.Context, id string) error {
	for i := range s.subjects {
		if s.subjects[i].ID == id {
			s.subjects = append(s.subjects[:i], s.subjects[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *subjectStore) CountGrades(_ context.Context, id string) (int, error) {
	return s.gradeCounts[id], nil
}

func (s *studentStore) Update(_ context.Context, student *models.Student) error {
	for i := range s.students {
		if s.students[i].ID == student.ID {
			s.students[i] = *student
			return nil
		}
	}
	return sql.ErrNoRows
}

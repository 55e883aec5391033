package services

import (
	"strings"

	"github.com/charlesng35/rosterd/internal/models"
)

// StudentInput carries the fields of a new student.
type StudentInput struct {
	Surname string `json:"surname" validate:"required,notblank,max=50"`
	Name    string `json:"name" validate:"required,notblank,max=50"`
	Faculty string `json:"faculty" validate:"required,notblank,max=50"`
	Course  string `json:"course" validate:"required,notblank,max=50"`
	Grade   int    `json:"grade" validate:"gte=0,lte=100"`
}

func (in StudentInput) normalised() StudentInput {
	in.Surname = strings.TrimSpace(in.Surname)
	in.Name = strings.TrimSpace(in.Name)
	in.Faculty = strings.TrimSpace(in.Faculty)
	in.Course = strings.TrimSpace(in.Course)
	return in
}

func (in StudentInput) model() models.Student {
	return models.Student{
		Surname: in.Surname,
		Name:    in.Name,
		Faculty: in.Faculty,
		Course:  in.Course,
		Grade:   in.Grade,
	}
}

// StudentPatch lists the fields to change on an existing student. Nil fields are left as they are.
type StudentPatch struct {
	Surname *string `json:"surname" validate:"omitempty,notblank,max=50"`
	Name    *string `json:"name" validate:"omitempty,notblank,max=50"`
	Faculty *string `json:"faculty" validate:"omitempty,notblank,max=50"`
	Course  *string `json:"course" validate:"omitempty,notblank,max=50"`
	Grade   *int    `json:"grade" validate:"omitempty,gte=0,lte=100"`
}

// IsEmpty reports whether the patch changes nothing.
func (p StudentPatch) IsEmpty() bool {
	return p.Surname == nil && p.Name == nil && p.Faculty == nil && p.Course == nil && p.Grade == nil
}

func (p StudentPatch) normalised() StudentPatch {
	trim := func(value *string) *string {
		if value == nil {
			return nil
		}
		trimmed := strings.TrimSpace(*value)
		return &trimmed
	}
	p.Surname = trim(p.Surname)
	p.Name = trim(p.Name)
	p.Faculty = trim(p.Faculty)
	p.Course = trim(p.Course)
	return p
}

func (p StudentPatch) apply(student *models.Student) {
	if p.Surname != nil {
		student.Surname = *p.Surname
	}
	if p.Name != nil {
		student.Name = *p.Name
	}
	if p.Faculty != nil {
		student.Faculty = *p.Faculty
	}
	if p.Course != nil {
		student.Course = *p.Course
	}
	if p.Grade != nil {
		student.Grade = *p.Grade
	}
}

// Fields names the attributes the patch sets, for audit metadata.
func (p StudentPatch) Fields() []string {
	var fields []string
	if p.Surname != nil {
		fields = append(fields, "surname")
	}
	if p.Name != nil {
		fields = append(fields, "name")
	}
	if p.Faculty != nil {
		fields = append(fields, "faculty")
	}
	if p.Course != nil {
		fields = append(fields, "course")
	}
	if p.Grade != nil {
		fields = append(fields, "grade")
	}
	return fields
}

// FacultyStats summarises the students of one faculty.
type FacultyStats struct {
	Faculty      string  `json:"faculty"`
	AverageGrade float64 `json:"average_grade"`
	StudentCount int64   `json:"student_count"`
}

// CourseStats summarises one course. LowGradeCount counts grades under DefaultLowGradeThreshold.
type CourseStats struct {
	Course        string  `json:"course"`
	AverageGrade  float64 `json:"average_grade"`
	LowGradeCount int64   `json:"low_grade_count"`
}

// ImportResult reports how many rows of a bulk import were stored.
type ImportResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// DeleteResult reports how many identifiers of a bulk delete removed a student.
type DeleteResult struct {
	Deleted int64 `json:"deleted"`
	Skipped int   `json:"skipped"`
}

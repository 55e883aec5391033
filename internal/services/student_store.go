package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/rosterd/internal/models"
	apperrors "github.com/charlesng35/rosterd/pkg/errors"
)

// DefaultLowGradeThreshold is the exclusive upper bound for a "low" grade.
const DefaultLowGradeThreshold = 30

// StudentFilter narrows a student listing. Zero values mean "any"; grade bounds are inclusive.
type StudentFilter struct {
	Faculty  string
	Course   string
	MinGrade *int
	MaxGrade *int
}

// IsZero reports whether the filter selects every student.
func (f StudentFilter) IsZero() bool {
	return strings.TrimSpace(f.Faculty) == "" &&
		strings.TrimSpace(f.Course) == "" &&
		f.MinGrade == nil &&
		f.MaxGrade == nil
}

// Canonical renders the filter as a stable, order-independent string.
func (f StudentFilter) Canonical() string {
	values := url.Values{}
	if faculty := strings.TrimSpace(f.Faculty); faculty != "" {
		values.Set("faculty", faculty)
	}
	if course := strings.TrimSpace(f.Course); course != "" {
		values.Set("course", course)
	}
	if f.MinGrade != nil {
		values.Set("min_grade", strconv.Itoa(*f.MinGrade))
	}
	if f.MaxGrade != nil {
		values.Set("max_grade", strconv.Itoa(*f.MaxGrade))
	}
	return values.Encode()
}

// GradeSummary aggregates grades over a group of students.
type GradeSummary struct {
	Count   int64
	Average float64
}

// StudentStore persists students. It is the source of truth the cache is kept consistent with.
type StudentStore struct {
	db *gorm.DB
}

// NewStudentStore constructs a StudentStore.
func NewStudentStore(db *gorm.DB) (*StudentStore, error) {
	if db == nil {
		return nil, errors.New("student store: db is required")
	}
	return &StudentStore{db: db}, nil
}

// Create inserts student, assigning a fresh identifier.
func (s *StudentStore) Create(ctx context.Context, student *models.Student) error {
	ctx = ensureContext(ctx)
	if err := s.db.WithContext(ctx).Create(student).Error; err != nil {
		return storeError("create student", err)
	}
	return nil
}

// CreateBatch inserts students one by one and reports which rows failed.
// A failing row does not prevent later rows from being stored.
func (s *StudentStore) CreateBatch(ctx context.Context, students []models.Student) (int, []error) {
	ctx = ensureContext(ctx)

	var (
		created int
		errs    []error
	)
	for i := range students {
		if err := s.db.WithContext(ctx).Create(&students[i]).Error; err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		created++
	}
	return created, errs
}

// Get loads a student by identifier.
func (s *StudentStore) Get(ctx context.Context, id string) (*models.Student, error) {
	ctx = ensureContext(ctx)

	id, ok := normaliseID(id)
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	var student models.Student
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, storeError("get student", err)
	}
	return &student, nil
}

// List returns students matching filter ordered by creation.
func (s *StudentStore) List(ctx context.Context, filter StudentFilter) ([]models.Student, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Student{})
	if faculty := strings.TrimSpace(filter.Faculty); faculty != "" {
		query = query.Where("faculty = ?", faculty)
	}
	if course := strings.TrimSpace(filter.Course); course != "" {
		query = query.Where("course = ?", course)
	}
	if filter.MinGrade != nil {
		query = query.Where("grade >= ?", *filter.MinGrade)
	}
	if filter.MaxGrade != nil {
		query = query.Where("grade <= ?", *filter.MaxGrade)
	}

	students := make([]models.Student, 0)
	if err := query.Order("created_at ASC").Order("id ASC").Find(&students).Error; err != nil {
		return nil, storeError("list students", err)
	}
	return students, nil
}

// Update applies patch to the student inside a transaction and returns the stored result.
// The row is locked for the duration and only the patched columns are written.
func (s *StudentStore) Update(ctx context.Context, id string, patch StudentPatch) (*models.Student, error) {
	ctx = ensureContext(ctx)

	id, ok := normaliseID(id)
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	fields := patch.Fields()

	var student models.Student
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&student).Error; err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		patch.apply(&student)
		if err := tx.Model(&student).Select(fields).Updates(&student).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Take(&student).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, storeError("update student", err)
	}
	return &student, nil
}

// Delete removes a student. Deleting a missing student yields ErrNotFound.
func (s *StudentStore) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	id, ok := normaliseID(id)
	if !ok {
		return apperrors.ErrNotFound
	}

	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Student{})
	if result.Error != nil {
		return storeError("delete student", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DeleteMany removes the students with the given identifiers and returns how many existed.
func (s *StudentStore) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	ctx = ensureContext(ctx)

	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if id, ok := normaliseID(id); ok {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Where("id IN ?", valid).Delete(&models.Student{})
	if result.Error != nil {
		return 0, storeError("delete students", result.Error)
	}
	return result.RowsAffected, nil
}

// Faculties returns the distinct faculty names in alphabetical order.
func (s *StudentStore) Faculties(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "faculty")
}

// Courses returns the distinct course names in alphabetical order.
func (s *StudentStore) Courses(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "course")
}

// SummariseGrades aggregates the grades of students whose column equals value.
// When below is positive only grades strictly under it are counted.
func (s *StudentStore) SummariseGrades(ctx context.Context, column, value string, below int) (GradeSummary, error) {
	ctx = ensureContext(ctx)

	if column != "faculty" && column != "course" {
		return GradeSummary{}, fmt.Errorf("student store: cannot group by %q", column)
	}

	var row struct {
		Count   int64
		Average *float64
	}
	query := s.db.WithContext(ctx).Model(&models.Student{}).
		Select("COUNT(*) AS count, AVG(grade) AS average").
		Where(column+" = ?", value)
	if below > 0 {
		query = query.Where("grade < ?", below)
	}
	if err := query.Scan(&row).Error; err != nil {
		return GradeSummary{}, storeError("summarise grades", err)
	}

	summary := GradeSummary{Count: row.Count}
	if row.Average != nil {
		summary.Average = roundGrade(*row.Average)
	}
	return summary, nil
}

func (s *StudentStore) distinct(ctx context.Context, column string) ([]string, error) {
	ctx = ensureContext(ctx)

	values := make([]string, 0)
	err := s.db.WithContext(ctx).Model(&models.Student{}).
		Distinct(column).
		Order(column + " ASC").
		Pluck(column, &values).Error
	if err != nil {
		return nil, storeError("list "+column+" values", err)
	}
	return values, nil
}

func storeError(action string, err error) error {
	return apperrors.ErrStoreUnavailable.WithInternal(fmt.Errorf("student store: %s: %w", action, err))
}

// normaliseID returns the canonical form of id and whether it is a well-formed UUID.
func normaliseID(id string) (string, bool) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

func roundGrade(value float64) float64 {
	return math.Round(value*100) / 100
}

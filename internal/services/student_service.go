package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/charlesng35/rosterd/internal/auditctx"
	"github.com/charlesng35/rosterd/internal/cache"
	"github.com/charlesng35/rosterd/internal/models"
	apperrors "github.com/charlesng35/rosterd/pkg/errors"
	"github.com/charlesng35/rosterd/pkg/logger"
	"github.com/charlesng35/rosterd/pkg/validator"
)

// StudentService serves student reads through the cache and wraps every
// mutation with cache invalidation. A mutation commits to the store first and
// invalidates before returning; invalidation failures never undo the commit.
type StudentService struct {
	store       *StudentStore
	cache       *cache.Layer
	invalidator *Invalidator
	audit       *AuditService
	log         *zap.Logger

	group singleflight.Group

	// generation advances on every invalidation. A read that started under an
	// older generation must not write its result back to the cache.
	generation atomic.Uint64
	// fillMu orders cache fills (read lock) against invalidation passes (write lock).
	fillMu sync.RWMutex
}

// StudentServiceOption customises a StudentService.
type StudentServiceOption func(*StudentService)

// WithStudentAudit records mutations in the audit trail.
func WithStudentAudit(audit *AuditService) StudentServiceOption {
	return func(s *StudentService) {
		s.audit = audit
	}
}

// NewStudentService constructs a StudentService. layer may be nil to run without a cache.
func NewStudentService(store *StudentStore, layer *cache.Layer, opts ...StudentServiceOption) (*StudentService, error) {
	if store == nil {
		return nil, errors.New("student service: store is required")
	}

	log := logger.WithModule("students")
	svc := &StudentService{
		store:       store,
		cache:       layer,
		invalidator: NewInvalidator(layer, log),
		log:         log,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create validates and stores a new student.
func (s *StudentService) Create(ctx context.Context, input StudentInput) (*models.Student, error) {
	ctx = ensureContext(ctx)

	input = input.normalised()
	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.NewValidation(validator.Message(err))
	}

	student := input.model()
	if err := s.store.Create(ctx, &student); err != nil {
		return nil, err
	}

	s.invalidate(ctx, "create")
	s.recordMutation(ctx, AuditActionStudentCreate, student.ID, map[string]any{
		"surname": student.Surname,
		"faculty": student.Faculty,
		"course":  student.Course,
	})
	return &student, nil
}

// Get returns a student by identifier.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	ctx = ensureContext(ctx)

	id, ok := normaliseID(id)
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cachedRead(ctx, s, StudentKey(id), func(ctx context.Context) (*models.Student, error) {
		return s.store.Get(ctx, id)
	})
}

// List returns the students matching filter.
func (s *StudentService) List(ctx context.Context, filter StudentFilter) ([]models.Student, error) {
	ctx = ensureContext(ctx)

	return cachedRead(ctx, s, studentsQueryKey(filter), func(ctx context.Context) ([]models.Student, error) {
		return s.store.List(ctx, filter)
	})
}

// Update applies patch to a student. An empty patch is rejected.
func (s *StudentService) Update(ctx context.Context, id string, patch StudentPatch) (*models.Student, error) {
	ctx = ensureContext(ctx)

	if patch.IsEmpty() {
		return nil, apperrors.NewValidation("no fields to update")
	}
	patch = patch.normalised()
	if err := validator.ValidateStruct(patch); err != nil {
		return nil, apperrors.NewValidation(validator.Message(err))
	}

	student, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, "update", student.ID)
	s.recordMutation(ctx, AuditActionStudentUpdate, student.ID, map[string]any{"fields": patch.Fields()})
	return student, nil
}

// Delete removes a student.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	if canonical, ok := normaliseID(id); ok {
		id = canonical
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, "delete", id)
	s.recordMutation(ctx, AuditActionStudentDelete, id, nil)
	return nil
}

// Import stores every valid input and skips the rest, then invalidates once.
func (s *StudentService) Import(ctx context.Context, inputs []StudentInput) (ImportResult, error) {
	ctx = ensureContext(ctx)

	result := ImportResult{}
	students := make([]models.Student, 0, len(inputs))
	for i, input := range inputs {
		input = input.normalised()
		if err := validator.ValidateStruct(input); err != nil {
			result.Skipped++
			s.log.Debug("skipping invalid import row", zap.Int("row", i+1), zap.String("reason", validator.Message(err)))
			continue
		}
		students = append(students, input.model())
	}

	created, errs := s.store.CreateBatch(ctx, students)
	result.Created = created
	result.Skipped += len(errs)
	for _, err := range errs {
		s.log.Warn("import row not stored", zap.Error(err))
	}

	if created > 0 {
		s.invalidate(ctx, "bulk_load")
	}
	if created == 0 && len(errs) > 0 {
		return result, apperrors.ErrStoreUnavailable.WithInternal(errs[0])
	}
	return result, nil
}

// DeleteMany removes the students with the given identifiers. Malformed or
// unknown identifiers are skipped.
func (s *StudentService) DeleteMany(ctx context.Context, ids []string) (DeleteResult, error) {
	ctx = ensureContext(ctx)

	ids = normaliseIDs(ids)
	if len(ids) == 0 {
		return DeleteResult{}, apperrors.NewValidation("no student ids supplied")
	}

	deleted, err := s.store.DeleteMany(ctx, ids)
	if err != nil {
		return DeleteResult{}, err
	}

	result := DeleteResult{Deleted: deleted, Skipped: len(ids) - int(deleted)}
	if deleted > 0 {
		s.invalidate(ctx, "bulk_delete", ids...)
	}
	return result, nil
}

// Faculties lists the distinct faculties.
func (s *StudentService) Faculties(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)
	return cachedRead(ctx, s, keyFacultiesAll, s.store.Faculties)
}

// Courses lists the distinct courses.
func (s *StudentService) Courses(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)
	return cachedRead(ctx, s, keyCoursesAll, s.store.Courses)
}

// FacultyStats returns the average grade and head count of a faculty. A faculty without students is NotFound.
func (s *StudentService) FacultyStats(ctx context.Context, faculty string) (*FacultyStats, error) {
	ctx = ensureContext(ctx)

	return cachedRead(ctx, s, facultyStatsKey(faculty), func(ctx context.Context) (*FacultyStats, error) {
		summary, err := s.store.SummariseGrades(ctx, "faculty", faculty, 0)
		if err != nil {
			return nil, err
		}
		if summary.Count == 0 {
			return nil, apperrors.ErrNotFound.WithMessage("Faculty not found")
		}
		return &FacultyStats{Faculty: faculty, AverageGrade: summary.Average, StudentCount: summary.Count}, nil
	})
}

// FacultyStudents lists the students of a faculty. A faculty without students is NotFound.
func (s *StudentService) FacultyStudents(ctx context.Context, faculty string) ([]models.Student, error) {
	ctx = ensureContext(ctx)

	return cachedRead(ctx, s, facultyStudentsKey(faculty), func(ctx context.Context) ([]models.Student, error) {
		students, err := s.store.List(ctx, StudentFilter{Faculty: faculty})
		if err != nil {
			return nil, err
		}
		if len(students) == 0 {
			return nil, apperrors.ErrNotFound.WithMessage("Faculty not found")
		}
		return students, nil
	})
}

// CourseStats returns the average grade of a course and how many of its grades are low.
func (s *StudentService) CourseStats(ctx context.Context, course string) (*CourseStats, error) {
	ctx = ensureContext(ctx)

	return cachedRead(ctx, s, courseStatsKey(course), func(ctx context.Context) (*CourseStats, error) {
		all, err := s.store.SummariseGrades(ctx, "course", course, 0)
		if err != nil {
			return nil, err
		}
		low, err := s.store.SummariseGrades(ctx, "course", course, DefaultLowGradeThreshold)
		if err != nil {
			return nil, err
		}
		return &CourseStats{Course: course, AverageGrade: all.Average, LowGradeCount: low.Count}, nil
	})
}

// LowGrades lists the students of a course graded strictly below maxGrade.
// A non-positive maxGrade selects DefaultLowGradeThreshold.
func (s *StudentService) LowGrades(ctx context.Context, course string, maxGrade int) ([]models.Student, error) {
	ctx = ensureContext(ctx)

	if maxGrade <= 0 {
		maxGrade = DefaultLowGradeThreshold
	}
	upper := maxGrade - 1
	return cachedRead(ctx, s, lowGradesKey(course, maxGrade), func(ctx context.Context) ([]models.Student, error) {
		return s.store.List(ctx, StudentFilter{Course: course, MaxGrade: &upper})
	})
}

// ClearCache drops every cached entry.
func (s *StudentService) ClearCache(ctx context.Context) bool {
	ctx = ensureContext(ctx)

	s.fillMu.Lock()
	s.generation.Add(1)
	ok := s.cache.Clear(context.WithoutCancel(ctx))
	s.fillMu.Unlock()

	result := "success"
	if !ok {
		result = "failure"
	}
	s.recordAudit(ctx, AuditActionCacheClear, "cache", result, nil)
	return ok
}

func (s *StudentService) invalidate(ctx context.Context, trigger string, ids ...string) {
	// The mutation has committed; a cancelled request must not skip eviction.
	ctx = context.WithoutCancel(ctx)

	s.fillMu.Lock()
	defer s.fillMu.Unlock()

	s.generation.Add(1)
	s.invalidator.Invalidate(ctx, trigger, ids...)
}

func (s *StudentService) recordMutation(ctx context.Context, action, resource string, metadata map[string]any) {
	s.recordAudit(ctx, action, resource, "success", metadata)
}

func (s *StudentService) recordAudit(ctx context.Context, action, resource, result string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	actor, _ := auditctx.FromContext(ctx)
	recordAudit(s.audit, context.WithoutCancel(ctx), AuditEntry{
		Username:  actor.Username,
		IPAddress: actor.IPAddress,
		Action:    action,
		Resource:  resource,
		Result:    result,
		Metadata:  metadata,
	})
}

// cachedRead serves key from the cache or runs load, caching a successful
// result. Concurrent misses for the same key share one load. Errors, including
// NotFound, are never cached.
func cachedRead[T any](ctx context.Context, s *StudentService, key string, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	generation := s.generation.Load()
	flightKey := key + "#" + strconv.FormatUint(generation, 10)

	value, err, _ := s.group.Do(flightKey, func() (interface{}, error) {
		loadCtx := context.WithoutCancel(ctx)
		result, err := load(loadCtx)
		if err != nil {
			return nil, err
		}

		s.fillMu.RLock()
		if s.generation.Load() == generation {
			s.cache.PutJSON(loadCtx, key, result, 0)
		}
		s.fillMu.RUnlock()

		return result, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return value.(T), nil
}

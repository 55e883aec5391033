package services

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/rosterd/internal/cache"
	"github.com/charlesng35/rosterd/pkg/metrics"
)

// Cache namespaces derived from the students collection.
const (
	NamespaceStudents  = "students"
	NamespaceFaculties = "faculties"
	NamespaceCourses   = "courses"
)

// StudentNamespaces lists the patterns evicted after any student mutation.
var StudentNamespaces = []string{
	NamespaceStudents + ":*",
	NamespaceFaculties + ":*",
	NamespaceCourses + ":*",
}

const (
	keyStudentsAll  = NamespaceStudents + ":all"
	keyFacultiesAll = NamespaceFaculties + ":all"
	keyCoursesAll   = NamespaceCourses + ":all"
)

// StudentKey is the cache key of a single student. Per-record keys live under
// their own prefix so no identifier can collide with a listing key.
func StudentKey(id string) string {
	if canonical, ok := normaliseID(id); ok {
		id = canonical
	}
	return NamespaceStudents + ":id:" + strings.TrimSpace(id)
}

func studentsQueryKey(filter StudentFilter) string {
	if filter.IsZero() {
		return keyStudentsAll
	}
	return NamespaceStudents + ":query:" + filter.Canonical()
}

func facultyStatsKey(faculty string) string {
	return NamespaceFaculties + ":" + faculty + ":stats"
}

func facultyStudentsKey(faculty string) string {
	return NamespaceFaculties + ":" + faculty + ":students"
}

func courseStatsKey(course string) string {
	return NamespaceCourses + ":" + course + ":stats"
}

func lowGradesKey(course string, maxGrade int) string {
	return NamespaceCourses + ":" + course + ":low_grades:" + strconv.Itoa(maxGrade)
}

// Invalidator evicts cached query results after a committed mutation. Eviction
// only deletes, so repeating it leaves the cache in the same state.
type Invalidator struct {
	cache *cache.Layer
	log   *zap.Logger
}

// NewInvalidator constructs an Invalidator over layer.
func NewInvalidator(layer *cache.Layer, log *zap.Logger) *Invalidator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Invalidator{cache: layer, log: log}
}

// Invalidate deletes the per-student keys of ids and then every student namespace.
// Failures are logged by the cache layer and never reported to the caller.
func (i *Invalidator) Invalidate(ctx context.Context, trigger string, ids ...string) {
	if i == nil || i.cache == nil {
		return
	}

	if len(ids) > 0 {
		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, StudentKey(id))
		}
		i.cache.Delete(ctx, keys...)
	}

	var removed int64
	for _, pattern := range StudentNamespaces {
		removed += i.cache.DeleteByPattern(ctx, pattern)
		metrics.CacheInvalidations.WithLabelValues(strings.TrimSuffix(pattern, ":*"), trigger).Inc()
	}

	i.log.Debug("cache invalidated",
		zap.String("trigger", trigger),
		zap.Int("ids", len(ids)),
		zap.Int64("removed", removed),
	)
}

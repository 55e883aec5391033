package jobs

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/rosterd/internal/auditctx"
	"github.com/charlesng35/rosterd/internal/cache"
	"github.com/charlesng35/rosterd/internal/database/testutil"
	"github.com/charlesng35/rosterd/internal/services"
)

type bulkFixture struct {
	runner   *Runner
	students *services.StudentService
	audit    *services.AuditService
	layer    *cache.Layer
}

func newBulkFixture(t *testing.T) *bulkFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := services.NewStudentStore(db)
	require.NoError(t, err)
	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	layer := cache.NewLayer(cache.NewMemoryStore())
	students, err := services.NewStudentService(store, layer, services.WithStudentAudit(audit))
	require.NoError(t, err)

	runner := NewRunner(Config{Workers: 1},
		WithHandler(KindBulkLoad, BulkLoadHandler(students, audit)),
		WithHandler(KindBulkDelete, BulkDeleteHandler(students, audit)),
	)
	t.Cleanup(func() { _ = runner.Stop(context.Background()) })

	return &bulkFixture{runner: runner, students: students, audit: audit, layer: layer}
}

func TestParseStudentCSVAcceptsRussianHeaders(t *testing.T) {
	data := []byte("\ufeffФамилия,Имя,Факультет,Курс,Оценка\n" +
		"Иванов,Иван,ФПМИ,Мат. Анализ,85\n" +
		"Петров,Пётр,ФПМИ,Физика,abc\n" +
		"Сидоров,Сидор,ФПМИ\n")

	inputs, malformed, err := ParseStudentCSV(data)
	require.NoError(t, err)
	require.Equal(t, 2, malformed)
	require.Len(t, inputs, 1)
	require.Equal(t, "Иванов", inputs[0].Surname)
	require.Equal(t, "Мат. Анализ", inputs[0].Course)
	require.Equal(t, 85, inputs[0].Grade)
}

func TestParseStudentCSVAcceptsReorderedEnglishHeaders(t *testing.T) {
	inputs, malformed, err := ParseStudentCSV([]byte("grade,course,faculty,name,surname\n40,Algebra,Math,Alice,Smith\n"))
	require.NoError(t, err)
	require.Zero(t, malformed)
	require.Equal(t, []services.StudentInput{{Surname: "Smith", Name: "Alice", Faculty: "Math", Course: "Algebra", Grade: 40}}, inputs)
}

func TestParseStudentCSVRequiresHeader(t *testing.T) {
	_, _, err := ParseStudentCSV(nil)
	require.Error(t, err)

	_, _, err = ParseStudentCSV([]byte("surname,name,faculty\n"))
	require.ErrorContains(t, err, "course")
}

func TestBulkLoadJobSkipsBadRowsAndRefreshesListings(t *testing.T) {
	fx := newBulkFixture(t)
	ctx := auditctx.WithActor(context.Background(), auditctx.Actor{Username: "alice"})

	before, err := fx.students.List(ctx, services.StudentFilter{})
	require.NoError(t, err)
	require.Empty(t, before)

	data := []byte("surname,name,faculty,course,grade\n" +
		"Smith,Alice,Math,Algebra,80\n" +
		"Lee,Bo,Math,Algebra,150\n" +
		"Kim,Jo,Physics,Optics,x\n" +
		"Park,Min,Physics,Optics,20\n")
	require.NoError(t, fx.runner.Submit(ctx, KindBulkLoad, data))
	waitIdle(t, fx.runner)

	after, err := fx.students.List(ctx, services.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, after, 2)

	logs, _, err := fx.audit.List(context.Background(), services.AuditListOptions{
		Filters: services.AuditFilters{Username: "alice", Action: services.AuditActionBulkLoad},
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "success", logs[0].Result)
	require.Contains(t, logs[0].Metadata, `"skipped":2`)
}

func TestBulkDeleteJobSkipsUnknownIDs(t *testing.T) {
	fx := newBulkFixture(t)
	ctx := context.Background()

	first, err := fx.students.Create(ctx, services.StudentInput{Surname: "A", Name: "A", Faculty: "Math", Course: "Algebra", Grade: 10})
	require.NoError(t, err)
	second, err := fx.students.Create(ctx, services.StudentInput{Surname: "B", Name: "B", Faculty: "Math", Course: "Algebra", Grade: 20})
	require.NoError(t, err)

	_, err = fx.students.Get(ctx, first.ID)
	require.NoError(t, err)

	require.NoError(t, fx.runner.Submit(ctx, KindBulkDelete, []string{first.ID, "not-a-uuid", uuid.NewString()}))
	waitIdle(t, fx.runner)

	_, ok := fx.layer.Get(ctx, services.StudentKey(first.ID))
	require.False(t, ok)

	remaining, err := fx.students.List(ctx, services.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, second.ID, remaining[0].ID)
}

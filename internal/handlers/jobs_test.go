package handlers_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/rosterd/internal/handlers/testutil"
	"github.com/charlesng35/rosterd/internal/models"
)

const rosterCSV = "Фамилия,Имя,Факультет,Курс,Оценка\n" +
	"Ivanov,Ivan,Math,Algebra,90\n" +
	"Petrov,Petr,Math,Geometry,abc\n" +
	"Sidorova,Anna,Physics,Optics,45\n"

func TestJobHandler_LoadRawBody(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.RegisterAndLogin("alice", "s3cret!")

	// Cache an empty listing first; the job must evict it.
	require.Empty(t, listStudents(t, env, token, ""))

	req, err := http.NewRequest(http.MethodPost, "/api/jobs/load", strings.NewReader(rosterCSV))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/csv")

	w := env.Do(req, token)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	env.WaitForJobs()

	students := listStudents(t, env, token, "")
	require.Len(t, students, 2)
	require.Len(t, listStudents(t, env, token, "?faculty=Physics"), 1)
}

func TestJobHandler_LoadMultipart(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.RegisterAndLogin("alice", "s3cret!")

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "students.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("surname,name,faculty,course,grade\nIvanov,Ivan,Math,Algebra,90\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, "/api/jobs/load", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := env.Do(req, token)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	env.WaitForJobs()
	require.Len(t, listStudents(t, env, token, ""), 1)
}

func TestJobHandler_LoadRejectsEmptyBody(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.RegisterAndLogin("alice", "s3cret!")

	req, err := http.NewRequest(http.MethodPost, "/api/jobs/load", strings.NewReader("  \n"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/csv")

	w := env.Do(req, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobHandler_BulkDelete(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.RegisterAndLogin("alice", "s3cret!")

	first := createStudent(t, env, token, map[string]any{
		"surname": "Ivanov", "name": "Ivan", "faculty": "Math", "course": "Algebra", "grade": 90,
	})
	second := createStudent(t, env, token, map[string]any{
		"surname": "Petrov", "name": "Petr", "faculty": "Math", "course": "Algebra", "grade": 50,
	})
	require.Len(t, listStudents(t, env, token, ""), 2)

	w := env.Request(http.MethodPost, "/api/jobs/delete", map[string]any{
		"ids": []string{first.ID, "00000000-0000-0000-0000-000000000000"},
	}, token)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	env.WaitForJobs()

	remaining := listStudents(t, env, token, "")
	require.Len(t, remaining, 1)
	require.Equal(t, second.ID, remaining[0].ID)

	w = env.Request(http.MethodGet, "/api/students/"+first.ID, nil, token)
	require.Equal(t, http.StatusNotFound, w.Code)

	var logs []models.AuditLog
	require.NoError(t, env.DB.Where("action = ?", "job.bulk_delete").Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Equal(t, "alice", logs[0].Username)
}

func TestJobHandler_BulkDeleteValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.RegisterAndLogin("alice", "s3cret!")

	w := env.Request(http.MethodPost, "/api/jobs/delete", map[string]any{"ids": []string{}}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "VALIDATION_ERROR", testutil.DecodeResponse(t, w).Error.Code)
}

func TestJobHandler_RequiresToken(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/jobs/delete", map[string]any{"ids": []string{"x"}}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

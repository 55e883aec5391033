package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/rosterd/internal/handlers/testutil"
)

func TestRosterLifecycle(t *testing.T) {
	env := testutil.NewEnv(t)

	env.Register("alice", "secret123")

	w := env.Request(http.MethodPost, "/api/auth/register", map[string]string{"username": "alice", "password": "other"}, "")
	require.Equal(t, http.StatusConflict, w.Code)

	w = env.Request(http.MethodPost, "/api/auth/login", map[string]string{"username": "alice", "password": "wrong"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "INVALID_CREDENTIALS", testutil.DecodeResponse(t, w).Error.Code)

	token := env.Login("alice", "secret123").AccessToken

	// Listing cached while empty must not hide the new record.
	require.Empty(t, listStudents(t, env, token, ""))

	record := createStudent(t, env, token, map[string]any{
		"surname": "Ivanov", "name": "Ivan", "faculty": "Math", "course": "Algebra", "grade": 85,
	})
	listed := listStudents(t, env, token, "")
	require.Len(t, listed, 1)
	require.Equal(t, record.ID, listed[0].ID)

	w = env.Request(http.MethodPost, "/api/students", map[string]any{
		"surname": "Petrov", "name": "Petr", "faculty": "Math", "course": "Algebra", "grade": 150,
	}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, listStudents(t, env, token, ""), 1)

	// Cache the single read right before the bulk delete is submitted.
	w = env.Request(http.MethodGet, "/api/students/"+record.ID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodPost, "/api/jobs/delete", map[string]any{"ids": []string{record.ID}}, token)
	require.Equal(t, http.StatusAccepted, w.Code)
	env.WaitForJobs()

	w = env.Request(http.MethodGet, "/api/students/"+record.ID, nil, token)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Empty(t, listStudents(t, env, token, ""))
}

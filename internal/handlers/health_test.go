package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/rosterd/internal/monitoring"
)

func serveHealth(t *testing.T, checks ...monitoring.Check) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/health", Health(monitoring.NewHealthManager(checks...)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func staticCheck(name string, status monitoring.ProbeStatus) monitoring.Check {
	return monitoring.NewCheck(name, func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: status}
	})
}

func TestHealth_DegradedCacheStillServes(t *testing.T) {
	w, body := serveHealth(t,
		staticCheck("database", monitoring.StatusUp),
		staticCheck("cache", monitoring.StatusDegraded),
	)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "degraded", body["status"])
	require.Equal(t, true, body["success"])
}

func TestHealth_StoreDownIsUnavailable(t *testing.T) {
	w, body := serveHealth(t, staticCheck("database", monitoring.StatusDown))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "down", body["status"])
	require.Equal(t, false, body["success"])
}

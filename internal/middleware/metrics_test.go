package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/rosterd/pkg/metrics"
)

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/students/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.CollectAndCount(metrics.APILatency)
	for _, path := range []string{"/api/students/a", "/api/students/b", "/nope/1", "/nope/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	// One series for the student route and one for every unmatched path.
	require.LessOrEqual(t, testutil.CollectAndCount(metrics.APILatency)-before, 2)
	require.NotNil(t, metrics.APILatency.WithLabelValues(http.MethodGet, "/api/students/:id", "200"))
	require.NotNil(t, metrics.APILatency.WithLabelValues(http.MethodGet, UnmatchedRoute, "404"))
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rosterd/internal/monitoring"
)

// Health reports dependency readiness. A degraded cache still answers 200
// because reads fall through to the record store.
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := manager.Evaluate(requestContext(c))

		status := http.StatusOK
		if !report.Serving() {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"success":    report.Serving(),
			"status":     report.Status,
			"checks":     report.Checks,
			"checked_at": report.CheckedAt,
		})
	}
}

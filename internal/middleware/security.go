package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultContentSecurityPolicy forbids every resource; the API only serves JSON.
	DefaultContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

	apiPrefix = "/api/"
)

// SecurityHeaders sets the response hardening headers. Responses under /api/
// carry student records and credentials and are marked uncacheable.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		h.Set("Content-Security-Policy", DefaultContentSecurityPolicy)
		h.Set("Referrer-Policy", "no-referrer")
		if strings.HasPrefix(c.Request.URL.Path, apiPrefix) {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
		}
		c.Next()
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rosterd/internal/services"
	"github.com/charlesng35/rosterd/pkg/response"
)

// CacheHandler exposes administrative cache operations.
type CacheHandler struct {
	svc *services.StudentService
}

func NewCacheHandler(svc *services.StudentService) *CacheHandler {
	return &CacheHandler{svc: svc}
}

// POST /api/cache/clear
func (h *CacheHandler) Clear(c *gin.Context) {
	cleared := h.svc.ClearCache(requestContext(c))
	response.Success(c, http.StatusOK, gin.H{"cleared": cleared})
}

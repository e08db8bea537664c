package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-sla/internal/services"
	"github.com/platformbuilds/mirador-sla/pkg/cache"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

type HealthHandler struct {
	registry *services.SLARegistryService
	cache    cache.Valkey
	logger   logger.Logger
	started  time.Time
}

func NewHealthHandler(registry *services.SLARegistryService, valkey cache.Valkey, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		registry: registry,
		cache:    valkey,
		logger:   log,
		started:  time.Now(),
	}
}

// GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "mirador-sla",
		"uptime":  time.Since(h.started).String(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// GET /ready
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	checks := gin.H{
		"registry": "ok",
	}

	// the cache is best-effort; a failed round-trip degrades but does not
	// fail readiness
	cacheStatus := "ok"
	if err := h.cache.Set(c.Request.Context(), "health:probe", "ok", time.Minute); err != nil {
		cacheStatus = "degraded"
		h.logger.Warn("cache readiness probe failed", "error", err)
	}
	checks["cache"] = cacheStatus

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": checks,
	})
}

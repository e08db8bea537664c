package handlers

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-sla/internal/breach"
	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/internal/services"
	"github.com/platformbuilds/mirador-sla/pkg/cache"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

// statisticsCacheTTL bounds how stale a cached statistics aggregation may be.
const statisticsCacheTTL = 30 * time.Second

type BreachHandler struct {
	monitor *services.SLAMonitorService
	cache   cache.Valkey
	logger  logger.Logger
}

func NewBreachHandler(monitor *services.SLAMonitorService, valkey cache.Valkey, log logger.Logger) *BreachHandler {
	return &BreachHandler{monitor: monitor, cache: valkey, logger: log}
}

// GET /api/v1/breaches/active?sla_id=
func (h *BreachHandler) GetActiveBreaches(c *gin.Context) {
	breaches, err := h.monitor.ActiveBreaches(c.Request.Context(), c.Query("sla_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"breaches": breaches, "count": len(breaches)}})
}

// GET /api/v1/breaches/history?sla_id=&from=&to=
func (h *BreachHandler) GetBreachHistory(c *gin.Context) {
	from, to, err := parseTimeRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}

	breaches, err := h.monitor.BreachHistory(c.Request.Context(), c.Query("sla_id"), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"breaches": breaches, "count": len(breaches)}})
}

// GET /api/v1/breaches/statistics?from=&to=
func (h *BreachHandler) GetBreachStatistics(c *gin.Context) {
	from, to, err := parseTimeRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}

	// Check the query-result cache before aggregating; the hash covers the
	// raw range params so identical queries share one entry.
	queryHash := statisticsQueryHash(c.Query("from"), c.Query("to"))
	if cached, err := h.cache.GetCachedQueryResult(c.Request.Context(), queryHash); err == nil {
		var stats models.BreachStatistics
		if json.Unmarshal(cached, &stats) == nil {
			c.Header("X-Cache", "HIT")
			c.JSON(http.StatusOK, gin.H{"status": "success", "data": &stats})
			return
		}
	}

	stats, err := h.monitor.BreachStatistics(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}

	if err := h.cache.CacheQueryResult(c.Request.Context(), queryHash, stats, statisticsCacheTTL); err != nil {
		h.logger.Warn("failed to cache statistics result", "error", err)
	}
	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": stats})
}

func statisticsQueryHash(from, to string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("breach-stats:%s:%s", from, to)))
	return fmt.Sprintf("%x", sum)
}

// GET /api/v1/breaches/:id
func (h *BreachHandler) GetBreach(c *gin.Context) {
	b, err := h.monitor.GetBreach(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": b})
}

// BreachActionRequest carries the actor and context for acknowledge/resolve.
type BreachActionRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	Comment    string `json:"comment,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

// PUT /api/v1/breaches/:id/acknowledge
func (h *BreachHandler) AcknowledgeBreach(c *gin.Context) {
	var req BreachActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}

	b, err := h.monitor.AcknowledgeBreach(c.Request.Context(), c.Param("id"), req.UserID, req.Comment)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, breach.ErrBreachNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": b})
}

// PUT /api/v1/breaches/:id/resolve
func (h *BreachHandler) ResolveBreach(c *gin.Context) {
	var req BreachActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}

	b, err := h.monitor.ResolveBreach(c.Request.Context(), c.Param("id"), req.UserID, req.Resolution)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, breach.ErrBreachNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": b})
}

// parseTimeRange reads from/to query params (RFC3339), defaulting to the
// trailing 24 hours.
func parseTimeRange(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.Add(-24 * time.Hour)
	to := now

	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}
	return from, to, nil
}

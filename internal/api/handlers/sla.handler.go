package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/internal/services"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

type SLAHandler struct {
	registry   *services.SLARegistryService
	monitor    *services.SLAMonitorService
	compliance *services.ComplianceService
	logger     logger.Logger
}

func NewSLAHandler(
	registry *services.SLARegistryService,
	monitor *services.SLAMonitorService,
	compliance *services.ComplianceService,
	log logger.Logger,
) *SLAHandler {
	return &SLAHandler{
		registry:   registry,
		monitor:    monitor,
		compliance: compliance,
		logger:     log,
	}
}

// POST /api/v1/slas
func (h *SLAHandler) CreateSLA(c *gin.Context) {
	var def models.SLADefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}

	created, err := h.registry.CreateSLA(c.Request.Context(), &def)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, services.ErrSLAExists) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": created})
}

// GET /api/v1/slas
func (h *SLAHandler) ListSLAs(c *gin.Context) {
	list := h.registry.ListSLAs(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"slas": list, "count": len(list)}})
}

// GET /api/v1/slas/:id
func (h *SLAHandler) GetSLA(c *gin.Context) {
	def, err := h.registry.GetSLA(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": def})
}

// PUT /api/v1/slas/:id
func (h *SLAHandler) UpdateSLA(c *gin.Context) {
	var def models.SLADefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	def.ID = c.Param("id")

	updated, err := h.registry.UpdateSLA(c.Request.Context(), &def)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, services.ErrSLANotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": updated})
}

// DELETE /api/v1/slas/:id
func (h *SLAHandler) DeleteSLA(c *gin.Context) {
	if err := h.registry.DeleteSLA(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// MeasurementRequest is one metric observation posted against an SLA.
type MeasurementRequest struct {
	Value     float64    `json:"value" binding:"required"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// POST /api/v1/slas/:id/measurements
func (h *SLAHandler) RecordMeasurement(c *gin.Context) {
	var req MeasurementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}

	ts := time.Now()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	breaches, err := h.monitor.RecordMeasurement(c.Request.Context(), c.Param("id"), req.Value, ts)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrSLANotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"status": "error", "error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "success",
		"data": gin.H{
			"breaches_detected": len(breaches),
			"breaches":          breaches,
		},
	})
}

// GET /api/v1/slas/:id/patterns
func (h *SLAHandler) GetPatterns(c *gin.Context) {
	patterns, err := h.monitor.AnalyzePatterns(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrSLANotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"patterns": patterns, "count": len(patterns)}})
}

// GET /api/v1/slas/:id/compliance
func (h *SLAHandler) GetCompliance(c *gin.Context) {
	snapshot, err := h.compliance.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrSLANotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": snapshot})
}

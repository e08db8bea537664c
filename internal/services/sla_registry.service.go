// Package services wires the breach engine into the surfaces the rest of the
// platform talks to: the definition registry, metric intake, compliance
// scoring and the external event sink.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/pkg/cache"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

// ErrSLANotFound is returned for lookups of unknown SLA ids. Callers must
// treat it as a hard error; measurements against unknown SLAs are rejected,
// never silently dropped.
var ErrSLANotFound = errors.New("sla definition not found")

// ErrSLAExists is returned when creating a definition with an id already in
// use.
var ErrSLAExists = errors.New("sla definition already exists")

const (
	slaCacheKeyPrefix = "sla:def:"
	slaCacheTTL       = 5 * time.Minute
)

// SLARegistryService holds the SLA definitions the monitor evaluates against.
// The in-memory map is authoritative; the valkey layer is a read-through cache
// so API replicas can serve definition reads without hitting the owner.
type SLARegistryService struct {
	mu     sync.RWMutex
	defs   map[string]*models.SLADefinition
	cache  cache.Valkey
	logger logger.Logger
}

func NewSLARegistryService(valkey cache.Valkey, log logger.Logger) *SLARegistryService {
	return &SLARegistryService{
		defs:   make(map[string]*models.SLADefinition),
		cache:  valkey,
		logger: log,
	}
}

// CreateSLA validates and stores a new definition. A missing id is assigned.
func (s *SLARegistryService) CreateSLA(ctx context.Context, def *models.SLADefinition) (*models.SLADefinition, error) {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	if err := validateDefinition(def); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, ok := s.defs[def.ID]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("sla %s: %w", def.ID, ErrSLAExists)
	}
	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now
	stored := def.Clone()
	s.defs[def.ID] = stored
	s.mu.Unlock()

	s.cacheDefinition(ctx, stored)
	s.logger.Info("SLA definition created", "slaId", def.ID, "service", def.ServiceName, "metric", def.MetricType)
	return stored.Clone(), nil
}

// UpdateSLA replaces an existing definition, preserving its creation time.
func (s *SLARegistryService) UpdateSLA(ctx context.Context, def *models.SLADefinition) (*models.SLADefinition, error) {
	if err := validateDefinition(def); err != nil {
		return nil, err
	}

	s.mu.Lock()
	existing, ok := s.defs[def.ID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("sla %s: %w", def.ID, ErrSLANotFound)
	}
	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = time.Now()
	stored := def.Clone()
	s.defs[def.ID] = stored
	s.mu.Unlock()

	s.cacheDefinition(ctx, stored)
	s.logger.Info("SLA definition updated", "slaId", def.ID)
	return stored.Clone(), nil
}

// GetSLA returns one definition by id. Reads check the local map first and
// fall back to the cache, so a replica without the definition in memory can
// still serve it.
func (s *SLARegistryService) GetSLA(ctx context.Context, id string) (*models.SLADefinition, error) {
	s.mu.RLock()
	def, ok := s.defs[id]
	s.mu.RUnlock()
	if ok {
		return def.Clone(), nil
	}

	if data, err := s.cache.Get(ctx, slaCacheKeyPrefix+id); err == nil {
		var cached models.SLADefinition
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}
	return nil, fmt.Errorf("sla %s: %w", id, ErrSLANotFound)
}

// ListSLAs returns all definitions ordered by name.
func (s *SLARegistryService) ListSLAs(ctx context.Context) []*models.SLADefinition {
	s.mu.RLock()
	out := make([]*models.SLADefinition, 0, len(s.defs))
	for _, def := range s.defs {
		out = append(out, def.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DeleteSLA removes a definition and invalidates its cache entry.
func (s *SLARegistryService) DeleteSLA(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.defs[id]
	if ok {
		delete(s.defs, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("sla %s: %w", id, ErrSLANotFound)
	}

	if err := s.cache.Delete(ctx, slaCacheKeyPrefix+id); err != nil {
		s.logger.Warn("failed to invalidate SLA cache entry", "slaId", id, "error", err)
	}
	s.logger.Info("SLA definition deleted", "slaId", id)
	return nil
}

func (s *SLARegistryService) cacheDefinition(ctx context.Context, def *models.SLADefinition) {
	if err := s.cache.Set(ctx, slaCacheKeyPrefix+def.ID, def, slaCacheTTL); err != nil {
		s.logger.Warn("failed to cache SLA definition", "slaId", def.ID, "error", err)
	}
}

func validateDefinition(def *models.SLADefinition) error {
	if def.Name == "" {
		return fmt.Errorf("sla definition requires a name")
	}
	if def.ServiceName == "" {
		return fmt.Errorf("sla definition requires a service name")
	}
	if def.MetricType == "" {
		return fmt.Errorf("sla definition requires a metric type")
	}
	if def.TargetValue == 0 && def.Thresholds == (models.SLAThresholds{}) {
		return fmt.Errorf("sla definition requires a target value or thresholds")
	}
	for _, rule := range def.DetectionRules {
		if rule.Threshold == "" {
			return fmt.Errorf("detection rule %s requires a threshold tier", rule.ID)
		}
		if rule.ConsecutiveFailures < 0 {
			return fmt.Errorf("detection rule %s: consecutive failures must not be negative", rule.ID)
		}
	}
	return nil
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-sla/internal/breach"
	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/pkg/cache"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

const complianceCacheKeyPrefix = "sla:compliance:"

// severityPenalty weights breach severity into compliance deductions, in
// score points per breach.
var severityPenalty = map[models.Severity]float64{
	models.SeverityCritical: 10,
	models.SeverityHigh:     5,
	models.SeverityMedium:   2,
	models.SeverityLow:      1,
}

// ComplianceService computes the weighted compliance score for an SLA over a
// trailing window: time-based achievement minus severity-weighted breach
// penalties, clamped to [0,100]. Snapshots are cached so dashboards polling
// the score do not recompute it on every request.
type ComplianceService struct {
	registry *SLARegistryService
	ledger   *breach.Ledger
	cache    cache.Valkey
	window   time.Duration
	cacheTTL time.Duration
	logger   logger.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewComplianceService(registry *SLARegistryService, ledger *breach.Ledger, valkey cache.Valkey, window, cacheTTL time.Duration, log logger.Logger) *ComplianceService {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ComplianceService{
		registry: registry,
		ledger:   ledger,
		cache:    valkey,
		window:   window,
		cacheTTL: cacheTTL,
		logger:   log,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the periodic refresh loop so cached snapshots stay warm
// between dashboard polls. Inert when the interval is zero.
func (s *ComplianceService) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.logger.Info("compliance refresh started", "interval", interval)
		for {
			select {
			case <-ticker.C:
				s.RefreshAll(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the refresh loop and waits for the current pass to finish.
func (s *ComplianceService) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.wg.Wait()
}

// RefreshAll recomputes and re-caches the snapshot for every registered SLA.
// One SLA failing to score never stops the rest of the pass.
func (s *ComplianceService) RefreshAll(ctx context.Context) {
	for _, def := range s.registry.ListSLAs(ctx) {
		snapshot, err := s.Compute(ctx, def.ID)
		if err != nil {
			s.logger.Error("compliance refresh failed", "slaId", def.ID, "error", err)
			continue
		}
		if err := s.cache.Set(ctx, complianceCacheKeyPrefix+def.ID, snapshot, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache compliance snapshot", "slaId", def.ID, "error", err)
		}
	}
}

// Snapshot returns the compliance snapshot for one SLA, serving a cached copy
// when one is fresh.
func (s *ComplianceService) Snapshot(ctx context.Context, slaID string) (*models.ComplianceSnapshot, error) {
	if data, err := s.cache.Get(ctx, complianceCacheKeyPrefix+slaID); err == nil {
		var cached models.ComplianceSnapshot
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	snapshot, err := s.Compute(ctx, slaID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, complianceCacheKeyPrefix+slaID, snapshot, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache compliance snapshot", "slaId", slaID, "error", err)
	}
	return snapshot, nil
}

// Compute recalculates the score from breach history, bypassing the cache.
func (s *ComplianceService) Compute(ctx context.Context, slaID string) (*models.ComplianceSnapshot, error) {
	if _, err := s.registry.GetSLA(ctx, slaID); err != nil {
		return nil, err
	}

	now := time.Now()
	from := now.Add(-s.window)
	breaches, err := s.ledger.History(ctx, slaID, from, now)
	if err != nil {
		return nil, fmt.Errorf("load breach history for compliance: %w", err)
	}

	var breached time.Duration
	var penalty float64
	for _, b := range breaches {
		d := b.Duration
		if b.Status.Open() {
			d = now.Sub(b.StartTime)
		}
		if d > 0 {
			breached += d
		}
		penalty += severityPenalty[b.Severity]
	}
	if breached > s.window {
		breached = s.window
	}

	achievement := (1 - float64(breached)/float64(s.window)) * 100
	score := achievement - penalty
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return &models.ComplianceSnapshot{
		SLAID:         slaID,
		Score:         score,
		Achievement:   achievement,
		BreachPenalty: penalty,
		BreachCount:   len(breaches),
		Window:        s.window,
		ComputedAt:    now,
	}, nil
}

// Invalidate drops the cached snapshot, forcing the next read to recompute.
func (s *ComplianceService) Invalidate(ctx context.Context, slaID string) {
	if err := s.cache.Delete(ctx, complianceCacheKeyPrefix+slaID); err != nil {
		s.logger.Warn("failed to invalidate compliance snapshot", "slaId", slaID, "error", err)
	}
}

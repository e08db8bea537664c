package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-sla/internal/breach"
	"github.com/platformbuilds/mirador-sla/internal/events"
	"github.com/platformbuilds/mirador-sla/internal/metrics"
	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

// defaultWindowSamples bounds the rolling measurement window when the
// configured size is missing or invalid.
const defaultWindowSamples = 100

// SLAMonitorService is the engine facade: it owns the per-SLA rolling
// measurement windows, drives the evaluator on every sample, reconciles
// detections into the ledger and fans matching notifications out. It also
// owns the lifecycle of the periodic workers (escalation scan, queue drain).
type SLAMonitorService struct {
	registry   *SLARegistryService
	ledger     *breach.Ledger
	dispatcher *breach.Dispatcher
	escalator  *breach.Escalator
	analyzer   *breach.Analyzer
	bus        *events.Bus
	logger     logger.Logger

	mu         sync.Mutex
	windows    map[string][]float64 // slaID -> recent values, most-recent-last
	windowSize int

	started bool
}

func NewSLAMonitorService(
	registry *SLARegistryService,
	ledger *breach.Ledger,
	dispatcher *breach.Dispatcher,
	escalator *breach.Escalator,
	analyzer *breach.Analyzer,
	bus *events.Bus,
	windowSize int,
	log logger.Logger,
) *SLAMonitorService {
	if windowSize <= 0 {
		windowSize = defaultWindowSamples
	}
	return &SLAMonitorService{
		registry:   registry,
		ledger:     ledger,
		dispatcher: dispatcher,
		escalator:  escalator,
		analyzer:   analyzer,
		bus:        bus,
		logger:     log,
		windows:    make(map[string][]float64),
		windowSize: windowSize,
	}
}

// Start launches the escalation scanner and the notification drain loop.
func (s *SLAMonitorService) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.escalator.Start(ctx)
	s.dispatcher.Start(ctx)
	s.logger.Info("SLA monitor started")
}

// RecordMeasurement ingests one observation for an SLA: the rolling window is
// advanced, every detection rule is evaluated against it, new breaches are
// recorded and notified, continuations update their existing breach in place.
func (s *SLAMonitorService) RecordMeasurement(ctx context.Context, slaID string, value float64, ts time.Time) ([]*models.Breach, error) {
	def, err := s.registry.GetSLA(ctx, slaID)
	if err != nil {
		return nil, err
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	s.mu.Lock()
	window := append(s.windows[slaID], value)
	if len(window) > s.windowSize {
		window = window[len(window)-s.windowSize:]
	}
	s.windows[slaID] = window
	sampleWindow := append([]float64(nil), window...)
	s.mu.Unlock()

	sample := models.MetricSample{
		SLAID:     slaID,
		Timestamp: ts,
		Value:     value,
		Window:    sampleWindow,
	}

	start := time.Now()
	detected := breach.Evaluate(def, sample)
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())

	recorded := make([]*models.Breach, 0, len(detected))
	for _, candidate := range detected {
		b, continued, err := s.ledger.Record(ctx, candidate)
		if err != nil {
			// one failed record must not drop the rest of the detections
			s.logger.Error("failed to record breach", "slaId", slaID, "threshold", candidate.Threshold, "error", err)
			continue
		}
		recorded = append(recorded, b)
		if !continued {
			s.dispatcher.NotifyBreach(ctx, def, b)
		}
	}
	return recorded, nil
}

// AcknowledgeBreach marks a breach acknowledged on behalf of a user.
func (s *SLAMonitorService) AcknowledgeBreach(ctx context.Context, breachID, userID, comment string) (*models.Breach, error) {
	return s.ledger.Acknowledge(ctx, breachID, userID, comment)
}

// ResolveBreach closes a breach and sends recovery notifications per the
// SLA's rules.
func (s *SLAMonitorService) ResolveBreach(ctx context.Context, breachID, userID, resolution string) (*models.Breach, error) {
	b, err := s.ledger.Resolve(ctx, breachID, userID, resolution)
	if err != nil {
		return nil, err
	}

	def, err := s.registry.GetSLA(ctx, b.SLAID)
	if err != nil {
		// definition deleted while the breach was open; resolution stands
		s.logger.Warn("no definition for resolved breach, skipping recovery notifications", "breachId", breachID, "slaId", b.SLAID)
		return b, nil
	}
	s.dispatcher.NotifyResolution(ctx, def, b)
	return b, nil
}

// ActiveBreaches lists open breaches, optionally for one SLA.
func (s *SLAMonitorService) ActiveBreaches(ctx context.Context, slaID string) ([]*models.Breach, error) {
	return s.ledger.Active(ctx, slaID)
}

// BreachHistory returns breaches started in [from, to].
func (s *SLAMonitorService) BreachHistory(ctx context.Context, slaID string, from, to time.Time) ([]*models.Breach, error) {
	return s.ledger.History(ctx, slaID, from, to)
}

// BreachStatistics aggregates history over [from, to].
func (s *SLAMonitorService) BreachStatistics(ctx context.Context, from, to time.Time) (*models.BreachStatistics, error) {
	return s.ledger.Statistics(ctx, from, to)
}

// GetBreach returns one breach by id.
func (s *SLAMonitorService) GetBreach(ctx context.Context, id string) (*models.Breach, error) {
	return s.ledger.Get(ctx, id)
}

// AnalyzePatterns runs the pattern analysis over one SLA's recent history.
func (s *SLAMonitorService) AnalyzePatterns(ctx context.Context, slaID string) ([]models.BreachPattern, error) {
	if _, err := s.registry.GetSLA(ctx, slaID); err != nil {
		return nil, err
	}
	return s.analyzer.Analyze(ctx, slaID)
}

// Window returns a copy of the current rolling window for an SLA.
func (s *SLAMonitorService) Window(slaID string) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.windows[slaID]...)
}

// Shutdown stops the periodic workers and clears monitoring state. Delayed
// notification retries that fire afterwards find their dispatcher stopped and
// are discarded.
func (s *SLAMonitorService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.windows = make(map[string][]float64)
	s.mu.Unlock()

	s.escalator.Stop()
	s.dispatcher.Stop()

	if err := s.ledger.Clear(ctx); err != nil {
		return fmt.Errorf("clear breach ledger: %w", err)
	}

	s.bus.Publish(models.ShutdownEvent{Timestamp: time.Now()})
	s.logger.Info("SLA monitor stopped")
	return nil
}

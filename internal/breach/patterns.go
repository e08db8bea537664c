package breach

import (
	"context"
	"fmt"
	"time"

	"github.com/platformbuilds/mirador-sla/internal/events"
	"github.com/platformbuilds/mirador-sla/internal/metrics"
	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

const (
	frequentBreachCount   = 5
	recurringMinDeltas    = 3
	recurringTolerance    = 0.2  // delta within 20% of mean
	recurringMatchRatio   = 0.7  // at least 70% of deltas within tolerance
	persistentMinDuration = time.Hour
)

// Analyzer derives descriptive patterns from recent breach history. The
// analysis is read-only; patterns are recomputed per call and never stored.
type Analyzer struct {
	ledger *Ledger
	bus    *events.Bus
	window time.Duration
	logger logger.Logger
}

func NewAnalyzer(ledger *Ledger, bus *events.Bus, window time.Duration, log logger.Logger) *Analyzer {
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return &Analyzer{ledger: ledger, bus: bus, window: window, logger: log}
}

// Analyze inspects the trailing window of breach history for one SLA and
// returns the patterns found. Each pattern also goes out as an event.
func (a *Analyzer) Analyze(ctx context.Context, slaID string) ([]models.BreachPattern, error) {
	now := time.Now()
	breaches, err := a.ledger.History(ctx, slaID, now.Add(-a.window), now)
	if err != nil {
		return nil, fmt.Errorf("load breach history for %s: %w", slaID, err)
	}

	patterns := make([]models.BreachPattern, 0, 3)
	if p, ok := a.frequent(slaID, breaches); ok {
		patterns = append(patterns, p)
	}
	if p, ok := a.recurring(slaID, breaches); ok {
		patterns = append(patterns, p)
	}
	if p, ok := a.persistent(slaID, breaches, now); ok {
		patterns = append(patterns, p)
	}

	for _, p := range patterns {
		metrics.PatternsDetected.WithLabelValues(string(p.Type)).Inc()
		a.bus.Publish(models.PatternDetectedEvent{SLAID: slaID, Pattern: p, Timestamp: now})
	}
	return patterns, nil
}

// frequent fires when the window holds at least five breaches; its severity
// is the highest severity observed among them.
func (a *Analyzer) frequent(slaID string, breaches []*models.Breach) (models.BreachPattern, bool) {
	if len(breaches) < frequentBreachCount {
		return models.BreachPattern{}, false
	}

	maxSeverity := models.SeverityLow
	for _, b := range breaches {
		if b.Severity.Rank() > maxSeverity.Rank() {
			maxSeverity = b.Severity
		}
	}

	return models.BreachPattern{
		Type:        models.PatternFrequent,
		Description: fmt.Sprintf("%d breaches in the last %s", len(breaches), a.window),
		Frequency:   len(breaches),
		Window:      a.window,
		SLAIDs:      []string{slaID},
		Severity:    maxSeverity,
	}, true
}

// recurring fires when breach start times form a near-regular cadence: at
// least three consecutive deltas, 70% of them within 20% of the mean delta.
func (a *Analyzer) recurring(slaID string, breaches []*models.Breach) (models.BreachPattern, bool) {
	if len(breaches) < recurringMinDeltas+1 {
		return models.BreachPattern{}, false
	}

	deltas := make([]time.Duration, 0, len(breaches)-1)
	for i := 1; i < len(breaches); i++ {
		deltas = append(deltas, breaches[i].StartTime.Sub(breaches[i-1].StartTime))
	}

	var sum time.Duration
	for _, d := range deltas {
		sum += d
	}
	mean := sum / time.Duration(len(deltas))
	if mean <= 0 {
		return models.BreachPattern{}, false
	}

	tolerance := time.Duration(float64(mean) * recurringTolerance)
	within := 0
	for _, d := range deltas {
		diff := d - mean
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			within++
		}
	}
	if float64(within)/float64(len(deltas)) < recurringMatchRatio {
		return models.BreachPattern{}, false
	}

	return models.BreachPattern{
		Type:        models.PatternRecurring,
		Description: fmt.Sprintf("breaches recurring at roughly %.1f hour intervals", mean.Hours()),
		Frequency:   len(deltas),
		Window:      a.window,
		SLAIDs:      []string{slaID},
		Severity:    models.SeverityMedium,
	}, true
}

// persistent fires when any breach in the window stayed open for more than an
// hour. Severity is fixed at high regardless of actual duration.
func (a *Analyzer) persistent(slaID string, breaches []*models.Breach, now time.Time) (models.BreachPattern, bool) {
	count := 0
	for _, b := range breaches {
		d := b.Duration
		if b.Status.Open() {
			d = now.Sub(b.StartTime)
		}
		if d > persistentMinDuration {
			count++
		}
	}
	if count == 0 {
		return models.BreachPattern{}, false
	}

	return models.BreachPattern{
		Type:        models.PatternPersistent,
		Description: fmt.Sprintf("%d breaches lasted longer than %s", count, persistentMinDuration),
		Frequency:   count,
		Window:      a.window,
		SLAIDs:      []string{slaID},
		Severity:    models.SeverityHigh,
	}, true
}

package breach

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-sla/internal/events"
	"github.com/platformbuilds/mirador-sla/internal/metrics"
	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/internal/storage/breachstore"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

// ErrBreachNotFound is returned for operations against unknown breach ids.
var ErrBreachNotFound = breachstore.ErrNotFound

// ErrStaleEscalation is returned when an escalation's level does not follow
// the breach's current escalation count. The scanner retries on its next tick.
var ErrStaleEscalation = errors.New("stale escalation level")

// Ledger reconciles detected breaches against stored state and maintains the
// active-breach index: at most one open breach per (SLA, threshold kind).
// All check-then-set sequences run under a single mutex so concurrent timers
// cannot split the dedup decision.
type Ledger struct {
	mu     sync.Mutex
	store  breachstore.Store
	active map[string]map[models.ThresholdKind]string // slaID -> threshold -> breachID
	bus    *events.Bus
	logger logger.Logger
}

// NewLedger builds a ledger over the given store and rebuilds the active
// index from any open breaches already persisted (relevant for the durable
// backend).
func NewLedger(ctx context.Context, store breachstore.Store, bus *events.Bus, log logger.Logger) (*Ledger, error) {
	l := &Ledger{
		store:  store,
		active: make(map[string]map[models.ThresholdKind]string),
		bus:    bus,
		logger: log,
	}

	open, err := store.List(ctx, breachstore.Filter{
		Statuses: []models.BreachStatus{models.BreachActive, models.BreachAcknowledged},
	})
	if err != nil {
		return nil, fmt.Errorf("rebuild active breach index: %w", err)
	}
	for _, b := range open {
		l.indexLocked(b)
		metrics.ActiveBreaches.Inc()
	}
	if len(open) > 0 {
		log.Info("rebuilt active breach index", "open_breaches", len(open))
	}
	return l, nil
}

func (l *Ledger) indexLocked(b *models.Breach) {
	byThreshold, ok := l.active[b.SLAID]
	if !ok {
		byThreshold = make(map[models.ThresholdKind]string)
		l.active[b.SLAID] = byThreshold
	}
	byThreshold[b.Threshold] = b.ID
}

// Record reconciles a newly detected breach. If an open breach already exists
// for (slaID, threshold) this is a continuation: only endTime, duration,
// actualValue and impact are updated; identity, start time and severity of
// the original breach are preserved. Otherwise the breach is inserted and
// indexed as active. The second return is true for continuations.
func (l *Ledger) Record(ctx context.Context, detected *models.Breach) (*models.Breach, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existingID, ok := l.active[detected.SLAID][detected.Threshold]; ok {
		existing, err := l.store.Get(ctx, existingID)
		if err != nil {
			return nil, false, fmt.Errorf("load active breach %s: %w", existingID, err)
		}

		end := detected.StartTime
		existing.EndTime = &end
		existing.Duration = end.Sub(existing.StartTime)
		existing.ActualValue = detected.ActualValue
		existing.Impact = detected.Impact

		if err := l.store.Put(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("update continued breach %s: %w", existingID, err)
		}

		l.bus.Publish(models.BreachDetectedEvent{Breach: existing.Clone(), Continued: true, Timestamp: time.Now()})
		return existing, true, nil
	}

	if err := l.store.Put(ctx, detected); err != nil {
		return nil, false, fmt.Errorf("insert breach %s: %w", detected.ID, err)
	}
	l.indexLocked(detected)

	metrics.BreachesDetected.WithLabelValues(string(detected.Severity), string(detected.Threshold)).Inc()
	metrics.ActiveBreaches.Inc()
	l.logger.Info("SLA breach detected",
		"breachId", detected.ID,
		"slaId", detected.SLAID,
		"threshold", detected.Threshold,
		"severity", detected.Severity,
		"actual", detected.ActualValue,
		"target", detected.TargetValue,
	)

	l.bus.Publish(models.BreachDetectedEvent{Breach: detected.Clone(), Continued: false, Timestamp: time.Now()})
	return detected, false, nil
}

// Acknowledge marks a breach acknowledged. The breach stays in the active
// index until resolved.
func (l *Ledger) Acknowledge(ctx context.Context, id, userID, comment string) (*models.Breach, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	b.Status = models.BreachAcknowledged
	b.AcknowledgedBy = userID
	b.AcknowledgedAt = &now
	if comment != "" {
		if b.Metadata == nil {
			b.Metadata = make(map[string]interface{})
		}
		b.Metadata["ack_comment"] = comment
	}

	if err := l.store.Put(ctx, b); err != nil {
		return nil, fmt.Errorf("acknowledge breach %s: %w", id, err)
	}

	l.bus.Publish(models.BreachAcknowledgedEvent{Breach: b.Clone(), UserID: userID, Timestamp: now})
	return b, nil
}

// Resolve closes a breach: status, resolver, resolution text, endTime and
// duration are set and the id is dropped from the active index. Other open
// breaches for the same SLA on different thresholds are untouched.
func (l *Ledger) Resolve(ctx context.Context, id, userID, resolution string) (*models.Breach, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	b.Status = models.BreachResolved
	b.ResolvedBy = userID
	b.ResolvedAt = &now
	b.Resolution = resolution
	b.EndTime = &now
	b.Duration = now.Sub(b.StartTime)

	if err := l.store.Put(ctx, b); err != nil {
		return nil, fmt.Errorf("resolve breach %s: %w", id, err)
	}

	if byThreshold, ok := l.active[b.SLAID]; ok {
		if byThreshold[b.Threshold] == id {
			delete(byThreshold, b.Threshold)
			if len(byThreshold) == 0 {
				delete(l.active, b.SLAID)
			}
			metrics.ActiveBreaches.Dec()
		}
	}
	metrics.BreachesResolved.Inc()

	l.logger.Info("SLA breach resolved", "breachId", id, "resolvedBy", userID, "duration", b.Duration)
	l.bus.Publish(models.BreachResolvedEvent{Breach: b.Clone(), UserID: userID, Timestamp: now})
	return b, nil
}

// Active returns currently open breaches, optionally filtered to one SLA,
// ordered by start time.
func (l *Ledger) Active(ctx context.Context, slaID string) ([]*models.Breach, error) {
	l.mu.Lock()
	ids := make([]string, 0)
	for sla, byThreshold := range l.active {
		if slaID != "" && sla != slaID {
			continue
		}
		for _, id := range byThreshold {
			ids = append(ids, id)
		}
	}
	l.mu.Unlock()

	out := make([]*models.Breach, 0, len(ids))
	for _, id := range ids {
		b, err := l.store.Get(ctx, id)
		if err != nil {
			// index and store can drift briefly under the durable backend
			l.logger.Warn("active index references missing breach", "breachId", id, "error", err)
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// Get returns one breach by id.
func (l *Ledger) Get(ctx context.Context, id string) (*models.Breach, error) {
	return l.store.Get(ctx, id)
}

// History returns breaches whose start time falls in [from, to], ordered by
// start time.
func (l *Ledger) History(ctx context.Context, slaID string, from, to time.Time) ([]*models.Breach, error) {
	return l.store.List(ctx, breachstore.Filter{SLAID: slaID, From: from, To: to})
}

// AppendEscalation appends an escalation to a breach. The escalation level
// must be exactly the current count plus one; anything else is stale and
// rejected, which keeps levels strictly increasing even when a continuation
// update raced the scanner.
func (l *Ledger) AppendEscalation(ctx context.Context, id string, esc models.Escalation) (*models.Breach, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BreachActive {
		// a resolve or acknowledge raced the scanner's snapshot
		return nil, fmt.Errorf("escalation for %s breach %s: %w", b.Status, id, ErrStaleEscalation)
	}
	if esc.Level != len(b.Escalations)+1 {
		return nil, fmt.Errorf("escalation level %d for breach %s (have %d): %w",
			esc.Level, id, len(b.Escalations), ErrStaleEscalation)
	}

	b.Escalations = append(b.Escalations, esc)
	if err := l.store.Put(ctx, b); err != nil {
		return nil, fmt.Errorf("append escalation to breach %s: %w", id, err)
	}
	return b, nil
}

// AttachNotification links a dispatched notification id to its breach.
func (l *Ledger) AttachNotification(ctx context.Context, breachID, notificationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := l.store.Get(ctx, breachID)
	if err != nil {
		return err
	}
	b.Notifications = append(b.Notifications, notificationID)
	if err := l.store.Put(ctx, b); err != nil {
		return fmt.Errorf("attach notification to breach %s: %w", breachID, err)
	}
	return nil
}

// Statistics aggregates breach history in [from, to].
func (l *Ledger) Statistics(ctx context.Context, from, to time.Time) (*models.BreachStatistics, error) {
	breaches, err := l.store.List(ctx, breachstore.Filter{From: from, To: to})
	if err != nil {
		return nil, err
	}

	stats := &models.BreachStatistics{
		Total:       len(breaches),
		ByStatus:    make(map[models.BreachStatus]int),
		BySeverity:  make(map[models.Severity]int),
		ByThreshold: make(map[models.ThresholdKind]int),
		From:        from,
		To:          to,
	}

	var resolvedDur time.Duration
	var resolvedCount int
	causes := make(map[string]int)

	for _, b := range breaches {
		stats.ByStatus[b.Status]++
		stats.BySeverity[b.Severity]++
		stats.ByThreshold[b.Threshold]++

		if b.Status == models.BreachResolved && b.Duration > 0 {
			resolvedDur += b.Duration
			resolvedCount++
		}

		if cause := rootCause(b); cause != "" {
			causes[cause]++
		}
	}

	if resolvedCount > 0 {
		stats.AverageResolutionTime = resolvedDur / time.Duration(resolvedCount)
	}
	stats.TopRootCauses = topCauses(causes, 10)
	return stats, nil
}

// rootCause prefers an explicit metadata root cause and falls back to the
// resolution text.
func rootCause(b *models.Breach) string {
	if b.Metadata != nil {
		if v, ok := b.Metadata["root_cause"].(string); ok && v != "" {
			return v
		}
	}
	return b.Resolution
}

func topCauses(counts map[string]int, limit int) []models.RootCauseCount {
	out := make([]models.RootCauseCount, 0, len(counts))
	for cause, count := range counts {
		out = append(out, models.RootCauseCount{Cause: cause, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Cause < out[j].Cause
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// IsOpen reports whether a breach still requires notification. Used by the
// dispatcher's send-time guard for retries.
func (l *Ledger) IsOpen(ctx context.Context, id string) (bool, error) {
	b, err := l.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return b.Status.Open(), nil
}

// Clear drops all ledger state. Part of engine shutdown.
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, byThreshold := range l.active {
		for range byThreshold {
			metrics.ActiveBreaches.Dec()
		}
	}
	l.active = make(map[string]map[models.ThresholdKind]string)
	return l.store.Clear(ctx)
}

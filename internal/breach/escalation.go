package breach

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-sla/internal/config"
	"github.com/platformbuilds/mirador-sla/internal/events"
	"github.com/platformbuilds/mirador-sla/internal/metrics"
	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

// EscalationPolicy resolves the recipients for an escalation level. The
// level-to-contacts mapping is deliberately pluggable rather than a table of
// constants.
type EscalationPolicy interface {
	Recipients(level int) []string
}

// StaticEscalationPolicy is the default table: level 1 notifies the team
// lead, 2 the manager, 3 the director, and 4 and above the executive list.
type StaticEscalationPolicy struct {
	contacts map[int][]string
	maxLevel int
}

func NewStaticEscalationPolicy(contacts map[int][]string) *StaticEscalationPolicy {
	if len(contacts) == 0 {
		contacts = map[int][]string{
			1: {"team-lead"},
			2: {"manager"},
			3: {"director"},
			4: {"executive"},
		}
	}
	maxLevel := 0
	for level := range contacts {
		if level > maxLevel {
			maxLevel = level
		}
	}
	return &StaticEscalationPolicy{contacts: contacts, maxLevel: maxLevel}
}

// Recipients clamps levels beyond the highest configured entry to that entry.
func (p *StaticEscalationPolicy) Recipients(level int) []string {
	if level > p.maxLevel {
		level = p.maxLevel
	}
	return append([]string(nil), p.contacts[level]...)
}

// Escalator periodically scans open breaches and raises escalation levels for
// those that stayed active past their per-severity timeout. One breach
// failing to escalate never stops the rest of the tick.
type Escalator struct {
	ledger *Ledger
	policy EscalationPolicy
	cfg    config.EscalationConfig
	bus    *events.Bus
	logger logger.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewEscalator(ledger *Ledger, policy EscalationPolicy, cfg config.EscalationConfig, bus *events.Bus, log logger.Logger) *Escalator {
	return &Escalator{
		ledger: ledger,
		policy: policy,
		cfg:    cfg,
		bus:    bus,
		logger: log,
		stopCh: make(chan struct{}),
	}
}

// Start launches the scan loop. Inert when auto-escalation is disabled.
func (e *Escalator) Start(ctx context.Context) {
	if !e.cfg.Enabled {
		e.logger.Info("auto-escalation is disabled")
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.ScanInterval)
		defer ticker.Stop()

		e.logger.Info("escalation scanner started", "interval", e.cfg.ScanInterval)
		for {
			select {
			case <-ticker.C:
				e.Scan(ctx)
			case <-e.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the scan loop and waits for the current tick to finish.
func (e *Escalator) Stop() {
	select {
	case <-e.stopCh:
	default:
		close(e.stopCh)
	}
	e.wg.Wait()
}

// Scan runs one escalation pass over all open breaches.
func (e *Escalator) Scan(ctx context.Context) {
	breaches, err := e.ledger.Active(ctx, "")
	if err != nil {
		e.logger.Error("escalation scan failed to list active breaches", "error", err)
		return
	}

	for _, b := range breaches {
		if err := e.escalate(ctx, b, time.Now()); err != nil && !errors.Is(err, ErrStaleEscalation) {
			e.logger.Error("escalation failed", "breachId", b.ID, "error", err)
		}
	}
}

// escalate raises one level at most per call. A breach at level L is due for
// level L+1 once it has been open longer than (L+1) times its severity
// timeout, so levels keep climbing while the breach stays unresolved.
func (e *Escalator) escalate(ctx context.Context, b *models.Breach, now time.Time) error {
	if b.Status != models.BreachActive {
		// acknowledged breaches are being worked; do not auto-escalate
		return nil
	}

	timeout := e.cfg.Timeouts.Timeout(string(b.Severity))
	if timeout <= 0 {
		return nil
	}

	level := len(b.Escalations) + 1
	due := b.StartTime.Add(timeout * time.Duration(level))
	if now.Before(due) {
		return nil
	}

	age := now.Sub(b.StartTime)
	esc := models.Escalation{
		BreachID:      b.ID,
		Level:         level,
		EscalatedAt:   now,
		EscalatedTo:   e.policy.Recipients(level),
		Reason:        fmt.Sprintf("breach unresolved for %d minutes", int(age.Minutes())),
		AutoEscalated: true,
	}

	if _, err := e.ledger.AppendEscalation(ctx, b.ID, esc); err != nil {
		return err
	}

	metrics.EscalationsTotal.WithLabelValues(string(b.Severity)).Inc()
	e.logger.Warn("breach escalated",
		"breachId", b.ID,
		"slaId", b.SLAID,
		"level", level,
		"escalatedTo", esc.EscalatedTo,
	)
	e.bus.Publish(models.BreachEscalatedEvent{BreachID: b.ID, Escalation: esc, Timestamp: now})
	return nil
}

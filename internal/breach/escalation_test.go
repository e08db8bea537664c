package breach

import (
	"context"
	"testing"
	"time"

	"github.com/platformbuilds/mirador-sla/internal/config"
	"github.com/platformbuilds/mirador-sla/internal/models"
)

func testEscalationConfig() config.EscalationConfig {
	return config.EscalationConfig{
		Enabled:      true,
		ScanInterval: time.Minute,
		Timeouts: config.EscalationTimeouts{
			Critical: 15 * time.Minute,
			High:     30 * time.Minute,
			Medium:   time.Hour,
			Low:      4 * time.Hour,
		},
	}
}

func TestStaticEscalationPolicy_Defaults(t *testing.T) {
	p := NewStaticEscalationPolicy(nil)

	cases := map[int][]string{
		1: {"team-lead"},
		2: {"manager"},
		3: {"director"},
		4: {"executive"},
		9: {"executive"}, // clamped to the highest configured level
	}
	for level, want := range cases {
		got := p.Recipients(level)
		if len(got) != len(want) || got[0] != want[0] {
			t.Errorf("Recipients(%d) = %v, want %v", level, got, want)
		}
	}
}

func TestEscalator_ScanRaisesOverdueBreaches(t *testing.T) {
	l, bus := newTestLedger(t)
	ctx := context.Background()

	// open for 20 minutes with a 15-minute critical timeout: level 1 due
	overdue := testBreach("sla-1", models.ThresholdCritical, time.Now().Add(-20*time.Minute))
	overdue.Severity = models.SeverityCritical
	if _, _, err := l.Record(ctx, overdue); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// open for 5 minutes: not due yet
	fresh := testBreach("sla-2", models.ThresholdCritical, time.Now().Add(-5*time.Minute))
	fresh.Severity = models.SeverityCritical
	if _, _, err := l.Record(ctx, fresh); err != nil {
		t.Fatalf("Record: %v", err)
	}

	e := NewEscalator(l, NewStaticEscalationPolicy(nil), testEscalationConfig(), bus, l.logger)
	e.Scan(ctx)

	got, err := l.Get(ctx, overdue.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Escalations) != 1 {
		t.Fatalf("escalations = %d, want 1", len(got.Escalations))
	}
	esc := got.Escalations[0]
	if esc.Level != 1 || !esc.AutoEscalated {
		t.Errorf("escalation = %+v, want auto level 1", esc)
	}
	if len(esc.EscalatedTo) != 1 || esc.EscalatedTo[0] != "team-lead" {
		t.Errorf("escalatedTo = %v, want [team-lead]", esc.EscalatedTo)
	}

	if got, _ := l.Get(ctx, fresh.ID); len(got.Escalations) != 0 {
		t.Fatal("breach inside its timeout must not escalate")
	}
}

func TestEscalator_LevelsClimbWithAge(t *testing.T) {
	l, bus := newTestLedger(t)
	ctx := context.Background()

	// critical timeout 15m: 50 minutes old is past level 1 (15m), level 2
	// (30m) and level 3 (45m), but each scan raises at most one level
	b := testBreach("sla-1", models.ThresholdCritical, time.Now().Add(-50*time.Minute))
	b.Severity = models.SeverityCritical
	if _, _, err := l.Record(ctx, b); err != nil {
		t.Fatalf("Record: %v", err)
	}

	e := NewEscalator(l, NewStaticEscalationPolicy(nil), testEscalationConfig(), bus, l.logger)
	for i := 0; i < 5; i++ {
		e.Scan(ctx)
	}

	got, err := l.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Escalations) != 3 {
		t.Fatalf("escalations = %d, want 3", len(got.Escalations))
	}
	for i, esc := range got.Escalations {
		if esc.Level != i+1 {
			t.Errorf("escalation %d has level %d, want %d", i, esc.Level, i+1)
		}
	}
}

func TestEscalator_SkipsAcknowledged(t *testing.T) {
	l, bus := newTestLedger(t)
	ctx := context.Background()

	b := testBreach("sla-1", models.ThresholdCritical, time.Now().Add(-2*time.Hour))
	b.Severity = models.SeverityCritical
	if _, _, err := l.Record(ctx, b); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := l.Acknowledge(ctx, b.ID, "bob", ""); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	e := NewEscalator(l, NewStaticEscalationPolicy(nil), testEscalationConfig(), bus, l.logger)
	e.Scan(ctx)

	got, _ := l.Get(ctx, b.ID)
	if len(got.Escalations) != 0 {
		t.Fatal("acknowledged breaches must not auto-escalate")
	}
}

func TestEscalator_SeverityTimeouts(t *testing.T) {
	l, bus := newTestLedger(t)
	ctx := context.Background()

	// 20 minutes old: past the critical timeout but inside the low one
	low := testBreach("sla-low", models.ThresholdTarget, time.Now().Add(-20*time.Minute))
	low.Severity = models.SeverityLow
	if _, _, err := l.Record(ctx, low); err != nil {
		t.Fatalf("Record: %v", err)
	}

	e := NewEscalator(l, NewStaticEscalationPolicy(nil), testEscalationConfig(), bus, l.logger)
	e.Scan(ctx)

	got, _ := l.Get(ctx, low.ID)
	if len(got.Escalations) != 0 {
		t.Fatal("low-severity breach inside its 4h timeout must not escalate")
	}
}

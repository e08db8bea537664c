package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/platformbuilds/mirador-sla/internal/breach"
	"github.com/platformbuilds/mirador-sla/internal/config"
	"github.com/platformbuilds/mirador-sla/internal/events"
	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/internal/storage/breachstore"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

type recordingProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *recordingProvider) Send(ctx context.Context, n *models.Notification, content *models.NotificationContent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return nil
}

func (p *recordingProvider) IsAvailable() bool { return true }

type monitorFixture struct {
	monitor    *SLAMonitorService
	registry   *SLARegistryService
	ledger     *breach.Ledger
	dispatcher *breach.Dispatcher
	provider   *recordingProvider
	bus        *events.Bus
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()
	return newSizedMonitorFixture(t, 0)
}

func newSizedMonitorFixture(t *testing.T, windowSize int) *monitorFixture {
	t.Helper()
	log := logger.New("error")
	bus := events.NewBus(log)

	ledger, err := breach.NewLedger(context.Background(), breachstore.NewMemoryStore(), bus, log)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}

	registry := testRegistry()
	dispatcher := breach.NewDispatcher(ledger, bus, log, 3, time.Millisecond, time.Second)
	provider := &recordingProvider{}
	dispatcher.RegisterProvider(models.ChannelEmail, provider)

	escalator := breach.NewEscalator(ledger, breach.NewStaticEscalationPolicy(nil), config.EscalationConfig{
		Enabled:      true,
		ScanInterval: time.Minute,
		Timeouts:     config.EscalationTimeouts{Critical: 15 * time.Minute},
	}, bus, log)
	analyzer := breach.NewAnalyzer(ledger, bus, 0, log)

	return &monitorFixture{
		monitor:    NewSLAMonitorService(registry, ledger, dispatcher, escalator, analyzer, bus, windowSize, log),
		registry:   registry,
		ledger:     ledger,
		dispatcher: dispatcher,
		provider:   provider,
		bus:        bus,
	}
}

func monitoredDef(t *testing.T, f *monitorFixture) *models.SLADefinition {
	t.Helper()
	def := registryDef()
	def.NotificationRules = []models.NotificationRule{
		{
			Event:      models.TriggerThresholdBreach,
			Channels:   []models.Channel{models.ChannelEmail},
			Recipients: []string{"oncall@example.com"},
			Enabled:    true,
		},
		{
			Event:      models.TriggerRecovery,
			Channels:   []models.Channel{models.ChannelEmail},
			Recipients: []string{"oncall@example.com"},
			Enabled:    true,
		},
	}
	def.DetectionRules = []models.DetectionRule{
		{ID: "crit", Threshold: models.ThresholdCritical, ConsecutiveFailures: 1, Enabled: true},
	}
	created, err := f.registry.CreateSLA(context.Background(), def)
	if err != nil {
		t.Fatalf("CreateSLA: %v", err)
	}
	return created
}

func TestMonitor_MeasurementBreachesAndNotifies(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()
	def := monitoredDef(t, f)

	// 98.5% availability against a 99.0% critical threshold
	recorded, err := f.monitor.RecordMeasurement(ctx, def.ID, 98.5, time.Now())
	if err != nil {
		t.Fatalf("RecordMeasurement: %v", err)
	}
	if len(recorded) != 1 {
		t.Fatalf("recorded = %d breaches, want 1", len(recorded))
	}
	b := recorded[0]
	if b.Severity != models.SeverityCritical || b.Impact != 1 {
		t.Errorf("breach = severity %s impact %d, want critical/1", b.Severity, b.Impact)
	}

	// a notification was queued for the breach
	if depth := f.dispatcher.QueueDepth(models.ChannelEmail); depth != 1 {
		t.Fatalf("queue depth = %d, want 1", depth)
	}
	f.dispatcher.DrainOnce(ctx)
	ns := f.dispatcher.Notifications(b.ID)
	if len(ns) != 1 || ns[0].Status != models.NotificationSent {
		t.Fatalf("notifications = %+v", ns)
	}
}

func TestMonitor_ContinuationDoesNotReNotify(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()
	def := monitoredDef(t, f)

	first, err := f.monitor.RecordMeasurement(ctx, def.ID, 98.5, time.Now())
	if err != nil {
		t.Fatalf("RecordMeasurement: %v", err)
	}
	second, err := f.monitor.RecordMeasurement(ctx, def.ID, 98.0, time.Now())
	if err != nil {
		t.Fatalf("RecordMeasurement: %v", err)
	}

	if second[0].ID != first[0].ID {
		t.Fatal("continued breach must keep the original id")
	}
	if second[0].ActualValue != 98.0 {
		t.Errorf("continuation value = %v, want 98.0", second[0].ActualValue)
	}
	// only the first detection queues a notification
	if depth := f.dispatcher.QueueDepth(models.ChannelEmail); depth != 1 {
		t.Fatalf("queue depth = %d, want 1 (no re-notification)", depth)
	}
}

func TestMonitor_HealthyMeasurementNoBreach(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()
	def := monitoredDef(t, f)

	recorded, err := f.monitor.RecordMeasurement(ctx, def.ID, 99.95, time.Now())
	if err != nil {
		t.Fatalf("RecordMeasurement: %v", err)
	}
	if len(recorded) != 0 {
		t.Fatalf("recorded = %d, want 0", len(recorded))
	}
}

func TestMonitor_UnknownSLARejected(t *testing.T) {
	f := newMonitorFixture(t)
	if _, err := f.monitor.RecordMeasurement(context.Background(), "nope", 50, time.Now()); !errors.Is(err, ErrSLANotFound) {
		t.Fatalf("expected ErrSLANotFound, got %v", err)
	}
}

func TestMonitor_RollingWindowBounded(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()
	def := monitoredDef(t, f)

	for i := 0; i < defaultWindowSamples+20; i++ {
		if _, err := f.monitor.RecordMeasurement(ctx, def.ID, 99.95, time.Now()); err != nil {
			t.Fatalf("RecordMeasurement %d: %v", i, err)
		}
	}
	if got := len(f.monitor.Window(def.ID)); got != defaultWindowSamples {
		t.Fatalf("window = %d samples, want %d", got, defaultWindowSamples)
	}
}

func TestMonitor_RollingWindowConfiguredSize(t *testing.T) {
	const size = 7
	f := newSizedMonitorFixture(t, size)
	ctx := context.Background()
	def := monitoredDef(t, f)

	for i := 0; i < size*3; i++ {
		if _, err := f.monitor.RecordMeasurement(ctx, def.ID, 99.95, time.Now()); err != nil {
			t.Fatalf("RecordMeasurement %d: %v", i, err)
		}
	}
	if got := len(f.monitor.Window(def.ID)); got != size {
		t.Fatalf("window = %d samples, want configured %d", got, size)
	}
}

func TestMonitor_ResolveSendsRecovery(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()
	def := monitoredDef(t, f)

	recorded, err := f.monitor.RecordMeasurement(ctx, def.ID, 98.5, time.Now())
	if err != nil {
		t.Fatalf("RecordMeasurement: %v", err)
	}
	f.dispatcher.DrainOnce(ctx) // deliver the breach alert

	resolved, err := f.monitor.ResolveBreach(ctx, recorded[0].ID, "alice", "capacity added")
	if err != nil {
		t.Fatalf("ResolveBreach: %v", err)
	}
	if resolved.Status != models.BreachResolved {
		t.Fatalf("status = %s", resolved.Status)
	}

	// recovery notification queued by the recovery rule
	if depth := f.dispatcher.QueueDepth(models.ChannelEmail); depth != 1 {
		t.Fatalf("queue depth = %d, want 1 recovery notification", depth)
	}

	active, err := f.monitor.ActiveBreaches(ctx, def.ID)
	if err != nil {
		t.Fatalf("ActiveBreaches: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active = %d, want 0", len(active))
	}
}

func TestMonitor_ShutdownClearsState(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()
	def := monitoredDef(t, f)

	evCh, cancel := f.bus.Subscribe()
	defer cancel()

	f.monitor.Start(ctx)
	if _, err := f.monitor.RecordMeasurement(ctx, def.ID, 98.5, time.Now()); err != nil {
		t.Fatalf("RecordMeasurement: %v", err)
	}

	if err := f.monitor.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if got := len(f.monitor.Window(def.ID)); got != 0 {
		t.Fatalf("window after shutdown = %d samples, want 0", got)
	}
	active, err := f.monitor.ActiveBreaches(ctx, "")
	if err != nil {
		t.Fatalf("ActiveBreaches: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active after shutdown = %d, want 0", len(active))
	}

	sawShutdown := false
	deadline := time.After(time.Second)
	for !sawShutdown {
		select {
		case ev := <-evCh:
			if ev.Kind() == models.EventShutdown {
				sawShutdown = true
			}
		case <-deadline:
			t.Fatal("no shutdown event observed")
		}
	}
}

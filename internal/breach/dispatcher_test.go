package breach

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/platformbuilds/mirador-sla/internal/metrics"
	"github.com/platformbuilds/mirador-sla/internal/models"
)

// fakeProvider fails its first failures sends, then succeeds.
type fakeProvider struct {
	mu          sync.Mutex
	calls       int
	failures    int
	unavailable bool
}

func (p *fakeProvider) Send(ctx context.Context, n *models.Notification, content *models.NotificationContent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func (p *fakeProvider) IsAvailable() bool { return !p.unavailable }

func (p *fakeProvider) sendCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func notifyingDef(channels ...models.Channel) *models.SLADefinition {
	def := availabilityDef()
	def.NotificationRules = []models.NotificationRule{
		{
			Event:      models.TriggerThresholdBreach,
			Channels:   channels,
			Recipients: []string{"oncall@example.com", "sre@example.com"},
			Enabled:    true,
		},
		{
			Event:      models.TriggerRecovery,
			Channels:   channels,
			Recipients: []string{"oncall@example.com"},
			Enabled:    true,
		},
	}
	return def
}

func newTestDispatcher(t *testing.T, maxAttempts int, retryDelay time.Duration) (*Dispatcher, *Ledger) {
	t.Helper()
	l, bus := newTestLedger(t)
	d := NewDispatcher(l, bus, l.logger, maxAttempts, retryDelay, time.Second)
	return d, l
}

func recordedBreach(t *testing.T, l *Ledger) *models.Breach {
	t.Helper()
	b, _, err := l.Record(context.Background(), testBreach("sla-avail", models.ThresholdCritical, time.Now()))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	return b
}

func TestDispatcher_SuccessfulDelivery(t *testing.T) {
	d, l := newTestDispatcher(t, 3, time.Millisecond)
	ctx := context.Background()

	provider := &fakeProvider{}
	d.RegisterProvider(models.ChannelEmail, provider)

	b := recordedBreach(t, l)
	d.NotifyBreach(ctx, notifyingDef(models.ChannelEmail), b)

	if depth := d.QueueDepth(models.ChannelEmail); depth != 1 {
		t.Fatalf("queue depth = %d, want 1", depth)
	}
	d.DrainOnce(ctx)

	ns := d.Notifications(b.ID)
	if len(ns) != 1 {
		t.Fatalf("notifications = %d, want 1", len(ns))
	}
	n := ns[0]
	if n.Status != models.NotificationSent || n.SentAt == nil {
		t.Errorf("notification = %+v, want sent with SentAt", n)
	}
	if n.RetryCount != 0 {
		t.Errorf("retryCount = %d, want 0 for first-attempt success", n.RetryCount)
	}
	if n.Recipient != "oncall@example.com, sre@example.com" {
		t.Errorf("recipient = %q", n.Recipient)
	}

	// the notification id is linked back onto the breach
	got, err := l.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Notifications) != 1 || got.Notifications[0] != n.ID {
		t.Errorf("breach notifications = %v, want [%s]", got.Notifications, n.ID)
	}
}

func TestDispatcher_RetryThenSuccess(t *testing.T) {
	d, l := newTestDispatcher(t, 3, time.Millisecond)
	ctx := context.Background()

	provider := &fakeProvider{failures: 1}
	d.RegisterProvider(models.ChannelSlack, provider)

	b := recordedBreach(t, l)
	d.NotifyBreach(ctx, notifyingDef(models.ChannelSlack), b)

	d.DrainOnce(ctx) // attempt 1 fails, retry scheduled
	ns := d.Notifications(b.ID)
	if len(ns) != 1 || ns[0].Status != models.NotificationPending || ns[0].RetryCount != 1 {
		t.Fatalf("after first attempt: %+v", ns)
	}

	waitForQueue(t, d, models.ChannelSlack)
	d.DrainOnce(ctx) // attempt 2 succeeds

	n := ns[0]
	if n.Status != models.NotificationSent {
		t.Fatalf("status = %s, want sent", n.Status)
	}
	if n.RetryCount != 1 {
		t.Errorf("retryCount = %d, want 1 for success on attempt 2", n.RetryCount)
	}
	if provider.sendCount() != 2 {
		t.Errorf("send calls = %d, want 2", provider.sendCount())
	}
}

func TestDispatcher_PermanentFailureAfterMaxAttempts(t *testing.T) {
	d, l := newTestDispatcher(t, 3, time.Millisecond)
	ctx := context.Background()

	provider := &fakeProvider{failures: 100}
	d.RegisterProvider(models.ChannelEmail, provider)

	b := recordedBreach(t, l)
	d.NotifyBreach(ctx, notifyingDef(models.ChannelEmail), b)

	d.DrainOnce(ctx)
	for i := 0; i < 2; i++ {
		waitForQueue(t, d, models.ChannelEmail)
		d.DrainOnce(ctx)
	}

	n := d.Notifications(b.ID)[0]
	if n.Status != models.NotificationFailed {
		t.Fatalf("status = %s, want failed", n.Status)
	}
	if n.RetryCount != 3 {
		t.Errorf("retryCount = %d, want 3", n.RetryCount)
	}
	if provider.sendCount() != 3 {
		t.Errorf("send calls = %d, want exactly maxAttempts", provider.sendCount())
	}

	// no further retry is scheduled
	time.Sleep(10 * time.Millisecond)
	if depth := d.QueueDepth(models.ChannelEmail); depth != 0 {
		t.Fatalf("queue depth after permanent failure = %d, want 0", depth)
	}
}

func TestDispatcher_RetryDroppedWhenBreachCloses(t *testing.T) {
	d, l := newTestDispatcher(t, 5, time.Millisecond)
	ctx := context.Background()

	provider := &fakeProvider{failures: 1}
	d.RegisterProvider(models.ChannelEmail, provider)

	b := recordedBreach(t, l)
	d.NotifyBreach(ctx, notifyingDef(models.ChannelEmail), b)

	d.DrainOnce(ctx) // attempt 1 fails, retry queued

	if _, err := l.Resolve(ctx, b.ID, "alice", "fixed"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	failedBefore := testutil.ToFloat64(metrics.NotificationsSent.WithLabelValues(string(models.ChannelEmail), "failed"))

	waitForQueue(t, d, models.ChannelEmail)
	d.DrainOnce(ctx)

	n := d.Notifications(b.ID)[0]
	if n.Status != models.NotificationFailed {
		t.Fatalf("status = %s, want failed", n.Status)
	}
	if n.Error != "breach no longer open at retry time" {
		t.Errorf("error = %q", n.Error)
	}
	if provider.sendCount() != 1 {
		t.Errorf("send calls = %d, want 1 (retry must not reach the provider)", provider.sendCount())
	}

	failedAfter := testutil.ToFloat64(metrics.NotificationsSent.WithLabelValues(string(models.ChannelEmail), "failed"))
	if failedAfter != failedBefore+1 {
		t.Errorf("failed counter = %v, want %v (dropped retry must count as failed)", failedAfter, failedBefore+1)
	}
}

func TestDispatcher_MissingProviderFailsImmediately(t *testing.T) {
	d, l := newTestDispatcher(t, 3, time.Millisecond)
	ctx := context.Background()

	b := recordedBreach(t, l)
	d.NotifyBreach(ctx, notifyingDef(models.ChannelWebhook), b)
	d.DrainOnce(ctx)

	n := d.Notifications(b.ID)[0]
	if n.Status != models.NotificationFailed {
		t.Fatalf("status = %s, want failed without provider", n.Status)
	}
	if n.RetryCount != 0 {
		t.Errorf("retryCount = %d, missing provider must not retry", n.RetryCount)
	}
}

func TestDispatcher_OnePopPerChannelPerTick(t *testing.T) {
	d, l := newTestDispatcher(t, 3, time.Millisecond)
	ctx := context.Background()

	provider := &fakeProvider{}
	d.RegisterProvider(models.ChannelEmail, provider)

	def := notifyingDef(models.ChannelEmail)
	for i := 0; i < 3; i++ {
		b, _, err := l.Record(ctx, testBreach(def.ID, models.ThresholdKind("tier-"+string(rune('a'+i))), time.Now()))
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		d.NotifyBreach(ctx, def, b)
	}

	if depth := d.QueueDepth(models.ChannelEmail); depth != 3 {
		t.Fatalf("queue depth = %d, want 3", depth)
	}
	d.DrainOnce(ctx)
	if depth := d.QueueDepth(models.ChannelEmail); depth != 2 {
		t.Fatalf("queue depth after one tick = %d, want 2", depth)
	}
	if provider.sendCount() != 1 {
		t.Fatalf("send calls after one tick = %d, want 1", provider.sendCount())
	}
}

func TestDispatcher_FanOutFilters(t *testing.T) {
	d, l := newTestDispatcher(t, 3, time.Millisecond)
	ctx := context.Background()
	d.RegisterProvider(models.ChannelEmail, &fakeProvider{})

	def := availabilityDef()
	def.NotificationRules = []models.NotificationRule{
		{Event: models.TriggerThresholdBreach, Channels: []models.Channel{models.ChannelEmail}, Recipients: []string{"a"}, Enabled: false},
		{Event: models.TriggerRecovery, Channels: []models.Channel{models.ChannelEmail}, Recipients: []string{"b"}, Enabled: true},
		{
			Event:      models.TriggerThresholdBreach,
			Channels:   []models.Channel{models.ChannelEmail},
			Recipients: []string{"c"},
			Severities: []models.Severity{models.SeverityLow},
			Enabled:    true,
		},
	}

	b := recordedBreach(t, l) // critical severity
	d.NotifyBreach(ctx, def, b)

	// disabled, wrong-event and severity-filtered rules all skip
	if depth := d.QueueDepth(models.ChannelEmail); depth != 0 {
		t.Fatalf("queue depth = %d, want 0 (all rules filtered)", depth)
	}
	if len(d.Notifications(b.ID)) != 0 {
		t.Fatal("no notifications should have been created")
	}
}

func TestDispatcher_StopDiscardsQueuedWork(t *testing.T) {
	d, l := newTestDispatcher(t, 3, time.Millisecond)
	ctx := context.Background()

	provider := &fakeProvider{}
	d.RegisterProvider(models.ChannelEmail, provider)

	b := recordedBreach(t, l)
	d.NotifyBreach(ctx, notifyingDef(models.ChannelEmail), b)

	d.Stop()
	d.DrainOnce(ctx)

	if provider.sendCount() != 0 {
		t.Fatal("stopped dispatcher must not deliver")
	}
	if depth := d.QueueDepth(models.ChannelEmail); depth != 0 {
		t.Fatalf("queue depth after stop = %d, want 0", depth)
	}
}

// waitForQueue blocks until the retry AfterFunc has re-enqueued an item.
func waitForQueue(t *testing.T, d *Dispatcher, channel models.Channel) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.QueueDepth(channel) > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("retry was never re-enqueued")
}

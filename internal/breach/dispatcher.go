package breach

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platformbuilds/mirador-sla/internal/events"
	"github.com/platformbuilds/mirador-sla/internal/metrics"
	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

// Provider delivers rendered notifications over one channel. Implementations
// must be registered with the dispatcher before anything is enqueued for
// their channel.
type Provider interface {
	Send(ctx context.Context, n *models.Notification, content *models.NotificationContent) error
	IsAvailable() bool
}

type queuedItem struct {
	notification *models.Notification
	content      *models.NotificationContent
	event        models.TriggerEvent
}

// Dispatcher turns breach and recovery events into per-channel notification
// queues and drives delivery with bounded, fixed-delay retry. The drain loop
// pops one item per channel per tick, deliberately throttling outbound rate
// per channel instead of draining in a tight loop.
type Dispatcher struct {
	mu            sync.Mutex
	providers     map[models.Channel]Provider
	queues        map[models.Channel][]*queuedItem
	notifications map[string]*models.Notification

	ledger *Ledger
	bus    *events.Bus
	logger logger.Logger

	maxAttempts   int
	retryDelay    time.Duration
	drainInterval time.Duration

	stopCh  chan struct{}
	wg      sync.WaitGroup
	stopped bool
}

func NewDispatcher(ledger *Ledger, bus *events.Bus, log logger.Logger, maxAttempts int, retryDelay, drainInterval time.Duration) *Dispatcher {
	return &Dispatcher{
		providers:     make(map[models.Channel]Provider),
		queues:        make(map[models.Channel][]*queuedItem),
		notifications: make(map[string]*models.Notification),
		ledger:        ledger,
		bus:           bus,
		logger:        log,
		maxAttempts:   maxAttempts,
		retryDelay:    retryDelay,
		drainInterval: drainInterval,
		stopCh:        make(chan struct{}),
	}
}

// RegisterProvider binds a delivery provider to a channel.
func (d *Dispatcher) RegisterProvider(channel models.Channel, p Provider) {
	d.mu.Lock()
	d.providers[channel] = p
	d.mu.Unlock()
}

// NotifyBreach fans a breach alert out over the SLA's matching notification
// rules.
func (d *Dispatcher) NotifyBreach(ctx context.Context, def *models.SLADefinition, b *models.Breach) {
	d.fanOut(ctx, def, b, BuildBreachContent(def, b), models.TriggerThresholdBreach)
}

// NotifyResolution fans a recovery alert out over rules triggered on
// recovery.
func (d *Dispatcher) NotifyResolution(ctx context.Context, def *models.SLADefinition, b *models.Breach) {
	d.fanOut(ctx, def, b, BuildResolutionContent(def, b), models.TriggerRecovery)
}

func (d *Dispatcher) fanOut(ctx context.Context, def *models.SLADefinition, b *models.Breach, content *models.NotificationContent, event models.TriggerEvent) {
	for _, rule := range def.NotificationRules {
		if !rule.Enabled || rule.Event != event {
			continue
		}
		if len(rule.Severities) > 0 && !containsSeverity(rule.Severities, b.Severity) {
			continue
		}
		if len(rule.Thresholds) > 0 && !containsThreshold(rule.Thresholds, b.Threshold) {
			continue
		}

		recipient := strings.Join(rule.Recipients, ", ")
		for _, channel := range rule.Channels {
			n := &models.Notification{
				ID:        uuid.NewString(),
				BreachID:  b.ID,
				Channel:   channel,
				Recipient: recipient,
				Status:    models.NotificationPending,
			}
			d.enqueue(channel, &queuedItem{notification: n, content: content, event: event})

			if err := d.ledger.AttachNotification(ctx, b.ID, n.ID); err != nil {
				d.logger.Warn("failed to attach notification to breach", "breachId", b.ID, "error", err)
			}
		}
	}
}

func (d *Dispatcher) enqueue(channel models.Channel, item *queuedItem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.queues[channel] = append(d.queues[channel], item)
	d.notifications[item.notification.ID] = item.notification
}

// Start launches the periodic queue drain.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.drainInterval)
		defer ticker.Stop()

		d.logger.Info("notification dispatcher started", "interval", d.drainInterval, "maxAttempts", d.maxAttempts)
		for {
			select {
			case <-ticker.C:
				d.DrainOnce(ctx)
			case <-d.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the drain loop and clears all queues. Retries already
// scheduled via delayed callbacks may still fire; they find the dispatcher
// stopped and are discarded.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.stopCh)
	}
	d.queues = make(map[models.Channel][]*queuedItem)
	d.mu.Unlock()
	d.wg.Wait()
}

// DrainOnce pops and processes at most one queued item per channel.
func (d *Dispatcher) DrainOnce(ctx context.Context) {
	d.mu.Lock()
	batch := make([]*queuedItem, 0, len(d.queues))
	for channel, q := range d.queues {
		if len(q) == 0 {
			continue
		}
		batch = append(batch, q[0])
		d.queues[channel] = q[1:]
	}
	d.mu.Unlock()

	for _, item := range batch {
		d.process(ctx, item)
	}
}

func (d *Dispatcher) process(ctx context.Context, item *queuedItem) {
	n := item.notification

	// Retried breach alerts are checked against the breach status at send
	// time: resolving a breach must not resurrect a queued retry.
	if n.RetryCount > 0 && item.event == models.TriggerThresholdBreach {
		open, err := d.ledger.IsOpen(ctx, n.BreachID)
		if err != nil || !open {
			d.mu.Lock()
			n.Status = models.NotificationFailed
			n.Error = "breach no longer open at retry time"
			d.mu.Unlock()
			metrics.NotificationsSent.WithLabelValues(string(n.Channel), "failed").Inc()
			d.logger.Debug("dropped retry for closed breach", "notificationId", n.ID, "breachId", n.BreachID)
			return
		}
	}

	d.mu.Lock()
	provider, ok := d.providers[n.Channel]
	d.mu.Unlock()

	if !ok || !provider.IsAvailable() {
		// a missing registration is permanent; retrying won't fix it
		d.mu.Lock()
		n.Status = models.NotificationFailed
		n.Error = fmt.Sprintf("no provider available for channel %s", n.Channel)
		d.mu.Unlock()
		metrics.NotificationsSent.WithLabelValues(string(n.Channel), "failed").Inc()
		d.logger.Error("notification failed: provider unavailable", "notificationId", n.ID, "channel", n.Channel)
		return
	}

	err := provider.Send(ctx, n, item.content)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err == nil {
		now := time.Now()
		n.SentAt = &now
		n.Status = models.NotificationSent
		n.Error = ""
		metrics.NotificationsSent.WithLabelValues(string(n.Channel), "sent").Inc()
		d.bus.Publish(models.NotificationSentEvent{Notification: *n, Timestamp: now})
		d.logger.Info("notification sent", "notificationId", n.ID, "channel", n.Channel, "recipient", n.Recipient)
		return
	}

	n.RetryCount++
	n.Error = err.Error()

	if n.RetryCount >= d.maxAttempts {
		n.Status = models.NotificationFailed
		metrics.NotificationsSent.WithLabelValues(string(n.Channel), "failed").Inc()
		d.logger.Error("notification permanently failed",
			"notificationId", n.ID,
			"channel", n.Channel,
			"attempts", n.RetryCount,
			"error", err,
		)
		return
	}

	n.Status = models.NotificationPending
	metrics.NotificationRetries.WithLabelValues(string(n.Channel)).Inc()
	d.logger.Warn("notification delivery failed, scheduling retry",
		"notificationId", n.ID,
		"channel", n.Channel,
		"attempt", n.RetryCount,
		"retryIn", d.retryDelay,
	)

	time.AfterFunc(d.retryDelay, func() {
		d.enqueue(item.notification.Channel, item)
	})
}

// Notification returns a dispatched notification by id.
func (d *Dispatcher) Notification(id string) (*models.Notification, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.notifications[id]
	if !ok {
		return nil, false
	}
	cp := *n
	return &cp, true
}

// Notifications returns all notifications recorded for a breach.
func (d *Dispatcher) Notifications(breachID string) []*models.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*models.Notification, 0)
	for _, n := range d.notifications {
		if n.BreachID == breachID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out
}

// QueueDepth reports the pending queue length for a channel.
func (d *Dispatcher) QueueDepth(channel models.Channel) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues[channel])
}

func containsSeverity(list []models.Severity, s models.Severity) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsThreshold(list []models.ThresholdKind, k models.ThresholdKind) bool {
	for _, v := range list {
		if v == k {
			return true
		}
	}
	return false
}

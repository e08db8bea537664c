package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/platformbuilds/mirador-sla/internal/events"
	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

// EventPublisherService bridges the in-process event bus onto NATS so other
// systems can consume breach lifecycle events. Publishing is asynchronous and
// fire-and-forget; a NATS outage never backs up into the engine.
type EventPublisherService struct {
	nc            *nats.Conn
	js            nats.JetStreamContext
	subjectPrefix string
	logger        logger.Logger

	cancel func()
	wg     sync.WaitGroup
	once   sync.Once
}

func NewEventPublisherService(url, subjectPrefix string, log logger.Logger) (*EventPublisherService, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("get JetStream context: %w", err)
	}

	if subjectPrefix == "" {
		subjectPrefix = "mirador.sla.events"
	}
	return &EventPublisherService{
		nc:            nc,
		js:            js,
		subjectPrefix: subjectPrefix,
		logger:        log,
	}, nil
}

// Start subscribes to the bus and forwards every event until Close or context
// cancellation.
func (s *EventPublisherService) Start(ctx context.Context, bus *events.Bus) {
	ch, cancel := bus.Subscribe()
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := s.publish(ev); err != nil {
					s.logger.Error("failed to publish event to NATS", "kind", ev.Kind(), "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("NATS event publisher started", "subjectPrefix", s.subjectPrefix)
}

func (s *EventPublisherService) publish(ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", s.subjectPrefix, ev.Kind())
	if _, err := s.js.PublishAsync(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Close unsubscribes from the bus and drains the NATS connection.
func (s *EventPublisherService) Close() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		s.nc.Close()
		s.logger.Info("NATS event publisher stopped")
	})
}

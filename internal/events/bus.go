package events

import (
	"sync"

	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

const defaultSubscriberBuffer = 64

// Bus fans typed events out to subscribers. Publish never blocks: when a
// subscriber's buffer is full the oldest pending event is dropped to make
// room, keeping slow consumers from stalling the engine.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan models.Event
	nextID  int
	closed  bool
	bufSize int
	logger  logger.Logger
}

func NewBus(log logger.Logger) *Bus {
	return &Bus{
		subs:    make(map[int]chan models.Event),
		bufSize: defaultSubscriberBuffer,
		logger:  log,
	}
}

// Subscribe registers a consumer and returns its channel plus an unsubscribe
// function. The channel is closed on unsubscribe or bus close.
func (b *Bus) Subscribe() (<-chan models.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan models.Event)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan models.Event, b.bufSize)
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Publish delivers the event to every subscriber, fire-and-forget.
func (b *Bus) Publish(event models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// drop oldest, then retry once
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
				b.logger.Warn("event dropped for slow subscriber", "kind", event.Kind())
			}
		}
	}
}

// Close tears down all subscriptions. Further publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

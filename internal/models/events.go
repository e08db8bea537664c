package models

import "time"

// EventKind discriminates the event union published on the internal bus.
type EventKind string

const (
	EventBreachDetected     EventKind = "breach_detected"
	EventBreachAcknowledged EventKind = "breach_acknowledged"
	EventBreachResolved     EventKind = "breach_resolved"
	EventBreachEscalated    EventKind = "breach_escalated"
	EventPatternDetected    EventKind = "pattern_detected"
	EventNotificationSent   EventKind = "notification_sent"
	EventShutdown           EventKind = "shutdown"
)

// Event is the typed union carried by the bus. Delivery is fire-and-forget;
// consumers must not rely on ordering across kinds.
type Event interface {
	Kind() EventKind
	OccurredAt() time.Time
}

type BreachDetectedEvent struct {
	Breach    *Breach   `json:"breach"`
	Continued bool      `json:"continued"` // true when an active breach was updated rather than created
	Timestamp time.Time `json:"timestamp"`
}

func (e BreachDetectedEvent) Kind() EventKind       { return EventBreachDetected }
func (e BreachDetectedEvent) OccurredAt() time.Time { return e.Timestamp }

type BreachAcknowledgedEvent struct {
	Breach    *Breach   `json:"breach"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BreachAcknowledgedEvent) Kind() EventKind       { return EventBreachAcknowledged }
func (e BreachAcknowledgedEvent) OccurredAt() time.Time { return e.Timestamp }

type BreachResolvedEvent struct {
	Breach    *Breach   `json:"breach"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BreachResolvedEvent) Kind() EventKind       { return EventBreachResolved }
func (e BreachResolvedEvent) OccurredAt() time.Time { return e.Timestamp }

type BreachEscalatedEvent struct {
	BreachID   string     `json:"breach_id"`
	Escalation Escalation `json:"escalation"`
	Timestamp  time.Time  `json:"timestamp"`
}

func (e BreachEscalatedEvent) Kind() EventKind       { return EventBreachEscalated }
func (e BreachEscalatedEvent) OccurredAt() time.Time { return e.Timestamp }

type PatternDetectedEvent struct {
	SLAID     string        `json:"sla_id"`
	Pattern   BreachPattern `json:"pattern"`
	Timestamp time.Time     `json:"timestamp"`
}

func (e PatternDetectedEvent) Kind() EventKind       { return EventPatternDetected }
func (e PatternDetectedEvent) OccurredAt() time.Time { return e.Timestamp }

type NotificationSentEvent struct {
	Notification Notification `json:"notification"`
	Timestamp    time.Time    `json:"timestamp"`
}

func (e NotificationSentEvent) Kind() EventKind       { return EventNotificationSent }
func (e NotificationSentEvent) OccurredAt() time.Time { return e.Timestamp }

type ShutdownEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e ShutdownEvent) Kind() EventKind       { return EventShutdown }
func (e ShutdownEvent) OccurredAt() time.Time { return e.Timestamp }

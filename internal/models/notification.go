package models

import "time"

// Channel names a delivery transport. A provider must be registered per
// channel before dispatch.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelSlack   Channel = "slack"
	ChannelWebhook Channel = "webhook"
)

// NotificationStatus tracks a single outbound notification attempt chain.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationSent      NotificationStatus = "sent"
	NotificationDelivered NotificationStatus = "delivered"
	NotificationFailed    NotificationStatus = "failed"
)

// Notification is one channel-specific message about a breach or its
// resolution. Status transitions happen only via dispatch attempts.
type Notification struct {
	ID         string             `json:"id"`
	BreachID   string             `json:"breach_id"`
	Channel    Channel            `json:"channel"`
	Recipient  string             `json:"recipient"`
	SentAt     *time.Time         `json:"sent_at,omitempty"`
	Status     NotificationStatus `json:"status"`
	RetryCount int                `json:"retry_count"`
	Error      string             `json:"error,omitempty"`
}

// NotificationContent is the rendered message handed to a provider.
type NotificationContent struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Urgency string `json:"urgency"` // critical, high, medium, low
}

package breach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/platformbuilds/mirador-sla/internal/config"
	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

// EmailProvider delivers notifications over SMTP.
type EmailProvider struct {
	cfg    config.EmailProviderConfig
	logger logger.Logger
}

func NewEmailProvider(cfg config.EmailProviderConfig, log logger.Logger) *EmailProvider {
	return &EmailProvider{cfg: cfg, logger: log}
}

func (p *EmailProvider) IsAvailable() bool {
	return p.cfg.Enabled && p.cfg.SMTPHost != "" && p.cfg.FromAddress != ""
}

func (p *EmailProvider) Send(ctx context.Context, n *models.Notification, content *models.NotificationContent) error {
	recipients := splitRecipients(n.Recipient)
	if len(recipients) == 0 {
		return fmt.Errorf("notification %s has no recipients", n.ID)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nX-Priority: %s\r\n\r\n%s",
		p.cfg.FromAddress, n.Recipient, content.Subject, content.Urgency, content.Body)

	addr := fmt.Sprintf("%s:%d", p.cfg.SMTPHost, p.cfg.SMTPPort)
	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, p.cfg.FromAddress, recipients, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	p.logger.Info("email notification sent", "notificationId", n.ID, "recipients", len(recipients))
	return nil
}

func splitRecipients(joined string) []string {
	parts := strings.Split(joined, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SlackProvider posts notifications to a Slack incoming webhook.
type SlackProvider struct {
	cfg    config.SlackProviderConfig
	client *http.Client
	logger logger.Logger
}

func NewSlackProvider(cfg config.SlackProviderConfig, log logger.Logger) *SlackProvider {
	return &SlackProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: log,
	}
}

func (p *SlackProvider) IsAvailable() bool {
	return p.cfg.Enabled && p.cfg.WebhookURL != ""
}

func (p *SlackProvider) Send(ctx context.Context, n *models.Notification, content *models.NotificationContent) error {
	payload := map[string]interface{}{
		"channel": p.cfg.Channel,
		"attachments": []map[string]interface{}{
			{
				"color": slackColor(content.Urgency),
				"title": content.Subject,
				"text":  content.Body,
				"fields": []map[string]interface{}{
					{"title": "Urgency", "value": content.Urgency, "short": true},
					{"title": "Recipients", "value": n.Recipient, "short": true},
				},
			},
		},
	}
	return postJSON(ctx, p.client, p.cfg.WebhookURL, payload)
}

func slackColor(urgency string) string {
	switch urgency {
	case "critical":
		return "#ff0000"
	case "high":
		return "#ff9900"
	case "medium":
		return "#ffcc00"
	}
	return "#36a64f"
}

// WebhookProvider posts the notification as JSON to a generic endpoint.
type WebhookProvider struct {
	cfg    config.WebhookProviderConfig
	client *http.Client
	logger logger.Logger
}

func NewWebhookProvider(cfg config.WebhookProviderConfig, log logger.Logger) *WebhookProvider {
	return &WebhookProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: log,
	}
}

func (p *WebhookProvider) IsAvailable() bool {
	return p.cfg.Enabled && p.cfg.URL != ""
}

func (p *WebhookProvider) Send(ctx context.Context, n *models.Notification, content *models.NotificationContent) error {
	payload := map[string]interface{}{
		"notification_id": n.ID,
		"breach_id":       n.BreachID,
		"recipient":       n.Recipient,
		"subject":         content.Subject,
		"body":            content.Body,
		"urgency":         content.Urgency,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}
	return postJSON(ctx, p.client, p.cfg.URL, payload)
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook delivery failed with status %d", resp.StatusCode)
	}
	return nil
}

package breach

import (
	"fmt"
	"strings"
	"time"

	"github.com/platformbuilds/mirador-sla/internal/models"
)

// UrgencyFor maps breach severity to message urgency.
func UrgencyFor(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return "critical"
	case models.SeverityHigh:
		return "high"
	case models.SeverityMedium:
		return "medium"
	}
	return "low"
}

// BuildBreachContent renders the outbound alert for a newly detected breach.
func BuildBreachContent(def *models.SLADefinition, b *models.Breach) *models.NotificationContent {
	subject := fmt.Sprintf("SLA breach: %s / %s (%s)", def.ServiceName, def.Name, strings.ToUpper(string(b.Severity)))

	var body strings.Builder
	fmt.Fprintf(&body, "The SLA %q for service %q breached its %s threshold.\n\n", def.Name, def.ServiceName, b.Threshold)
	fmt.Fprintf(&body, "Severity: %s\n", b.Severity)
	fmt.Fprintf(&body, "Actual value: %.2f %s\n", b.ActualValue, def.Unit)
	fmt.Fprintf(&body, "Threshold: %.2f %s\n", b.TargetValue, def.Unit)
	fmt.Fprintf(&body, "Impact: %d%% deviation\n", b.Impact)
	fmt.Fprintf(&body, "Started: %s\n", b.StartTime.Format(time.RFC3339))

	return &models.NotificationContent{
		Subject: subject,
		Body:    body.String(),
		Urgency: UrgencyFor(b.Severity),
	}
}

// BuildResolutionContent renders the recovery message for a resolved breach.
func BuildResolutionContent(def *models.SLADefinition, b *models.Breach) *models.NotificationContent {
	subject := fmt.Sprintf("SLA recovered: %s / %s", def.ServiceName, def.Name)

	var body strings.Builder
	fmt.Fprintf(&body, "The %s threshold breach on SLA %q for service %q has been resolved.\n\n", b.Threshold, def.Name, def.ServiceName)
	fmt.Fprintf(&body, "Duration: %s\n", b.Duration.Round(time.Second))
	if b.ResolvedBy != "" {
		fmt.Fprintf(&body, "Resolved by: %s\n", b.ResolvedBy)
	}
	if b.Resolution != "" {
		fmt.Fprintf(&body, "Resolution: %s\n", b.Resolution)
	}

	return &models.NotificationContent{
		Subject: subject,
		Body:    body.String(),
		Urgency: "low",
	}
}

package models

import "time"

// MetricType identifies the semantics of the measured value. For
// higher-is-better types a breach is value < threshold; for lower-is-better
// types it is value > threshold.
type MetricType string

const (
	MetricAvailability  MetricType = "availability"
	MetricUptime        MetricType = "uptime"
	MetricTxSuccessRate MetricType = "transaction_success_rate"
	MetricResponseTime  MetricType = "response_time"
	MetricErrorRate     MetricType = "error_rate"
)

// HigherIsBetter reports the breach direction for a metric type. Unrecognized
// types are treated as lower-is-better.
func (m MetricType) HigherIsBetter() bool {
	switch m {
	case MetricAvailability, MetricUptime, MetricTxSuccessRate:
		return true
	}
	return false
}

// ThresholdKind names the tiers of an SLA threshold table.
type ThresholdKind string

const (
	ThresholdTarget     ThresholdKind = "target"
	ThresholdWarning    ThresholdKind = "warning"
	ThresholdCritical   ThresholdKind = "critical"
	ThresholdEscalation ThresholdKind = "escalation"
	ThresholdAcceptable ThresholdKind = "acceptable"
	ThresholdExcellent  ThresholdKind = "excellent"
)

// SLAThresholds is the per-definition threshold table. A zero value means the
// tier is not configured.
type SLAThresholds struct {
	Target     float64 `json:"target"`
	Warning    float64 `json:"warning"`
	Critical   float64 `json:"critical"`
	Escalation float64 `json:"escalation"`
	Acceptable float64 `json:"acceptable"`
	Excellent  float64 `json:"excellent"`
}

// Value resolves a threshold tier to its numeric value. The second return is
// false when the tier is unknown or not configured.
func (t SLAThresholds) Value(kind ThresholdKind) (float64, bool) {
	var v float64
	switch kind {
	case ThresholdTarget:
		v = t.Target
	case ThresholdWarning:
		v = t.Warning
	case ThresholdCritical:
		v = t.Critical
	case ThresholdEscalation:
		v = t.Escalation
	case ThresholdAcceptable:
		v = t.Acceptable
	case ThresholdExcellent:
		v = t.Excellent
	default:
		return 0, false
	}
	if v == 0 {
		return 0, false
	}
	return v, true
}

// DetectionRule binds one threshold tier to breach detection. With
// ConsecutiveFailures > 1 the last N samples must all breach before a breach
// is flagged, suppressing transient spikes.
type DetectionRule struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name,omitempty"`
	Threshold           ThresholdKind `json:"threshold"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	Enabled             bool          `json:"enabled"`
}

// TriggerEvent selects which lifecycle event a notification rule fires on.
type TriggerEvent string

const (
	TriggerThresholdBreach TriggerEvent = "threshold_breach"
	TriggerRecovery        TriggerEvent = "recovery"
)

// NotificationRule routes breach/recovery alerts to channels. Empty Severities
// or Thresholds act as match-all filters.
type NotificationRule struct {
	ID         string          `json:"id"`
	Event      TriggerEvent    `json:"event"`
	Channels   []Channel       `json:"channels"`
	Recipients []string        `json:"recipients"`
	Severities []Severity      `json:"severities,omitempty"`
	Thresholds []ThresholdKind `json:"thresholds,omitempty"`
	Enabled    bool            `json:"enabled"`
}

// MaintenanceWindow excludes a recurring interval from evaluation.
type MaintenanceWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SLADefinition is the unit of monitoring. Immutable during a single
// evaluation; owned by the registry.
type SLADefinition struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	ServiceName        string              `json:"service_name"`
	MetricType         MetricType          `json:"metric_type"`
	Unit               string              `json:"unit"`
	TargetValue        float64             `json:"target_value"`
	Thresholds         SLAThresholds       `json:"thresholds"`
	DetectionRules     []DetectionRule     `json:"detection_rules,omitempty"`
	NotificationRules  []NotificationRule  `json:"notification_rules,omitempty"`
	BusinessHoursOnly  bool                `json:"business_hours_only,omitempty"`
	MaintenanceWindows []MaintenanceWindow `json:"maintenance_windows,omitempty"`
	TenantID           string              `json:"tenant_id,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// Clone returns a deep copy so the registry can hand definitions out without
// sharing rule slices with callers.
func (d *SLADefinition) Clone() *SLADefinition {
	out := *d
	out.DetectionRules = append([]DetectionRule(nil), d.DetectionRules...)
	out.MaintenanceWindows = append([]MaintenanceWindow(nil), d.MaintenanceWindows...)
	out.NotificationRules = make([]NotificationRule, len(d.NotificationRules))
	for i, rule := range d.NotificationRules {
		r := rule
		r.Channels = append([]Channel(nil), rule.Channels...)
		r.Recipients = append([]string(nil), rule.Recipients...)
		r.Severities = append([]Severity(nil), rule.Severities...)
		r.Thresholds = append([]ThresholdKind(nil), rule.Thresholds...)
		out.NotificationRules[i] = r
	}
	return &out
}

// InMaintenance reports whether ts falls inside a configured maintenance
// window; samples taken there are not evaluated.
func (d *SLADefinition) InMaintenance(ts time.Time) bool {
	for _, w := range d.MaintenanceWindows {
		if !ts.Before(w.Start) && ts.Before(w.End) {
			return true
		}
	}
	return false
}

// MetricSample is a timestamped observation against an SLA definition. Window
// holds the recent measurements, most-recent-last, used by consecutive-failure
// rules.
type MetricSample struct {
	SLAID     string    `json:"sla_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Window    []float64 `json:"window,omitempty"`
}

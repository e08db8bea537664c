package models

import "time"

// BreachStatus is the lifecycle state of a breach record.
type BreachStatus string

const (
	BreachActive        BreachStatus = "active"
	BreachAcknowledged  BreachStatus = "acknowledged"
	BreachResolved      BreachStatus = "resolved"
	BreachFalsePositive BreachStatus = "false_positive"
)

// Open reports whether the breach still counts against the active index.
// Acknowledged breaches stay open until resolved.
func (s BreachStatus) Open() bool {
	return s == BreachActive || s == BreachAcknowledged
}

// Severity classifies a breach by the threshold tier it crossed.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities for max comparisons: critical > high > medium > low.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// BreachPenalty is a financial penalty instance attached to a breach.
type BreachPenalty struct {
	ID        string    `json:"id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	AppliedAt time.Time `json:"applied_at"`
}

// Escalation is one raised level for an unresolved breach. Append-only per
// breach; levels start at 1 and only increase.
type Escalation struct {
	BreachID      string    `json:"breach_id"`
	Level         int       `json:"level"`
	EscalatedAt   time.Time `json:"escalated_at"`
	EscalatedTo   []string  `json:"escalated_to"`
	Reason        string    `json:"reason"`
	AutoEscalated bool      `json:"auto_escalated"`
}

// Breach records a metric failing an SLA threshold. At most one open breach
// exists per (SLA, threshold kind); a re-detection against that pair updates
// the existing record instead of creating a new one.
type Breach struct {
	ID             string                 `json:"id"`
	SLAID          string                 `json:"sla_id"`
	Threshold      ThresholdKind          `json:"threshold"`
	Severity       Severity               `json:"severity"`
	StartTime      time.Time              `json:"start_time"`
	EndTime        *time.Time             `json:"end_time,omitempty"`
	Duration       time.Duration          `json:"duration,omitempty"`
	ActualValue    float64                `json:"actual_value"`
	TargetValue    float64                `json:"target_value"`
	Impact         int                    `json:"impact"` // percentage deviation from threshold
	Status         BreachStatus           `json:"status"`
	AcknowledgedBy string                 `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time             `json:"acknowledged_at,omitempty"`
	ResolvedBy     string                 `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time             `json:"resolved_at,omitempty"`
	Resolution     string                 `json:"resolution,omitempty"`
	Notifications  []string               `json:"notifications"` // notification ids, in send order
	Penalties      []BreachPenalty        `json:"penalties"`
	Escalations    []Escalation           `json:"escalations"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate ledger state through
// returned pointers.
func (b *Breach) Clone() *Breach {
	c := *b
	if b.EndTime != nil {
		t := *b.EndTime
		c.EndTime = &t
	}
	if b.AcknowledgedAt != nil {
		t := *b.AcknowledgedAt
		c.AcknowledgedAt = &t
	}
	if b.ResolvedAt != nil {
		t := *b.ResolvedAt
		c.ResolvedAt = &t
	}
	c.Notifications = append([]string(nil), b.Notifications...)
	c.Penalties = append([]BreachPenalty(nil), b.Penalties...)
	c.Escalations = append([]Escalation(nil), b.Escalations...)
	if b.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(b.Metadata))
		for k, v := range b.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// RootCauseCount is one entry of the most-frequent-root-causes ranking.
type RootCauseCount struct {
	Cause string `json:"cause"`
	Count int    `json:"count"`
}

// BreachStatistics aggregates ledger history for reporting.
type BreachStatistics struct {
	Total                 int                   `json:"total"`
	ByStatus              map[BreachStatus]int  `json:"by_status"`
	BySeverity            map[Severity]int      `json:"by_severity"`
	ByThreshold           map[ThresholdKind]int `json:"by_threshold"`
	AverageResolutionTime time.Duration         `json:"average_resolution_time"`
	TopRootCauses         []RootCauseCount      `json:"top_root_causes"`
	From                  time.Time             `json:"from"`
	To                    time.Time             `json:"to"`
}

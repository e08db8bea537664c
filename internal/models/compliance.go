package models

import "time"

// ComplianceSnapshot is the weighted compliance score for one SLA over a
// trailing window. Scores are clamped to [0,100].
type ComplianceSnapshot struct {
	SLAID         string        `json:"sla_id"`
	Score         float64       `json:"score"`
	Achievement   float64       `json:"achievement"`    // measured performance vs target, 0..100
	BreachPenalty float64       `json:"breach_penalty"` // severity-weighted deduction
	BreachCount   int           `json:"breach_count"`
	Window        time.Duration `json:"window"`
	ComputedAt    time.Time     `json:"computed_at"`
}

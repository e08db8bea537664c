package models

import "time"

// PatternType classifies a descriptive breach pattern.
type PatternType string

const (
	PatternFrequent   PatternType = "frequent"
	PatternRecurring  PatternType = "recurring"
	PatternCascading  PatternType = "cascading"
	PatternPersistent PatternType = "persistent"
)

// BreachPattern is a derived, read-only observation over recent breach
// history. Patterns are recomputed per analysis call and never persisted.
type BreachPattern struct {
	Type        PatternType   `json:"type"`
	Description string        `json:"description"`
	Frequency   int           `json:"frequency"`
	Window      time.Duration `json:"window"`
	SLAIDs      []string      `json:"sla_ids"`
	Severity    Severity      `json:"severity"`
}

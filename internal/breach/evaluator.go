// Package breach implements the SLA breach lifecycle: threshold evaluation,
// the active-breach ledger, auto-escalation, notification dispatch and
// pattern analysis.
package breach

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/platformbuilds/mirador-sla/internal/models"
)

// IsBreached reports whether current violates the threshold for the given
// metric semantics. Higher-is-better metrics breach below the threshold,
// everything else breaches above it.
func IsBreached(metricType models.MetricType, current, threshold float64) bool {
	if metricType.HigherIsBetter() {
		return current < threshold
	}
	return current > threshold
}

// SeverityFor maps a threshold tier to breach severity. The mapping is a
// design decision, not derived from numeric magnitude.
func SeverityFor(kind models.ThresholdKind) models.Severity {
	switch kind {
	case models.ThresholdCritical:
		return models.SeverityCritical
	case models.ThresholdEscalation:
		return models.SeverityHigh
	case models.ThresholdWarning:
		return models.SeverityMedium
	}
	return models.SeverityLow
}

// ImpactPercent is the rounded percentage deviation of current from the
// breached threshold.
func ImpactPercent(current, threshold float64) int {
	if threshold == 0 {
		return 0
	}
	return int(math.Round(math.Abs(current-threshold) / math.Abs(threshold) * 100))
}

// defaultRules synthesizes one detection rule per configured alerting tier
// when a definition carries none of its own.
func defaultRules(def *models.SLADefinition) []models.DetectionRule {
	kinds := []models.ThresholdKind{models.ThresholdCritical, models.ThresholdEscalation, models.ThresholdWarning}
	rules := make([]models.DetectionRule, 0, len(kinds))
	for _, kind := range kinds {
		if _, ok := def.Thresholds.Value(kind); !ok {
			continue
		}
		rules = append(rules, models.DetectionRule{
			ID:                  fmt.Sprintf("default-%s", kind),
			Threshold:           kind,
			ConsecutiveFailures: 1,
			Enabled:             true,
		})
	}
	return rules
}

// inBusinessHours approximates the 09:00-17:00 Mon-Fri evaluation window for
// definitions scoped to business hours.
func inBusinessHours(ts time.Time) bool {
	switch ts.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := ts.Hour()
	return h >= 9 && h < 17
}

// Evaluate compares a sample (and its rolling window) against every active
// detection rule of the definition and returns newly detected breaches. It is
// a pure function over its inputs; persistence and dedup belong to the
// ledger.
func Evaluate(def *models.SLADefinition, sample models.MetricSample) []*models.Breach {
	if def.InMaintenance(sample.Timestamp) {
		return nil
	}
	if def.BusinessHoursOnly && !inBusinessHours(sample.Timestamp) {
		return nil
	}

	rules := def.DetectionRules
	if len(rules) == 0 {
		rules = defaultRules(def)
	}

	var detected []*models.Breach
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		threshold, ok := def.Thresholds.Value(rule.Threshold)
		if !ok {
			continue
		}

		if rule.ConsecutiveFailures > 1 {
			// require the last N measurements to all breach; a single
			// non-breaching sample in the run suppresses detection
			n := rule.ConsecutiveFailures
			if len(sample.Window) < n {
				continue
			}
			run := sample.Window[len(sample.Window)-n:]
			all := true
			for _, v := range run {
				if !IsBreached(def.MetricType, v, threshold) {
					all = false
					break
				}
			}
			if !all {
				continue
			}
		} else if !IsBreached(def.MetricType, sample.Value, threshold) {
			continue
		}

		detected = append(detected, &models.Breach{
			ID:            uuid.NewString(),
			SLAID:         def.ID,
			Threshold:     rule.Threshold,
			Severity:      SeverityFor(rule.Threshold),
			StartTime:     sample.Timestamp,
			ActualValue:   sample.Value,
			TargetValue:   threshold,
			Impact:        ImpactPercent(sample.Value, threshold),
			Status:        models.BreachActive,
			Notifications: []string{},
			Penalties:     []models.BreachPenalty{},
			Escalations:   []models.Escalation{},
			Metadata: map[string]interface{}{
				"rule_id":     rule.ID,
				"detected_at": time.Now().UTC().Format(time.RFC3339),
				"raw_value":   sample.Value,
			},
		})
	}
	return detected
}

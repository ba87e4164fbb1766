package observability

import (
	"fmt"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert conditions.
const (
	ConditionValidationFailing = "validation_failing"
	ConditionObsoleteDocuments = "obsolete_documents"
	ConditionValidationStale   = "validation_stale"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire.
type AlertThresholds struct {
	MaxObsolete         int `yaml:"max_obsolete" json:"max_obsolete"`
	StaleValidationDays int `yaml:"stale_validation_days" json:"stale_validation_days"`
}

// DefaultAlertThresholds returns the default alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		MaxObsolete:         0,
		StaleValidationDays: 7,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by reading events and checking thresholds.
type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates a new AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate reads events and checks all alert conditions, returning any triggered alerts.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now()

	validations, err := ae.eventLog.Read(EventFilter{Type: EventValidationCompleted})
	if err != nil {
		return nil, fmt.Errorf("reading validation events: %w", err)
	}
	drifts, err := ae.eventLog.Read(EventFilter{Type: EventDriftAnalyzed})
	if err != nil {
		return nil, fmt.Errorf("reading drift events: %w", err)
	}

	var alerts []Alert
	alerts = append(alerts, ae.checkValidationFailing(validations, now)...)
	alerts = append(alerts, ae.checkObsoleteDocuments(drifts, now)...)
	alerts = append(alerts, ae.checkValidationStale(validations, now)...)
	return alerts, nil
}

// checkValidationFailing fires when the most recent validation run failed.
func (ae *alertEngine) checkValidationFailing(events []Event, now time.Time) []Alert {
	if len(events) == 0 {
		return nil
	}
	latest := events[len(events)-1]
	valid, ok := latest.Data["valid"].(bool)
	if !ok || valid {
		return nil
	}
	project, _ := latest.Data["project"].(string)
	return []Alert{{
		ID:          "validation-failing",
		Condition:   ConditionValidationFailing,
		Severity:    SeverityHigh,
		Message:     fmt.Sprintf("latest validation of %s failed with %d errors", project, intField(latest.Data, "errors")),
		TriggeredAt: now,
	}}
}

// checkObsoleteDocuments fires when the most recent drift analysis found
// more obsolete documents than allowed.
func (ae *alertEngine) checkObsoleteDocuments(events []Event, now time.Time) []Alert {
	if len(events) == 0 {
		return nil
	}
	obsolete := intField(events[len(events)-1].Data, "obsolete")
	if obsolete <= ae.thresholds.MaxObsolete {
		return nil
	}
	return []Alert{{
		ID:          "obsolete-documents",
		Condition:   ConditionObsoleteDocuments,
		Severity:    SeverityMedium,
		Message:     fmt.Sprintf("%d obsolete documents, exceeding the maximum of %d", obsolete, ae.thresholds.MaxObsolete),
		TriggeredAt: now,
	}}
}

// checkValidationStale fires when no validation ran within the threshold.
// A zero threshold disables the check.
func (ae *alertEngine) checkValidationStale(events []Event, now time.Time) []Alert {
	if ae.thresholds.StaleValidationDays <= 0 {
		return nil
	}
	threshold := time.Duration(ae.thresholds.StaleValidationDays) * 24 * time.Hour
	if len(events) > 0 && now.Sub(events[len(events)-1].Time) <= threshold {
		return nil
	}
	return []Alert{{
		ID:          "validation-stale",
		Condition:   ConditionValidationStale,
		Severity:    SeverityLow,
		Message:     fmt.Sprintf("no validation run in the last %d days", ae.thresholds.StaleValidationDays),
		TriggeredAt: now,
	}}
}

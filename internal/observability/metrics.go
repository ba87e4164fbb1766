package observability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Metrics holds calculated metrics derived from the event log.
type Metrics struct {
	ValidationRuns     int            `json:"validation_runs"`
	ValidationFailures int            `json:"validation_failures"`
	FindingsByType     map[string]int `json:"findings_by_type"`
	DriftRuns          int            `json:"drift_runs"`
	DocumentsByStatus  map[string]int `json:"documents_by_status"`
	DocumentsDeleted   int            `json:"documents_deleted"`
	EventCount         int            `json:"event_count"`
	LastValidation     *time.Time     `json:"last_validation,omitempty"`
	OldestEvent        *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent        *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into
// metrics. Drift document counts are summed across runs.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		FindingsByType:    make(map[string]int),
		DocumentsByStatus: make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		t := event.Time
		if i == 0 {
			m.OldestEvent = &t
		}
		m.NewestEvent = &t

		switch event.Type {
		case EventValidationCompleted:
			m.ValidationRuns++
			m.LastValidation = &t
			if valid, ok := event.Data["valid"].(bool); ok && !valid {
				m.ValidationFailures++
			}
			if byType, ok := event.Data["findings_by_type"].(map[string]any); ok {
				for typ := range byType {
					m.FindingsByType[typ] += intField(byType, typ)
				}
			}
		case EventDriftAnalyzed:
			m.DriftRuns++
			for _, status := range []string{"valid", "outdated", "obsolete"} {
				m.DocumentsByStatus[status] += intField(event.Data, status)
			}
		case EventDocumentDeleted:
			m.DocumentsDeleted++
		}
	}

	return m, nil
}

// DefaultMetricsWindow is the window used when no --since value is given.
const DefaultMetricsWindow = "7d"

// ParseSince parses a window like "7d", "30d" or "24h" into the time that
// far before now. An empty string means DefaultMetricsWindow.
func ParseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = DefaultMetricsWindow
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days < 0 {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil || hours < 0 {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

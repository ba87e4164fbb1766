package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/valter-silva-au/lmay/pkg/models"
)

// Event types written by lmay.
const (
	EventValidationCompleted = "validation.completed"
	EventDriftAnalyzed       = "drift.analyzed"
	EventDocumentDeleted     = "document.deleted"
)

// Event levels.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Event represents a single observable event in the system.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"` // INFO, WARN, ERROR
	Type    string         `json:"type"`  // e.g. "validation.completed"
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// EventFilter specifies criteria for reading events.
type EventFilter struct {
	Since *time.Time
	Until *time.Time
	Type  string
	Level string
}

// EventLog defines the interface for writing and reading events.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// jsonlEventLog implements EventLog using append-only JSONL files.
type jsonlEventLog struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewJSONLEventLog creates a new EventLog backed by a JSONL file at the
// given path, creating its directory if needed.
func NewJSONLEventLog(path string) (EventLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating event log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: path is the project state directory
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{
		path: path,
		file: f,
	}, nil
}

// Write appends a JSON-encoded event followed by a newline to the log file.
func (l *jsonlEventLog) Write(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	data = append(data, '\n')

	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// Read scans the log file line by line and returns the events matching
// filter, oldest first.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // skip malformed lines
		}

		if matchesEventFilter(event, filter) {
			events = append(events, event)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Time.Before(events[j].Time) })
	return events, nil
}

// Close closes the underlying log file.
func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

// matchesEventFilter checks whether an event satisfies all filter criteria.
func matchesEventFilter(event Event, filter EventFilter) bool {
	if filter.Since != nil && event.Time.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && event.Time.After(*filter.Until) {
		return false
	}
	if filter.Type != "" && event.Type != filter.Type {
		return false
	}
	if filter.Level != "" && event.Level != filter.Level {
		return false
	}
	return true
}

// ValidationEvent records the outcome of a validation run.
func ValidationEvent(runID, project string, res *models.ValidationResult, duration time.Duration) Event {
	byType := make(map[string]any)
	for _, f := range res.All() {
		n, _ := byType[string(f.Type)].(int)
		byType[string(f.Type)] = n + 1
	}
	level, msg := LevelInfo, "validation passed"
	if !res.Valid {
		level, msg = LevelError, "validation failed"
	}
	return Event{
		Time:    time.Now().UTC(),
		Level:   level,
		Type:    EventValidationCompleted,
		Message: msg,
		Data: map[string]any{
			"run_id":           runID,
			"project":          project,
			"valid":            res.Valid,
			"documents":        res.Documents,
			"errors":           len(res.Errors),
			"warnings":         len(res.Warnings),
			"findings_by_type": byType,
			"duration_ms":      duration.Milliseconds(),
		},
	}
}

// DriftEvent records the outcome of an obsolescence analysis.
func DriftEvent(runID, project string, report *models.ObsolescenceReport) Event {
	level := LevelInfo
	if len(report.Obsolete) > 0 {
		level = LevelWarn
	}
	return Event{
		Time:    time.Now().UTC(),
		Level:   level,
		Type:    EventDriftAnalyzed,
		Message: fmt.Sprintf("%d valid, %d outdated, %d obsolete", len(report.Valid), len(report.Outdated), len(report.Obsolete)),
		Data: map[string]any{
			"run_id":   runID,
			"project":  project,
			"valid":    len(report.Valid),
			"outdated": len(report.Outdated),
			"obsolete": len(report.Obsolete),
			"dry_run":  report.DryRun,
		},
	}
}

// DeletionEvent records that an obsolete document was removed.
func DeletionEvent(runID, project, path string) Event {
	return Event{
		Time:    time.Now().UTC(),
		Level:   LevelWarn,
		Type:    EventDocumentDeleted,
		Message: "deleted obsolete document " + path,
		Data: map[string]any{
			"run_id":  runID,
			"project": project,
			"path":    path,
		},
	}
}

// intField reads a numeric event field. JSON decoding yields float64.
func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

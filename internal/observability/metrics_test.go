package observability

import (
	"testing"
	"time"

	"github.com/valter-silva-au/lmay/pkg/models"
)

func TestMetricsCalculator_Empty(t *testing.T) {
	el := newTestEventLog(t)

	m, err := NewMetricsCalculator(el).Calculate(time.Time{})
	if err != nil {
		t.Fatalf("calculating metrics: %v", err)
	}
	if m.EventCount != 0 || m.ValidationRuns != 0 || m.LastValidation != nil {
		t.Errorf("expected zero metrics, got %+v", m)
	}
}

func TestMetricsCalculator_AggregatesRuns(t *testing.T) {
	el := newTestEventLog(t)

	failing := models.NewValidationResult()
	failing.Add(models.Finding{Type: models.FindingCircularReference, Severity: models.SeverityError, Validator: models.ValidatorReferences})
	failing.Add(models.Finding{Type: models.FindingOrphanDocument, Severity: models.SeverityWarning, Validator: models.ValidatorReferences})
	passing := models.NewValidationResult()
	passing.Add(models.Finding{Type: models.FindingOrphanDocument, Severity: models.SeverityWarning, Validator: models.ValidatorReferences})

	report := models.NewObsolescenceReport()
	report.Add(models.Verdict{Status: models.VerdictValid})
	report.Add(models.Verdict{Status: models.VerdictOutdated})
	report.Add(models.Verdict{Status: models.VerdictObsolete})
	report.Add(models.Verdict{Status: models.VerdictObsolete})

	for _, e := range []Event{
		ValidationEvent("r1", "p", failing, time.Second),
		ValidationEvent("r2", "p", passing, time.Second),
		DriftEvent("r3", "p", report),
		DeletionEvent("r3", "p", "a.lmay"),
		DeletionEvent("r3", "p", "b.lmay"),
	} {
		if err := el.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	m, err := NewMetricsCalculator(el).Calculate(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("calculating metrics: %v", err)
	}

	if m.ValidationRuns != 2 {
		t.Errorf("ValidationRuns = %d, want 2", m.ValidationRuns)
	}
	if m.ValidationFailures != 1 {
		t.Errorf("ValidationFailures = %d, want 1", m.ValidationFailures)
	}
	if m.FindingsByType[string(models.FindingOrphanDocument)] != 2 {
		t.Errorf("OrphanDocument findings = %d, want 2", m.FindingsByType[string(models.FindingOrphanDocument)])
	}
	if m.FindingsByType[string(models.FindingCircularReference)] != 1 {
		t.Errorf("CircularReference findings = %d, want 1", m.FindingsByType[string(models.FindingCircularReference)])
	}
	if m.DriftRuns != 1 {
		t.Errorf("DriftRuns = %d, want 1", m.DriftRuns)
	}
	if m.DocumentsByStatus["obsolete"] != 2 || m.DocumentsByStatus["outdated"] != 1 || m.DocumentsByStatus["valid"] != 1 {
		t.Errorf("DocumentsByStatus = %v", m.DocumentsByStatus)
	}
	if m.DocumentsDeleted != 2 {
		t.Errorf("DocumentsDeleted = %d, want 2", m.DocumentsDeleted)
	}
	if m.EventCount != 5 {
		t.Errorf("EventCount = %d, want 5", m.EventCount)
	}
	if m.LastValidation == nil || m.OldestEvent == nil || m.NewestEvent == nil {
		t.Error("expected timestamps to be set")
	}
}

func TestMetricsCalculator_Since(t *testing.T) {
	el := newTestEventLog(t)
	old := time.Now().UTC().Add(-30 * 24 * time.Hour)
	if err := el.Write(Event{Time: old, Level: LevelInfo, Type: EventValidationCompleted, Data: map[string]any{"valid": true}}); err != nil {
		t.Fatalf("writing event: %v", err)
	}
	if err := el.Write(Event{Time: time.Now().UTC(), Level: LevelInfo, Type: EventValidationCompleted, Data: map[string]any{"valid": true}}); err != nil {
		t.Fatalf("writing event: %v", err)
	}

	m, err := NewMetricsCalculator(el).Calculate(time.Now().Add(-7 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("calculating metrics: %v", err)
	}
	if m.ValidationRuns != 1 {
		t.Errorf("ValidationRuns = %d, want 1 within the window", m.ValidationRuns)
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"7d", now.AddDate(0, 0, -7), false},
		{"", now.AddDate(0, 0, -7), false},
		{" 30d ", now.AddDate(0, 0, -30), false},
		{"24h", now.Add(-24 * time.Hour), false},
		{"x", time.Time{}, true},
		{"7x", time.Time{}, true},
		{"-3d", time.Time{}, true},
		{"d", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSince(tt.input, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSince(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseSince(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// Package report renders validation results and drift reports as text,
// JSON or SARIF.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/valter-silva-au/lmay/pkg/models"
)

// Meta carries run information attached to rendered reports.
type Meta struct {
	Timestamp time.Time
	Version   string
	RunID     string
	// Color enables lipgloss styling in text output.
	Color bool
}

func (m Meta) timestamp() string {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return ts.UTC().Format(time.RFC3339)
}

func (m Meta) version() string {
	if m.Version == "" {
		return "dev"
	}
	return m.Version
}

// ParseFormat converts a user-supplied format name.
func ParseFormat(s string) (models.ReportFormat, error) {
	switch f := models.ReportFormat(s); f {
	case models.FormatText, models.FormatJSON, models.FormatSARIF:
		return f, nil
	case "":
		return models.FormatText, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want text, json or sarif)", s)
	}
}

// Render writes res to w in the given format.
func Render(w io.Writer, format models.ReportFormat, res *models.ValidationResult, meta Meta) error {
	if res == nil {
		return fmt.Errorf("nothing to render")
	}
	switch format {
	case models.FormatText, "":
		return renderText(w, res, meta)
	case models.FormatJSON:
		return renderJSON(w, res, meta)
	case models.FormatSARIF:
		return renderSARIF(w, res, meta)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// RenderDrift writes an obsolescence report to w as text or JSON.
func RenderDrift(w io.Writer, format models.ReportFormat, rep *models.ObsolescenceReport, meta Meta) error {
	if rep == nil {
		return fmt.Errorf("nothing to render")
	}
	switch format {
	case models.FormatText, "":
		return renderDriftText(w, rep, meta)
	case models.FormatJSON:
		return renderDriftJSON(w, rep, meta)
	default:
		return fmt.Errorf("drift reports support text and json, not %q", format)
	}
}

// validatorOrder lists validators in pipeline order, followed by any
// others alphabetically.
func validatorOrder(res *models.ValidationResult) []string {
	known := []string{
		models.ValidatorLoader,
		models.ValidatorSchema,
		models.ValidatorReferences,
		models.ValidatorHierarchy,
	}
	seen := make(map[string]bool)
	var out []string
	for _, v := range known {
		seen[v] = true
		if _, ok := res.Summary.PerValidator[v]; ok || hasFindings(res, v) {
			out = append(out, v)
		}
	}
	var extra []string
	for v := range res.Summary.PerValidator {
		if !seen[v] {
			seen[v] = true
			extra = append(extra, v)
		}
	}
	for _, f := range res.All() {
		if !seen[f.Validator] {
			seen[f.Validator] = true
			extra = append(extra, f.Validator)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func hasFindings(res *models.ValidationResult, validator string) bool {
	for _, f := range res.All() {
		if f.Validator == validator {
			return true
		}
	}
	return false
}

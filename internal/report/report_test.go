package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valter-silva-au/lmay/pkg/models"
)

var testMeta = Meta{
	Timestamp: time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC),
	Version:   "1.2.3",
	RunID:     "run-42",
}

func sampleResult() *models.ValidationResult {
	res := models.NewValidationResult()
	res.Add(models.Finding{
		Type:      models.FindingReferencedPathNotFound,
		Severity:  models.SeverityError,
		Validator: models.ValidatorReferences,
		Message:   "referenced path src does not exist",
		File:      "root.lmay",
		Path:      "/structure/src/path",
		Line:      12,
		Column:    11,
	})
	res.Add(models.Finding{
		Type:      models.FindingCircularReference,
		Severity:  models.SeverityError,
		Validator: models.ValidatorReferences,
		Message:   "circular reference",
		File:      "b.lmay",
		Cycle:     []string{"root.lmay", "a.lmay", "b.lmay", "a.lmay"},
	})
	res.Add(models.Finding{
		Type:       models.FindingGenericProjectName,
		Severity:   models.SeverityWarning,
		Validator:  models.ValidatorSchema,
		Message:    "project name app is generic",
		File:       "root.lmay",
		Path:       "/project/name",
		Suggestion: "use a descriptive name",
	})
	res.Summarize()
	res.Summary.PerValidator[models.ValidatorHierarchy] = models.Counts{}
	res.Documents = 3
	return res
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]models.ReportFormat{
		"":      models.FormatText,
		"text":  models.FormatText,
		"json":  models.FormatJSON,
		"sarif": models.FormatSARIF,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestRender_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, models.FormatText, sampleResult(), testMeta))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "Validation FAILED: 3 document(s), 2 error(s), 1 warning(s)"), out)
	assert.Contains(t, out, "root.lmay:12:11#/structure/src/path ReferencedPathNotFound")
	assert.Contains(t, out, "cycle: root.lmay -> a.lmay -> b.lmay -> a.lmay")
	assert.Contains(t, out, "hint: use a descriptive name")
	assert.Contains(t, out, "hierarchy (0 error(s), 0 warning(s))")

	schema := strings.Index(out, "\nschema ")
	refs := strings.Index(out, "\nreferences ")
	hier := strings.Index(out, "\nhierarchy ")
	assert.True(t, schema >= 0 && schema < refs && refs < hier, "sections follow pipeline order:\n%s", out)
	assert.NotContains(t, out, "\x1b[", "no escape codes without colour")
}

func TestRender_TextPassed(t *testing.T) {
	res := models.NewValidationResult()
	res.Documents = 1
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, models.FormatText, res, testMeta))
	assert.Equal(t, "Validation PASSED: 1 document(s), 0 error(s), 0 warning(s)\n", buf.String())
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, models.FormatJSON, sampleResult(), testMeta))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, false, got["valid"])
	assert.Equal(t, "2026-03-04T10:30:00Z", got["timestamp"])
	assert.Equal(t, "1.2.3", got["validator_version"])
	assert.Equal(t, "run-42", got["run_id"])
	assert.Len(t, got["errors"], 2)
	assert.Len(t, got["warnings"], 1)

	summary := got["summary"].(map[string]any)
	total := summary["total"].(map[string]any)
	assert.Equal(t, float64(2), total["error_count"])
	assert.Contains(t, summary["per_validator"], "references")

	first := got["errors"].([]any)[0].(map[string]any)
	assert.Equal(t, "ReferencedPathNotFound", first["type"])
	assert.Equal(t, "/structure/src/path", first["path"])
}

func TestRender_SARIF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, models.FormatSARIF, sampleResult(), testMeta))

	var log sarifLog
	require.NoError(t, json.Unmarshal(buf.Bytes(), &log))
	assert.Equal(t, "2.1.0", log.Version)
	require.Len(t, log.Runs, 1)
	run := log.Runs[0]

	assert.Equal(t, "lmay", run.Tool.Driver.Name)
	assert.Equal(t, "1.2.3", run.Tool.Driver.Version)
	require.Len(t, run.Tool.Driver.Rules, 3)
	assert.Equal(t, "CircularReference", run.Tool.Driver.Rules[0].ID, "rules are sorted")
	assert.Equal(t, "warning", run.Tool.Driver.Rules[1].DefaultConfiguration.Level)

	require.Len(t, run.Results, 3)
	r := run.Results[0]
	assert.Equal(t, "ReferencedPathNotFound", r.RuleID)
	assert.Equal(t, "error", r.Level)
	assert.Equal(t, "ReferencedPathNotFound", run.Tool.Driver.Rules[r.RuleIndex].ID)
	loc := r.Locations[0]
	assert.Equal(t, "root.lmay", loc.PhysicalLocation.ArtifactLocation.URI)
	require.NotNil(t, loc.PhysicalLocation.Region)
	assert.Equal(t, 12, loc.PhysicalLocation.Region.StartLine)
	assert.Equal(t, 11, loc.PhysicalLocation.Region.StartColumn)
	assert.Equal(t, "/structure/src/path", loc.LogicalLocations[0].FullyQualifiedName)

	assert.Nil(t, run.Results[1].Locations[0].PhysicalLocation.Region, "no region without a line")
	assert.Equal(t, "warning", run.Results[2].Level)
	assert.Equal(t, "use a descriptive name", run.Results[2].Properties["suggestion"])
	require.NotNil(t, run.AutomationDetails)
	assert.Equal(t, "run-42", run.AutomationDetails.ID)
}

func TestRender_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, "xml", sampleResult(), testMeta))
	assert.Error(t, Render(&buf, models.FormatJSON, nil, testMeta))
}

// --- Drift ---

func sampleDrift() *models.ObsolescenceReport {
	rep := models.NewObsolescenceReport()
	rep.Add(models.Verdict{Path: "root.lmay", Status: models.VerdictValid, AgeDays: 2})
	rep.Add(models.Verdict{Path: "api/api.lmay", Status: models.VerdictOutdated, AgeDays: 45, Reason: "not modified for 45 days (threshold 30)"})
	rep.Add(models.Verdict{Path: "old/old.lmay", Status: models.VerdictObsolete, AgeDays: 90, Reason: "no referenced path exists", Missing: []string{"old/src", "old/main.go"}})
	return rep
}

func TestRenderDrift_Text(t *testing.T) {
	rep := sampleDrift()
	rep.Deleted = []string{"old/old.lmay"}
	rep.DryRun = true

	var buf bytes.Buffer
	require.NoError(t, RenderDrift(&buf, models.FormatText, rep, testMeta))
	out := buf.String()

	assert.Contains(t, out, "Drift analysis: 3 document(s), 1 valid, 1 outdated, 1 obsolete")
	assert.Contains(t, out, "OBSOLETE old/old.lmay (90 days): no referenced path exists")
	assert.Contains(t, out, "missing: old/src, old/main.go")
	assert.Contains(t, out, "OUTDATED api/api.lmay (45 days)")
	assert.Contains(t, out, "Would delete 1 document(s):")
	assert.NotContains(t, out, "root.lmay", "valid documents are only counted")
}

func TestRenderDrift_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderDrift(&buf, models.FormatJSON, sampleDrift(), testMeta))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got["valid"], 1)
	assert.Len(t, got["outdated"], 1)
	assert.Len(t, got["obsolete"], 1)
	assert.Equal(t, "run-42", got["run_id"])
	assert.NotContains(t, got, "deleted")
}

func TestRenderDrift_RejectsSARIF(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, RenderDrift(&buf, models.FormatSARIF, sampleDrift(), testMeta))
}

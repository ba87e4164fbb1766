package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valter-silva-au/lmay/pkg/models"
	"pgregory.net/rapid"
)

// =============================================================================
// Generators
// =============================================================================

type configValues struct {
	RootDocument  string
	StrictFields  bool
	MaxTraversal  int
	MaxDepth      int
	ThresholdDays int
	RequireAll    bool
	Format        models.ReportFormat
	Ignore        []string
}

func genConfigValues(t *rapid.T) configValues {
	numIgnore := rapid.IntRange(0, 3).Draw(t, "numIgnore")
	ignore := make([]string, numIgnore)
	for i := range ignore {
		ignore[i] = rapid.StringMatching(`[a-z]{1,8}`).Draw(t, fmt.Sprintf("ignore_%d", i)) + "/**"
	}
	return configValues{
		RootDocument:  rapid.StringMatching(`[a-z]{1,8}(/[a-z]{1,8})?`).Draw(t, "root") + ".lmay",
		StrictFields:  rapid.Bool().Draw(t, "strict"),
		MaxTraversal:  rapid.IntRange(1, 1000).Draw(t, "maxTraversal"),
		MaxDepth:      rapid.IntRange(1, 50).Draw(t, "maxDepth"),
		ThresholdDays: rapid.IntRange(0, 365).Draw(t, "threshold"),
		RequireAll:    rapid.Bool().Draw(t, "requireAll"),
		Format:        rapid.SampledFrom([]models.ReportFormat{models.FormatText, models.FormatJSON, models.FormatSARIF}).Draw(t, "format"),
		Ignore:        ignore,
	}
}

func (c configValues) yaml() string {
	var b strings.Builder
	fmt.Fprintf(&b, "root_document: %s\n", c.RootDocument)
	fmt.Fprintf(&b, "schema:\n  strict_fields: %v\n", c.StrictFields)
	fmt.Fprintf(&b, "references:\n  max_traversal_depth: %d\n", c.MaxTraversal)
	fmt.Fprintf(&b, "hierarchy:\n  max_depth: %d\n", c.MaxDepth)
	fmt.Fprintf(&b, "drift:\n  threshold_days: %d\n  require_all_references: %v\n", c.ThresholdDays, c.RequireAll)
	fmt.Fprintf(&b, "report:\n  format: %s\n", c.Format)
	if len(c.Ignore) > 0 {
		b.WriteString("scan:\n  ignore:\n")
		for _, p := range c.Ignore {
			fmt.Fprintf(&b, "    - %q\n", p)
		}
	}
	return b.String()
}

// =============================================================================
// Properties
// =============================================================================

// Property: Configuration loading
// Any well-formed .lmayrc loads to the values it declares and passes
// validation.
func TestProperty_ConfigLoadsDeclaredValues(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		vals := genConfigValues(rt)

		dir, err := os.MkdirTemp("", "lmay-config-*")
		if err != nil {
			rt.Fatalf("failed to create temp dir: %v", err)
		}
		defer os.RemoveAll(dir)
		if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(vals.yaml()), 0o644); err != nil {
			rt.Fatalf("failed to write config: %v", err)
		}

		cm := NewConfigurationManager("")
		cfg, err := cm.LoadConfig(dir)
		if err != nil {
			rt.Fatalf("LoadConfig: %v", err)
		}
		if err := cm.ValidateConfig(cfg); err != nil {
			rt.Fatalf("ValidateConfig rejected a well-formed config: %v", err)
		}

		if cfg.RootDocument != vals.RootDocument {
			rt.Fatalf("RootDocument = %q, want %q", cfg.RootDocument, vals.RootDocument)
		}
		if cfg.Schema.StrictFields != vals.StrictFields {
			rt.Fatalf("StrictFields = %v, want %v", cfg.Schema.StrictFields, vals.StrictFields)
		}
		if cfg.References.MaxTraversalDepth != vals.MaxTraversal {
			rt.Fatalf("MaxTraversalDepth = %d, want %d", cfg.References.MaxTraversalDepth, vals.MaxTraversal)
		}
		if cfg.Hierarchy.MaxDepth != vals.MaxDepth {
			rt.Fatalf("MaxDepth = %d, want %d", cfg.Hierarchy.MaxDepth, vals.MaxDepth)
		}
		if cfg.Drift.ThresholdDays != vals.ThresholdDays || cfg.Drift.RequireAllReferences != vals.RequireAll {
			rt.Fatalf("Drift = %+v, want threshold %d requireAll %v", cfg.Drift, vals.ThresholdDays, vals.RequireAll)
		}
		if cfg.Report.Format != vals.Format {
			rt.Fatalf("Format = %q, want %q", cfg.Report.Format, vals.Format)
		}
		if len(cfg.Scan.Ignore) != len(vals.Ignore) {
			rt.Fatalf("Ignore = %v, want %v", cfg.Scan.Ignore, vals.Ignore)
		}
	})
}

// Property: Negative limits are rejected
// ValidateConfig fails whenever any numeric limit is negative.
func TestProperty_NegativeLimitsRejected(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := DefaultConfig()
		fields := []*int{
			&cfg.References.MaxTraversalDepth,
			&cfg.Hierarchy.MaxDepth,
			&cfg.Drift.ThresholdDays,
			&cfg.Alerts.MaxObsolete,
			&cfg.Alerts.StaleValidationDays,
		}
		negative := false
		for i, f := range fields {
			*f = rapid.IntRange(-5, 5).Draw(rt, fmt.Sprintf("field_%d", i))
			if *f < 0 {
				negative = true
			}
		}

		err := NewConfigurationManager("").ValidateConfig(cfg)
		if negative && err == nil {
			rt.Fatalf("negative limit accepted: %+v", cfg)
		}
		if !negative && err != nil {
			rt.Fatalf("non-negative limits rejected: %v", err)
		}
	})
}

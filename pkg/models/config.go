package models

// ReportFormat selects how validation results are serialized.
type ReportFormat string

const (
	FormatText  ReportFormat = "text"
	FormatJSON  ReportFormat = "json"
	FormatSARIF ReportFormat = "sarif"
)

// DriftPolicy decides when a stale document counts as obsolete.
type DriftPolicy string

const (
	// DriftPolicyAnyResolves marks a stale document obsolete only when it
	// has references and none of them resolve.
	DriftPolicyAnyResolves DriftPolicy = "any_resolves"
	// DriftPolicyAllResolve marks a stale document obsolete as soon as one
	// reference fails to resolve.
	DriftPolicyAllResolve DriftPolicy = "all_resolve"
)

// SchemaConfig holds schema validator settings.
type SchemaConfig struct {
	StrictFields bool `yaml:"strict_fields" mapstructure:"strict_fields"`
}

// ReferencesConfig holds reference validator settings.
type ReferencesConfig struct {
	Enabled             bool `yaml:"enabled" mapstructure:"enabled"`
	ContinueOnRootError bool `yaml:"continue_on_root_error" mapstructure:"continue_on_root_error"`
	MaxTraversalDepth   int  `yaml:"max_traversal_depth" mapstructure:"max_traversal_depth"`
}

// HierarchyConfig holds hierarchy validator settings.
type HierarchyConfig struct {
	Enabled  bool `yaml:"enabled" mapstructure:"enabled"`
	MaxDepth int  `yaml:"max_depth" mapstructure:"max_depth"`
}

// DriftConfig holds obsolescence analyzer settings.
type DriftConfig struct {
	ThresholdDays        int  `yaml:"threshold_days" mapstructure:"threshold_days"`
	RequireAllReferences bool `yaml:"require_all_references" mapstructure:"require_all_references"`
}

// Policy returns the drift policy implied by the configuration.
func (c DriftConfig) Policy() DriftPolicy {
	if c.RequireAllReferences {
		return DriftPolicyAllResolve
	}
	return DriftPolicyAnyResolves
}

// ScanConfig holds filesystem discovery settings.
type ScanConfig struct {
	Ignore []string `yaml:"ignore,omitempty" mapstructure:"ignore"`
}

// ReportConfig holds output settings.
type ReportConfig struct {
	Format ReportFormat `yaml:"format" mapstructure:"format"`
}

// AlertConfig holds alert thresholds.
type AlertConfig struct {
	MaxObsolete         int `yaml:"max_obsolete" mapstructure:"max_obsolete"`
	StaleValidationDays int `yaml:"stale_validation_days" mapstructure:"stale_validation_days"`
}

// Config holds project settings read from .lmayrc via Viper.
type Config struct {
	RootDocument string           `yaml:"root_document" mapstructure:"root_document"`
	Schema       SchemaConfig     `yaml:"schema" mapstructure:"schema"`
	References   ReferencesConfig `yaml:"references" mapstructure:"references"`
	Hierarchy    HierarchyConfig  `yaml:"hierarchy" mapstructure:"hierarchy"`
	Drift        DriftConfig      `yaml:"drift" mapstructure:"drift"`
	Scan         ScanConfig       `yaml:"scan" mapstructure:"scan"`
	Report       ReportConfig     `yaml:"report" mapstructure:"report"`
	Alerts       AlertConfig      `yaml:"alerts" mapstructure:"alerts"`
}

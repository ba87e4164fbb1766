// Package core contains the business logic for lmay: document loading,
// schema, reference and hierarchy validation, drift analysis and project
// configuration.
package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/viper"
	"github.com/valter-silva-au/lmay/pkg/models"
)

// ConfigFileName is the per-project configuration file read from the
// project root.
const ConfigFileName = ".lmayrc"

// EnvPrefix prefixes environment variables that override configuration
// keys, e.g. LMAY_DRIFT_THRESHOLD_DAYS for drift.threshold_days.
const EnvPrefix = "LMAY"

// ConfigurationManager loads and validates project configuration.
type ConfigurationManager interface {
	LoadConfig(projectRoot string) (*models.Config, error)
	ValidateConfig(cfg *models.Config) error
}

// viperConfigManager implements ConfigurationManager using Viper.
type viperConfigManager struct {
	// configFile, when set, is read instead of searching the project root.
	configFile string
}

// NewConfigurationManager creates a ConfigurationManager. An empty
// configFile means .lmayrc is looked up in the project root.
func NewConfigurationManager(configFile string) ConfigurationManager {
	return &viperConfigManager{configFile: configFile}
}

// DefaultConfig returns a Config populated with the built-in defaults.
func DefaultConfig() *models.Config {
	return &models.Config{
		RootDocument: DefaultRootDocument,
		References: models.ReferencesConfig{
			Enabled:           true,
			MaxTraversalDepth: DefaultMaxTraversalDepth,
		},
		Hierarchy: models.HierarchyConfig{
			Enabled:  true,
			MaxDepth: DefaultMaxHierarchyDepth,
		},
		Drift: models.DriftConfig{
			ThresholdDays: DefaultDriftThresholdDays,
		},
		Scan:   models.ScanConfig{Ignore: []string{}},
		Report: models.ReportConfig{Format: models.FormatText},
		Alerts: models.AlertConfig{
			MaxObsolete:         0,
			StaleValidationDays: 7,
		},
	}
}

// LoadConfig reads .lmayrc from projectRoot and applies LMAY_* environment
// overrides. A missing file yields the defaults; an explicitly configured
// file must exist.
func (cm *viperConfigManager) LoadConfig(projectRoot string) (*models.Config, error) {
	def := DefaultConfig()

	v := viper.New()
	if cm.configFile != "" {
		if _, err := os.Stat(cm.configFile); err != nil {
			return nil, fmt.Errorf("reading %s: %w", cm.configFile, err)
		}
		v.SetConfigFile(cm.configFile)
		v.SetConfigType("yaml")
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(projectRoot)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults also register every key so AutomaticEnv applies on Unmarshal.
	v.SetDefault("root_document", def.RootDocument)
	v.SetDefault("schema.strict_fields", def.Schema.StrictFields)
	v.SetDefault("references.enabled", def.References.Enabled)
	v.SetDefault("references.continue_on_root_error", def.References.ContinueOnRootError)
	v.SetDefault("references.max_traversal_depth", def.References.MaxTraversalDepth)
	v.SetDefault("hierarchy.enabled", def.Hierarchy.Enabled)
	v.SetDefault("hierarchy.max_depth", def.Hierarchy.MaxDepth)
	v.SetDefault("drift.threshold_days", def.Drift.ThresholdDays)
	v.SetDefault("drift.require_all_references", def.Drift.RequireAllReferences)
	v.SetDefault("scan.ignore", def.Scan.Ignore)
	v.SetDefault("report.format", string(def.Report.Format))
	v.SetDefault("alerts.max_obsolete", def.Alerts.MaxObsolete)
	v.SetDefault("alerts.stale_validation_days", def.Alerts.StaleValidationDays)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s: %w", cm.source(projectRoot), err)
		}
	}

	cfg := &models.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", cm.source(projectRoot), err)
	}
	if cfg.Scan.Ignore == nil {
		cfg.Scan.Ignore = []string{}
	}
	return cfg, nil
}

func (cm *viperConfigManager) source(projectRoot string) string {
	if cm.configFile != "" {
		return cm.configFile
	}
	return filepath.Join(projectRoot, ConfigFileName)
}

// validFormats is the set of allowed report formats.
var validFormats = map[models.ReportFormat]bool{
	models.FormatText:  true,
	models.FormatJSON:  true,
	models.FormatSARIF: true,
}

// ValidateConfig checks cfg for invalid values and returns one error
// listing every problem found.
func (cm *viperConfigManager) ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if strings.TrimSpace(cfg.RootDocument) == "" {
		errs = append(errs, "root_document must not be empty")
	} else {
		if isAbsolutePath(cfg.RootDocument) {
			errs = append(errs, fmt.Sprintf("root_document %q must be relative to the project root", cfg.RootDocument))
		}
		if !strings.EqualFold(filepath.Ext(cfg.RootDocument), models.DocumentExtension) {
			errs = append(errs, fmt.Sprintf("root_document %q must have the %s extension", cfg.RootDocument, models.DocumentExtension))
		}
	}

	if cfg.References.MaxTraversalDepth < 0 {
		errs = append(errs, fmt.Sprintf("references.max_traversal_depth must be non-negative, got %d", cfg.References.MaxTraversalDepth))
	}
	if cfg.Hierarchy.MaxDepth < 0 {
		errs = append(errs, fmt.Sprintf("hierarchy.max_depth must be non-negative, got %d", cfg.Hierarchy.MaxDepth))
	}
	if cfg.Drift.ThresholdDays < 0 {
		errs = append(errs, fmt.Sprintf("drift.threshold_days must be non-negative, got %d", cfg.Drift.ThresholdDays))
	}
	if cfg.Alerts.MaxObsolete < 0 {
		errs = append(errs, fmt.Sprintf("alerts.max_obsolete must be non-negative, got %d", cfg.Alerts.MaxObsolete))
	}
	if cfg.Alerts.StaleValidationDays < 0 {
		errs = append(errs, fmt.Sprintf("alerts.stale_validation_days must be non-negative, got %d", cfg.Alerts.StaleValidationDays))
	}

	if cfg.Report.Format != "" && !validFormats[cfg.Report.Format] {
		errs = append(errs, fmt.Sprintf(
			"report.format %q is invalid, must be one of: text, json, sarif",
			cfg.Report.Format,
		))
	}

	for _, p := range cfg.Scan.Ignore {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Sprintf("scan.ignore pattern %q is malformed", p))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/lmay/internal/core"
	"github.com/valter-silva-au/lmay/internal/observability"
	"github.com/valter-silva-au/lmay/internal/report"
	"github.com/valter-silva-au/lmay/pkg/models"
)

var (
	validateRoot            string
	validateFormat          string
	validateStrictFields    bool
	validateContinueOnError bool
	validateNoReferences    bool
	validateNoHierarchy     bool
	validateMaxDepth        int
	validateOutput          string
	validateMetricsFile     string
	validateNoColor         bool
)

var validateCmd = &cobra.Command{
	Use:   "validate [project]",
	Short: "Validate the .lmay documents of a project",
	Long: `Validate every .lmay document under the project root.

Checks run in order: loading, schema, references (missing paths, type
mismatches, nested-document cycles and orphans) and hierarchy (declared
depth and parent, flat or unbalanced trees). Errors make the project
invalid; warnings are reported but never fail the run.

Exit code is 0 when the project is valid and 1 otherwise.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotationProjectArg: "true"},
	RunE:        runValidate,
}

// validateOptions merges flags that were set explicitly over the project
// configuration.
func validateOptions(cmd *cobra.Command) core.ValidateOptions {
	opts := core.ValidateOptionsFromConfig(ProjectRoot, projectConfig())
	flags := cmd.Flags()
	if flags.Changed("root") {
		opts.RootDocument = validateRoot
	}
	if flags.Changed("strict-fields") {
		opts.StrictFields = validateStrictFields
	}
	if flags.Changed("continue-on-error") {
		opts.ContinueOnRootError = validateContinueOnError
	}
	if validateNoReferences {
		opts.CheckReferences = false
	}
	if validateNoHierarchy {
		opts.CheckHierarchy = false
	}
	if flags.Changed("max-depth") {
		opts.MaxDepth = validateMaxDepth
	}
	return opts
}

func runValidate(cmd *cobra.Command, args []string) error {
	if Validator == nil {
		return fmt.Errorf("validation service not initialized")
	}

	formatName := string(projectConfig().Report.Format)
	if cmd.Flags().Changed("format") {
		formatName = validateFormat
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}
	if validateMaxDepth < 0 {
		return fmt.Errorf("--max-depth must not be negative")
	}

	ctx := commandContext(cmd)
	opts := validateOptions(cmd)
	opts.RunID = uuid.NewString()

	started := time.Now()
	res, err := Validator.ValidateProject(ctx, opts)
	if err != nil {
		return fmt.Errorf("validating %s: %w", ProjectRoot, err)
	}
	duration := time.Since(started)

	recordValidation(ctx, opts.RunID, started, duration, res)

	if validateMetricsFile != "" {
		m := observability.NewRunMetrics()
		m.ObserveValidation(res, duration)
		if err := m.WriteTextfile(validateMetricsFile); err != nil {
			return err
		}
	}

	out, closeOut, err := openOutput(validateOutput, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	meta := report.Meta{
		Timestamp: started,
		Version:   appVersion,
		RunID:     opts.RunID,
		Color:     !validateNoColor && validateOutput == "" && isTerminal(out),
	}
	if err := report.Render(out, format, res, meta); err != nil {
		_ = closeOut()
		return fmt.Errorf("rendering report: %w", err)
	}
	if err := closeOut(); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if !res.Valid {
		return ErrValidationFailed
	}
	return nil
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateRoot, "root", core.DefaultRootDocument, "Root document, relative to the project")
	f.StringVarP(&validateFormat, "format", "f", string(models.FormatText), "Report format (text, json, sarif)")
	f.BoolVar(&validateStrictFields, "strict-fields", false, "Report fields outside the schema as errors")
	f.BoolVar(&validateContinueOnError, "continue-on-error", false, "Keep validating when the root document fails to load")
	f.BoolVar(&validateNoReferences, "no-references", false, "Skip reference validation")
	f.BoolVar(&validateNoHierarchy, "no-hierarchy", false, "Skip hierarchy validation")
	f.IntVar(&validateMaxDepth, "max-depth", core.DefaultMaxHierarchyDepth, "Deepest hierarchy level before a warning")
	f.StringVarP(&validateOutput, "output", "o", "", "Write the report to a file instead of stdout")
	f.StringVar(&validateMetricsFile, "metrics-file", "", "Write Prometheus metrics for this run to a file")
	f.BoolVar(&validateNoColor, "no-color", false, "Disable coloured text output")
	registerValidateCompletions(validateCmd)
	rootCmd.AddCommand(validateCmd)
}

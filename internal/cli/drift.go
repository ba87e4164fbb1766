package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/lmay/internal/core"
	"github.com/valter-silva-au/lmay/internal/report"
	"github.com/valter-silva-au/lmay/internal/storage"
	"github.com/valter-silva-au/lmay/pkg/models"
)

var (
	driftThresholdDays        int
	driftRequireAllReferences bool
	driftAutoClean            bool
	driftDryRun               bool
	driftYes                  bool
	driftFormat               string
	driftNoColor              bool
)

var driftCmd = &cobra.Command{
	Use:   "drift [project]",
	Short: "Find outdated and obsolete .lmay documents",
	Long: `Classify every .lmay document by age and by whether the paths it
references still exist.

A document modified within --threshold-days is valid. An older one is
outdated while its references resolve, and obsolete once they do not: by
default when none resolves, with --require-all-references as soon as one
is missing.

With --auto-clean obsolete documents are deleted after confirmation.
--dry-run lists them without deleting; --yes skips the prompt.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotationProjectArg: "true"},
	RunE:        runDrift,
}

func runDrift(cmd *cobra.Command, args []string) error {
	if Drift == nil {
		return fmt.Errorf("drift service not initialized")
	}
	format, err := report.ParseFormat(driftFormat)
	if err != nil {
		return err
	}
	if format == models.FormatSARIF {
		return fmt.Errorf("drift reports support text and json")
	}

	opts := core.DriftProjectOptionsFromConfig(ProjectRoot, projectConfig())
	if cmd.Flags().Changed("threshold-days") {
		opts.ThresholdDays = driftThresholdDays
	}
	if cmd.Flags().Changed("require-all-references") && driftRequireAllReferences {
		opts.Policy = models.DriftPolicyAllResolve
	}

	ctx := commandContext(cmd)
	runID := uuid.NewString()
	started := time.Now()
	rep, err := Drift.AnalyzeProject(ctx, opts)
	if err != nil {
		return fmt.Errorf("analyzing drift in %s: %w", ProjectRoot, err)
	}

	var cleanErr error
	if driftAutoClean && len(rep.Obsolete) > 0 {
		cleanErr = cleanObsolete(cmd, rep)
	}
	recordDrift(ctx, runID, started, time.Since(started), rep)

	meta := report.Meta{
		Timestamp: started,
		Version:   appVersion,
		RunID:     runID,
		Color:     !driftNoColor && isTerminal(cmd.OutOrStdout()),
	}
	if err := report.RenderDrift(cmd.OutOrStdout(), format, rep, meta); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return cleanErr
}

// cleanObsolete deletes the obsolete documents of rep, asking first unless
// --yes or --dry-run is set. Without a terminal to ask on, nothing is
// deleted.
func cleanObsolete(cmd *cobra.Command, rep *models.ObsolescenceReport) error {
	cleaner := core.NewCleaner(ProjectRoot, Logger).
		WithLock(filepath.Join(ProjectRoot, storage.StateDirName, "clean.lock"))
	if driftDryRun {
		_, err := cleaner.Clean(rep, true)
		return err
	}

	if !driftYes {
		if !stdinIsTerminal() {
			fmt.Fprintln(cmd.ErrOrStderr(), "Not deleting: no terminal to confirm on (use --yes).")
			return nil
		}
		files := make([]string, 0, len(rep.Obsolete))
		for _, v := range rep.Obsolete {
			files = append(files, v.Path)
		}
		ok, err := confirmDeletion(files)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "Deletion cancelled.")
			return nil
		}
	}

	if _, err := cleaner.Clean(rep, false); err != nil {
		return fmt.Errorf("cleaning obsolete documents: %w", err)
	}
	return nil
}

func init() {
	f := driftCmd.Flags()
	f.IntVar(&driftThresholdDays, "threshold-days", core.DefaultDriftThresholdDays, "Age in days after which a document is stale")
	f.BoolVar(&driftRequireAllReferences, "require-all-references", false, "Mark a stale document obsolete as soon as one reference is missing")
	f.BoolVar(&driftAutoClean, "auto-clean", false, "Delete obsolete documents")
	f.BoolVar(&driftDryRun, "dry-run", false, "With --auto-clean, list documents without deleting them")
	f.BoolVarP(&driftYes, "yes", "y", false, "With --auto-clean, delete without asking")
	f.StringVarP(&driftFormat, "format", "f", string(models.FormatText), "Report format (text, json)")
	f.BoolVar(&driftNoColor, "no-color", false, "Disable coloured text output")
	registerDriftCompletions(driftCmd)
	rootCmd.AddCommand(driftCmd)
}

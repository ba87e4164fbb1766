package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/valter-silva-au/lmay/internal/observability"
	"github.com/valter-silva-au/lmay/pkg/models"
	"golang.org/x/term"
)

// recordValidation stores a validation run in the run history and the
// event log. Failures are logged, never returned: history is best effort.
func recordValidation(ctx context.Context, runID string, started time.Time, duration time.Duration, res *models.ValidationResult) {
	if Runs != nil {
		_, err := Runs.Record(ctx, models.RunRecord{
			ID:        runID,
			Kind:      models.RunValidate,
			Project:   ProjectRoot,
			StartedAt: started,
			Duration:  duration,
			Valid:     res.Valid,
			Documents: res.Documents,
			Errors:    res.Summary.Total.Errors,
			Warnings:  res.Summary.Total.Warnings,
		})
		if err != nil {
			Logger.Warn().Err(err).Str("run_id", runID).Msg("failed to record validation run")
		}
	}
	if EventLog != nil {
		if err := EventLog.Write(observability.ValidationEvent(runID, ProjectRoot, res, duration)); err != nil {
			Logger.Warn().Err(err).Str("run_id", runID).Msg("failed to write validation event")
		}
	}
}

// recordDrift stores a drift run and one deletion event per removed
// document.
func recordDrift(ctx context.Context, runID string, started time.Time, duration time.Duration, rep *models.ObsolescenceReport) {
	if Runs != nil {
		_, err := Runs.Record(ctx, models.RunRecord{
			ID:        runID,
			Kind:      models.RunDrift,
			Project:   ProjectRoot,
			StartedAt: started,
			Duration:  duration,
			Valid:     len(rep.Obsolete) == 0,
			Documents: rep.Total(),
			Outdated:  len(rep.Outdated),
			Obsolete:  len(rep.Obsolete),
		})
		if err != nil {
			Logger.Warn().Err(err).Str("run_id", runID).Msg("failed to record drift run")
		}
	}
	if EventLog == nil {
		return
	}
	if err := EventLog.Write(observability.DriftEvent(runID, ProjectRoot, rep)); err != nil {
		Logger.Warn().Err(err).Str("run_id", runID).Msg("failed to write drift event")
	}
	if rep.DryRun {
		return
	}
	for _, path := range rep.Deleted {
		if err := EventLog.Write(observability.DeletionEvent(runID, ProjectRoot, path)); err != nil {
			Logger.Warn().Err(err).Str("path", path).Msg("failed to write deletion event")
		}
	}
}

// openOutput returns the writer a report goes to: path when set,
// otherwise fallback. The returned close function is always non-nil.
func openOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return fallback, func() error { return nil }, nil
	}
	f, err := os.Create(path) //nolint:gosec // G304: path is a user-supplied output file
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// stdinIsTerminal reports whether confirmation prompts can be shown.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

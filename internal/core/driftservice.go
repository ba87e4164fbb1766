package core

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/valter-silva-au/lmay/internal/scanner"
	"github.com/valter-silva-au/lmay/pkg/models"
)

// ProjectScanner discovers documents and snapshots the live project tree.
type ProjectScanner interface {
	DocumentDiscoverer
	Snapshot(root string) (*scanner.Snapshot, error)
}

// DriftProjectOptions configures one AnalyzeProject call.
type DriftProjectOptions struct {
	ProjectRoot   string
	ThresholdDays int
	Policy        models.DriftPolicy
	Now           func() time.Time
}

// DriftProjectOptionsFromConfig maps project configuration onto drift
// options.
func DriftProjectOptionsFromConfig(projectRoot string, cfg *models.Config) DriftProjectOptions {
	opts := DriftProjectOptions{
		ProjectRoot:   projectRoot,
		ThresholdDays: DefaultDriftThresholdDays,
		Policy:        models.DriftPolicyAnyResolves,
	}
	if cfg != nil {
		opts.ThresholdDays = cfg.Drift.ThresholdDays
		opts.Policy = cfg.Drift.Policy()
	}
	return opts
}

// DriftService classifies every document of a project against the
// project as it is now.
type DriftService interface {
	AnalyzeProject(ctx context.Context, opts DriftProjectOptions) (*models.ObsolescenceReport, error)
}

type driftService struct {
	scanner ProjectScanner
	logger  zerolog.Logger
}

// NewDriftService creates a DriftService backed by s.
func NewDriftService(s ProjectScanner, logger zerolog.Logger) DriftService {
	return &driftService{scanner: s, logger: logger}
}

// AnalyzeProject snapshots the project, discovers its documents and
// classifies each one. Verdict paths are relative to the project root.
func (d *driftService) AnalyzeProject(ctx context.Context, opts DriftProjectOptions) (*models.ObsolescenceReport, error) {
	if opts.ThresholdDays < 0 {
		return nil, fmt.Errorf("threshold days must not be negative, got %d", opts.ThresholdDays)
	}
	root, err := Canonicalize(opts.ProjectRoot)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening project %s: %w", opts.ProjectRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening project %s: not a directory", opts.ProjectRoot)
	}

	start := time.Now()
	snap, err := d.scanner.Snapshot(root)
	if err != nil {
		return nil, fmt.Errorf("snapshotting project: %w", err)
	}
	docs, err := d.scanner.Discover(root)
	if err != nil {
		return nil, fmt.Errorf("discovering documents: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report, err := AnalyzeObsolescence(docs, snap, DriftOptions{
		ThresholdDays: opts.ThresholdDays,
		Policy:        opts.Policy,
		Now:           opts.Now,
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info().
		Str("project", root).
		Int("documents", report.Total()).
		Int("outdated", len(report.Outdated)).
		Int("obsolete", len(report.Obsolete)).
		Int("paths", snap.Len()).
		Dur("duration", time.Since(start)).
		Msg("drift analysis finished")
	return report, nil
}

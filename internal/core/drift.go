package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/valter-silva-au/lmay/pkg/models"
)

// DefaultDriftThresholdDays is the age after which a document is stale.
const DefaultDriftThresholdDays = 30

// LiveSnapshot answers whether a root-relative path exists in the project
// as it is now.
type LiveSnapshot interface {
	Root() string
	Exists(rel string) bool
}

// DriftOptions configures obsolescence analysis.
type DriftOptions struct {
	ThresholdDays int
	// Policy decides when a stale document is obsolete. The zero value
	// behaves like models.DriftPolicyAnyResolves.
	Policy models.DriftPolicy
	// Now overrides the clock.
	Now func() time.Time
}

// AnalyzeObsolescence classifies each document as valid, outdated or
// obsolete. Documents younger than the threshold are always valid; older
// ones are checked against the snapshot using references extracted from
// their raw text.
func AnalyzeObsolescence(docs []string, snapshot LiveSnapshot, opts DriftOptions) (*models.ObsolescenceReport, error) {
	now := time.Now()
	if opts.Now != nil {
		now = opts.Now()
	}
	threshold := time.Duration(opts.ThresholdDays) * 24 * time.Hour

	report := models.NewObsolescenceReport()
	for _, doc := range docs {
		v, err := classify(doc, snapshot, opts.Policy, now, threshold)
		if err != nil {
			return nil, err
		}
		v.Path = relativeTo(snapshot.Root(), doc)
		report.Add(v)
	}
	return report, nil
}

func classify(doc string, snapshot LiveSnapshot, policy models.DriftPolicy, now time.Time, threshold time.Duration) (models.Verdict, error) {
	info, err := os.Stat(doc)
	if err != nil {
		return models.Verdict{}, fmt.Errorf("reading %s: %w", doc, err)
	}
	age := now.Sub(info.ModTime())
	v := models.Verdict{AgeDays: int(age / (24 * time.Hour))}
	if v.AgeDays < 0 {
		v.AgeDays = 0
	}

	if age < threshold {
		v.Status = models.VerdictValid
		v.Reason = fmt.Sprintf("modified %d days ago", v.AgeDays)
		return v, nil
	}

	raw, err := os.ReadFile(doc) //nolint:gosec // G304: paths come from document discovery
	if err != nil {
		return models.Verdict{}, fmt.Errorf("reading %s: %w", doc, err)
	}

	dir := filepath.Dir(doc)
	for _, ref := range ExtractReferences(raw) {
		v.References = append(v.References, ref.Raw)
		rel := relativeTo(snapshot.Root(), resolveLink(dir, ref.Raw))
		if !snapshot.Exists(rel) {
			v.Missing = append(v.Missing, ref.Raw)
		}
	}

	var obsolete bool
	switch policy {
	case models.DriftPolicyAllResolve:
		obsolete = len(v.Missing) > 0
	default:
		obsolete = len(v.References) > 0 && len(v.Missing) == len(v.References)
	}

	if obsolete {
		v.Status = models.VerdictObsolete
		v.Reason = "references non-existent files: " + strings.Join(v.Missing, ", ")
		return v, nil
	}
	v.Status = models.VerdictOutdated
	v.Reason = fmt.Sprintf("not modified for %d days (threshold %d)", v.AgeDays, int(threshold/(24*time.Hour)))
	return v, nil
}

// Cleaner deletes documents classified obsolete.
type Cleaner struct {
	root     string
	lockPath string
	remove   func(string) error
	logger   zerolog.Logger
}

// NewCleaner creates a Cleaner for verdict paths relative to root.
func NewCleaner(root string, logger zerolog.Logger) *Cleaner {
	return &Cleaner{root: root, remove: os.Remove, logger: logger}
}

// WithLock makes Clean hold an exclusive lock on path while deleting, so
// concurrent cleaners of one project run one after the other.
func (c *Cleaner) WithLock(path string) *Cleaner {
	c.lockPath = path
	return c
}

// Clean deletes every obsolete document in report, or only lists them when
// dryRun is set. report.Deleted and report.DryRun are updated. Failures do
// not stop the remaining deletions and are returned joined.
func (c *Cleaner) Clean(report *models.ObsolescenceReport, dryRun bool) ([]string, error) {
	report.DryRun = dryRun
	if c.lockPath != "" && !dryRun && len(report.Obsolete) > 0 {
		unlock, err := lockFile(c.lockPath)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := unlock(); err != nil {
				c.logger.Warn().Err(err).Str("lock", c.lockPath).Msg("failed to release clean lock")
			}
		}()
	}
	var deleted []string
	var errs []error

	for _, v := range report.Obsolete {
		if dryRun {
			deleted = append(deleted, v.Path)
			continue
		}
		target := v.Path
		if !filepath.IsAbs(target) {
			target = filepath.Join(c.root, filepath.FromSlash(target))
		}
		if err := c.remove(target); err != nil {
			errs = append(errs, fmt.Errorf("deleting %s: %w", v.Path, err))
			continue
		}
		c.logger.Info().Str("path", v.Path).Msg("deleted obsolete document")
		deleted = append(deleted, v.Path)
	}

	report.Deleted = deleted
	return deleted, errors.Join(errs...)
}

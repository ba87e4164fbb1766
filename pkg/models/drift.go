package models

// VerdictStatus classifies a document after drift analysis.
type VerdictStatus string

const (
	VerdictValid    VerdictStatus = "valid"
	VerdictOutdated VerdictStatus = "outdated"
	VerdictObsolete VerdictStatus = "obsolete"
)

// Verdict is the per-document outcome of obsolescence analysis. It is
// computed fresh on every run.
type Verdict struct {
	Path       string        `json:"path"`
	Status     VerdictStatus `json:"status"`
	AgeDays    int           `json:"age_days"`
	Reason     string        `json:"reason,omitempty"`
	References []string      `json:"references,omitempty"`
	Missing    []string      `json:"missing,omitempty"`
}

// ObsolescenceReport groups verdicts by status. Deleted lists the files
// removed (or, with DryRun, the files that would be removed) by auto-clean.
type ObsolescenceReport struct {
	Valid    []Verdict `json:"valid"`
	Outdated []Verdict `json:"outdated"`
	Obsolete []Verdict `json:"obsolete"`
	Deleted  []string  `json:"deleted,omitempty"`
	DryRun   bool      `json:"dry_run,omitempty"`
}

// NewObsolescenceReport returns a report with non-nil slices.
func NewObsolescenceReport() *ObsolescenceReport {
	return &ObsolescenceReport{
		Valid:    []Verdict{},
		Outdated: []Verdict{},
		Obsolete: []Verdict{},
	}
}

// Add files a verdict under its status.
func (r *ObsolescenceReport) Add(v Verdict) {
	switch v.Status {
	case VerdictObsolete:
		r.Obsolete = append(r.Obsolete, v)
	case VerdictOutdated:
		r.Outdated = append(r.Outdated, v)
	default:
		r.Valid = append(r.Valid, v)
	}
}

// Total returns the number of classified documents.
func (r *ObsolescenceReport) Total() int {
	return len(r.Valid) + len(r.Outdated) + len(r.Obsolete)
}

package models

// Severity separates findings that block validity from advisory ones.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Validator names used to tag findings and summary rows.
const (
	ValidatorLoader     = "loader"
	ValidatorSchema     = "schema"
	ValidatorReferences = "references"
	ValidatorHierarchy  = "hierarchy"
)

// FindingType is a machine-stable tag identifying the kind of finding.
type FindingType string

// Load-time findings.
const (
	FindingFileNotFound       FindingType = "FileNotFound"
	FindingEmptyDocument      FindingType = "EmptyDocument"
	FindingSyntaxError        FindingType = "SyntaxError"
	FindingBrokenDocumentLink FindingType = "BrokenDocumentLink"
)

// Schema findings.
const (
	FindingMissingRequiredField      FindingType = "MissingRequiredField"
	FindingInvalidType               FindingType = "InvalidType"
	FindingInvalidEnumValue          FindingType = "InvalidEnumValue"
	FindingStringLength              FindingType = "StringLength"
	FindingUnknownField              FindingType = "UnknownField"
	FindingInvalidFileCount          FindingType = "InvalidFileCount"
	FindingInvalidValue              FindingType = "InvalidValue"
	FindingUnsupportedVersion        FindingType = "UnsupportedVersion"
	FindingInvalidVersionFormat      FindingType = "InvalidVersionFormat"
	FindingGenericProjectName        FindingType = "GenericProjectName"
	FindingFrameworkLanguageMismatch FindingType = "FrameworkLanguageMismatch"
	FindingAbsolutePath              FindingType = "AbsolutePath"
	FindingFileLanguageAttribute     FindingType = "FileLanguageAttribute"
	FindingIncompletePattern         FindingType = "IncompletePattern"
	FindingUnsafeDependencyVersion   FindingType = "UnsafeDependencyVersion"
)

// Reference findings.
const (
	FindingReferencedPathNotFound FindingType = "ReferencedPathNotFound"
	FindingTypeMismatch           FindingType = "TypeMismatch"
	FindingEntryPointNotFile      FindingType = "EntryPointNotFile"
	FindingCircularReference      FindingType = "CircularReference"
	FindingMissingLmayExtension   FindingType = "MissingLmayExtension"
	FindingOrphanDocument         FindingType = "OrphanDocument"
	FindingTraversalDepthExceeded FindingType = "TraversalDepthExceeded"
)

// Hierarchy findings.
const (
	FindingIncorrectHierarchyDepth  FindingType = "IncorrectHierarchyDepth"
	FindingIncorrectParentReference FindingType = "IncorrectParentReference"
	FindingFlatHierarchy            FindingType = "FlatHierarchy"
	FindingUnbalancedHierarchy      FindingType = "UnbalancedHierarchy"
	FindingExcessiveHierarchyDepth  FindingType = "ExcessiveHierarchyDepth"
)

// Finding is one error or warning. File is the document the finding is
// about; Path is a JSON-pointer-like location inside it.
type Finding struct {
	Type       FindingType `json:"type"`
	Severity   Severity    `json:"severity"`
	Validator  string      `json:"validator"`
	Message    string      `json:"message"`
	File       string      `json:"file"`
	Path       string      `json:"path,omitempty"`
	Line       int         `json:"line,omitempty"`
	Column     int         `json:"column,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
	Cycle      []string    `json:"cycle,omitempty"`
}

// Counts is an error/warning tally.
type Counts struct {
	Errors   int `json:"error_count"`
	Warnings int `json:"warning_count"`
}

// Summary tallies findings per validator and overall.
type Summary struct {
	PerValidator map[string]Counts `json:"per_validator"`
	Total        Counts            `json:"total"`
}

// ValidationResult is the aggregate outcome of one validation pass.
// Valid is true iff there are no errors; warnings never affect it.
type ValidationResult struct {
	Valid     bool      `json:"valid"`
	Errors    []Finding `json:"errors"`
	Warnings  []Finding `json:"warnings"`
	Summary   Summary   `json:"summary"`
	Documents int       `json:"documents"`
}

// NewValidationResult returns an empty, valid result.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:    true,
		Errors:   []Finding{},
		Warnings: []Finding{},
		Summary:  Summary{PerValidator: make(map[string]Counts)},
	}
}

// Add records a finding under its severity.
func (r *ValidationResult) Add(f Finding) {
	if f.Severity == SeverityError {
		r.Errors = append(r.Errors, f)
		r.Valid = false
		return
	}
	r.Warnings = append(r.Warnings, f)
}

// Merge appends all findings of other into r.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for _, f := range other.Errors {
		r.Add(f)
	}
	for _, f := range other.Warnings {
		r.Add(f)
	}
}

// Summarize recomputes the summary from the current findings.
func (r *ValidationResult) Summarize() {
	r.Summary = Summary{PerValidator: make(map[string]Counts)}
	for _, f := range r.Errors {
		c := r.Summary.PerValidator[f.Validator]
		c.Errors++
		r.Summary.PerValidator[f.Validator] = c
	}
	for _, f := range r.Warnings {
		c := r.Summary.PerValidator[f.Validator]
		c.Warnings++
		r.Summary.PerValidator[f.Validator] = c
	}
	r.Summary.Total = Counts{Errors: len(r.Errors), Warnings: len(r.Warnings)}
	r.Valid = len(r.Errors) == 0
}

// All returns errors followed by warnings.
func (r *ValidationResult) All() []Finding {
	out := make([]Finding, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	return append(out, r.Warnings...)
}

package models

import "time"

// RunKind distinguishes validation runs from drift analysis runs.
type RunKind string

const (
	RunValidate RunKind = "validate"
	RunDrift    RunKind = "drift"
)

// RunRecord is the persisted summary of one validate or drift run.
type RunRecord struct {
	ID        string        `json:"id"`
	Kind      RunKind       `json:"kind"`
	Project   string        `json:"project"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Valid     bool          `json:"valid"`
	Documents int           `json:"documents"`
	Errors    int           `json:"errors"`
	Warnings  int           `json:"warnings"`
	Outdated  int           `json:"outdated"`
	Obsolete  int           `json:"obsolete"`
}

package report

import (
	"encoding/json"
	"io"

	"github.com/valter-silva-au/lmay/pkg/models"
)

type jsonReport struct {
	*models.ValidationResult
	Timestamp        string `json:"timestamp"`
	ValidatorVersion string `json:"validator_version"`
	RunID            string `json:"run_id,omitempty"`
}

type jsonDriftReport struct {
	*models.ObsolescenceReport
	Timestamp        string `json:"timestamp"`
	ValidatorVersion string `json:"validator_version"`
	RunID            string `json:"run_id,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderJSON(w io.Writer, res *models.ValidationResult, meta Meta) error {
	return writeJSON(w, jsonReport{
		ValidationResult: res,
		Timestamp:        meta.timestamp(),
		ValidatorVersion: meta.version(),
		RunID:            meta.RunID,
	})
}

func renderDriftJSON(w io.Writer, rep *models.ObsolescenceReport, meta Meta) error {
	return writeJSON(w, jsonDriftReport{
		ObsolescenceReport: rep,
		Timestamp:          meta.timestamp(),
		ValidatorVersion:   meta.version(),
		RunID:              meta.RunID,
	})
}

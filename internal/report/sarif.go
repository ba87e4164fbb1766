package report

import (
	"io"
	"sort"

	"github.com/valter-silva-au/lmay/pkg/models"
)

const (
	sarifVersion = "2.1.0"
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
	toolName     = "lmay"
	toolInfoURI  = "https://github.com/valter-silva-au/lmay"
)

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool              sarifTool         `json:"tool"`
	AutomationDetails *sarifAutomation  `json:"automationDetails,omitempty"`
	Invocations       []sarifInvocation `json:"invocations"`
	Results           []sarifResult     `json:"results"`
	Properties        map[string]any    `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID                   string             `json:"id"`
	ShortDescription     sarifMessage       `json:"shortDescription"`
	DefaultConfiguration sarifConfiguration `json:"defaultConfiguration"`
}

type sarifConfiguration struct {
	Level string `json:"level"`
}

type sarifAutomation struct {
	ID string `json:"id"`
}

type sarifInvocation struct {
	ExecutionSuccessful bool   `json:"executionSuccessful"`
	EndTimeUTC          string `json:"endTimeUtc"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID     string            `json:"ruleId"`
	RuleIndex  int               `json:"ruleIndex"`
	Level      string            `json:"level"`
	Message    sarifMessage      `json:"message"`
	Locations  []sarifLocation   `json:"locations"`
	Properties map[string]string `json:"properties,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
	LogicalLocations []sarifLogical        `json:"logicalLocations,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           *sarifRegion  `json:"region,omitempty"`
}

type sarifArtifact struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId,omitempty"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn,omitempty"`
}

type sarifLogical struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
	Kind               string `json:"kind"`
}

// sarifLevel maps a severity onto a SARIF result level.
func sarifLevel(s models.Severity) string {
	if s == models.SeverityError {
		return "error"
	}
	return "warning"
}

func renderSARIF(w io.Writer, res *models.ValidationResult, meta Meta) error {
	return writeJSON(w, buildSARIF(res, meta))
}

func buildSARIF(res *models.ValidationResult, meta Meta) sarifLog {
	findings := res.All()

	// One rule per finding type, at the most severe level it was seen with.
	levels := make(map[models.FindingType]string)
	for _, f := range findings {
		if lvl, ok := levels[f.Type]; !ok || lvl == "warning" {
			levels[f.Type] = sarifLevel(f.Severity)
		}
	}
	ids := make([]string, 0, len(levels))
	for t := range levels {
		ids = append(ids, string(t))
	}
	sort.Strings(ids)

	rules := make([]sarifRule, 0, len(ids))
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
		rules = append(rules, sarifRule{
			ID:                   id,
			ShortDescription:     sarifMessage{Text: id},
			DefaultConfiguration: sarifConfiguration{Level: levels[models.FindingType(id)]},
		})
	}

	results := make([]sarifResult, 0, len(findings))
	for _, f := range findings {
		loc := sarifLocation{
			PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifact{URI: f.File, URIBaseID: "SRCROOT"},
			},
		}
		if f.Line > 0 {
			loc.PhysicalLocation.Region = &sarifRegion{StartLine: f.Line, StartColumn: f.Column}
		}
		if f.Path != "" {
			loc.LogicalLocations = []sarifLogical{{FullyQualifiedName: f.Path, Kind: "member"}}
		}

		r := sarifResult{
			RuleID:    string(f.Type),
			RuleIndex: index[string(f.Type)],
			Level:     sarifLevel(f.Severity),
			Message:   sarifMessage{Text: f.Message},
			Locations: []sarifLocation{loc},
			Properties: map[string]string{
				"validator": f.Validator,
			},
		}
		if f.Suggestion != "" {
			r.Properties["suggestion"] = f.Suggestion
		}
		results = append(results, r)
	}

	run := sarifRun{
		Tool: sarifTool{Driver: sarifDriver{
			Name:           toolName,
			Version:        meta.version(),
			InformationURI: toolInfoURI,
			Rules:          rules,
		}},
		Invocations: []sarifInvocation{{ExecutionSuccessful: true, EndTimeUTC: meta.timestamp()}},
		Results:     results,
		Properties:  map[string]any{"valid": res.Valid, "documents": res.Documents},
	}
	if meta.RunID != "" {
		run.AutomationDetails = &sarifAutomation{ID: meta.RunID}
	}

	return sarifLog{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs:    []sarifRun{run},
	}
}

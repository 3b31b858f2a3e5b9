package report

import (
	"encoding/json"
	"fmt"

	"github.com/xab-mack/dosguard/internal/model"
)

type sarif struct {
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}
type sarifDriver struct {
	Name string `json:"name"`
}

type sarifResult struct {
	RuleID    string       `json:"ruleId"`
	Level     string       `json:"level"`
	Message   sarifMessage `json:"message"`
	Locations []sarifLoc   `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}
type sarifLoc struct {
	Physical sarifPhys   `json:"physicalLocation"`
	Logical  []sarifPart `json:"logicalLocations,omitempty"`
}
type sarifPhys struct {
	ArtifactLocation sarifArt    `json:"artifactLocation"`
	Region           sarifRegion `json:"region"`
}
type sarifArt struct {
	URI string `json:"uri"`
}
type sarifRegion struct {
	StartLine int `json:"startLine"`
}
type sarifPart struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
}

// ToSARIF serializes an aggregated report for code-scanning upload.
func ToSARIF(r *Report) ([]byte, error) {
	results := make([]sarifResult, 0, len(r.Findings))
	for _, f := range r.Findings {
		level := "note"
		switch f.Severity {
		case model.SeverityMedium:
			level = "warning"
		case model.SeverityHigh:
			level = "error"
		}
		results = append(results, sarifResult{
			RuleID:  f.RuleID,
			Level:   level,
			Message: sarifMessage{Text: fmt.Sprintf("%s (suggested mitigation: %s)", f.Message, f.Mitigation)},
			Locations: []sarifLoc{{
				Physical: sarifPhys{
					ArtifactLocation: sarifArt{URI: f.File},
					Region:           sarifRegion{StartLine: f.Line},
				},
				Logical: []sarifPart{{FullyQualifiedName: f.Contract + "." + f.Function}},
			}},
		})
	}
	s := sarif{Version: "2.1.0", Runs: []sarifRun{{Tool: sarifTool{Driver: sarifDriver{Name: "dosguard"}}, Results: results}}}
	return json.MarshalIndent(s, "", "  ")
}

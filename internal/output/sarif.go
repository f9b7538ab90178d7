package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/aireview/internal/review"
)

// SARIFWriter outputs blocking and manual results in SARIF v2.1.0 format.
type SARIFWriter struct{}

func (s *SARIFWriter) Write(w io.Writer, report *Report) error {
	data, err := json.MarshalIndent(buildSARIF(report), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling SARIF: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing SARIF: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// SARIF schema types (v2.1.0)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
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
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

// buildSARIF emits one rule per configured check and one result per check
// that failed or needs a human. Passing and skipped checks produce no result.
func buildSARIF(report *Report) sarifLog {
	rules := make([]sarifRule, 0, len(report.Results))
	results := []sarifResult{}
	for _, r := range report.Results {
		rules = append(rules, sarifRule{
			ID:               r.CheckID,
			ShortDescription: sarifMessage{Text: "aireview check " + r.CheckID},
		})
		level := stateToLevel(r.State)
		if level == "" {
			continue
		}
		text := feedback(r)
		if text == "" {
			text = string(r.State)
		}
		res := sarifResult{RuleID: r.CheckID, Level: level, Message: sarifMessage{Text: text}}
		if r.Verdict != nil {
			for _, f := range r.Verdict.ModifiedFiles {
				res.Locations = append(res.Locations, sarifLocation{
					PhysicalLocation: sarifPhysicalLocation{ArtifactLocation: sarifArtifactLocation{URI: f.Path}},
				})
			}
		}
		results = append(results, res)
	}

	return sarifLog{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:    report.Tool,
						Version: report.Version,
						Rules:   rules,
					},
				},
				Results: results,
			},
		},
	}
}

// stateToLevel maps a terminal check state to a SARIF level, or "" when
// the state needs no result.
func stateToLevel(s review.State) string {
	switch s {
	case review.StateFail, review.StateFailed, review.StateFix:
		return "error"
	case review.StateManual:
		return "note"
	default:
		return ""
	}
}

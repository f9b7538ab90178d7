package verdict

import (
	"encoding/json"
	"strings"
)

// Status is the outcome a reviewer model assigns to a check.
type Status string

const (
	StatusPass   Status = "PASS"
	StatusFail   Status = "FAIL"
	StatusFix    Status = "FIX"
	StatusManual Status = "MANUAL"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPass, StatusFail, StatusFix, StatusManual:
		return true
	}
	return false
}

// Strategy names the parse step that produced a verdict.
type Strategy string

const (
	StrategyWhole    Strategy = "whole"
	StrategyFenced   Strategy = "fenced"
	StrategyBrute    Strategy = "brute_force"
	StrategyRepaired Strategy = "repaired"
	StrategyFallback Strategy = "fallback"
	StrategyEmpty    Strategy = "empty"
)

// DefaultFeedback is used when a JSON reply carries no feedback text.
const DefaultFeedback = "No feedback"

// ModifiedFile is a full replacement file suggested by a FIX verdict.
type ModifiedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Verdict is the normalized result of one check invocation.
type Verdict struct {
	Status        Status         `json:"status"`
	Feedback      string         `json:"feedback"`
	ModifiedFiles []ModifiedFile `json:"modified_files"`
	Strategy      Strategy       `json:"-"`
}

// FailureJSON encodes a FAIL verdict with the given feedback. Provider
// adapters return it in place of an error so failures flow through Parse.
func FailureJSON(feedback string) string {
	data, _ := json.Marshal(Verdict{Status: StatusFail, Feedback: feedback, ModifiedFiles: []ModifiedFile{}})
	return string(data)
}

// normalize maps a decoded JSON object onto the canonical verdict shape.
// Unknown or missing status becomes FAIL; feedback falls back to the
// legacy reason field.
func normalize(obj map[string]any) Verdict {
	v := Verdict{Status: StatusFail, Feedback: DefaultFeedback, ModifiedFiles: []ModifiedFile{}}

	if s, ok := obj["status"].(string); ok {
		if st := Status(strings.ToUpper(strings.TrimSpace(s))); st.Valid() {
			v.Status = st
		}
	}

	if fb, ok := obj["feedback"].(string); ok && strings.TrimSpace(fb) != "" {
		v.Feedback = fb
	} else if reason, ok := obj["reason"].(string); ok && strings.TrimSpace(reason) != "" {
		v.Feedback = reason
	}

	if files, ok := obj["modified_files"].([]any); ok {
		for _, item := range files {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			path, _ := m["path"].(string)
			if strings.TrimSpace(path) == "" {
				continue
			}
			content, _ := m["content"].(string)
			v.ModifiedFiles = append(v.ModifiedFiles, ModifiedFile{Path: path, Content: content})
		}
	}
	return v
}

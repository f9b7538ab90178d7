package verdict

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Options tunes how unparseable replies are classified.
type Options struct {
	// Unparseable is the status given to non-empty replies with no
	// recoverable JSON object. It must be MANUAL or FAIL.
	Unparseable Status
	// Repair enables a jsonrepair pass over the brute-force span.
	Repair bool
}

// DefaultOptions treats unparseable replies as MANUAL with repair off.
func DefaultOptions() Options {
	return Options{Unparseable: StatusManual}
}

// Parse recovers a verdict from raw model output. It tries, in order: the
// whole text as JSON, fenced code blocks, the span from the first '{' to
// the last '}', an optional repair pass, and finally a fallback that keeps
// the text as feedback. It never yields PASS for a reply it could not read.
func Parse(raw string, opts Options) Verdict {
	if opts.Unparseable != StatusFail {
		opts.Unparseable = StatusManual
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return Verdict{Status: StatusFail, Feedback: "Empty response from model", ModifiedFiles: []ModifiedFile{}, Strategy: StrategyEmpty}
	}

	if obj, ok := decodeObject(text); ok {
		return withStrategy(normalize(obj), StrategyWhole)
	}

	for _, block := range fencedBlocks(text) {
		block = strings.TrimSpace(block)
		if !strings.HasPrefix(block, "{") {
			continue
		}
		if obj, ok := decodeObject(block); ok {
			return withStrategy(normalize(obj), StrategyFenced)
		}
	}

	span, hasSpan := braceSpan(text)
	if hasSpan {
		if obj, ok := decodeObject(span); ok {
			return withStrategy(normalize(obj), StrategyBrute)
		}
	}

	if opts.Repair && hasSpan {
		if repaired, err := jsonrepair.JSONRepair(span); err == nil {
			if obj, ok := decodeObject(repaired); ok {
				v := normalize(obj)
				if v.Status == StatusPass {
					v.Status = opts.Unparseable
				}
				return withStrategy(v, StrategyRepaired)
			}
		}
	}

	return Verdict{Status: opts.Unparseable, Feedback: text, ModifiedFiles: []ModifiedFile{}, Strategy: StrategyFallback}
}

// fencedBlocks returns the bodies of ``` blocks tagged json or untagged.
func fencedBlocks(text string) []string {
	var blocks []string
	var body []string
	inside, accept := false, false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !inside {
			if tag, ok := strings.CutPrefix(trimmed, "```"); ok {
				tag = strings.ToLower(strings.TrimSpace(tag))
				inside, accept = true, tag == "" || tag == "json"
				body = body[:0]
			}
			continue
		}
		if strings.HasPrefix(trimmed, "```") {
			if accept {
				blocks = append(blocks, strings.Join(body, "\n"))
			}
			inside = false
			continue
		}
		body = append(body, line)
	}
	return blocks
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func braceSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func withStrategy(v Verdict, s Strategy) Verdict {
	v.Strategy = s
	return v
}

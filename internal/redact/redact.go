package redact

import (
	"regexp"
	"strings"

	"github.com/dshills/aireview/internal/gitctx"
)

// Placeholder replaces every redacted value.
const Placeholder = "[REDACTED]"

const pathNotice = Placeholder + " (file content redacted by path policy)"

type rule struct {
	name string
	re   *regexp.Regexp
}

// rules are regex heuristics for common secret shapes. Order matters: the
// Anthropic pattern must run before the broader OpenAI one.
var rules = []rule{
	{"api_key", regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`)},
	{"aws_access_key_id", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"aws_secret_access_key", regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`)},
	{"assignment", regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`)},
	{"bearer", regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`)},
	{"private_key", regexp.MustCompile(`-----BEGIN\s+([A-Z]+\s+)?PRIVATE KEY-----`)},
	{"connection_string", regexp.MustCompile(`(?i)\b(postgres(ql)?|mysql|mongodb(\+srv)?|redis|amqp)://[^:\s/]+:[^@\s]+@`)},
	{"github", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`)},
	{"slack", regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`)},
	{"anthropic", regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
	{"openai", regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{"hex_assignment", regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`)},
}

// Report summarizes what a redaction pass removed.
type Report struct {
	Secrets int            `json:"secrets"`
	ByRule  map[string]int `json:"by_rule,omitempty"`
	Files   []string       `json:"files,omitempty"`
}

// Empty reports whether nothing was redacted.
func (r Report) Empty() bool {
	return r.Secrets == 0 && len(r.Files) == 0
}

func (r *Report) add(name string, n int) {
	if n == 0 {
		return
	}
	if r.ByRule == nil {
		r.ByRule = make(map[string]int)
	}
	r.ByRule[name] += n
	r.Secrets += n
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	out, _ := secrets(text)
	return out
}

func secrets(text string) (string, Report) {
	var rep Report
	for _, r := range rules {
		n := 0
		text = r.re.ReplaceAllStringFunc(text, func(string) string {
			n++
			return Placeholder
		})
		rep.add(r.name, n)
	}
	return text, rep
}

// Payload redacts a review payload before it is sent to a model. File
// sections whose path matches one of paths are blanked out entirely; all
// other text is scanned for secrets. A file section starts at a
// "=== FILE: <path> ===" line or a "diff --git" header and runs until the
// next section header or context block.
func Payload(payload string, paths []string) (string, Report) {
	var rep Report
	if len(paths) > 0 {
		payload = blankPaths(payload, paths, &rep)
	}
	out, secretRep := secrets(payload)
	for name, n := range secretRep.ByRule {
		rep.add(name, n)
	}
	return out, rep
}

func blankPaths(payload string, paths []string, rep *Report) string {
	lines := strings.Split(payload, "\n")
	out := make([]string, 0, len(lines))
	blanking := false
	for _, line := range lines {
		if path, ok := sectionStart(line); ok {
			blanking = false
			if path != "" && gitctx.MatchesAny(path, paths) {
				blanking = true
				rep.Files = append(rep.Files, path)
				out = append(out, line, pathNotice)
				continue
			}
		}
		if blanking && line != "```" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// sectionStart reports whether line opens a new section and, when the
// section belongs to a file, which one.
func sectionStart(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "=== FILE: ") && strings.HasSuffix(line, " ==="):
		return strings.TrimSuffix(strings.TrimPrefix(line, "=== FILE: "), " ==="), true
	case strings.HasPrefix(line, "diff --git "):
		if i := strings.LastIndex(line, " b/"); i >= 0 {
			return line[i+3:], true
		}
		return "", true
	case strings.HasPrefix(line, "=== ") && strings.HasSuffix(line, " ==="):
		return "", true
	case strings.HasPrefix(line, "### Context: "):
		return "", true
	}
	return "", false
}

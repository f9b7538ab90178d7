package review

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/dshills/aireview/internal/patch"
	"github.com/dshills/aireview/internal/verdict"
)

const ruleWidth = 80

// Reporter prints the human-readable review report. Colors are dropped
// automatically when stdout is not a terminal.
type Reporter struct {
	w      io.Writer
	bold   *color.Color
	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	faint  *color.Color
}

// NewReporter returns a Reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{
		w:      w,
		bold:   color.New(color.Bold),
		green:  color.New(color.FgGreen, color.Bold),
		red:    color.New(color.FgRed, color.Bold),
		yellow: color.New(color.FgYellow, color.Bold),
		cyan:   color.New(color.FgCyan),
		faint:  color.New(color.Faint),
	}
}

// Header opens the section for a check.
func (r *Reporter) Header(checkID string) {
	line := strings.Repeat("=", ruleWidth)
	fmt.Fprintln(r.w, line)
	r.bold.Fprintf(r.w, "CHECK: %s\n", checkID)
	fmt.Fprintln(r.w, line)
}

// Skipped reports a check with no context to review.
func (r *Reporter) Skipped() {
	r.faint.Fprint(r.w, "\n  ⏭  Skipped (no context available)\n\n")
}

// ContextError reports a failure while gathering context.
func (r *Reporter) ContextError(err error) {
	r.red.Fprintf(r.w, "  ✘ Error gathering context: %v\n\n", err)
}

// Debug prints backend metadata and the full outbound payload behind a
// gutter so the exact request can be audited.
func (r *Reporter) Debug(metadata map[string]any, payload string) {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, metadata[k]))
	}
	r.faint.Fprintf(r.w, "[DEBUG] %s\n\n", strings.Join(parts, " | "))
	for _, line := range strings.Split(payload, "\n") {
		fmt.Fprintf(r.w, "  %s %s\n", r.faint.Sprint("│"), line)
	}
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, strings.Repeat("-", ruleWidth))
}

// Note prints an informational line.
func (r *Reporter) Note(format string, args ...any) {
	r.cyan.Fprintf(r.w, "  "+format+"\n", args...)
}

// Verdict prints the status line for a parsed verdict.
func (r *Reporter) Verdict(v verdict.Verdict, cached bool) {
	c, symbol := r.red, "✘"
	switch v.Status {
	case verdict.StatusPass:
		c, symbol = r.green, "✔"
	case verdict.StatusManual:
		c, symbol = r.yellow, "ℹ"
	case verdict.StatusFix:
		c, symbol = r.yellow, "✎"
	}
	suffix := ""
	if cached {
		suffix = r.faint.Sprint(" (cached)")
	}
	fmt.Fprintf(r.w, "%s | Feedback: %s%s\n\n", c.Sprintf("%s %s", symbol, v.Status), v.Feedback, suffix)
}

// Patch reports a saved patch.
func (r *Reporter) Patch(p *patch.Patch) {
	r.cyan.Fprintf(r.w, "  Suggested fix saved to %s\n", p.Path)
	fmt.Fprintf(r.w, "    %s\n", p.Summary())
	fmt.Fprintf(r.w, "    apply with: git apply %s\n", p.Path)
	for _, s := range p.Skipped {
		r.yellow.Fprintf(r.w, "    skipped %s (not found in the work directory)\n", s)
	}
	fmt.Fprintln(r.w)
}

// Summary prints the run totals.
func (r *Reporter) Summary(s Summary) {
	fmt.Fprintln(r.w, strings.Repeat("=", ruleWidth))
	total := len(s.Results)
	line := fmt.Sprintf("%d check(s): %d passed, %d failed, %d skipped, %d manual",
		total, s.Passed, s.Failed, s.Skipped, s.Manual)
	if s.OK() {
		r.green.Fprintln(r.w, line)
	} else {
		r.red.Fprintln(r.w, line)
	}
}

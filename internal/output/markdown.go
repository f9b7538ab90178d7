package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/aireview/internal/review"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *Report) error {
	fmt.Fprintf(w, "## AI Code Review\n\n")

	fmt.Fprintf(w, "| Check | Model | Result |\n")
	fmt.Fprintf(w, "|-------|-------|--------|\n")
	for _, r := range report.Results {
		model := r.Model
		if model == "" {
			model = "-"
		}
		fmt.Fprintf(w, "| `%s` | %s | %s %s |\n", r.CheckID, model, stateIcon(r.State), r.State)
	}
	fmt.Fprintf(w, "\n**%d passed, %d failed, %d skipped, %d manual**\n\n",
		report.Passed, report.Failed, report.Skipped, report.Manual)

	if report.OK {
		fmt.Fprintln(w, "All checks passed. :white_check_mark:")
		fmt.Fprintln(w)
	}

	for _, r := range report.Results {
		text := feedback(r)
		if text == "" {
			continue
		}
		fmt.Fprintf(w, "<details>\n<summary>%s %s</summary>\n\n", stateIcon(r.State), r.CheckID)
		fmt.Fprintf(w, "> %s\n\n", strings.ReplaceAll(text, "\n", "\n> "))
		if r.Patch != nil {
			fmt.Fprintf(w, "Suggested fix: `%s`\n\n", r.Patch.Path)
			for _, f := range r.Patch.Files {
				fmt.Fprintf(w, "- `%s` (+%d -%d)\n", f.Path, f.Added, f.Removed)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "</details>\n\n")
	}
	return nil
}

func feedback(r review.Result) string {
	switch {
	case r.Error != "":
		return r.Error
	case r.Verdict != nil && r.State != review.StatePass:
		return r.Verdict.Feedback
	}
	return ""
}

func stateIcon(s review.State) string {
	switch s {
	case review.StatePass:
		return ":white_check_mark:"
	case review.StateFail, review.StateFailed:
		return ":x:"
	case review.StateFix:
		return ":wrench:"
	case review.StateManual:
		return ":information_source:"
	default:
		return ":fast_forward:"
	}
}

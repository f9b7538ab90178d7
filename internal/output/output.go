package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dshills/aireview/internal/review"
)

// ToolName identifies aireview in exported reports.
const ToolName = "aireview"

// Report is a finished run in exportable form.
type Report struct {
	Tool        string    `json:"tool"`
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generatedAt"`
	OK          bool      `json:"ok"`
	review.Summary
}

// NewReport wraps a run summary for export.
func NewReport(s review.Summary, version string) *Report {
	return &Report{
		Tool:        ToolName,
		Version:     version,
		GeneratedAt: time.Now().UTC(),
		OK:          s.OK(),
		Summary:     s,
	}
}

// Writer writes a report in a specific format.
type Writer interface {
	Write(w io.Writer, report *Report) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "", "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteReport writes the report to outPath, or to stdout when outPath is empty.
func WriteReport(report *Report, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return writer.Write(w, report)
}

package dump

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dshills/aireview/internal/logging"
)

// Dir is where dumps are written, relative to the work directory.
const Dir = ".aireview/debug"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Dumper writes review requests and parsed responses to disk for
// inspection. A disabled Dumper does nothing.
type Dumper struct {
	enabled bool
	dir     string
	now     func() time.Time
	logger  *slog.Logger
}

// New returns a Dumper writing below workDir.
func New(enabled bool, workDir string, logger *slog.Logger) *Dumper {
	if workDir == "" {
		workDir = "."
	}
	return &Dumper{
		enabled: enabled,
		dir:     filepath.Join(workDir, Dir),
		now:     time.Now,
		logger:  logging.OrDiscard(logger),
	}
}

// Enabled reports whether dumps are written.
func (d *Dumper) Enabled() bool {
	return d != nil && d.enabled
}

// Request writes the payload sent for checkID to <unix>_<check>_req.txt and
// returns the file path, or "" when disabled.
func (d *Dumper) Request(checkID, payload string) (string, error) {
	if !d.Enabled() {
		return "", nil
	}
	return d.write(checkID, "_req.txt", []byte(payload))
}

// Response writes v as indented JSON to <unix>_<check>_resp.json.
func (d *Dumper) Response(checkID string, v any) (string, error) {
	if !d.Enabled() {
		return "", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encoding response dump: %w", err)
	}
	return d.write(checkID, "_resp.json", buf.Bytes())
}

func (d *Dumper) write(checkID, suffix string, data []byte) (string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating debug directory: %w", err)
	}
	name := fmt.Sprintf("%d_%s%s", d.now().Unix(), unsafeName.ReplaceAllString(checkID, "_"), suffix)
	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing dump: %w", err)
	}
	d.logger.Debug("dump written", "check", checkID, "path", path)
	return path, nil
}

package patch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/dshills/aireview/internal/gitctx"
	"github.com/dshills/aireview/internal/logging"
	"github.com/dshills/aireview/internal/verdict"
)

// Dir is where patches are written, relative to the work directory.
const Dir = ".aireview/patches"

const contextLines = 3

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// ErrNoPatches is returned by Latest when the patch directory is empty.
var ErrNoPatches = errors.New("no saved patches")

// ErrBinary is returned by Unified for content containing NUL bytes.
var ErrBinary = errors.New("binary content cannot be diffed")

// noEOL tags a final line that has no newline. The tag keeps it from
// matching an otherwise identical terminated line.
const (
	noEOL       = "\x00"
	noEOLMarker = "\\ No newline at end of file\n"
)

// FileStat counts the line changes a suggestion makes to one file.
type FileStat struct {
	Path    string `json:"path"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
}

// Patch describes a saved patch file.
type Patch struct {
	Path    string     `json:"path"`
	Files   []FileStat `json:"files"`
	Skipped []string   `json:"skipped,omitempty"`
}

// Summary renders the per-file stats as "path (+a -r)" joined by commas.
func (p *Patch) Summary() string {
	parts := make([]string, 0, len(p.Files))
	for _, f := range p.Files {
		parts = append(parts, fmt.Sprintf("%s (+%d -%d)", f.Path, f.Added, f.Removed))
	}
	return strings.Join(parts, ", ")
}

// Manager turns FIX suggestions into patch files and reverses applied ones.
type Manager struct {
	root   string
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewManager returns a Manager rooted at workDir. Suggested paths are
// resolved against workDir and patches are written below it.
func NewManager(workDir string, logger *slog.Logger) *Manager {
	if workDir == "" {
		workDir = "."
	}
	return &Manager{
		root:   workDir,
		dir:    filepath.Join(workDir, Dir),
		now:    time.Now,
		logger: logging.OrDiscard(logger),
	}
}

// Save diffs each suggested file against the file on disk and writes the
// combined unified diff to <unix>_<check>.patch. Files that do not exist or
// resolve outside the work directory are skipped with a warning. Save
// returns a nil Patch when no suggestion changes anything.
func (m *Manager) Save(checkID string, files []verdict.ModifiedFile) (*Patch, error) {
	var (
		buf strings.Builder
		p   Patch
	)
	for _, f := range files {
		if f.Path == "" {
			continue
		}
		abs, ok := m.resolve(f.Path)
		if !ok {
			m.logger.Warn("suggested fix points outside the work directory", "check", checkID, "path", f.Path)
			p.Skipped = append(p.Skipped, f.Path)
			continue
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			m.logger.Warn("suggested fix for non-existent file", "check", checkID, "path", f.Path)
			p.Skipped = append(p.Skipped, f.Path)
			continue
		}
		rel := filepath.ToSlash(filepath.Clean(f.Path))
		diff, err := Unified(rel, string(data), f.Content)
		if errors.Is(err, ErrBinary) {
			m.logger.Warn("suggested fix for binary file", "check", checkID, "path", f.Path)
			p.Skipped = append(p.Skipped, f.Path)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("diffing %s: %w", rel, err)
		}
		if diff == "" {
			continue
		}
		buf.WriteString(diff)
		added, removed := Stat(string(data), withTrailingNewline(f.Content))
		p.Files = append(p.Files, FileStat{Path: rel, Added: added, Removed: removed})
	}
	if buf.Len() == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating patch directory: %w", err)
	}
	name := fmt.Sprintf("%d_%s.patch", m.now().Unix(), unsafeName.ReplaceAllString(checkID, "_"))
	p.Path = filepath.Join(m.dir, name)
	if err := os.WriteFile(p.Path, []byte(buf.String()), 0o644); err != nil {
		return nil, fmt.Errorf("writing patch: %w", err)
	}
	m.logger.Debug("patch saved", "check", checkID, "path", p.Path, "files", len(p.Files))
	return &p, nil
}

// Revert reverses a previously applied patch. It first checks that the
// patch reverses cleanly so a conflict leaves the tree untouched.
func (m *Manager) Revert(ctx context.Context, patchPath string) error {
	abs, err := filepath.Abs(patchPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("patch file not found: %s", patchPath)
	}
	if _, err := gitctx.Run(ctx, m.root, "apply", "--reverse", "--check", abs); err != nil {
		return fmt.Errorf("patch %s does not reverse cleanly (conflict, or not applied): %w", patchPath, err)
	}
	if _, err := gitctx.Run(ctx, m.root, "apply", "--reverse", abs); err != nil {
		return fmt.Errorf("reverting %s: %w", patchPath, err)
	}
	m.logger.Info("patch reverted", "path", patchPath)
	return nil
}

// List returns saved patch paths, newest first.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".patch") {
			paths = append(paths, filepath.Join(m.dir, e.Name()))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}

// Latest returns the newest saved patch.
func (m *Manager) Latest() (string, error) {
	paths, err := m.List()
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", ErrNoPatches
	}
	return paths[0], nil
}

func (m *Manager) resolve(path string) (string, bool) {
	if filepath.IsAbs(path) {
		return "", false
	}
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.Join(m.root, clean), true
}

// Unified returns a git-applicable unified diff turning oldContent into
// newContent for path, or "" when they are equal. The new content always
// ends with a newline; an old file without one gets git's
// "\ No newline at end of file" marker.
func Unified(path, oldContent, newContent string) (string, error) {
	if strings.ContainsRune(oldContent, 0) || strings.ContainsRune(newContent, 0) {
		return "", ErrBinary
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(oldContent),
		B:        splitLines(withTrailingNewline(newContent)),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  contextLines,
	})
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(diff, noEOL+"\n", "\n"+noEOLMarker), nil
}

// Stat counts added and removed lines between two texts.
func Stat(oldContent, newContent string) (added, removed int) {
	dmp := diffmatchpatch.New()
	ac, bc, lines := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ac, bc, false), lines)
	for _, d := range diffs {
		n := strings.Count(d.Text, "\n")
		if d.Text != "" && !strings.HasSuffix(d.Text, "\n") {
			n++
		}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	} else {
		lines[len(lines)-1] += noEOL + "\n"
	}
	return lines
}

func withTrailingNewline(s string) string {
	if s != "" && !strings.HasSuffix(s, "\n") {
		return s + "\n"
	}
	return s
}

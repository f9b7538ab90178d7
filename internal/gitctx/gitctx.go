package gitctx

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// DefaultTarget diffs the staged index against HEAD.
const DefaultTarget = "--cached"

// ReviewContext says what is being reviewed and where git runs.
// It is passed explicitly instead of being read from the environment.
type ReviewContext struct {
	// Target is the git diff range, e.g. "--cached" or "origin/main..HEAD".
	Target string
	// WorkDir is the directory git and shell commands run in. Empty means
	// the process working directory.
	WorkDir string
}

// TargetArgs returns the diff target split into git arguments.
func (rc ReviewContext) TargetArgs() []string {
	fields := strings.Fields(rc.Target)
	if len(fields) == 0 {
		return []string{DefaultTarget}
	}
	return fields
}

// IsRange reports whether the target names commits rather than the index.
func (rc ReviewContext) IsRange() bool {
	for _, f := range rc.TargetArgs() {
		if !strings.HasPrefix(f, "-") {
			return true
		}
	}
	return false
}

// CommitTarget returns the diff range covering a single commit.
func CommitTarget(sha string) string {
	return sha + "^.." + sha
}

// Diff returns the unified diff for the review target.
func Diff(ctx context.Context, rc ReviewContext) (string, error) {
	args := append([]string{"diff"}, rc.TargetArgs()...)
	return Run(ctx, rc.WorkDir, args...)
}

// ChangedFiles returns the paths changed by the review target, excluding
// deleted files.
func ChangedFiles(ctx context.Context, rc ReviewContext) ([]string, error) {
	args := append([]string{"diff"}, rc.TargetArgs()...)
	args = append(args, "--name-only", "--diff-filter=d")
	out, err := Run(ctx, rc.WorkDir, args...)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// Passes reports whether path survives include/exclude filtering: it must
// match an include pattern (when any are given) and no exclude pattern.
func Passes(path string, include, exclude []string) bool {
	if len(include) > 0 && !MatchesAny(path, include) {
		return false
	}
	return !MatchesAny(path, exclude)
}

// FilterFiles keeps the files that pass include/exclude filtering.
func FilterFiles(files, include, exclude []string) []string {
	var result []string
	for _, f := range files {
		if Passes(f, include, exclude) {
			result = append(result, f)
		}
	}
	return result
}

// FilterDiff drops per-file sections of a unified diff whose path does not
// pass include/exclude filtering. It also returns the paths it dropped.
func FilterDiff(diff string, include, exclude []string) (string, []string) {
	if len(include) == 0 && len(exclude) == 0 {
		return diff, nil
	}
	var kept []string
	var dropped []string
	for _, section := range splitDiffSections(diff) {
		path := sectionPath(section)
		if path == "" || Passes(path, include, exclude) {
			kept = append(kept, section)
			continue
		}
		dropped = append(dropped, path)
	}
	return strings.Join(kept, ""), dropped
}

// DiffFiles lists the file paths named in a unified diff, in order.
func DiffFiles(diff string) []string {
	var files []string
	seen := make(map[string]bool)
	for _, section := range splitDiffSections(diff) {
		if f := sectionPath(section); f != "" && !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	return files
}

func splitDiffSections(diff string) []string {
	if diff == "" {
		return nil
	}
	var sections []string
	var current strings.Builder
	for _, line := range strings.SplitAfter(diff, "\n") {
		if strings.HasPrefix(line, "diff --git") && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}
	return sections
}

// sectionPath reads the path from the "diff --git a/x b/x" header so that
// deleted files (whose +++ line is /dev/null) are still attributed.
func sectionPath(section string) string {
	header, _, _ := strings.Cut(section, "\n")
	if !strings.HasPrefix(header, "diff --git ") {
		return ""
	}
	if i := strings.LastIndex(header, " b/"); i >= 0 {
		return header[i+3:]
	}
	return ""
}

// MatchesAny returns true if the path matches any of the given glob patterns.
// Patterns follow fnmatch rules: "*" and "?" also match "/", so "*.py"
// matches "src/app.py". A leading "**/" additionally matches at the top
// level, so "**/.env" matches ".env".
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if fnmatch(pattern, path) {
			return true
		}
		if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
			if fnmatch(rest, path) || fnmatch(rest, filepath.Base(path)) {
				return true
			}
		}
	}
	return false
}

var globCache sync.Map // pattern -> *regexp.Regexp

func fnmatch(pattern, name string) bool {
	if re, ok := globCache.Load(pattern); ok {
		return re.(*regexp.Regexp).MatchString(name)
	}
	re, err := regexp.Compile(globToRegexp(pattern))
	if err != nil {
		return false
	}
	globCache.Store(pattern, re)
	return re.MatchString(name)
}

// globToRegexp translates a shell glob with fnmatch(3) semantics and no
// FNM_PATHNAME, so wildcards cross "/". An unterminated "[" is literal.
func globToRegexp(pattern string) string {
	p := []rune(pattern)
	var b strings.Builder
	b.WriteString(`(?s)\A`)
	for i := 0; i < len(p); i++ {
		switch c := p[i]; c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			j := i + 1
			if j < len(p) && (p[j] == '!' || p[j] == '^') {
				j++
			}
			if j < len(p) && p[j] == ']' {
				j++
			}
			for j < len(p) && p[j] != ']' {
				j++
			}
			if j >= len(p) {
				b.WriteString(`\[`)
				continue
			}
			class := strings.ReplaceAll(string(p[i+1:j]), `\`, `\\`)
			switch {
			case strings.HasPrefix(class, "!"):
				class = "^" + class[1:]
			case strings.HasPrefix(class, "^"):
				class = `\` + class
			}
			b.WriteString("[" + class + "]")
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString(`\z`)
	return b.String()
}

// RepoRoot returns the top-level directory of the repository containing dir.
func RepoRoot(ctx context.Context, dir string) (string, error) {
	out, err := Run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// HookPath returns the path of the named git hook for the repository at dir.
func HookPath(ctx context.Context, dir, name string) (string, error) {
	out, err := Run(ctx, dir, "rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", fmt.Errorf("not a git repository (git rev-parse --git-path failed): %w", err)
	}
	hooks := strings.TrimSpace(out)
	if !filepath.IsAbs(hooks) && dir != "" {
		hooks = filepath.Join(dir, hooks)
	}
	return filepath.Join(hooks, name), nil
}

// Error is returned when git exits unsuccessfully.
type Error struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Run executes git with args in dir and returns its stdout.
func Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		gitErr := &Error{Args: args, ExitCode: -1, Stderr: strings.TrimSpace(stderr.String()), Err: err}
		if exitErr, ok := err.(*exec.ExitError); ok {
			gitErr.ExitCode = exitErr.ExitCode()
		}
		return string(out), gitErr
	}
	return string(out), nil
}

package cli

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dshills/aireview/internal/config"
	"github.com/dshills/aireview/internal/gitctx"
)

func init() {
	color.NoColor = true
}

// chdir changes the working directory to dir and restores it when the test
// finishes (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}

// execute runs the root command in dir and returns stdout, stderr and the
// exit code. Flag state from earlier runs is reset first.
func execute(t *testing.T, dir string, args ...string) (string, string, int) {
	t.Helper()
	chdir(t, dir)
	resetFlags(rootCmd)
	resetRunFlags()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	code := RunContext(context.Background())
	return stdout.String(), stderr.String(), code
}

// resetFlags restores every flag to its default and clears Changed so that
// environment overrides are visible to viper again. Slice flags are reset
// through their backing variables.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if !strings.HasSuffix(f.Value.Type(), "Slice") {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func defaultConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.DefaultPath), config.DefaultYAML)
	return dir
}

func TestVersion(t *testing.T) {
	out, _, code := execute(t, t.TempDir(), "version")
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(out, "aireview version "+version) {
		t.Errorf("output = %q", out)
	}
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	_, _, code := execute(t, t.TempDir(), "run", "--no-such-flag")
	if code != ExitUsageError {
		t.Errorf("exit = %d, want %d", code, ExitUsageError)
	}
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	out, _, code := execute(t, dir, "init")
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(out, "Created "+config.DefaultPath) {
		t.Errorf("output = %q", out)
	}
	data, err := os.ReadFile(filepath.Join(dir, config.DefaultPath))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != config.DefaultYAML {
		t.Error("init should write the default config")
	}

	writeFile(t, filepath.Join(dir, config.DefaultPath), "checks: []\n")
	out, _, _ = execute(t, dir, "init")
	if !strings.Contains(out, "already exists") {
		t.Errorf("second init output = %q", out)
	}
	data, _ = os.ReadFile(filepath.Join(dir, config.DefaultPath))
	if string(data) != "checks: []\n" {
		t.Error("init must not overwrite an existing config")
	}
}

func TestLint(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.DefaultPath), `
definitions:
  - id: diff
    tag: changes
    cmd: internal:git_diff
  - id: names
    tag: files
    cmd: git diff --cached --name-only
prompts:
  - id: p
    text: Review this. Reply in JSON.
checks:
  - id: c
    prompt_id: p
    model: gpt-4o-mini
    context: [diff]
`)
	out, _, code := execute(t, dir, "lint")
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	for _, want := range []string{
		"warning: definition 'names' uses 'git diff --name-only'",
		"warning: definition 'names' is not used by any check",
		"1 check(s), 2 definition(s), 1 prompt(s), 2 warning(s)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("lint output missing %q:\n%s", want, out)
		}
	}
}

func TestLintInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.DefaultPath), "checks:\n  - id: c\n    prompt_id: missing\n    model: m\n")
	_, errOut, code := execute(t, dir, "lint")
	if code != ExitFailure {
		t.Errorf("exit = %d, want %d", code, ExitFailure)
	}
	if !strings.Contains(errOut, "Configuration error") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRunMissingConfig(t *testing.T) {
	_, errOut, code := execute(t, t.TempDir(), "run", "--dry-run")
	if code != ExitFailure {
		t.Errorf("exit = %d, want %d", code, ExitFailure)
	}
	if !strings.Contains(errOut, "Configuration error") || !strings.Contains(errOut, "aireview init") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRunConfigFlag(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "conf", "review.yaml"), config.DefaultYAML)
	writeFile(t, filepath.Join(dir, "ctx.txt"), "diff --git a/x.go b/x.go\n+package x\n")
	out, _, code := execute(t, dir, "run", "--config", "conf/review.yaml", "--dry-run", "--context-file", "ctx.txt")
	if code != ExitSuccess {
		t.Fatalf("exit = %d\n%s", code, out)
	}
}

func TestRunDryRunContextFile(t *testing.T) {
	dir := defaultConfigDir(t)
	writeFile(t, filepath.Join(dir, "ctx.txt"), "diff --git a/x.go b/x.go\n+package x\n")

	out, _, code := execute(t, dir, "run", "--dry-run", "--context-file", "ctx.txt")
	if code != ExitSuccess {
		t.Fatalf("exit = %d\n%s", code, out)
	}
	for _, want := range []string{
		"CHECK: code-review",
		"PASS | Feedback: Dry Run Successful",
		"1 check(s): 1 passed, 0 failed, 0 skipped, 0 manual",
		"All checks passed.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunDryRunFromEnv(t *testing.T) {
	dir := defaultConfigDir(t)
	writeFile(t, filepath.Join(dir, "ctx.txt"), "something to review")
	t.Setenv("AIREVIEW_DRY_RUN", "true")

	out, _, code := execute(t, dir, "run", "--context-file", "ctx.txt")
	if code != ExitSuccess {
		t.Fatalf("exit = %d\n%s", code, out)
	}
	if !strings.Contains(out, "Dry Run Successful") {
		t.Errorf("AIREVIEW_DRY_RUN should select the mock provider:\n%s", out)
	}
}

func TestRunEmptyContextSkips(t *testing.T) {
	dir := defaultConfigDir(t)
	writeFile(t, filepath.Join(dir, "ctx.txt"), "  \n")

	out, _, code := execute(t, dir, "run", "--dry-run", "--context-file", "ctx.txt")
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(out, "0 passed, 0 failed, 1 skipped") {
		t.Errorf("output:\n%s", out)
	}
}

func TestRunMissingContextFile(t *testing.T) {
	dir := defaultConfigDir(t)
	_, errOut, code := execute(t, dir, "run", "--dry-run", "--context-file", "nope.txt")
	if code != ExitFailure {
		t.Errorf("exit = %d, want %d", code, ExitFailure)
	}
	if !strings.Contains(errOut, "context file not found: nope.txt") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRunUnknownCheck(t *testing.T) {
	dir := defaultConfigDir(t)
	_, errOut, code := execute(t, dir, "run", "--dry-run", "--check", "nope")
	if code != ExitFailure {
		t.Errorf("exit = %d, want %d", code, ExitFailure)
	}
	if !strings.Contains(errOut, "no check found matching 'nope'") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRunWritesReportAndDump(t *testing.T) {
	dir := defaultConfigDir(t)
	writeFile(t, filepath.Join(dir, "ctx.txt"), "review me")

	out, _, code := execute(t, dir, "run", "--dry-run", "--dump", "--context-file", "ctx.txt",
		"--format", "markdown", "--out", "report.md")
	if code != ExitSuccess {
		t.Fatalf("exit = %d\n%s", code, out)
	}
	data, err := os.ReadFile(filepath.Join(dir, "report.md"))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(data), "| `code-review` |") {
		t.Errorf("report:\n%s", data)
	}
	if !strings.Contains(out, "Request dumped to:") {
		t.Errorf("output should mention the dump:\n%s", out)
	}
	entries, err := os.ReadDir(filepath.Join(dir, ".aireview", "debug"))
	if err != nil || len(entries) != 2 {
		t.Errorf("debug dir entries = %d, err = %v", len(entries), err)
	}
}

func TestSelectChecks(t *testing.T) {
	cfg, err := config.Parse([]byte(config.DefaultYAML), "")
	if err != nil {
		t.Fatal(err)
	}
	ids, err := selectChecks(cfg, nil)
	if err != nil || ids != nil {
		t.Errorf("selectChecks(nil) = %v, %v", ids, err)
	}
	if _, err := selectChecks(cfg, []string{"code-review", "other"}); err == nil {
		t.Error("unknown id should fail")
	}
	if _, err := selectChecks(&config.Config{}, nil); err == nil {
		t.Error("empty config should fail")
	}
}

func TestReviewContextPrecedence(t *testing.T) {
	t.Setenv(diffTargetEnv, "")
	rc, err := reviewContext(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if rc.Target != gitctx.DefaultTarget {
		t.Errorf("default target = %q", rc.Target)
	}

	t.Setenv(diffTargetEnv, "origin/main..HEAD")
	rc, _ = reviewContext(context.Background(), "")
	if rc.Target != "origin/main..HEAD" {
		t.Errorf("env target = %q", rc.Target)
	}

	rc, _ = reviewContext(context.Background(), "abc123")
	if rc.Target != "abc123^..abc123" {
		t.Errorf("commit target = %q", rc.Target)
	}
	if rc.WorkDir == "" {
		t.Error("WorkDir should be the process working directory")
	}
}

func TestReviewContextUsesRepoRoot(t *testing.T) {
	dir := gitRepo(t)
	sub := filepath.Join(dir, "pkg", "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	chdir(t, sub)

	rc, err := reviewContext(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(rc.WorkDir)
	if got != want {
		t.Errorf("WorkDir = %q, want repository root %q", rc.WorkDir, dir)
	}
}

func TestReviewContextOutsideRepo(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))

	rc, err := reviewContext(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(rc.WorkDir)
	if got != want {
		t.Errorf("WorkDir = %q, want %q", rc.WorkDir, dir)
	}
}

func gitRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@example.com",
			"GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@example.com")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	git("init", "-q")
	writeFile(t, filepath.Join(dir, "a.go"), "package a\n")
	git("add", ".")
	git("commit", "-q", "-m", "initial")
	writeFile(t, filepath.Join(dir, "a.go"), "package a\n\nfunc A() {}\n")
	git("commit", "-q", "-am", "wip [skip-ai]")
	writeFile(t, filepath.Join(dir, config.DefaultPath), config.DefaultYAML)
	return dir
}

func TestRunSkipTag(t *testing.T) {
	dir := gitRepo(t)
	t.Setenv(diffTargetEnv, "HEAD~1..HEAD")

	out, _, code := execute(t, dir, "run", "--dry-run")
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(out, "Skipping AI review: '[skip-ai]' found in commit messages.") {
		t.Errorf("output:\n%s", out)
	}

	out, _, code = execute(t, dir, "run", "--dry-run", "--force")
	if code != ExitSuccess {
		t.Fatalf("forced exit = %d\n%s", code, out)
	}
	if strings.Contains(out, "Skipping AI review") || !strings.Contains(out, "Dry Run Successful") {
		t.Errorf("--force should review anyway:\n%s", out)
	}
}

func TestRunCommitFlag(t *testing.T) {
	dir := gitRepo(t)
	t.Setenv(diffTargetEnv, "")

	out, _, code := execute(t, dir, "run", "--dry-run", "--force", "--commit", "HEAD")
	if code != ExitSuccess {
		t.Fatalf("exit = %d\n%s", code, out)
	}
	if !strings.Contains(out, "1 passed") {
		t.Errorf("the commit's diff should be reviewed:\n%s", out)
	}
}

func TestCacheShowDisabled(t *testing.T) {
	dir := defaultConfigDir(t)
	out, _, code := execute(t, dir, "cache", "show")
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(out, "Cache is disabled") {
		t.Errorf("output = %q", out)
	}
}

func TestCacheShowAndClear(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	writeFile(t, filepath.Join(dir, config.DefaultPath), config.DefaultYAML+"  cache:\n    enabled: true\n    dir: "+cacheDir+"\n")
	writeFile(t, filepath.Join(cacheDir, "abc.json"), `{"key":"k","model":"m","response":"{}","createdAt":"2026-01-01T00:00:00Z","ttl":60}`)

	out, _, code := execute(t, dir, "cache", "show")
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(out, `"entries": 1`) {
		t.Errorf("show output:\n%s", out)
	}

	out, _, code = execute(t, dir, "cache", "clear")
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(out, "1 entries removed") {
		t.Errorf("clear output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, "abc.json")); !os.IsNotExist(err) {
		t.Error("cache entry should be deleted")
	}
}

func TestModelsRoute(t *testing.T) {
	tests := map[string]string{
		"claude-sonnet-4-5":    "backend: anthropic",
		"gemini-2.5-flash":     "backend: gemini",
		"ollama:qwen2.5-coder": "backend: ollama",
		"gpt-4o-mini":          "backend: openai",
	}
	for model, want := range tests {
		out, _, code := execute(t, t.TempDir(), "models", "route", model)
		if code != ExitSuccess {
			t.Fatalf("%s: exit = %d", model, code)
		}
		if !strings.Contains(out, want) {
			t.Errorf("route %s:\n%s", model, out)
		}
	}
}

func TestModelsList(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	out, _, _ := execute(t, t.TempDir(), "models", "list")
	for _, want := range []string{"anthropic:", "gemini:", "ollama:", "openai:", "ANTHROPIC_API_KEY"} {
		if !strings.Contains(out, want) {
			t.Errorf("list missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "(not set)") {
		t.Errorf("unset credentials should be reported:\n%s", out)
	}
}

func TestModelsDoctorWithoutCredentials(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, errOut, code := execute(t, t.TempDir(), "models", "doctor", "claude-sonnet-4-5")
	if code != ExitFailure {
		t.Errorf("exit = %d, want %d", code, ExitFailure)
	}
	if !strings.Contains(errOut, "FAIL:") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRevertNoPatches(t *testing.T) {
	out, _, code := execute(t, t.TempDir(), "revert")
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(out, "No saved patches") {
		t.Errorf("output = %q", out)
	}
}

func TestRevertMissingPatch(t *testing.T) {
	_, errOut, code := execute(t, t.TempDir(), "revert", "missing.patch")
	if code != ExitFailure {
		t.Errorf("exit = %d, want %d", code, ExitFailure)
	}
	if !strings.Contains(errOut, "patch file not found") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRevertList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".aireview", "patches", "1_a.patch"), "x")
	writeFile(t, filepath.Join(dir, ".aireview", "patches", "2_b.patch"), "x")
	out, _, code := execute(t, dir, "revert", "--list")
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if strings.Index(out, "2_b.patch") > strings.Index(out, "1_a.patch") {
		t.Errorf("patches should be listed newest first:\n%s", out)
	}
}

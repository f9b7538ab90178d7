package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/aireview/internal/cache"
	"github.com/dshills/aireview/internal/config"
	"github.com/dshills/aireview/internal/contextprov"
	"github.com/dshills/aireview/internal/dump"
	"github.com/dshills/aireview/internal/gitctx"
	"github.com/dshills/aireview/internal/output"
	"github.com/dshills/aireview/internal/patch"
	"github.com/dshills/aireview/internal/providers"
	"github.com/dshills/aireview/internal/review"
)

var (
	flagChecks      []string
	flagDryRun      bool
	flagDump        bool
	flagContextFile string
	flagCommit      string
	flagForce       bool
	flagFormat      string
	flagOut         string
)

func resetRunFlags() {
	flagChecks = nil
	flagDryRun = false
	flagDump = false
	flagContextFile = ""
	flagCommit = ""
	flagForce = false
	flagFormat = "json"
	flagOut = ""
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run review checks against the current changes",
	Example: `  aireview run                          # all checks on staged changes
  aireview run --check sanity_check     # one check only
  aireview run --commit a1b2c3d         # a commit against its parent
  aireview run --dry-run --dump -v      # no model calls, dump requests
  aireview run --context-file diff.txt  # literal context, bypass git`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exitCode = runChecks(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		return nil
	},
}

func runChecks(ctx context.Context, stdout, stderr io.Writer) int {
	cfg, err := config.Load(configPath())
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return ExitFailure
	}
	for _, w := range cfg.Lint() {
		logger.Warn(w)
	}

	ids, err := selectChecks(cfg, flagChecks)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitFailure
	}

	rc, err := reviewContext(ctx, flagCommit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitFailure
	}
	if flagCommit != "" {
		logger.Info("targeting commit", "commit", flagCommit, "range", rc.Target)
	}

	if !flagForce && flagContextFile == "" {
		if tag, ok := skipTag(ctx, rc); ok {
			fmt.Fprintf(stdout, "Skipping AI review: '%s' found in commit messages.\n", tag)
			return ExitSuccess
		}
	}

	if flagContextFile != "" {
		if _, err := os.Stat(flagContextFile); err != nil {
			fmt.Fprintf(stderr, "Error: context file not found: %s\n", flagContextFile)
			return ExitFailure
		}
	}

	dryRun := flagDryRun || settings.GetBool("dry-run")
	verbose := settings.GetBool("verbose")
	opts := []review.Option{
		review.WithOutput(stdout),
		review.WithLogger(logger),
		review.WithVerbose(verbose),
		review.WithDumper(dump.New(flagDump || verbose, rc.WorkDir, logger)),
		review.WithPatches(patch.NewManager(rc.WorkDir, logger)),
		review.WithContextFile(flagContextFile),
	}
	if c := openCache(cfg, dryRun); c != nil {
		opts = append(opts, review.WithCache(c))
	}

	runner := contextprov.New(rc,
		contextprov.WithTimeout(cfg.Settings.CommandTimeout),
		contextprov.WithLogger(logger),
	)
	router := providers.NewRouter(
		providers.WithDryRun(dryRun),
		providers.WithRouterLogger(logger),
	)
	engine := review.New(cfg, runner, router, opts...)

	color.New(color.Bold).Fprintln(stdout, "\nAI Code Review")
	if dryRun {
		fmt.Fprintln(stdout, "(dry run: no model calls)")
	}
	fmt.Fprintln(stdout)

	summary := engine.Run(ctx, ids)

	if flagOut != "" {
		if err := output.WriteReport(output.NewReport(summary, version), flagFormat, flagOut); err != nil {
			fmt.Fprintf(stderr, "Error writing report: %v\n", err)
		}
	}

	if !summary.OK() {
		color.New(color.FgRed, color.Bold).Fprintln(stdout, "✘ Review failed. Please fix the issues above.")
		return ExitFailure
	}
	color.New(color.FgGreen, color.Bold).Fprintln(stdout, "✔ All checks passed.")
	return ExitSuccess
}

func selectChecks(cfg *config.Config, requested []string) ([]string, error) {
	if len(cfg.Checks) == 0 {
		return nil, errors.New("no checks defined in config")
	}
	for _, id := range requested {
		if _, ok := cfg.Check(id); !ok {
			return nil, fmt.Errorf("no check found matching '%s'", id)
		}
	}
	return requested, nil
}

// skipTag looks for an opt-out tag in the commits being reviewed. The staged
// index has no commits, so it is never skipped.
func skipTag(ctx context.Context, rc gitctx.ReviewContext) (string, bool) {
	commits, err := gitctx.Commits(ctx, rc)
	if err != nil {
		logger.Warn("could not read commit messages", "target", rc.Target, "error", err)
		return "", false
	}
	return gitctx.SkipTag(commits)
}

func openCache(cfg *config.Config, dryRun bool) *cache.Cache {
	if !cfg.Settings.Cache.Enabled || dryRun {
		return nil
	}
	c, err := cache.New(true, cfg.Settings.Cache.Dir, cfg.Settings.Cache.TTLSeconds)
	if err != nil {
		logger.Warn("response cache unavailable", "error", err)
		return nil
	}
	return c
}

func init() {
	f := runCmd.Flags()
	f.StringSliceVar(&flagChecks, "check", nil, "Run only the given check ID (repeatable)")
	f.BoolVar(&flagDryRun, "dry-run", false, "Simulate the run without calling any model (env AIREVIEW_DRY_RUN)")
	f.BoolVar(&flagDump, "dump", false, "Save each request and parsed response under .aireview/debug")
	f.StringVar(&flagContextFile, "context-file", "", "Use the content of this file as the only context")
	f.StringVar(&flagCommit, "commit", "", "Review a single commit against its parent")
	f.BoolVar(&flagForce, "force", false, "Ignore [skip-ai] style tags in commit messages")
	f.StringVar(&flagFormat, "format", "json", "Format of the --out report (json, markdown, sarif)")
	f.StringVar(&flagOut, "out", "", "Also write a machine-readable report to this file")
}

package cli

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dshills/aireview/internal/config"
	"github.com/dshills/aireview/internal/gitctx"
)

// envPrefix namespaces environment overrides, e.g. AIREVIEW_CONFIG.
const envPrefix = "AIREVIEW"

// diffTargetEnv is set by the pre-push hook to the range being pushed.
const diffTargetEnv = "AI_DIFF_TARGET"

// settings merges flags with AIREVIEW_* environment variables. Flags win.
var settings = newSettings()

func newSettings() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("diff-target", diffTargetEnv)
	v.SetDefault("config", config.DefaultPath)
	v.SetDefault("log-format", "text")
	return v
}

func bindSettings(cmd *cobra.Command) error {
	return settings.BindPFlags(cmd.Flags())
}

// loadDotEnv reads .env from the working directory without overriding
// variables that are already set.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("could not load .env", "error", err)
	}
}

func configPath() string {
	if p := settings.GetString("config"); p != "" {
		return p
	}
	return config.DefaultPath
}

// workDir is the top level of the enclosing repository, so paths reported
// by git resolve no matter which subdirectory aireview runs from. Outside a
// repository it is the process working directory.
func workDir(ctx context.Context) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := gitctx.RepoRoot(ctx, wd)
	if err != nil {
		logger.Debug("not inside a git repository", "dir", wd)
		return wd, nil
	}
	return root, nil
}

// reviewContext resolves the diff target: --commit wins over
// AI_DIFF_TARGET, which wins over the staged index.
func reviewContext(ctx context.Context, commit string) (gitctx.ReviewContext, error) {
	wd, err := workDir(ctx)
	if err != nil {
		return gitctx.ReviewContext{}, err
	}
	rc := gitctx.ReviewContext{Target: strings.TrimSpace(settings.GetString("diff-target")), WorkDir: wd}
	if commit != "" {
		rc.Target = gitctx.CommitTarget(commit)
	}
	if rc.Target == "" {
		rc.Target = gitctx.DefaultTarget
	}
	return rc, nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", config.DefaultPath, "Path to the review configuration file (env AIREVIEW_CONFIG)")
	pf.BoolP("verbose", "v", false, "Debug logging, backend metadata and full payloads; implies --dump")
	pf.String("log-format", "text", "Log format on stderr (text, json)")
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/aireview/internal/logging"
)

const version = "0.3.0"

// Exit codes. A failed check and an invalid configuration share code 1 so
// that a git hook blocks on either.
const (
	ExitSuccess    = 0
	ExitFailure    = 1
	ExitUsageError = 2
)

var rootCmd = &cobra.Command{
	Use:   "aireview",
	Short: "AI code review gate for git",
	Long: `aireview runs the checks declared in ai-checks.yaml against your changes.
Each check gathers context (diffs, file contents, command output), sends it
with a prompt to a reviewer model, and turns the reply into PASS, FAIL, FIX
or MANUAL. Any FAIL or FIX makes the command exit non-zero, so it can gate a
git push.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindSettings(cmd); err != nil {
			return err
		}
		loadDotEnv()
		logger = newLogger()
		logCredentials(logger)
		return nil
	},
}

// logger is rebuilt for every command once flags are parsed.
var logger = logging.Discard()

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

// Run executes the root command and returns an exit code.
func Run() int {
	return RunContext(context.Background())
}

// RunContext is Run with a caller-supplied context, cancelled on interrupt
// by the binary.
func RunContext(ctx context.Context) int {
	exitCode = ExitSuccess
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}
	return exitCode
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print aireview version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "aireview version %s\n", version)
	},
}

func newLogger() *slog.Logger {
	level := "info"
	if settings.GetBool("verbose") {
		level = "debug"
	}
	return logging.New(logging.Config{Level: level, Format: settings.GetString("log-format"), Output: os.Stderr})
}

func logCredentials(l *slog.Logger) {
	for _, name := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		l.Debug("credential", "env", name, "value", logging.MaskKey(os.Getenv(name)))
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(revertCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(versionCmd)
}

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/aireview/internal/gitctx"
)

const (
	hookName        = "pre-push"
	hookMarkerStart = "# >>> aireview pre-push hook >>>"
	hookMarkerEnd   = "# <<< aireview pre-push hook <<<"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install aireview as a git pre-push hook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hookPath, err := gitctx.HookPath(cmd.Context(), "", hookName)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			exitCode = ExitFailure
			return nil
		}
		if err := installHook(hookPath, hookScript()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			exitCode = ExitFailure
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Installed aireview pre-push hook at %s\n", hookPath)
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the aireview pre-push hook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hookPath, err := gitctx.HookPath(cmd.Context(), "", hookName)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			exitCode = ExitFailure
			return nil
		}
		msg, err := uninstallHook(hookPath)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			exitCode = ExitFailure
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

// hookScript reads the refs git passes on stdin and reviews each pushed
// range. New branches are compared against origin/main.
func hookScript() string {
	var b strings.Builder
	b.WriteString(hookMarkerStart + "\n")
	b.WriteString("zero=0000000000000000000000000000000000000000\n")
	b.WriteString("while read local_ref local_sha remote_ref remote_sha; do\n")
	b.WriteString("  if [ \"$local_sha\" = \"$zero\" ]; then\n")
	b.WriteString("    continue\n")
	b.WriteString("  fi\n")
	b.WriteString("  if [ \"$remote_sha\" = \"$zero\" ]; then\n")
	b.WriteString("    AI_DIFF_TARGET=\"origin/main..$local_sha\"\n")
	b.WriteString("  else\n")
	b.WriteString("    AI_DIFF_TARGET=\"$remote_sha..$local_sha\"\n")
	b.WriteString("  fi\n")
	b.WriteString("  export AI_DIFF_TARGET\n")
	b.WriteString("  aireview run < /dev/null\n")
	b.WriteString("  if [ $? -ne 0 ]; then\n")
	b.WriteString("    echo \"aireview: review failed, push blocked (bypass with git push --no-verify)\"\n")
	b.WriteString("    exit 1\n")
	b.WriteString("  fi\n")
	b.WriteString("done\n")
	b.WriteString(hookMarkerEnd + "\n")
	return b.String()
}

func installHook(hookPath, section string) error {
	existing, err := os.ReadFile(hookPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading hook file: %w", err)
	}

	content := "#!/bin/sh\n" + section
	if len(existing) > 0 {
		content = replaceHookSection(string(existing), section)
	}

	if err := os.MkdirAll(filepath.Dir(hookPath), 0o755); err != nil {
		return fmt.Errorf("creating hooks directory: %w", err)
	}
	if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
		return fmt.Errorf("writing hook file: %w", err)
	}
	return os.Chmod(hookPath, 0o755)
}

// uninstallHook removes our section and deletes the file when nothing but
// a shebang is left.
func uninstallHook(hookPath string) (string, error) {
	existing, err := os.ReadFile(hookPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "No pre-push hook found.", nil
		}
		return "", fmt.Errorf("reading hook file: %w", err)
	}
	if !strings.Contains(string(existing), hookMarkerStart) {
		return "The pre-push hook was not installed by aireview, leaving it untouched.", nil
	}

	content := removeHookSection(string(existing))
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || trimmed == "#!/bin/sh" || trimmed == "#!/bin/bash" {
		if err := os.Remove(hookPath); err != nil {
			return "", fmt.Errorf("removing hook file: %w", err)
		}
		return "Removed aireview pre-push hook at " + hookPath, nil
	}
	if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
		return "", fmt.Errorf("writing hook file: %w", err)
	}
	return "Removed aireview section from " + hookPath, nil
}

func hookSectionBounds(existing string) (int, int, bool) {
	start := strings.Index(existing, hookMarkerStart)
	end := strings.Index(existing, hookMarkerEnd)
	if start == -1 || end == -1 || end < start {
		return 0, 0, false
	}
	return start, end + len(hookMarkerEnd), true
}

func replaceHookSection(existing, section string) string {
	start, end, ok := hookSectionBounds(existing)
	if !ok {
		if !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + section
	}
	return existing[:start] + section + strings.TrimPrefix(existing[end:], "\n")
}

func removeHookSection(existing string) string {
	start, end, ok := hookSectionBounds(existing)
	if !ok {
		return existing
	}
	return existing[:start] + strings.TrimPrefix(existing[end:], "\n")
}

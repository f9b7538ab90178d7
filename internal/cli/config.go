package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/aireview/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter ai-checks.yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		created, err := config.WriteDefault(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			exitCode = ExitFailure
			return nil
		}
		if !created {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, leaving it untouched.\n", path)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
		return nil
	},
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate the configuration and report warnings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		cfg, err := config.Load(path)
		if err != nil {
			var cfgErr *config.ConfigError
			if errors.As(err, &cfgErr) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Configuration error: %v\n", err)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			}
			exitCode = ExitFailure
			return nil
		}
		out := cmd.OutOrStdout()
		warnings := cfg.Lint()
		for _, w := range warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		fmt.Fprintf(out, "%s: %d check(s), %d definition(s), %d prompt(s), %d warning(s)\n",
			path, len(cfg.Checks), len(cfg.Definitions), len(cfg.Prompts), len(warnings))
		return nil
	},
}

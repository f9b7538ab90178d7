package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/aireview/internal/patch"
)

var flagListPatches bool

var revertCmd = &cobra.Command{
	Use:   "revert [patch]",
	Short: "Undo an applied fix patch (default: the newest one)",
	Example: `  aireview revert                                        # newest patch
  aireview revert .aireview/patches/1718000000_lint.patch
  aireview revert --list`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wd, err := workDir(cmd.Context())
		if err != nil {
			return err
		}
		mgr := patch.NewManager(wd, logger)
		out := cmd.OutOrStdout()

		if flagListPatches {
			paths, err := mgr.List()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				exitCode = ExitFailure
				return nil
			}
			if len(paths) == 0 {
				fmt.Fprintln(out, "No saved patches.")
			}
			for _, p := range paths {
				fmt.Fprintln(out, p)
			}
			return nil
		}

		target := ""
		if len(args) == 1 {
			target = args[0]
		} else {
			target, err = mgr.Latest()
			if errors.Is(err, patch.ErrNoPatches) {
				fmt.Fprintf(out, "No saved patches in %s.\n", patch.Dir)
				return nil
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				exitCode = ExitFailure
				return nil
			}
		}

		if err := mgr.Revert(cmd.Context(), target); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			exitCode = ExitFailure
			return nil
		}
		fmt.Fprintf(out, "Reverted %s\n", target)
		return nil
	},
}

func init() {
	revertCmd.Flags().BoolVar(&flagListPatches, "list", false, "List saved patches instead of reverting")
}

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/aireview/internal/cache"
	"github.com/dshills/aireview/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the response cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached model replies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath())
		if err != nil {
			return err
		}
		// Clearing works even when caching is switched off in the config.
		c, err := cache.New(true, cfg.Settings.Cache.Dir, cfg.Settings.Cache.TTLSeconds)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		n, err := c.Clear()
		if err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared (%d entries removed from %s).\n", n, c.Dir())
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath())
		if err != nil {
			return err
		}
		c, err := cache.New(cfg.Settings.Cache.Enabled, cfg.Settings.Cache.Dir, cfg.Settings.Cache.TTLSeconds)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		if !c.Enabled() {
			fmt.Fprintln(cmd.OutOrStdout(), "Cache is disabled (settings.cache.enabled).")
			return nil
		}
		stats, err := c.GetStats()
		if err != nil {
			return fmt.Errorf("reading cache stats: %w", err)
		}
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheShowCmd)
}

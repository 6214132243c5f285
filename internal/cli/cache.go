package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smukkama/env-monitor/internal/app"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the response cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [key]",
	Short: "Remove one cached entry, or every entry under the cache prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, closeStore, err := app.OpenCacheStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	c := app.NewCache(store, cfg.Cache, newLogger(cfg))
	if len(args) == 1 {
		c.Clear(cmd.Context(), args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s%s\n", cfg.Cache.Prefix, args[0])
		return nil
	}

	c.ClearAll(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared all entries with prefix %s\n", cfg.Cache.Prefix)
	return nil
}

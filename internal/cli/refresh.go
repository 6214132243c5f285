package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smukkama/env-monitor/internal/app"
	"github.com/smukkama/env-monitor/internal/refresh"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Daily refresh schedule",
}

var refreshStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last and next scheduled refresh",
	RunE:  runRefreshStatus,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.AddCommand(refreshStatusCmd)
}

func runRefreshStatus(cmd *cobra.Command, _ []string) error {
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
	scheduler, err := refresh.NewScheduler(c, cfg.Refresh.TimeOfDay, cfg.Refresh.Location)
	if err != nil {
		return err
	}

	now := c.Now()
	out := cmd.OutOrStdout()

	if last, ok := scheduler.LastRefresh(cmd.Context()); ok {
		fmt.Fprintf(out, "Last refresh:  %s\n", last.In(cfg.Refresh.Location).Format(time.RFC3339))
	} else {
		fmt.Fprintf(out, "Last refresh:  never\n")
	}
	fmt.Fprintf(out, "Next refresh:  %s\n", scheduler.NextRefresh(now).Format(time.RFC3339))
	fmt.Fprintf(out, "Time until:    %s\n", scheduler.TimeUntilNextRefresh(now).Round(time.Second))
	fmt.Fprintf(out, "Refresh due:   %t\n", scheduler.ShouldRefresh(cmd.Context(), now))
	return nil
}

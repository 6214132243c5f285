package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smukkama/env-monitor/internal/protocol"
)

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Alert thresholds",
}

var thresholdsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the thresholds the monitor would start with",
	RunE:  runThresholdsShow,
}

func init() {
	rootCmd.AddCommand(thresholdsCmd)
	thresholdsCmd.AddCommand(thresholdsShowCmd)
}

func runThresholdsShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	thresholds, err := loadThresholds(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tWARNING\tCRITICAL\tENABLED")
	for _, metric := range protocol.Metrics {
		th := thresholds[metric]
		fmt.Fprintf(w, "%s\t%g\t%g\t%t\n", metric, th.Warning, th.Critical, th.Enabled)
	}
	return w.Flush()
}

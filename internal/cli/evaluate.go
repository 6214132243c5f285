package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smukkama/env-monitor/internal/alerting"
	"github.com/smukkama/env-monitor/internal/apiclient"
	"github.com/smukkama/env-monitor/internal/protocol"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Fetch readings and print the alerts they would raise",
	RunE:  runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().Bool("all", false, "Evaluate the full history instead of the latest reading per city")
	evaluateCmd.Flags().StringP("severity", "s", "", "Only show events of this severity (critical, warning)")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	all, _ := cmd.Flags().GetBool("all")
	severityFlag, _ := cmd.Flags().GetString("severity")

	var severity protocol.Severity
	if severityFlag != "" {
		if severity, err = protocol.ParseSeverity(severityFlag); err != nil {
			return err
		}
	}

	thresholds, err := loadThresholds(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	client := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout, cfg.API.RetryMax, newLogger(cfg))

	var readings []protocol.Reading
	if all {
		readings, err = client.Readings(cmd.Context())
	} else {
		readings, err = client.LatestReadings(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("fetch readings: %w", err)
	}

	events := alerting.NewEvaluator().Evaluate(readings, thresholds)

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEVERITY\tLOCATION\tMETRIC\tVALUE\tMESSAGE")
	shown := 0
	for _, ev := range events {
		if severity != "" && ev.Severity != severity {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%s\n", ev.Severity, ev.Location, ev.Metric, ev.Value, ev.Message)
		shown++
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d readings evaluated, %d alerts\n", len(readings), shown)
	return nil
}

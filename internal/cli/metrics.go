package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/lmay/internal/observability"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display validation and drift metrics",
	Long: `Display aggregated metrics derived from the project's event log.

Metrics include validation runs and failures, findings by type, drift
classifications and deleted documents.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}

		sinceTime, err := observability.ParseSince(metricsSince, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if metricsJSON {
			data, err := json.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		// Table format.
		fmt.Fprintf(out, "Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(out, "  %-24s %d\n", "Validation runs:", metrics.ValidationRuns)
		fmt.Fprintf(out, "  %-24s %d\n", "Failed validations:", metrics.ValidationFailures)
		fmt.Fprintf(out, "  %-24s %d\n", "Drift runs:", metrics.DriftRuns)
		fmt.Fprintf(out, "  %-24s %d\n", "Documents deleted:", metrics.DocumentsDeleted)

		writeCounts(cmd, "Findings by type:", metrics.FindingsByType)
		writeCounts(cmd, "Documents by drift status:", metrics.DocumentsByStatus)

		if metrics.LastValidation != nil {
			fmt.Fprintf(out, "\n  %-24s %s\n", "Last validation:", metrics.LastValidation.Format(time.RFC3339))
		}
		if metrics.OldestEvent != nil {
			fmt.Fprintf(out, "  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

// writeCounts prints a titled count table sorted by key.
func writeCounts(cmd *cobra.Command, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n  %s\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "    %-28s %d\n", k+":", counts[k])
	}
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", observability.DefaultMetricsWindow, "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}

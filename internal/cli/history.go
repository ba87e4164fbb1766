package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/lmay/pkg/models"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent validate and drift runs",
	Long: `List the most recent validate and drift runs recorded for the project,
newest first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Runs == nil {
			return fmt.Errorf("run store not initialized")
		}

		runs, err := Runs.Recent(commandContext(cmd), historyLimit)
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}

		out := cmd.OutOrStdout()
		if historyJSON {
			if runs == nil {
				runs = []models.RunRecord{}
			}
			data, err := json.MarshalIndent(runs, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting runs as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tKIND\tRESULT\tDOCS\tDETAILS\tDURATION\tRUN")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Kind,
				runResult(r),
				r.Documents,
				runDetails(r),
				r.Duration.Round(time.Millisecond),
				shortID(r.ID),
			)
		}
		return tw.Flush()
	},
}

func runResult(r models.RunRecord) string {
	switch {
	case r.Kind == models.RunDrift && r.Valid:
		return "clean"
	case r.Kind == models.RunDrift:
		return "drifted"
	case r.Valid:
		return "valid"
	default:
		return "invalid"
	}
}

func runDetails(r models.RunRecord) string {
	if r.Kind == models.RunDrift {
		return fmt.Sprintf("%d outdated, %d obsolete", r.Outdated, r.Obsolete)
	}
	return fmt.Sprintf("%d errors, %d warnings", r.Errors, r.Warnings)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output runs as JSON")
	rootCmd.AddCommand(historyCmd)
}
